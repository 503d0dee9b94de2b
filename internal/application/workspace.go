package application

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jobrunner/geofix/internal/domain"
)

// Workspace confines dataset paths to a root directory.
type Workspace struct {
	root string
}

// NewWorkspace creates a workspace rooted at dir.
func NewWorkspace(dir string) (*Workspace, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace %s: %w", dir, err)
	}
	return &Workspace{root: root}, nil
}

// Root returns the absolute workspace directory.
func (w *Workspace) Root() string {
	return w.root
}

// Resolve turns a relative or absolute path into an absolute path inside
// the workspace. Paths escaping the root fail with ErrPathOutsideWorkspace.
func (w *Workspace) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", &domain.ValidationError{
			Field:      "path",
			Value:      path,
			Constraint: "non-empty",
			Message:    "path is required",
		}
	}

	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(w.root, path)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(w.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", path, domain.ErrPathOutsideWorkspace)
	}
	return abs, nil
}

// Rel returns path relative to the workspace root, or path itself when it
// lies outside.
func (w *Workspace) Rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}
