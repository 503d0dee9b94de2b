package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/jobrunner/geofix/internal/domain"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}
	}
}

func TestLocalStorageList(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"roads.geojson":         "test",
		"zones.shp":             "test",
		"zones.dbf":             "test",
		"zones.prj":             "test",
		"archive/parcels.zip":   "test",
		"notes.txt":             "test",
		".cache/hidden.geojson": "test",
	})

	storage := NewLocalStorage(tmpDir)
	objects, err := storage.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		keys = append(keys, obj.Key)
		if obj.Size != 4 {
			t.Errorf("object %q size = %d, want 4", obj.Key, obj.Size)
		}
		if obj.LastModified == 0 {
			t.Errorf("object %q LastModified should not be 0", obj.Key)
		}
	}
	sort.Strings(keys)

	want := []string{"archive/parcels.zip", "roads.geojson", "zones.shp"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestLocalStorageListEmpty(t *testing.T) {
	objects, err := NewLocalStorage(t.TempDir()).List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("len(objects) = %d, want 0", len(objects))
	}
}

func TestLocalStorageListNonExistent(t *testing.T) {
	_, err := NewLocalStorage("/nonexistent/path").List(context.Background())

	var storageErr *domain.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("List() error = %v, want *StorageError", err)
	}
	if storageErr.Operation != "list" {
		t.Errorf("Operation = %q, want list", storageErr.Operation)
	}
}

func TestLocalStorageExists(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{"zones.prj": "test"})

	storage := NewLocalStorage(tmpDir)

	tests := []struct {
		name    string
		key     string
		want    bool
		wantErr bool
	}{
		{"existing file", "zones.prj", true, false},
		{"non-existing file", "zones.cpg", false, false},
		{"outside base", "../etc/passwd", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exists, err := storage.Exists(context.Background(), tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Exists() error = %v, wantErr %v", err, tt.wantErr)
			}
			if exists != tt.want {
				t.Errorf("Exists() = %v, want %v", exists, tt.want)
			}
		})
	}
}

func TestLocalStorageGetReader(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{"roads.geojson": "test content"})

	storage := NewLocalStorage(tmpDir)

	reader, err := storage.GetReader(context.Background(), "roads.geojson")
	if err != nil {
		t.Fatalf("GetReader() error = %v", err)
	}
	defer func() { _ = reader.Close() }()

	buf := make([]byte, 32)
	n, _ := reader.Read(buf)
	if string(buf[:n]) != "test content" {
		t.Errorf("content = %q, want %q", string(buf[:n]), "test content")
	}

	if _, err := storage.GetReader(context.Background(), "missing.geojson"); err == nil {
		t.Error("GetReader() should error for non-existent file")
	}
}

func TestLocalStorageDownload(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	writeFiles(t, srcDir, map[string]string{"roads.geojson": "test content for download"})

	storage := NewLocalStorage(srcDir)
	destFile := filepath.Join(destDir, "nested", "deep", "roads.geojson")

	if err := storage.Download(context.Background(), "roads.geojson", destFile); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	content, err := os.ReadFile(destFile)
	if err != nil {
		t.Fatalf("failed to read dest file: %v", err)
	}
	if string(content) != "test content for download" {
		t.Errorf("content = %q", string(content))
	}
}

func TestLocalStorageDownloadSameFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{"roads.geojson": "test"})

	storage := NewLocalStorage(tmpDir)
	err := storage.Download(context.Background(), "roads.geojson", filepath.Join(tmpDir, "roads.geojson"))
	if err != nil {
		t.Errorf("Download() to same location should not error, got: %v", err)
	}
}

func TestLocalStorageDownloadErrors(t *testing.T) {
	storage := NewLocalStorage(t.TempDir())
	dest := filepath.Join(t.TempDir(), "out.geojson")

	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"missing source", "missing.geojson", os.ErrNotExist},
		{"outside base", "../../secret.geojson", domain.ErrPathOutsideWorkspace},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storage.Download(context.Background(), tt.key, dest)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Download() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLocalStorageUpload(t *testing.T) {
	baseDir := t.TempDir()
	srcDir := t.TempDir()
	writeFiles(t, srcDir, map[string]string{"roads_fixed.geojson": `{"type":"FeatureCollection","features":[]}`})

	storage := NewLocalStorage(baseDir)
	src := filepath.Join(srcDir, "roads_fixed.geojson")

	if err := storage.Upload(context.Background(), src, "out/roads_fixed.geojson"); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	exists, err := storage.Exists(context.Background(), "out/roads_fixed.geojson")
	if err != nil || !exists {
		t.Errorf("Exists() = %v, %v after upload", exists, err)
	}

	if err := storage.Upload(context.Background(), src, "../escape.geojson"); !errors.Is(err, domain.ErrPathOutsideWorkspace) {
		t.Errorf("Upload() outside base error = %v", err)
	}
}

func TestLocalStorageFullPath(t *testing.T) {
	storage := NewLocalStorage("/data/datasets")

	tests := []struct {
		key  string
		want string
	}{
		{"roads.geojson", "/data/datasets/roads.geojson"},
		{"sub/zones.shp", "/data/datasets/sub/zones.shp"},
		{"", "/data/datasets"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := storage.FullPath(tt.key); got != tt.want {
				t.Errorf("FullPath(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestKeyHelpers(t *testing.T) {
	tests := []struct {
		prefix, key, joined string
	}{
		{"", "roads.geojson", "roads.geojson"},
		{"datasets", "roads.geojson", "datasets/roads.geojson"},
		{"datasets/", "sub/zones.shp", "datasets/sub/zones.shp"},
	}

	for _, tt := range tests {
		t.Run(tt.joined, func(t *testing.T) {
			if got := joinKey(tt.prefix, tt.key); got != tt.joined {
				t.Errorf("joinKey() = %q, want %q", got, tt.joined)
			}
			if got := trimKey(tt.prefix, tt.joined); got != tt.key {
				t.Errorf("trimKey() = %q, want %q", got, tt.key)
			}
		})
	}
}
