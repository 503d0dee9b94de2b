package dataset

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jobrunner/geofix/internal/domain"
)

// shapefileMembers are the archive members needed to read a shapefile.
var shapefileMembers = map[string]bool{
	".shp": true,
	".shx": true,
	".dbf": true,
	".prj": true,
	".cpg": true,
}

// readZippedShapefile extracts the first shapefile of an archive into a
// temporary directory and reads it.
func readZippedShapefile(path string) (*domain.Dataset, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer zr.Close()

	dir, err := os.MkdirTemp("", "geofix-shp-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}
	defer os.RemoveAll(dir)

	var shpPath string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(filepath.Base(f.Name), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(f.Name))
		if !shapefileMembers[ext] {
			continue
		}
		// flatten member paths so nothing escapes the temp directory
		name := filepath.Base(f.Name)
		dest := filepath.Join(dir, strings.TrimSuffix(name, filepath.Ext(name))+ext)
		if err := extractMember(f, dest); err != nil {
			return nil, err
		}
		if ext == ".shp" && shpPath == "" {
			shpPath = dest
		}
	}
	if shpPath == "" {
		return nil, fmt.Errorf("no .shp member in archive: %w", domain.ErrUnsupportedFormat)
	}

	ds, err := readShapefile(shpPath)
	if err != nil {
		return nil, err
	}
	ds.Name = domain.DeriveLayerName(shpPath)
	return ds, nil
}

func extractMember(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extracting %s: %w", f.Name, err)
	}
	return out.Close()
}
