package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Output name markers.
const (
	MarkerFixed  = "_fixed"
	MarkerJoined = "_joined"
	MarkerSJoin  = "_sjoin"
)

// GeoJSON file extensions.
const (
	ExtGeoJSON = ".geojson"
	ExtJSON    = ".json"
)

// DeriveOutputPath inserts marker before the extension of path. Outputs are
// always GeoJSON, so non-GeoJSON inputs get a .geojson extension.
func DeriveOutputPath(path, marker string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	switch strings.ToLower(ext) {
	case ExtGeoJSON, ExtJSON:
		return base + marker + ext
	}
	return base + marker + ExtGeoJSON
}

// IsDerivedPath returns true if the file name carries an output marker.
func IsDerivedPath(path string) bool {
	name := DeriveLayerName(path)
	for _, m := range []string{MarkerFixed, MarkerJoined, MarkerSJoin} {
		if strings.HasSuffix(name, m) {
			return true
		}
	}
	return false
}

// Format is a supported dataset file format.
type Format string

// Supported formats.
const (
	FormatGeoJSON   Format = "geojson"
	FormatShapefile Format = "shapefile"
	FormatZip       Format = "zip" // zipped shapefile
)

// DetectFormat returns the dataset format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtGeoJSON, ExtJSON:
		return FormatGeoJSON, nil
	case ".shp":
		return FormatShapefile, nil
	case ".zip":
		return FormatZip, nil
	}
	return "", fmt.Errorf("%s: %w", filepath.Ext(path), ErrUnsupportedFormat)
}

// IsDatasetFile returns true if the path has a readable dataset extension.
func IsDatasetFile(path string) bool {
	_, err := DetectFormat(path)
	return err == nil
}
