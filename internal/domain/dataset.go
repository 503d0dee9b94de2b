package domain

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// Dataset is a file-backed collection of features sharing one schema and CRS.
type Dataset struct {
	Path     string    // Location on disk
	Name     string    // Layer name, derived from the file name
	CRS      CRS       // Coordinate reference system, may be unset
	Schema   Schema    // Ordered attribute columns
	Features []Feature // Ordered features
}

// Len returns the number of features.
func (d *Dataset) Len() int {
	return len(d.Features)
}

// IsEmpty returns true if the dataset has no features.
func (d *Dataset) IsEmpty() bool {
	return len(d.Features) == 0
}

// GeometryTypes returns the distinct geometry type labels in first-seen order.
func (d *Dataset) GeometryTypes() []string {
	seen := make(map[string]bool)
	types := make([]string, 0, 2)
	for i := range d.Features {
		t := d.Features[i].GeometryType()
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		types = append(types, t)
	}
	return types
}

// Bounds returns the bounding box of all non-null geometries.
// The second return value is false if there are none.
func (d *Dataset) Bounds() (orb.Bound, bool) {
	var (
		bound orb.Bound
		found bool
	)
	for i := range d.Features {
		g := d.Features[i].Geometry
		if g == nil || IsEmptyGeometry(g) {
			continue
		}
		if !found {
			bound = g.Bound()
			found = true
			continue
		}
		bound = bound.Union(g.Bound())
	}
	return bound, found
}

// WithFeatures returns a shallow copy of the dataset carrying new features.
func (d *Dataset) WithFeatures(features []Feature) *Dataset {
	cp := *d
	cp.Features = features
	return &cp
}

// DeriveLayerName extracts the layer name from a file path.
func DeriveLayerName(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext)
}

// IsEmptyGeometry returns true if the geometry has no positions.
func IsEmptyGeometry(g orb.Geometry) bool {
	switch geom := g.(type) {
	case nil:
		return true
	case orb.Point:
		return false
	case orb.MultiPoint:
		return len(geom) == 0
	case orb.LineString:
		return len(geom) == 0
	case orb.MultiLineString:
		for _, ls := range geom {
			if len(ls) > 0 {
				return false
			}
		}
		return true
	case orb.Ring:
		return len(geom) == 0
	case orb.Polygon:
		return len(geom) == 0 || len(geom[0]) == 0
	case orb.MultiPolygon:
		for _, p := range geom {
			if !IsEmptyGeometry(p) {
				return false
			}
		}
		return true
	case orb.Collection:
		for _, c := range geom {
			if !IsEmptyGeometry(c) {
				return false
			}
		}
		return true
	case orb.Bound:
		return false
	}
	return true
}

// DatasetStatus represents the catalog state of a workspace dataset.
type DatasetStatus string

// Dataset statuses.
const (
	DatasetStatusPending DatasetStatus = "pending"
	DatasetStatusReady   DatasetStatus = "ready"
	DatasetStatusInvalid DatasetStatus = "invalid" // readable, with invalid geometries
	DatasetStatusError   DatasetStatus = "error"   // unreadable
)

// DatasetInfo is the catalog entry of a workspace dataset.
type DatasetInfo struct {
	Name         string        `json:"name"`
	Path         string        `json:"path"`
	Format       Format        `json:"format"`
	CRS          CRS           `json:"crs"`
	FeatureCount int           `json:"feature_count"`
	InvalidCount int           `json:"invalid_count"`
	Status       DatasetStatus `json:"status"`
	Error        string        `json:"error,omitempty"`
	InspectedAt  time.Time     `json:"inspected_at"`
}

// IsReady returns true if the dataset could be read.
func (i *DatasetInfo) IsReady() bool {
	return i.Status == DatasetStatusReady || i.Status == DatasetStatusInvalid
}
