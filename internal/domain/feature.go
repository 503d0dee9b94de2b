package domain

import (
	"github.com/paulmach/orb"
)

// Feature represents a geo feature with geometry and properties.
type Feature struct {
	ID         int                    // Position in the source dataset
	Geometry   orb.Geometry           // Geometry data, nil for null geometries
	Properties map[string]interface{} // Attribute data
}

// GeometryType returns the geometry type label, or "" for a null geometry.
func (f *Feature) GeometryType() string {
	if f.Geometry == nil {
		return ""
	}
	return f.Geometry.GeoJSONType()
}

// WithGeometry returns a copy of the feature carrying a different geometry.
// Properties are shared with the receiver.
func (f Feature) WithGeometry(g orb.Geometry) Feature {
	f.Geometry = g
	return f
}

// Geometry type labels.
const (
	GeomPoint              = "Point"
	GeomLineString         = "LineString"
	GeomPolygon            = "Polygon"
	GeomMultiPoint         = "MultiPoint"
	GeomMultiLineString    = "MultiLineString"
	GeomMultiPolygon       = "MultiPolygon"
	GeomGeometryCollection = "GeometryCollection"
)

// IsPolygonal returns true for Polygon and MultiPolygon geometries.
func IsPolygonal(g orb.Geometry) bool {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon, orb.Ring, orb.Bound:
		return true
	}
	return false
}
