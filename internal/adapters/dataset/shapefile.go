package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/jobrunner/geofix/internal/domain"
)

// readShapefile reads a .shp with its .dbf attributes and optional .prj.
// Z and M values are dropped.
func readShapefile(path string) (*domain.Dataset, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening shapefile: %w", err)
	}
	defer reader.Close()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00 ")
	}

	var (
		features []domain.Feature
		keyOrder [][]string
	)
	for reader.Next() {
		n, shape := reader.Shape()

		geom, err := convertShape(shape)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", n, err)
		}

		props := make(map[string]interface{}, len(fields))
		for k, f := range fields {
			props[names[k]] = parseAttribute(f, reader.ReadAttribute(n, k))
		}

		features = append(features, domain.Feature{ID: len(features), Geometry: geom, Properties: props})
		keyOrder = append(keyOrder, names)
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("reading shapefile: %w", err)
	}

	crs, err := readPRJ(path)
	if err != nil {
		return nil, err
	}

	schema := domain.InferSchema(features, keyOrder)
	if len(features) == 0 {
		for _, name := range names {
			schema = append(schema, domain.Column{Name: name, Type: domain.TypeUnknown})
		}
	}

	return &domain.Dataset{
		CRS:      crs,
		Schema:   schema,
		Features: features,
	}, nil
}

// readPRJ reads the projection file next to a shapefile. A missing file
// leaves the CRS unset.
func readPRJ(shpPath string) (domain.CRS, error) {
	base := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
	for _, ext := range []string{".prj", ".PRJ"} {
		data, err := os.ReadFile(base + ext)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return domain.CRSUnset, fmt.Errorf("reading projection file: %w", err)
		}
		return ParsePRJ(string(data)), nil
	}
	return domain.CRSUnset, nil
}

func parseAttribute(f shp.Field, raw string) interface{} {
	v := strings.TrimSpace(strings.Trim(raw, "\x00"))
	if v == "" {
		return nil
	}

	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 {
			if i, err := strconv.ParseInt(v, 10, 64); err == nil {
				return i
			}
		}
		if fl, err := strconv.ParseFloat(v, 64); err == nil {
			return fl
		}
	case 'F':
		if fl, err := strconv.ParseFloat(v, 64); err == nil {
			return fl
		}
	case 'L':
		switch strings.ToUpper(v) {
		case "T", "Y":
			return true
		case "F", "N":
			return false
		}
		return nil
	}
	return v
}

func convertShape(shape shp.Shape) (orb.Geometry, error) {
	switch s := shape.(type) {
	case *shp.Null:
		return nil, nil
	case *shp.Point:
		return orb.Point{s.X, s.Y}, nil
	case *shp.PointZ:
		return orb.Point{s.X, s.Y}, nil
	case *shp.PointM:
		return orb.Point{s.X, s.Y}, nil
	case *shp.MultiPoint:
		return multiPoint(s.Points), nil
	case *shp.MultiPointZ:
		return multiPoint(s.Points), nil
	case *shp.MultiPointM:
		return multiPoint(s.Points), nil
	case *shp.PolyLine:
		return lines(s.Parts, s.Points), nil
	case *shp.PolyLineZ:
		return lines(s.Parts, s.Points), nil
	case *shp.PolyLineM:
		return lines(s.Parts, s.Points), nil
	case *shp.Polygon:
		return polygons(s.Parts, s.Points), nil
	case *shp.PolygonZ:
		return polygons(s.Parts, s.Points), nil
	case *shp.PolygonM:
		return polygons(s.Parts, s.Points), nil
	}
	return nil, fmt.Errorf("shape type %T: %w", shape, domain.ErrUnsupportedFormat)
}

func multiPoint(pts []shp.Point) orb.MultiPoint {
	out := make(orb.MultiPoint, len(pts))
	for i, p := range pts {
		out[i] = orb.Point{p.X, p.Y}
	}
	return out
}

// splitParts cuts the flat point list of a shape into its parts.
func splitParts(parts []int32, pts []shp.Point) [][]orb.Point {
	out := make([][]orb.Point, 0, len(parts))
	for i, start := range parts {
		end := int32(len(pts))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(pts) {
			continue
		}
		part := make([]orb.Point, 0, end-start)
		for _, p := range pts[start:end] {
			part = append(part, orb.Point{p.X, p.Y})
		}
		out = append(out, part)
	}
	return out
}

func lines(parts []int32, pts []shp.Point) orb.Geometry {
	split := splitParts(parts, pts)
	if len(split) == 1 {
		return orb.LineString(split[0])
	}
	mls := make(orb.MultiLineString, len(split))
	for i, p := range split {
		mls[i] = p
	}
	return mls
}

// polygons groups shapefile rings into polygons. Outer rings are clockwise,
// holes counter-clockwise and belong to the outer ring that contains them.
func polygons(parts []int32, pts []shp.Point) orb.Geometry {
	var (
		shells []orb.Polygon
		holes  []orb.Ring
	)
	for _, p := range splitParts(parts, pts) {
		ring := orb.Ring(p)
		if ring.Orientation() == orb.CCW {
			holes = append(holes, ring)
			continue
		}
		shells = append(shells, orb.Polygon{ring})
	}

	for _, h := range holes {
		owner := -1
		for i := range shells {
			if len(h) > 0 && planar.RingContains(shells[i][0], h[0]) {
				owner = i
				break
			}
		}
		if owner < 0 {
			// an orphan hole is most likely an outer ring with the wrong winding
			shells = append(shells, orb.Polygon{h})
			continue
		}
		shells[owner] = append(shells[owner], h)
	}

	switch len(shells) {
	case 0:
		return nil
	case 1:
		return shells[0]
	}
	return orb.MultiPolygon(shells)
}
