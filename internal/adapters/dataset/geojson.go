package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/geofix/internal/domain"
)

// geoJSONDocument is the top level of a GeoJSON file. Features keep their
// geometry and properties raw so property order can be recovered.
type geoJSONDocument struct {
	Type       string           `json:"type"`
	Name       string           `json:"name"`
	CRS        *namedCRS        `json:"crs"`
	Features   []geoJSONFeature `json:"features"`
	Geometry   json.RawMessage  `json:"geometry"`
	Properties json.RawMessage  `json:"properties"`
}

type geoJSONFeature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties json.RawMessage `json:"properties"`
}

// namedCRS is the legacy GeoJSON 2008 "crs" member.
type namedCRS struct {
	Type       string `json:"type"`
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

func readGeoJSON(path string) (*domain.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeGeoJSON(data)
}

// decodeGeoJSON decodes a FeatureCollection, a single Feature or a bare
// geometry. Without a "crs" member the data is taken to be WGS 84.
func decodeGeoJSON(data []byte) (*domain.Dataset, error) {
	var doc geoJSONDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing geojson: %w", err)
	}

	ds := &domain.Dataset{
		Name: doc.Name,
		CRS:  domain.CRSWGS84,
	}
	if doc.CRS != nil {
		ds.CRS = domain.ParseCRS(doc.CRS.Properties.Name)
	}

	var raw []geoJSONFeature
	switch doc.Type {
	case "FeatureCollection":
		raw = doc.Features
	case "Feature":
		raw = []geoJSONFeature{{Type: "Feature", Geometry: doc.Geometry, Properties: doc.Properties}}
	case "":
		return nil, fmt.Errorf("missing type member: %w", domain.ErrUnsupportedFormat)
	default:
		raw = []geoJSONFeature{{Type: "Feature", Geometry: data}}
	}

	features := make([]domain.Feature, 0, len(raw))
	keyOrder := make([][]string, 0, len(raw))
	for i, f := range raw {
		geom, err := decodeGeometry(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		props, keys, err := decodeProperties(f.Properties)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		features = append(features, domain.Feature{ID: i, Geometry: geom, Properties: props})
		keyOrder = append(keyOrder, keys)
	}

	ds.Features = features
	ds.Schema = domain.InferSchema(features, keyOrder)
	return ds, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeGeometry(raw json.RawMessage) (orb.Geometry, error) {
	if isNull(raw) {
		return nil, nil
	}
	var g geojson.Geometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("parsing geometry: %w", err)
	}
	return g.Geometry(), nil
}

// decodeProperties decodes a properties object and returns its keys in
// document order.
func decodeProperties(raw json.RawMessage) (map[string]interface{}, []string, error) {
	props := make(map[string]interface{})
	if isNull(raw) {
		return props, nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing properties: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("properties must be an object")
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("parsing properties: %w", err)
		}
		key, _ := tok.(string)

		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return nil, nil, fmt.Errorf("parsing property %q: %w", key, err)
		}
		if _, dup := props[key]; !dup {
			keys = append(keys, key)
		}
		props[key] = value
	}
	return props, keys, nil
}

// writeGeoJSON encodes the dataset as a FeatureCollection with a named crs
// member and properties in schema order.
func writeGeoJSON(w io.Writer, ds *domain.Dataset, name string) error {
	bw := bufio.NewWriter(w)

	header := struct {
		Type string    `json:"type"`
		Name string    `json:"name"`
		CRS  *namedCRS `json:"crs,omitempty"`
	}{
		Type: "FeatureCollection",
		Name: name,
	}
	if ds.CRS.IsSet() {
		header.CRS = &namedCRS{Type: "name"}
		header.CRS.Properties.Name = ds.CRS.URN()
	}

	head, err := json.Marshal(header)
	if err != nil {
		return err
	}
	// reopen the header object to append the features member
	bw.Write(head[:len(head)-1])
	bw.WriteString(`,"features":[`)

	columns := ds.Schema.Names()
	for i := range ds.Features {
		if i > 0 {
			bw.WriteByte(',')
		}
		bw.WriteString("\n")
		if err := writeFeature(bw, &ds.Features[i], columns); err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
	}
	bw.WriteString("\n]}\n")
	return bw.Flush()
}

func writeFeature(w *bufio.Writer, f *domain.Feature, columns []string) error {
	w.WriteString(`{"type":"Feature","properties":{`)

	written := 0
	writeProp := func(key string, value interface{}) error {
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("property %q: %w", key, err)
		}
		if written > 0 {
			w.WriteByte(',')
		}
		w.Write(k)
		w.WriteByte(':')
		w.Write(v)
		written++
		return nil
	}

	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		seen[c] = true
		if err := writeProp(c, f.Properties[c]); err != nil {
			return err
		}
	}
	for _, k := range extraKeys(f.Properties, seen) {
		if err := writeProp(k, f.Properties[k]); err != nil {
			return err
		}
	}

	w.WriteString(`},"geometry":`)
	if f.Geometry == nil {
		w.WriteString("null")
	} else {
		g, err := json.Marshal(geojson.NewGeometry(f.Geometry))
		if err != nil {
			return fmt.Errorf("encoding geometry: %w", err)
		}
		w.Write(g)
	}
	w.WriteByte('}')
	return nil
}

// extraKeys returns the property keys not covered by the schema, sorted.
func extraKeys(props map[string]interface{}, seen map[string]bool) []string {
	var keys []string
	for k := range props {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
