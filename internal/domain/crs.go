// Package domain contains the core business entities and value objects.
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// CRS is a coordinate reference system identifier such as "EPSG:4326" or a
// PROJ definition string. The zero value means the CRS is unset.
//
// CRS values are compared by identity: two strings denoting the same
// projection are still different CRS values.
type CRS string

// CRSUnset is the zero CRS.
const CRSUnset CRS = ""

// Common SRID constants.
const (
	SRIDWGS84        = 4326  // WGS 84
	SRIDWebMercator  = 3857  // Web Mercator
	SRIDETRS89UTM32N = 25832 // ETRS89 / UTM zone 32N
	SRIDETRS89UTM33N = 25833 // ETRS89 / UTM zone 33N
)

// Well-known CRS values.
var (
	CRSWGS84       = EPSG(SRIDWGS84)
	CRSWebMercator = EPSG(SRIDWebMercator)
)

// DefaultTargetCRS is used when a caller does not name a target CRS.
var DefaultTargetCRS = CRSWGS84

// Projection describes a known coordinate reference system.
type Projection struct {
	SRID int    // EPSG Code
	Name string // Human-readable name
}

// CommonProjections contains frequently used projections.
var CommonProjections = map[int]Projection{
	SRIDWGS84:        {SRID: SRIDWGS84, Name: "WGS 84"},
	SRIDWebMercator:  {SRID: SRIDWebMercator, Name: "WGS 84 / Pseudo-Mercator"},
	SRIDETRS89UTM32N: {SRID: SRIDETRS89UTM32N, Name: "ETRS89 / UTM zone 32N"},
	SRIDETRS89UTM33N: {SRID: SRIDETRS89UTM33N, Name: "ETRS89 / UTM zone 33N"},
}

// EPSG returns the CRS for an EPSG code.
func EPSG(code int) CRS {
	return CRS("EPSG:" + strconv.Itoa(code))
}

// ParseCRS normalizes a CRS identifier as found in files or requests.
// OGC URNs and lowercase authority prefixes are rewritten to "EPSG:<code>",
// CRS84 becomes EPSG:4326, anything else is kept verbatim.
func ParseCRS(s string) CRS {
	s = strings.TrimSpace(s)
	if s == "" {
		return CRSUnset
	}

	upper := strings.ToUpper(s)
	switch upper {
	case "CRS84", "OGC:CRS84", "URN:OGC:DEF:CRS:OGC:1.3:CRS84", "URN:OGC:DEF:CRS:OGC::CRS84":
		return CRSWGS84
	}

	if strings.HasPrefix(upper, "URN:OGC:DEF:CRS:EPSG:") {
		// urn:ogc:def:crs:EPSG:<version>:<code>, version may be empty
		parts := strings.Split(s, ":")
		if code, err := strconv.Atoi(parts[len(parts)-1]); err == nil && code > 0 {
			return EPSG(code)
		}
		return CRS(s)
	}

	if strings.HasPrefix(upper, "EPSG:") {
		if code, err := strconv.Atoi(strings.TrimSpace(s[5:])); err == nil && code > 0 {
			return EPSG(code)
		}
	}

	return CRS(s)
}

// IsSet returns true if the CRS is not unset.
func (c CRS) IsSet() bool {
	return c != CRSUnset
}

// String returns the identifier, or "unset".
func (c CRS) String() string {
	if !c.IsSet() {
		return "unset"
	}
	return string(c)
}

// EPSGCode returns the numeric EPSG code if the CRS is an EPSG identifier.
func (c CRS) EPSGCode() (int, bool) {
	s := string(c)
	if !strings.HasPrefix(s, "EPSG:") {
		return 0, false
	}
	code, err := strconv.Atoi(s[5:])
	if err != nil || code <= 0 {
		return 0, false
	}
	return code, true
}

// URN returns the OGC URN used in the GeoJSON "crs" member.
// Non-EPSG identifiers are returned unchanged.
func (c CRS) URN() string {
	if code, ok := c.EPSGCode(); ok {
		return fmt.Sprintf("urn:ogc:def:crs:EPSG::%d", code)
	}
	return string(c)
}

// IsPROJ returns true if the CRS is a PROJ definition string.
func (c CRS) IsPROJ() bool {
	return strings.HasPrefix(strings.TrimSpace(string(c)), "+proj=")
}

// Validate checks that the CRS is usable as a transform target.
func (c CRS) Validate() error {
	if !c.IsSet() {
		return &ValidationError{
			Field:      "crs",
			Value:      string(c),
			Constraint: "EPSG:<code> or +proj=...",
			Message:    "target crs must not be empty",
		}
	}
	if _, ok := c.EPSGCode(); ok || c.IsPROJ() {
		return nil
	}
	if strings.HasPrefix(strings.ToUpper(string(c)), "EPSG:") {
		return &ValidationError{
			Field:      "crs",
			Value:      string(c),
			Constraint: "EPSG:<positive integer>",
			Message:    "malformed EPSG identifier",
		}
	}
	return nil
}

// Name returns a human-readable projection name when known.
func (c CRS) Name() string {
	if code, ok := c.EPSGCode(); ok {
		if p, ok := CommonProjections[code]; ok {
			return p.Name
		}
	}
	return c.String()
}
