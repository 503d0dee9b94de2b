package dataset

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jobrunner/geofix/internal/domain"
)

var (
	authorityPattern = regexp.MustCompile(`AUTHORITY\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]`)
	utmZonePattern   = regexp.MustCompile(`UTM[_ ]ZONE[_ ](\d{1,2})([NS])`)
)

// ParsePRJ maps the WKT of a .prj file to a CRS. The outermost EPSG
// authority wins; ESRI-style WKT without authorities is matched by name for
// the common systems. Unrecognized WKT is kept verbatim.
func ParsePRJ(wkt string) domain.CRS {
	wkt = strings.TrimSpace(wkt)
	if wkt == "" {
		return domain.CRSUnset
	}

	if m := authorityPattern.FindAllStringSubmatch(wkt, -1); len(m) > 0 {
		if code, err := strconv.Atoi(m[len(m)-1][1]); err == nil {
			return domain.EPSG(code)
		}
	}

	upper := strings.ToUpper(wkt)
	isProjected := strings.HasPrefix(upper, "PROJCS") || strings.HasPrefix(upper, "PROJCRS")

	switch {
	case isProjected && (strings.Contains(upper, "WEB_MERCATOR") || strings.Contains(upper, "PSEUDO-MERCATOR") || strings.Contains(upper, "PSEUDO_MERCATOR")):
		return domain.CRSWebMercator
	case isProjected:
		if m := utmZonePattern.FindStringSubmatch(upper); m != nil {
			zone, _ := strconv.Atoi(m[1])
			switch {
			case strings.Contains(upper, "ETRS"):
				if m[2] == "N" {
					return domain.EPSG(25800 + zone)
				}
			case strings.Contains(upper, "WGS") && strings.Contains(upper, "84"):
				if m[2] == "N" {
					return domain.EPSG(32600 + zone)
				}
				return domain.EPSG(32700 + zone)
			}
		}
	case strings.HasPrefix(upper, "GEOGCS") || strings.HasPrefix(upper, "GEOGCRS"):
		if strings.Contains(upper, "WGS_1984") || strings.Contains(upper, "WGS 84") || strings.Contains(upper, "WGS84") {
			return domain.CRSWGS84
		}
	}
	return domain.CRS(wkt)
}
