package projection

import (
	"strconv"
	"strings"
)

// parsePROJ recognises the PROJ definitions of the supported systems,
// e.g. "+proj=utm +zone=32 +ellps=GRS80 +units=m +no_defs".
func parsePROJ(def string) (system, bool) {
	params := map[string]string{}
	for _, tok := range strings.Fields(def) {
		tok = strings.TrimPrefix(tok, "+")
		key, value, _ := strings.Cut(tok, "=")
		params[strings.ToLower(key)] = value
	}

	switch params["proj"] {
	case "longlat", "latlong", "lonlat", "latlon":
		return geographic, true
	case "merc":
		// only the spherical variant used by web maps
		if params["a"] == "6378137" && params["b"] == "6378137" {
			return webMercator, true
		}
	case "utm":
		zone, err := strconv.Atoi(params["zone"])
		if err != nil || zone < 1 || zone > 60 {
			return system{}, false
		}
		_, south := params["south"]
		return utmSystem(zone, south), true
	}
	return system{}, false
}
