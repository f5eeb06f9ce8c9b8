package source

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	authorityPattern = regexp.MustCompile(`(?i)AUTHORITY\s*\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]`)
	idPattern        = regexp.MustCompile(`(?i)\bID\s*\[\s*"EPSG"\s*,\s*(\d+)\s*\]`)
	utmPattern       = regexp.MustCompile(`(?i)WGS_1984_UTM_Zone_(\d{1,2})([NS])`)
	epsgCodePattern  = regexp.MustCompile(`(?i)^EPSG:{1,2}(\d+)$`)
	urnPattern       = regexp.MustCompile(`(?i)^urn:ogc:def:crs:EPSG:[0-9.]*:(\d+)$`)
)

// esriNames maps the GEOGCS/PROJCS names ESRI writes into .prj files without
// an AUTHORITY clause.
var esriNames = map[string]int{
	"GCS_WGS_1984":                           4326,
	"WGS 84":                                 4326,
	"GCS_North_American_1983":                4269,
	"GCS_ETRS_1989":                          4258,
	"WGS_1984_Web_Mercator_Auxiliary_Sphere": 3857,
	"WGS_84_Pseudo_Mercator":                 3857,

	"GCS_European_Terrestrial_Reference_System_1989": 4258,
}

var namePattern = regexp.MustCompile(`^\s*(PROJCS|GEOGCS)\s*\[\s*"([^"]+)"`)

// sridFromPRJ extracts the EPSG code from shapefile .prj WKT. The outermost
// coordinate system's authority is written last, so the last AUTHORITY wins.
// Returns 0 when nothing is recognized.
func sridFromPRJ(wkt string) int {
	wkt = strings.TrimSpace(wkt)
	if wkt == "" {
		return 0
	}

	if m := authorityPattern.FindAllStringSubmatch(wkt, -1); len(m) > 0 {
		if code, err := strconv.Atoi(m[len(m)-1][1]); err == nil {
			return code
		}
	}
	if m := idPattern.FindAllStringSubmatch(wkt, -1); len(m) > 0 {
		if code, err := strconv.Atoi(m[len(m)-1][1]); err == nil {
			return code
		}
	}

	if m := utmPattern.FindStringSubmatch(wkt); m != nil {
		zone, err := strconv.Atoi(m[1])
		if err == nil && zone >= 1 && zone <= 60 {
			if strings.EqualFold(m[2], "N") {
				return 32600 + zone
			}
			return 32700 + zone
		}
	}

	if m := namePattern.FindStringSubmatch(wkt); m != nil {
		if code, ok := esriNames[m[2]]; ok {
			return code
		}
	}
	return 0
}

// sridFromName parses a CRS name as found in legacy GeoJSON "crs" members:
// "EPSG:4326", "urn:ogc:def:crs:EPSG::4326" or "urn:ogc:def:crs:OGC:1.3:CRS84".
func sridFromName(name string) int {
	name = strings.TrimSpace(name)
	if strings.HasSuffix(strings.ToUpper(name), "CRS84") {
		return 4326
	}
	if m := epsgCodePattern.FindStringSubmatch(name); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	if m := urnPattern.FindStringSubmatch(name); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}
