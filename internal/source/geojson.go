package source

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"

	"github.com/vvka-141/geoload/pkg/geoload"
)

// geojsonHeader holds the top-level members that orb's decoder does not
// expose: the object type and the pre-RFC 7946 "crs" member.
type geojsonHeader struct {
	Type string `json:"type"`
	CRS  *struct {
		Type       string `json:"type"`
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"crs"`
}

// readGeoJSON reads a FeatureCollection, a single Feature or a bare geometry,
// optionally gzip, zstd or xz compressed.
func readGeoJSON(path string) (*builder, error) {
	r, cleanup, err := openDecompressed(path)
	if err != nil {
		return nil, &geoload.MalformedInputError{Path: path, Reason: "cannot read file", Err: err}
	}
	defer cleanup()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &geoload.MalformedInputError{Path: path, Reason: "cannot read file", Err: err}
	}
	return decodeGeoJSON(path, data)
}

func decodeGeoJSON(path string, data []byte) (*builder, error) {
	var header geojsonHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, &geoload.MalformedInputError{Path: path, Reason: "invalid JSON", Err: err}
	}

	b := newBuilder(path, geoload.FormatGeoJSON)
	b.srid = geoload.DefaultSRID
	if header.CRS != nil && header.CRS.Properties.Name != "" {
		b.srid = sridFromName(header.CRS.Properties.Name)
		if b.srid == 0 {
			return nil, &geoload.MalformedInputError{
				Path:   path,
				Reason: fmt.Sprintf("unrecognized crs %q", header.CRS.Properties.Name),
			}
		}
	}

	switch header.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, &geoload.MalformedInputError{Path: path, Reason: "invalid FeatureCollection", Err: err}
		}
		for i, f := range fc.Features {
			if f == nil {
				return nil, &geoload.MalformedInputError{Path: path, Reason: fmt.Sprintf("feature %d is null", i)}
			}
			b.add(propertiesOf(f), f.Geometry)
		}

	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, &geoload.MalformedInputError{Path: path, Reason: "invalid Feature", Err: err}
		}
		b.add(propertiesOf(f), f.Geometry)

	case "Point", "MultiPoint", "LineString", "MultiLineString", "Polygon", "MultiPolygon", "GeometryCollection":
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, &geoload.MalformedInputError{Path: path, Reason: "invalid geometry", Err: err}
		}
		b.add(nil, g.Geometry())

	case "":
		return nil, &geoload.MalformedInputError{Path: path, Reason: "missing GeoJSON \"type\" member"}

	default:
		return nil, &geoload.MalformedInputError{Path: path, Reason: fmt.Sprintf("unknown GeoJSON type %q", header.Type)}
	}

	return b, nil
}

func propertiesOf(f *geojson.Feature) map[string]any {
	values := make(map[string]any, len(f.Properties))
	for k, v := range f.Properties {
		values[k] = v
	}
	return values
}
