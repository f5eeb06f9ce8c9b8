package source

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/vvka-141/geoload/pkg/geoload"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano
)

// feature is one raw feature as produced by a reader, before normalization.
type feature struct {
	values map[string]any
	geom   orb.Geometry
}

// builder normalizes raw reader output into a geoload.Dataset: it unions the
// attribute keys, fills absent keys with nil, infers column types and checks
// that all geometries belong to one family.
type builder struct {
	path   string
	format geoload.Format
	layer  string
	srid   int

	// columns holds declared columns first (shapefile fields, GeoPackage
	// columns) and then keys in first-seen order.
	columns []geoload.Column
	index   map[string]int

	features []feature
}

func newBuilder(path string, format geoload.Format) *builder {
	return &builder{
		path:   path,
		format: format,
		index:  make(map[string]int),
	}
}

// declare adds a column whose type is fixed by the source schema.
// ColumnTypeUnknown leaves the type to inference.
func (b *builder) declare(name string, typ geoload.ColumnType) {
	if _, ok := b.index[name]; ok {
		return
	}
	b.index[name] = len(b.columns)
	b.columns = append(b.columns, geoload.Column{Name: name, Type: typ})
}

func (b *builder) add(values map[string]any, geom orb.Geometry) {
	if values == nil {
		values = map[string]any{}
	}
	for _, k := range sortedNewKeys(values, b.index) {
		b.declare(k, geoload.ColumnTypeUnknown)
	}
	b.features = append(b.features, feature{values: values, geom: geom})
}

// sortedNewKeys returns keys of values not yet in index. Map iteration order
// is random, so new keys of a single feature are added in lexical order.
func sortedNewKeys(values map[string]any, index map[string]int) []string {
	var keys []string
	for k := range values {
		if _, ok := index[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// build produces the Dataset. sourceSRID overrides the CRS found by the reader.
func (b *builder) build(sourceSRID int) (*geoload.Dataset, error) {
	if len(b.features) == 0 {
		return nil, &geoload.EmptyDatasetError{Path: b.path}
	}

	srid := b.srid
	if sourceSRID > 0 {
		srid = sourceSRID
	}
	if srid <= 0 {
		return nil, &geoload.MalformedInputError{
			Path:   b.path,
			Reason: "no coordinate reference system declared (use --source-srid to set one)",
		}
	}

	geometryType, err := b.unifyGeometries()
	if err != nil {
		return nil, err
	}

	columns := make([]geoload.Column, len(b.columns))
	copy(columns, b.columns)

	records := make([]geoload.Record, len(b.features))
	for i, f := range b.features {
		values := make(map[string]any, len(columns))
		for _, c := range columns {
			values[c.Name] = normalizeValue(f.values[c.Name])
		}
		records[i] = geoload.Record{Values: values, Geometry: f.geom}
	}

	for i := range columns {
		col := &columns[i]
		if col.Type == geoload.ColumnTypeUnknown {
			col.Type = inferType(records, col.Name)
		}
		coerceColumn(records, *col)
	}

	return &geoload.Dataset{
		Source:       b.path,
		Format:       b.format,
		Layer:        b.layer,
		Columns:      columns,
		Records:      records,
		GeometryType: geometryType,
		SRID:         srid,
	}, nil
}

// unifyGeometries checks that all non-null geometries share one type. A mix of
// X and MultiX is promoted to MultiX in place; any other mix is malformed.
func (b *builder) unifyGeometries() (string, error) {
	seen := map[string]bool{}
	for _, f := range b.features {
		if f.geom == nil {
			continue
		}
		seen[f.geom.GeoJSONType()] = true
	}

	switch len(seen) {
	case 0:
		return "", nil
	case 1:
		for t := range seen {
			return t, nil
		}
	}

	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)

	if len(types) == 2 {
		multi := ""
		switch {
		case types[0] == "Multi"+types[1]:
			multi = types[0]
		case types[1] == "Multi"+types[0]:
			multi = types[1]
		}
		if multi != "" {
			for i := range b.features {
				b.features[i].geom = toMulti(b.features[i].geom)
			}
			return multi, nil
		}
	}

	return "", &geoload.MalformedInputError{
		Path:   b.path,
		Reason: "mixed geometry types: " + strings.Join(types, ", "),
	}
}

func toMulti(g orb.Geometry) orb.Geometry {
	switch v := g.(type) {
	case orb.Point:
		return orb.MultiPoint{v}
	case orb.LineString:
		return orb.MultiLineString{v}
	case orb.Polygon:
		return orb.MultiPolygon{v}
	default:
		return g
	}
}

// normalizeValue maps reader values onto the types a Record may hold.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case float32:
		return normalizeValue(float64(x))
	case int:
		return int64(x)
	case int32:
		return int64(x)
	default:
		return x
	}
}

// valueKinds counts the non-null values of one column by kind.
type valueKinds struct {
	nonNull    int
	ints       int
	floats     int
	bools      int
	strings    int
	dates      int
	timestamps int
	bytes      int
	nested     int
	other      int
}

func classify(records []geoload.Record, name string) valueKinds {
	var k valueKinds
	for _, r := range records {
		v := r.Values[name]
		if v == nil {
			continue
		}
		k.nonNull++
		switch x := v.(type) {
		case int64:
			k.ints++
		case float64:
			if isIntegral(x) {
				k.ints++
			} else {
				k.floats++
			}
		case bool:
			k.bools++
		case string:
			switch {
			case isDate(x):
				k.dates++
			case isTimestamp(x):
				k.timestamps++
			default:
				k.strings++
			}
		case time.Time:
			k.timestamps++
		case []byte:
			k.bytes++
		case map[string]any, []any:
			k.nested++
		default:
			k.other++
		}
	}
	return k
}

// inferType picks the narrowest type that holds every non-null value of the column.
func inferType(records []geoload.Record, name string) geoload.ColumnType {
	k := classify(records, name)
	switch {
	case k.nonNull == 0:
		return geoload.ColumnTypeUnknown
	case k.nested > 0:
		return geoload.ColumnTypeJSON
	case k.ints == k.nonNull:
		return geoload.ColumnTypeInteger
	case k.ints+k.floats == k.nonNull:
		return geoload.ColumnTypeFloat
	case k.bools == k.nonNull:
		return geoload.ColumnTypeBoolean
	case k.dates == k.nonNull:
		return geoload.ColumnTypeDate
	case k.timestamps == k.nonNull:
		return geoload.ColumnTypeTimestamp
	case k.dates+k.timestamps == k.nonNull:
		return geoload.ColumnTypeTimestamp
	case k.bytes == k.nonNull:
		return geoload.ColumnTypeBinary
	default:
		return geoload.ColumnTypeText
	}
}

// coerceColumn widens numbers to the Go type the column's ColumnType implies.
// Date and timestamp strings keep their source text: PostgreSQL parses them
// on insert, and a text target column stores exactly what the file held.
func coerceColumn(records []geoload.Record, col geoload.Column) {
	for _, r := range records {
		v := r.Values[col.Name]
		if v == nil {
			continue
		}
		switch col.Type {
		case geoload.ColumnTypeInteger:
			if f, ok := v.(float64); ok && isIntegral(f) {
				r.Values[col.Name] = int64(f)
			}
		case geoload.ColumnTypeFloat:
			if n, ok := v.(int64); ok {
				r.Values[col.Name] = float64(n)
			}
		}
	}
}

// isIntegral reports whether f is a whole number that int64 and float64 both represent exactly.
func isIntegral(f float64) bool {
	return f == math.Trunc(f) && math.Abs(f) <= 1<<53
}

func isDate(s string) bool {
	if len(s) != len(dateLayout) {
		return false
	}
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

func isTimestamp(s string) bool {
	_, err := time.Parse(timestampLayout, s)
	return err == nil
}
