package source

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/vvka-141/geoload/pkg/geoload"
)

// codePages maps normalized .cpg contents to DBF attribute encodings.
// A nil entry means UTF-8.
var codePages = map[string]encoding.Encoding{
	"UTF8":        nil,
	"65001":       nil,
	"88591":       charmap.ISO8859_1,
	"ISO88591":    charmap.ISO8859_1,
	"88592":       charmap.ISO8859_2,
	"ISO88592":    charmap.ISO8859_2,
	"885915":      charmap.ISO8859_15,
	"ISO885915":   charmap.ISO8859_15,
	"1250":        charmap.Windows1250,
	"CP1250":      charmap.Windows1250,
	"WINDOWS1250": charmap.Windows1250,
	"1251":        charmap.Windows1251,
	"CP1251":      charmap.Windows1251,
	"WINDOWS1251": charmap.Windows1251,
	"1252":        charmap.Windows1252,
	"CP1252":      charmap.Windows1252,
	"ANSI1252":    charmap.Windows1252,
	"WINDOWS1252": charmap.Windows1252,
	"437":         charmap.CodePage437,
	"850":         charmap.CodePage850,
	"866":         charmap.CodePage866,
}

// shapefileEntry is one .shp member of the archive.
type shapefileEntry struct {
	shp string
}

func (e shapefileEntry) layer() string {
	base := path.Base(e.shp)
	return base[:len(base)-len(path.Ext(base))]
}

// readShapefile reads the shapefile named by layer (or the first one in
// lexical order) from a zip archive.
func readShapefile(zipPath, layer string) (*builder, error) {
	entry, prj, cpg, err := inspectArchive(zipPath, layer)
	if err != nil {
		return nil, err
	}

	decoder, err := attributeDecoder(cpg)
	if err != nil {
		return nil, &geoload.MalformedInputError{Path: zipPath, Reason: "unsupported .cpg code page", Err: err}
	}

	reader, err := shp.OpenShapeFromZip(zipPath, entry.shp)
	if err != nil {
		return nil, &geoload.MalformedInputError{Path: zipPath, Reason: "cannot open " + entry.shp, Err: err}
	}
	defer reader.Close()

	b := newBuilder(zipPath, geoload.FormatShapefile)
	b.layer = entry.layer()
	b.srid = sridFromPRJ(prj)

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = decoder(strings.TrimSpace(f.String()))
		b.declare(names[i], dbfColumnType(f))
	}

	for reader.Next() {
		n, shape := reader.Shape()

		geom, err := shapeToGeometry(shape)
		if err != nil {
			return nil, &geoload.MalformedInputError{Path: zipPath, Reason: fmt.Sprintf("record %d", n), Err: err}
		}

		values := make(map[string]any, len(fields))
		for i, f := range fields {
			v, err := dbfValue(f, decoder(reader.Attribute(i)))
			if err != nil {
				return nil, &geoload.MalformedInputError{
					Path:   zipPath,
					Reason: fmt.Sprintf("record %d field %s", n, names[i]),
					Err:    err,
				}
			}
			values[names[i]] = v
		}
		b.add(values, geom)
	}
	if err := reader.Err(); err != nil {
		return nil, &geoload.MalformedInputError{Path: zipPath, Reason: "cannot read " + entry.shp, Err: err}
	}

	return b, nil
}

// inspectArchive picks the shapefile to read and returns the contents of its
// .prj and .cpg sidecars (empty when absent).
func inspectArchive(zipPath, layer string) (shapefileEntry, string, string, error) {
	z, err := zip.OpenReader(zipPath)
	if err != nil {
		return shapefileEntry{}, "", "", &geoload.MalformedInputError{Path: zipPath, Reason: "not a zip archive", Err: err}
	}
	defer z.Close()

	files := make(map[string]*zip.File, len(z.File))
	var entries []shapefileEntry
	for _, f := range z.File {
		if strings.HasPrefix(f.Name, "__MACOSX/") || f.FileInfo().IsDir() {
			continue
		}
		files[strings.ToLower(f.Name)] = f
		if strings.EqualFold(path.Ext(f.Name), ".shp") {
			entries = append(entries, shapefileEntry{shp: f.Name})
		}
	}
	if len(entries) == 0 {
		return shapefileEntry{}, "", "", &geoload.MalformedInputError{Path: zipPath, Reason: "archive contains no .shp file"}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].shp < entries[j].shp })

	entry := entries[0]
	if layer != "" {
		found := false
		for _, e := range entries {
			if strings.EqualFold(e.layer(), layer) || strings.EqualFold(e.shp, layer) {
				entry, found = e, true
				break
			}
		}
		if !found {
			available := make([]string, len(entries))
			for i, e := range entries {
				available[i] = e.layer()
			}
			return shapefileEntry{}, "", "", &geoload.MalformedInputError{
				Path:   zipPath,
				Reason: fmt.Sprintf("layer %q not found (available: %s)", layer, strings.Join(available, ", ")),
			}
		}
	}

	prefix := strings.ToLower(entry.shp[:len(entry.shp)-len(path.Ext(entry.shp))])
	prj, err := readZipMember(files[prefix+".prj"])
	if err != nil {
		return shapefileEntry{}, "", "", &geoload.MalformedInputError{Path: zipPath, Reason: "cannot read .prj", Err: err}
	}
	cpg, err := readZipMember(files[prefix+".cpg"])
	if err != nil {
		return shapefileEntry{}, "", "", &geoload.MalformedInputError{Path: zipPath, Reason: "cannot read .cpg", Err: err}
	}
	return entry, prj, cpg, nil
}

func readZipMember(f *zip.File) (string, error) {
	if f == nil {
		return "", nil
	}
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// attributeDecoder returns a function converting raw DBF bytes to UTF-8.
// Without a .cpg, valid UTF-8 passes through and anything else is read as ISO-8859-1.
func attributeDecoder(cpg string) (func(string) string, error) {
	key := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			return r
		default:
			return -1
		}
	}, cpg)

	var enc encoding.Encoding = charmap.ISO8859_1
	if key != "" {
		e, ok := codePages[key]
		if !ok {
			return nil, fmt.Errorf("code page %q", strings.TrimSpace(cpg))
		}
		if e == nil {
			return func(s string) string { return s }, nil
		}
		enc = e
	}

	dec := enc.NewDecoder()
	explicit := key != ""
	return func(s string) string {
		if !explicit && utf8.ValidString(s) {
			return s
		}
		out, err := dec.String(s)
		if err != nil {
			return s
		}
		return out
	}, nil
}

func dbfColumnType(f shp.Field) geoload.ColumnType {
	switch f.Fieldtype {
	case 'C':
		return geoload.ColumnTypeText
	case 'N':
		if f.Precision == 0 {
			return geoload.ColumnTypeInteger
		}
		return geoload.ColumnTypeFloat
	case 'F':
		return geoload.ColumnTypeFloat
	case 'L':
		return geoload.ColumnTypeBoolean
	case 'D':
		return geoload.ColumnTypeDate
	default:
		return geoload.ColumnTypeText
	}
}

// dbfValue parses one raw DBF cell. Blank cells and numeric overflow markers are null.
func dbfValue(f shp.Field, raw string) (any, error) {
	s := strings.TrimSpace(strings.Trim(raw, "\x00"))
	if s == "" {
		return nil, nil
	}

	switch dbfColumnType(f) {
	case geoload.ColumnTypeInteger:
		if strings.HasPrefix(s, "*") {
			return nil, nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", s)
		}
		if !isIntegral(v) {
			return nil, fmt.Errorf("non-integral value %q in integer field", s)
		}
		return int64(v), nil

	case geoload.ColumnTypeFloat:
		if strings.HasPrefix(s, "*") {
			return nil, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", s)
		}
		return v, nil

	case geoload.ColumnTypeBoolean:
		switch s {
		case "Y", "y", "T", "t":
			return true, nil
		case "N", "n", "F", "f":
			return false, nil
		case "?":
			return nil, nil
		default:
			return nil, fmt.Errorf("invalid logical %q", s)
		}

	case geoload.ColumnTypeDate:
		if strings.Trim(s, "0") == "" {
			return nil, nil
		}
		t, err := time.Parse("20060102", s)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q", s)
		}
		return t, nil

	default:
		return s, nil
	}
}

// shapeToGeometry converts a shapefile record to an orb geometry. Z and M
// values are dropped. Null shapes become nil.
func shapeToGeometry(s shp.Shape) (orb.Geometry, error) {
	switch v := s.(type) {
	case nil, *shp.Null:
		return nil, nil
	case *shp.Point:
		return orb.Point{v.X, v.Y}, nil
	case *shp.PointZ:
		return orb.Point{v.X, v.Y}, nil
	case *shp.PointM:
		return orb.Point{v.X, v.Y}, nil
	case *shp.MultiPoint:
		return toMultiPoint(v.Points), nil
	case *shp.MultiPointZ:
		return toMultiPoint(v.Points), nil
	case *shp.MultiPointM:
		return toMultiPoint(v.Points), nil
	case *shp.PolyLine:
		return toLines(v.Parts, v.Points), nil
	case *shp.PolyLineZ:
		return toLines(v.Parts, v.Points), nil
	case *shp.PolyLineM:
		return toLines(v.Parts, v.Points), nil
	case *shp.Polygon:
		return toPolygons(v.Parts, v.Points), nil
	case *shp.PolygonZ:
		return toPolygons(v.Parts, v.Points), nil
	case *shp.PolygonM:
		return toPolygons(v.Parts, v.Points), nil
	default:
		return nil, fmt.Errorf("unsupported shape type %T", s)
	}
}

func toMultiPoint(points []shp.Point) orb.MultiPoint {
	mp := make(orb.MultiPoint, len(points))
	for i, p := range points {
		mp[i] = orb.Point{p.X, p.Y}
	}
	return mp
}

// splitParts slices points into the parts that start at the given offsets.
func splitParts(parts []int32, points []shp.Point) [][]orb.Point {
	if len(parts) == 0 && len(points) > 0 {
		parts = []int32{0}
	}
	out := make([][]orb.Point, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || end > int32(len(points)) || start > end {
			continue
		}
		part := make([]orb.Point, 0, end-start)
		for _, p := range points[start:end] {
			part = append(part, orb.Point{p.X, p.Y})
		}
		out = append(out, part)
	}
	return out
}

func toLines(parts []int32, points []shp.Point) orb.Geometry {
	split := splitParts(parts, points)
	if len(split) == 1 {
		return orb.LineString(split[0])
	}
	mls := make(orb.MultiLineString, len(split))
	for i, p := range split {
		mls[i] = orb.LineString(p)
	}
	return mls
}

// toPolygons groups rings into polygons. Shapefile outer rings are clockwise;
// each counter-clockwise ring is a hole of the outer ring preceding it.
func toPolygons(parts []int32, points []shp.Point) orb.Geometry {
	var polygons orb.MultiPolygon
	for _, p := range splitParts(parts, points) {
		ring := orb.Ring(p)
		if len(polygons) == 0 || ring.Orientation() == orb.CW {
			polygons = append(polygons, orb.Polygon{ring})
			continue
		}
		last := len(polygons) - 1
		polygons[last] = append(polygons[last], ring)
	}

	switch len(polygons) {
	case 0:
		return nil
	case 1:
		return polygons[0]
	default:
		return polygons
	}
}
