package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	_ "modernc.org/sqlite"

	"github.com/vvka-141/geoload/pkg/geoload"
)

// gpkgColumn is one column of a GeoPackage feature table.
type gpkgColumn struct {
	name     string
	declared string
	pk       bool
}

// readGeoPackage reads the feature table named by layer, or the first feature
// table registered in gpkg_contents.
func readGeoPackage(ctx context.Context, path, layer string) (*builder, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, &geoload.MalformedInputError{Path: path, Reason: "cannot open GeoPackage", Err: err}
	}
	defer db.Close()

	table, err := gpkgLayer(ctx, db, layer)
	if err != nil {
		return nil, &geoload.MalformedInputError{Path: path, Reason: "cannot select layer", Err: err}
	}

	var geomColumn string
	var srsID int
	err = db.QueryRowContext(ctx,
		`SELECT column_name, srs_id FROM gpkg_geometry_columns WHERE table_name = ?`, table,
	).Scan(&geomColumn, &srsID)
	if err != nil {
		return nil, &geoload.MalformedInputError{Path: path, Reason: fmt.Sprintf("layer %q has no geometry column", table), Err: err}
	}

	srid, err := gpkgSRID(ctx, db, srsID)
	if err != nil {
		return nil, &geoload.MalformedInputError{Path: path, Reason: "cannot read gpkg_spatial_ref_sys", Err: err}
	}

	columns, err := gpkgColumns(ctx, db, table)
	if err != nil {
		return nil, &geoload.MalformedInputError{Path: path, Reason: fmt.Sprintf("cannot read columns of %q", table), Err: err}
	}

	b := newBuilder(path, geoload.FormatGeoPackage)
	b.layer = table
	b.srid = srid

	// The integer primary key is the feature id, not an attribute.
	var attrs []gpkgColumn
	orderBy := ""
	for _, c := range columns {
		switch {
		case strings.EqualFold(c.name, geomColumn):
		case c.pk:
			orderBy = " ORDER BY " + quoteSQLite(c.name)
		default:
			attrs = append(attrs, c)
			b.declare(c.name, gpkgColumnType(c.declared))
		}
	}

	selectList := make([]string, 0, len(attrs)+1)
	selectList = append(selectList, quoteSQLite(geomColumn))
	for _, c := range attrs {
		selectList = append(selectList, quoteSQLite(c.name))
	}
	query := "SELECT " + strings.Join(selectList, ", ") + " FROM " + quoteSQLite(table) + orderBy

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, &geoload.MalformedInputError{Path: path, Reason: fmt.Sprintf("cannot read layer %q", table), Err: err}
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		n++
		dest := make([]any, len(selectList))
		ptrs := make([]any, len(selectList))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &geoload.MalformedInputError{Path: path, Reason: fmt.Sprintf("row %d", n), Err: err}
		}

		geom, err := decodeGPKGGeometry(dest[0])
		if err != nil {
			return nil, &geoload.MalformedInputError{Path: path, Reason: fmt.Sprintf("row %d geometry", n), Err: err}
		}

		values := make(map[string]any, len(attrs))
		for i, c := range attrs {
			v, err := gpkgValue(gpkgColumnType(c.declared), dest[i+1])
			if err != nil {
				return nil, &geoload.MalformedInputError{Path: path, Reason: fmt.Sprintf("row %d column %s", n, c.name), Err: err}
			}
			values[c.name] = v
		}
		b.add(values, geom)
	}
	if err := rows.Err(); err != nil {
		return nil, &geoload.MalformedInputError{Path: path, Reason: fmt.Sprintf("cannot read layer %q", table), Err: err}
	}

	return b, nil
}

func gpkgLayer(ctx context.Context, db *sql.DB, layer string) (string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT table_name FROM gpkg_contents WHERE data_type = 'features' ORDER BY rowid`)
	if err != nil {
		return "", fmt.Errorf("not a GeoPackage: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", err
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	if len(tables) == 0 {
		return "", errors.New("no feature tables in gpkg_contents")
	}
	if layer == "" {
		return tables[0], nil
	}
	for _, t := range tables {
		if strings.EqualFold(t, layer) {
			return t, nil
		}
	}
	return "", fmt.Errorf("layer %q not found (available: %s)", layer, strings.Join(tables, ", "))
}

// gpkgSRID resolves a GeoPackage srs_id to an EPSG code. The reserved ids 0
// and -1 (undefined geographic / cartesian) and non-EPSG systems yield 0.
func gpkgSRID(ctx context.Context, db *sql.DB, srsID int) (int, error) {
	if srsID <= 0 {
		return 0, nil
	}
	var org string
	var code int
	err := db.QueryRowContext(ctx,
		`SELECT organization, organization_coordsys_id FROM gpkg_spatial_ref_sys WHERE srs_id = ?`, srsID,
	).Scan(&org, &code)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !strings.EqualFold(org, "EPSG") {
		return 0, nil
	}
	return code, nil
}

func gpkgColumns(ctx context.Context, db *sql.DB, table string) ([]gpkgColumn, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, type, pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []gpkgColumn
	for rows.Next() {
		var c gpkgColumn
		var pk int
		if err := rows.Scan(&c.name, &c.declared, &pk); err != nil {
			return nil, err
		}
		c.pk = pk > 0 && strings.Contains(strings.ToUpper(c.declared), "INT")
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

func gpkgColumnType(declared string) geoload.ColumnType {
	t := strings.ToUpper(declared)
	switch {
	case strings.Contains(t, "BOOL"):
		return geoload.ColumnTypeBoolean
	case strings.Contains(t, "INT"):
		return geoload.ColumnTypeInteger
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return geoload.ColumnTypeFloat
	case strings.HasPrefix(t, "DATETIME"), strings.HasPrefix(t, "TIMESTAMP"):
		return geoload.ColumnTypeTimestamp
	case strings.HasPrefix(t, "DATE"):
		return geoload.ColumnTypeDate
	case strings.HasPrefix(t, "BLOB"):
		return geoload.ColumnTypeBinary
	default:
		return geoload.ColumnTypeText
	}
}

var gpkgTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// gpkgValue converts a scanned SQLite value to the Go type of the column's declared type.
func gpkgValue(typ geoload.ColumnType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch typ {
	case geoload.ColumnTypeBoolean:
		switch x := v.(type) {
		case int64:
			return x != 0, nil
		case bool:
			return x, nil
		}
	case geoload.ColumnTypeDate, geoload.ColumnTypeTimestamp:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			for _, layout := range gpkgTimeLayouts {
				if t, err := time.Parse(layout, x); err == nil {
					return t, nil
				}
			}
			return nil, fmt.Errorf("invalid date/time %q", x)
		}
	case geoload.ColumnTypeText:
		if b, ok := v.([]byte); ok {
			return string(b), nil
		}
	}
	return v, nil
}

// decodeGPKGGeometry decodes a GeoPackage geometry blob: the "GP" header
// (magic, version, flags, srs_id, optional envelope) followed by WKB.
func decodeGPKGGeometry(v any) (orb.Geometry, error) {
	if v == nil {
		return nil, nil
	}
	blob, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("geometry is %T, not a blob", v)
	}
	if len(blob) < 8 || blob[0] != 'G' || blob[1] != 'P' {
		return nil, errors.New("missing GeoPackage geometry header")
	}
	if blob[2] != 0 {
		return nil, fmt.Errorf("unsupported GeoPackage geometry version %d", blob[2])
	}

	flags := blob[3]
	if flags&0x20 != 0 {
		return nil, errors.New("extended GeoPackage geometry types are not supported")
	}
	if flags&0x10 != 0 {
		return nil, nil
	}

	var envelope int
	switch (flags >> 1) & 0x07 {
	case 0:
		envelope = 0
	case 1:
		envelope = 32
	case 2, 3:
		envelope = 48
	case 4:
		envelope = 64
	default:
		return nil, fmt.Errorf("invalid envelope indicator %d", (flags>>1)&0x07)
	}

	// bytes 4-8 carry the srs_id, already known from gpkg_geometry_columns.
	offset := 8 + envelope
	if len(blob) < offset {
		return nil, errors.New("truncated GeoPackage geometry header")
	}

	geom, err := wkb.Unmarshal(blob[offset:])
	if err != nil {
		return nil, fmt.Errorf("invalid WKB: %w", err)
	}
	return geom, nil
}

func quoteSQLite(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
