// Package schema reads the target table's column set from the PostgreSQL
// catalog and decides whether a sanitized dataset can be loaded into it.
//
// The catalog is read fresh on every run with a single query; nothing is
// cached. The comparison itself (Compare) is a pure function producing the
// geoload.LoadPlan consumed by the writer.
package schema

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/vvka-141/geoload/internal/db"
	"github.com/vvka-141/geoload/pkg/geoload"
)

// columnsQuery returns one row per live column of an ordinary or partitioned
// table. The outer joins keep a single all-NULL row for a table without
// columns, so "no rows" always means "no such table".
const columnsQuery = `
SELECT a.attname::text,
       format_type(a.atttypid, a.atttypmod),
       t.typname::text,
       t.typcategory::text,
       a.attnotnull,
       (a.atthasdef OR a.attidentity <> '' OR a.attgenerated <> '')
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
LEFT JOIN pg_catalog.pg_attribute a
       ON a.attrelid = c.oid AND a.attnum > 0 AND NOT a.attisdropped
LEFT JOIN pg_catalog.pg_type t ON t.oid = a.atttypid
WHERE n.nspname = $1
  AND c.relname = $2
  AND c.relkind IN ('r', 'p')
ORDER BY a.attnum`

// Fetch reads the column set of table. Fails with TableNotFoundError when the
// table does not exist and ConnectionError when the database is unreachable.
func Fetch(ctx context.Context, conn geoload.DB, table geoload.TableRef) (*geoload.TableSchema, error) {
	rows, err := conn.Query(ctx, columnsQuery, table.Schema, table.Name)
	if err != nil {
		return nil, db.WrapConnectionError(fmt.Errorf("failed to read columns of %s: %w", table, err))
	}
	defer rows.Close()

	found := false
	schema := &geoload.TableSchema{Table: table}
	for rows.Next() {
		found = true

		var (
			name, declared, typname, category *string
			notNull, hasDefault               *bool
		)
		if err := rows.Scan(&name, &declared, &typname, &category, &notNull, &hasDefault); err != nil {
			return nil, db.WrapConnectionError(fmt.Errorf("failed to scan columns of %s: %w", table, err))
		}
		if name == nil {
			continue
		}

		col := geoload.TableColumn{
			Name:         *name,
			DeclaredType: deref(declared),
			TypeName:     deref(typname),
			Category:     deref(category),
			NotNull:      notNull != nil && *notNull,
			HasDefault:   hasDefault != nil && *hasDefault,
		}
		if col.TypeName == "geometry" {
			col.Geometry = ParseGeometryType(col.DeclaredType)
		}
		schema.Columns = append(schema.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, db.WrapConnectionError(fmt.Errorf("failed to read columns of %s: %w", table, err))
	}

	if !found {
		return nil, &geoload.TableNotFoundError{Table: table}
	}
	return schema, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var geometryTypmod = regexp.MustCompile(`^(?:"?\w+"?\.)?geometry\(\s*([A-Za-z]+?)(ZM|Z|M)?\s*(?:,\s*(-?\d+)\s*)?\)$`)

// ParseGeometryType parses the format_type() text of a geometry column:
// "geometry", "geometry(Point,4326)", "geometry(MultiPolygonZ)",
// "geometry(PointZM,25832)". Unrecognized text yields an unconstrained spec.
func ParseGeometryType(formatType string) *geoload.GeometrySpec {
	spec := &geoload.GeometrySpec{Type: "GEOMETRY"}

	m := geometryTypmod.FindStringSubmatch(strings.TrimSpace(formatType))
	if m == nil {
		return spec
	}

	dims := m[2]
	spec.Type = strings.ToUpper(m[1])
	spec.HasZ = strings.Contains(dims, "Z")
	spec.HasM = strings.Contains(dims, "M")
	if m[3] != "" {
		if srid, err := strconv.Atoi(m[3]); err == nil && srid > 0 {
			spec.SRID = srid
		}
	}
	return spec
}
