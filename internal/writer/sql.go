package writer

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/geoload/pkg/geoload"
)

func quoteTable(t geoload.TableRef) string {
	if t.Schema == "" {
		return pgx.Identifier{t.Name}.Sanitize()
	}
	return pgx.Identifier{t.Schema, t.Name}.Sanitize()
}

func quoteColumn(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// truncateSQL empties the table and resets its identity sequences.
func truncateSQL(plan *geoload.LoadPlan) string {
	sql := "TRUNCATE TABLE " + quoteTable(plan.Table) + " RESTART IDENTITY"
	if plan.Cascade {
		sql += " CASCADE"
	}
	return sql
}

// insertSQL builds the per-record INSERT. Parameters follow plan.Columns,
// then the geometry, then the generated id when the plan has one.
//
//	INSERT INTO "public"."wells" ("name", "depth", "geom")
//	VALUES (CAST($1::text AS text), CAST($2::text AS integer),
//	        ST_Transform(ST_GeomFromEWKB($3::bytea), 25832))
func insertSQL(plan *geoload.LoadPlan) string {
	names := make([]string, 0, len(plan.Columns)+2)
	exprs := make([]string, 0, len(plan.Columns)+2)

	for i, c := range plan.Columns {
		names = append(names, quoteColumn(c.Column))
		exprs = append(exprs, fmt.Sprintf("CAST($%d::text AS %s)", i+1, c.DeclaredType))
	}

	names = append(names, quoteColumn(plan.GeometryColumn))
	exprs = append(exprs, geometryExpr(plan, len(plan.Columns)+1))

	if plan.GeneratedIDColumn != "" {
		names = append(names, quoteColumn(plan.GeneratedIDColumn))
		exprs = append(exprs, fmt.Sprintf("$%d", len(plan.Columns)+2))
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteTable(plan.Table), strings.Join(names, ", "), strings.Join(exprs, ", "))
}

func geometryExpr(plan *geoload.LoadPlan, param int) string {
	expr := fmt.Sprintf("ST_GeomFromEWKB($%d::bytea)", param)
	if plan.PromoteToMulti {
		expr = "ST_Multi(" + expr + ")"
	}
	if plan.Transform {
		expr = fmt.Sprintf("ST_Transform(%s, %d)", expr, plan.TargetSRID)
	}
	return expr
}
