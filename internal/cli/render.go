package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/vvka-141/geoload/internal/source"
	"github.com/vvka-141/geoload/pkg/geoload"
)

// renderSummary prints the inspect output: a dataset header and one row per column.
func renderSummary(w io.Writer, s source.Summary) {
	header := table.NewWriter()
	header.SetOutputMirror(w)
	header.SetStyle(table.StyleLight)
	header.AppendRows([]table.Row{
		{"Source", s.Source},
		{"Format", s.Format},
		{"Features", s.Features},
		{"Geometry", geometryLabel(s.GeometryType)},
		{"SRID", s.SRID},
	})
	if s.Layer != "" {
		header.AppendRow(table.Row{"Layer", s.Layer})
	}
	if s.NullGeometries > 0 {
		header.AppendRow(table.Row{"Null geometries", s.NullGeometries})
	}
	if s.HasExtent {
		header.AppendRow(table.Row{"Extent", fmt.Sprintf("%g %g, %g %g",
			s.Extent.Min.X(), s.Extent.Min.Y(), s.Extent.Max.X(), s.Extent.Max.Y())})
	}
	header.AppendRow(table.Row{"SHA-256", s.Checksum})
	header.Render()

	if len(s.Columns) == 0 {
		_, _ = fmt.Fprintln(w, "(no attribute columns)")
		return
	}

	cols := table.NewWriter()
	cols.SetOutputMirror(w)
	cols.SetStyle(table.StyleLight)
	cols.AppendHeader(table.Row{"#", "Column", "Type", "Non-null", "Sample"})
	for i, c := range s.Columns {
		cols.AppendRow(table.Row{i + 1, c.Name, c.Type, c.NonNull, c.Sample})
	}
	cols.Render()
	_, _ = fmt.Fprintf(w, "(%d columns)\n", len(s.Columns))
}

// renderPlan prints the column mapping a dry run validated.
func renderPlan(w io.Writer, plan *geoload.LoadPlan) {
	if plan == nil {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Load plan for " + plan.Table.String())
	t.AppendHeader(table.Row{"Column", "Cast to"})
	for _, c := range plan.Columns {
		t.AppendRow(table.Row{c.Column, c.DeclaredType})
	}
	t.AppendRow(table.Row{plan.GeometryColumn, geometryExpr(plan)})
	if plan.GeneratedIDColumn != "" {
		t.AppendRow(table.Row{plan.GeneratedIDColumn, "1..n"})
	}
	t.AppendFooter(table.Row{"Batch size", strconv.Itoa(plan.BatchSize)})
	t.Render()
}

func geometryExpr(plan *geoload.LoadPlan) string {
	expr := fmt.Sprintf("geometry (SRID %d)", plan.SourceSRID)
	if plan.PromoteToMulti {
		expr = "ST_Multi(" + expr + ")"
	}
	if plan.Transform {
		expr = fmt.Sprintf("ST_Transform(%s, %d)", expr, plan.TargetSRID)
	}
	return expr
}

func geometryLabel(t string) string {
	if t == "" {
		return "(all null)"
	}
	return t
}
