package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vvka-141/geoload/pkg/geoload"
)

// featureIDAttribute is the per-file feature id many exporters add. It is
// not loaded unless the table has a column of that name.
const featureIDAttribute = "fid"

// Compare checks ds against the table schema and builds the load plan.
//
// Structural problems (unknown dataset columns, required table columns the
// dataset does not supply, no usable geometry column) are reported together
// as one SchemaMismatchError. Type problems are reported as TypeMismatchErrors
// joined with errors.Join, one per offending column.
func Compare(ds *geoload.Dataset, schema *geoload.TableSchema, opts geoload.ValidateOptions) (*geoload.LoadPlan, error) {
	geomCol, err := selectGeometryColumn(schema, opts.GeometryColumn)
	if err != nil {
		return nil, err
	}
	if _, clash := ds.Column(geomCol.Name); clash {
		return nil, &geoload.SchemaMismatchError{
			Table:  schema.Table,
			Reason: fmt.Sprintf("dataset attribute %q has the same name as the geometry column", geomCol.Name),
		}
	}

	plan := &geoload.LoadPlan{
		Table:          schema.Table,
		GeometryColumn: geomCol.Name,
		Cascade:        opts.Cascade,
		BatchSize:      opts.BatchSize,
	}
	if plan.BatchSize <= 0 {
		plan.BatchSize = geoload.DefaultBatchSize
	}

	var unexpected []string
	for _, c := range ds.Columns {
		if _, ok := schema.Column(c.Name); !ok && c.Name != featureIDAttribute {
			unexpected = append(unexpected, c.Name)
		}
	}
	sort.Strings(unexpected)

	var missing []string
	for _, tc := range schema.Columns {
		if tc.Name == geomCol.Name {
			continue
		}
		if _, ok := ds.Column(tc.Name); ok || !tc.Required() {
			continue
		}
		if opts.GenerateIDs && isGeneratableID(tc) {
			plan.GeneratedIDColumn = tc.Name
			continue
		}
		missing = append(missing, tc.Name)
	}

	if len(unexpected) > 0 || len(missing) > 0 {
		return nil, &geoload.SchemaMismatchError{
			Table:           schema.Table,
			Unexpected:      unexpected,
			MissingRequired: missing,
		}
	}

	var errs []error
	for _, c := range ds.Columns {
		tc, ok := schema.Column(c.Name)
		if !ok {
			continue
		}
		if !Coercible(c.Type, tc) {
			errs = append(errs, &geoload.TypeMismatchError{
				Column:      c.Name,
				DatasetType: c.Type.String(),
				TableType:   tc.DeclaredType,
			})
			continue
		}
		plan.Columns = append(plan.Columns, geoload.ColumnMapping{Column: c.Name, DeclaredType: tc.DeclaredType})
	}

	if err := planGeometry(plan, ds, geomCol); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return plan, nil
}

// selectGeometryColumn picks the target geometry column: the requested one,
// else the only geometry column, else the one named "geom".
func selectGeometryColumn(schema *geoload.TableSchema, requested string) (geoload.TableColumn, error) {
	if requested != "" {
		tc, ok := schema.Column(requested)
		if !ok {
			return geoload.TableColumn{}, &geoload.SchemaMismatchError{
				Table:  schema.Table,
				Reason: fmt.Sprintf("geometry column %q does not exist", requested),
			}
		}
		if tc.Geometry == nil {
			return geoload.TableColumn{}, &geoload.SchemaMismatchError{
				Table:  schema.Table,
				Reason: fmt.Sprintf("column %q is %s, not a geometry column", requested, tc.DeclaredType),
			}
		}
		return tc, nil
	}

	var candidates []geoload.TableColumn
	for _, tc := range schema.Columns {
		if tc.Geometry != nil {
			candidates = append(candidates, tc)
		}
	}

	switch len(candidates) {
	case 0:
		return geoload.TableColumn{}, &geoload.SchemaMismatchError{
			Table:  schema.Table,
			Reason: "table has no geometry column",
		}
	case 1:
		return candidates[0], nil
	}

	names := make([]string, len(candidates))
	for i, tc := range candidates {
		if tc.Name == geoload.DefaultGeometryColumn {
			return tc, nil
		}
		names[i] = tc.Name
	}
	return geoload.TableColumn{}, &geoload.SchemaMismatchError{
		Table:  schema.Table,
		Reason: fmt.Sprintf("table has several geometry columns (%s); choose one with --geometry-column", strings.Join(names, ", ")),
	}
}

// planGeometry checks the dataset geometry type and SRID against the column
// typmod and records promotion and reprojection in the plan.
func planGeometry(plan *geoload.LoadPlan, ds *geoload.Dataset, col geoload.TableColumn) error {
	spec := col.Geometry
	plan.SourceSRID = ds.SRID
	plan.TargetSRID = ds.SRID

	mismatch := &geoload.TypeMismatchError{
		Column:      col.Name,
		DatasetType: datasetGeometryLabel(ds),
		TableType:   col.DeclaredType,
	}

	if spec.HasZ || spec.HasM {
		return mismatch
	}

	dsType := strings.ToUpper(ds.GeometryType)
	switch {
	case dsType == "", spec.Type == "", spec.Type == "GEOMETRY", spec.Type == dsType:
	case spec.Type == "MULTI"+dsType:
		plan.PromoteToMulti = true
	default:
		return mismatch
	}

	if spec.SRID != 0 && spec.SRID != ds.SRID {
		plan.TargetSRID = spec.SRID
		plan.Transform = true
	}
	return nil
}

func datasetGeometryLabel(ds *geoload.Dataset) string {
	t := ds.GeometryType
	if t == "" {
		t = "Geometry"
	}
	return fmt.Sprintf("%s(SRID %d)", t, ds.SRID)
}

func isGeneratableID(tc geoload.TableColumn) bool {
	if tc.Name != "id" {
		return false
	}
	switch tc.TypeName {
	case "int2", "int4", "int8", "numeric":
		return true
	}
	return false
}

// Coercible reports whether values of a dataset column type can be cast to
// the table column's type.
func Coercible(ct geoload.ColumnType, tc geoload.TableColumn) bool {
	if tc.Geometry != nil {
		return false
	}

	isString := tc.Category == "S"
	isJSON := tc.TypeName == "json" || tc.TypeName == "jsonb"

	switch ct {
	case geoload.ColumnTypeUnknown:
		return true
	case geoload.ColumnTypeInteger:
		return tc.Category == "N" || isString
	case geoload.ColumnTypeFloat:
		switch tc.TypeName {
		case "int2", "int4", "int8":
			return false
		}
		return tc.Category == "N" || isString
	case geoload.ColumnTypeBoolean:
		return tc.Category == "B" || isString
	case geoload.ColumnTypeText:
		return isString || tc.Category == "E" || isJSON || tc.TypeName == "uuid"
	case geoload.ColumnTypeDate, geoload.ColumnTypeTimestamp:
		return tc.Category == "D" || isString
	case geoload.ColumnTypeJSON:
		return isJSON || isString
	case geoload.ColumnTypeBinary:
		return tc.TypeName == "bytea"
	}
	return false
}
