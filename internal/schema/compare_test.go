package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/geoload/pkg/geoload"
)

var parcels = geoload.TableRef{Schema: "public", Name: "parcels"}

func textCol(name string) geoload.TableColumn {
	return geoload.TableColumn{Name: name, DeclaredType: "text", TypeName: "text", Category: "S"}
}

func intCol(name string) geoload.TableColumn {
	return geoload.TableColumn{Name: name, DeclaredType: "integer", TypeName: "int4", Category: "N"}
}

func geomCol(name, declared string) geoload.TableColumn {
	return geoload.TableColumn{
		Name:         name,
		DeclaredType: declared,
		TypeName:     "geometry",
		Category:     "U",
		Geometry:     ParseGeometryType(declared),
	}
}

func parcelsSchema(extra ...geoload.TableColumn) *geoload.TableSchema {
	cols := []geoload.TableColumn{
		{Name: "id", DeclaredType: "integer", TypeName: "int4", Category: "N", NotNull: true, HasDefault: true},
		textCol("name"),
		intCol("area"),
		geomCol("geom", "geometry(Polygon,4326)"),
	}
	return &geoload.TableSchema{Table: parcels, Columns: append(cols, extra...)}
}

func parcelsDataset(cols ...geoload.Column) *geoload.Dataset {
	if cols == nil {
		cols = []geoload.Column{
			{Name: "name", Type: geoload.ColumnTypeText},
			{Name: "area", Type: geoload.ColumnTypeInteger},
		}
	}
	return &geoload.Dataset{
		Columns:      cols,
		Records:      []geoload.Record{{Values: map[string]any{}}},
		GeometryType: "Polygon",
		SRID:         4326,
	}
}

func TestCompare_ExactMatch(t *testing.T) {
	plan, err := Compare(parcelsDataset(), parcelsSchema(), geoload.ValidateOptions{})
	require.NoError(t, err)

	assert.Equal(t, parcels, plan.Table)
	assert.Equal(t, "geom", plan.GeometryColumn)
	assert.Equal(t, []geoload.ColumnMapping{
		{Column: "name", DeclaredType: "text"},
		{Column: "area", DeclaredType: "integer"},
	}, plan.Columns)
	assert.Equal(t, 4326, plan.SourceSRID)
	assert.Equal(t, 4326, plan.TargetSRID)
	assert.False(t, plan.Transform)
	assert.False(t, plan.PromoteToMulti)
	assert.Equal(t, geoload.DefaultBatchSize, plan.BatchSize)
	assert.Empty(t, plan.GeneratedIDColumn)
}

func TestCompare_SubsetIsAccepted(t *testing.T) {
	ds := parcelsDataset(geoload.Column{Name: "name", Type: geoload.ColumnTypeText})

	plan, err := Compare(ds, parcelsSchema(), geoload.ValidateOptions{BatchSize: 50})
	require.NoError(t, err)
	assert.Len(t, plan.Columns, 1)
	assert.Equal(t, 50, plan.BatchSize)
}

func TestCompare_UnexpectedColumnsAreListed(t *testing.T) {
	ds := parcelsDataset(
		geoload.Column{Name: "name", Type: geoload.ColumnTypeText},
		geoload.Column{Name: "zoning", Type: geoload.ColumnTypeText},
		geoload.Column{Name: "owner", Type: geoload.ColumnTypeText},
	)

	_, err := Compare(ds, parcelsSchema(), geoload.ValidateOptions{})
	require.Error(t, err)

	var mismatch *geoload.SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, []string{"owner", "zoning"}, mismatch.Unexpected)
	assert.Empty(t, mismatch.MissingRequired)
	assert.Equal(t, geoload.ExitSchemaMismatch, geoload.ExitCodeForError(err))
	assert.Contains(t, err.Error(), "owner, zoning")
}

func TestCompare_FeatureIDAttribute(t *testing.T) {
	ds := parcelsDataset(
		geoload.Column{Name: "fid", Type: geoload.ColumnTypeInteger},
		geoload.Column{Name: "name", Type: geoload.ColumnTypeText},
	)

	t.Run("skipped when the table has no fid column", func(t *testing.T) {
		plan, err := Compare(ds, parcelsSchema(), geoload.ValidateOptions{})
		require.NoError(t, err)
		assert.Equal(t, []geoload.ColumnMapping{{Column: "name", DeclaredType: "text"}}, plan.Columns)
	})

	t.Run("loaded when the table declares fid", func(t *testing.T) {
		plan, err := Compare(ds, parcelsSchema(intCol("fid")), geoload.ValidateOptions{})
		require.NoError(t, err)
		assert.Equal(t, []geoload.ColumnMapping{
			{Column: "fid", DeclaredType: "integer"},
			{Column: "name", DeclaredType: "text"},
		}, plan.Columns)
	})
}

func TestCompare_MissingRequiredColumn(t *testing.T) {
	schema := parcelsSchema(geoload.TableColumn{
		Name: "parcel_no", DeclaredType: "text", TypeName: "text", Category: "S", NotNull: true,
	})

	_, err := Compare(parcelsDataset(), schema, geoload.ValidateOptions{})

	var mismatch *geoload.SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, []string{"parcel_no"}, mismatch.MissingRequired)
}

func TestCompare_GenerateIDs(t *testing.T) {
	schema := parcelsSchema()
	schema.Columns[0].HasDefault = false

	_, err := Compare(parcelsDataset(), schema, geoload.ValidateOptions{})
	var mismatch *geoload.SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, []string{"id"}, mismatch.MissingRequired)

	plan, err := Compare(parcelsDataset(), schema, geoload.ValidateOptions{GenerateIDs: true})
	require.NoError(t, err)
	assert.Equal(t, "id", plan.GeneratedIDColumn)
}

func TestCompare_GenerateIDsRequiresIntegerID(t *testing.T) {
	schema := parcelsSchema()
	schema.Columns[0] = geoload.TableColumn{Name: "id", DeclaredType: "uuid", TypeName: "uuid", Category: "U", NotNull: true}

	_, err := Compare(parcelsDataset(), schema, geoload.ValidateOptions{GenerateIDs: true})
	assert.ErrorIs(t, err, geoload.ErrSchemaMismatch)
}

func TestCompare_TypeMismatchesAreJoined(t *testing.T) {
	ds := parcelsDataset(
		geoload.Column{Name: "name", Type: geoload.ColumnTypeBinary},
		geoload.Column{Name: "area", Type: geoload.ColumnTypeFloat},
	)

	_, err := Compare(ds, parcelsSchema(), geoload.ValidateOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, geoload.ErrTypeMismatch)
	assert.Equal(t, geoload.ExitTypeMismatch, geoload.ExitCodeForError(err))
	assert.Contains(t, err.Error(), `"name"`)
	assert.Contains(t, err.Error(), `"area"`)
	assert.Contains(t, err.Error(), "float is not coercible to integer")
}

func TestCompare_GeometryColumnSelection(t *testing.T) {
	t.Run("explicit column", func(t *testing.T) {
		schema := parcelsSchema(geomCol("centroid", "geometry(Point,4326)"))
		ds := parcelsDataset()
		ds.GeometryType = "Point"

		plan, err := Compare(ds, schema, geoload.ValidateOptions{GeometryColumn: "centroid"})
		require.NoError(t, err)
		assert.Equal(t, "centroid", plan.GeometryColumn)
	})

	t.Run("explicit column missing", func(t *testing.T) {
		_, err := Compare(parcelsDataset(), parcelsSchema(), geoload.ValidateOptions{GeometryColumn: "shape"})
		assert.ErrorIs(t, err, geoload.ErrSchemaMismatch)
		assert.Contains(t, err.Error(), `"shape" does not exist`)
	})

	t.Run("explicit column not geometry", func(t *testing.T) {
		_, err := Compare(parcelsDataset(), parcelsSchema(), geoload.ValidateOptions{GeometryColumn: "name"})
		assert.ErrorIs(t, err, geoload.ErrSchemaMismatch)
		assert.Contains(t, err.Error(), "not a geometry column")
	})

	t.Run("only geometry column has any name", func(t *testing.T) {
		schema := &geoload.TableSchema{Table: parcels, Columns: []geoload.TableColumn{
			textCol("name"), intCol("area"), geomCol("shape", "geometry"),
		}}
		plan, err := Compare(parcelsDataset(), schema, geoload.ValidateOptions{})
		require.NoError(t, err)
		assert.Equal(t, "shape", plan.GeometryColumn)
	})

	t.Run("several geometry columns prefer geom", func(t *testing.T) {
		schema := parcelsSchema(geomCol("centroid", "geometry(Point,4326)"))
		plan, err := Compare(parcelsDataset(), schema, geoload.ValidateOptions{})
		require.NoError(t, err)
		assert.Equal(t, "geom", plan.GeometryColumn)
	})

	t.Run("several geometry columns without geom", func(t *testing.T) {
		schema := &geoload.TableSchema{Table: parcels, Columns: []geoload.TableColumn{
			textCol("name"), intCol("area"),
			geomCol("outline", "geometry"), geomCol("centroid", "geometry"),
		}}
		_, err := Compare(parcelsDataset(), schema, geoload.ValidateOptions{})
		assert.ErrorIs(t, err, geoload.ErrSchemaMismatch)
		assert.Contains(t, err.Error(), "outline, centroid")
	})

	t.Run("no geometry column", func(t *testing.T) {
		schema := &geoload.TableSchema{Table: parcels, Columns: []geoload.TableColumn{textCol("name"), intCol("area")}}
		_, err := Compare(parcelsDataset(), schema, geoload.ValidateOptions{})
		assert.ErrorIs(t, err, geoload.ErrSchemaMismatch)
		assert.Contains(t, err.Error(), "no geometry column")
	})

	t.Run("attribute shadows geometry column", func(t *testing.T) {
		ds := parcelsDataset(geoload.Column{Name: "geom", Type: geoload.ColumnTypeText})
		_, err := Compare(ds, parcelsSchema(), geoload.ValidateOptions{})
		assert.ErrorIs(t, err, geoload.ErrSchemaMismatch)
	})
}

func TestCompare_GeometryType(t *testing.T) {
	tests := []struct {
		name        string
		declared    string
		datasetType string
		wantErr     bool
		wantMulti   bool
	}{
		{"same type", "geometry(Polygon,4326)", "Polygon", false, false},
		{"unconstrained", "geometry", "LineString", false, false},
		{"generic typmod", "geometry(Geometry,4326)", "Point", false, false},
		{"promote to multi", "geometry(MultiPolygon,4326)", "Polygon", false, true},
		{"multi dataset into multi column", "geometry(MultiPolygon,4326)", "MultiPolygon", false, false},
		{"multi into single", "geometry(Polygon,4326)", "MultiPolygon", true, false},
		{"different family", "geometry(Point,4326)", "Polygon", true, false},
		{"all geometries null", "geometry(Point,4326)", "", false, false},
		{"z column", "geometry(PolygonZ,4326)", "Polygon", true, false},
		{"m column", "geometry(PolygonM,4326)", "Polygon", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := &geoload.TableSchema{Table: parcels, Columns: []geoload.TableColumn{
				textCol("name"), intCol("area"), geomCol("geom", tt.declared),
			}}
			ds := parcelsDataset()
			ds.GeometryType = tt.datasetType

			plan, err := Compare(ds, schema, geoload.ValidateOptions{})
			if tt.wantErr {
				assert.ErrorIs(t, err, geoload.ErrTypeMismatch)
				var mismatch *geoload.TypeMismatchError
				require.True(t, errors.As(err, &mismatch))
				assert.Equal(t, "geom", mismatch.Column)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMulti, plan.PromoteToMulti)
		})
	}
}

func TestCompare_SRID(t *testing.T) {
	tests := []struct {
		name          string
		declared      string
		datasetSRID   int
		wantTransform bool
		wantTarget    int
	}{
		{"same srid", "geometry(Polygon,4326)", 4326, false, 4326},
		{"reproject", "geometry(Polygon,25832)", 4326, true, 25832},
		{"unconstrained keeps source", "geometry(Polygon)", 3857, false, 3857},
		{"bare geometry keeps source", "geometry", 25832, false, 25832},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := &geoload.TableSchema{Table: parcels, Columns: []geoload.TableColumn{
				textCol("name"), intCol("area"), geomCol("geom", tt.declared),
			}}
			ds := parcelsDataset()
			ds.SRID = tt.datasetSRID

			plan, err := Compare(ds, schema, geoload.ValidateOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.datasetSRID, plan.SourceSRID)
			assert.Equal(t, tt.wantTarget, plan.TargetSRID)
			assert.Equal(t, tt.wantTransform, plan.Transform)
		})
	}
}

func TestCoercible(t *testing.T) {
	varchar := geoload.TableColumn{DeclaredType: "character varying(20)", TypeName: "varchar", Category: "S"}
	int8 := geoload.TableColumn{DeclaredType: "bigint", TypeName: "int8", Category: "N"}
	numeric := geoload.TableColumn{DeclaredType: "numeric(10,2)", TypeName: "numeric", Category: "N"}
	float8 := geoload.TableColumn{DeclaredType: "double precision", TypeName: "float8", Category: "N"}
	boolean := geoload.TableColumn{DeclaredType: "boolean", TypeName: "bool", Category: "B"}
	date := geoload.TableColumn{DeclaredType: "date", TypeName: "date", Category: "D"}
	tstz := geoload.TableColumn{DeclaredType: "timestamp with time zone", TypeName: "timestamptz", Category: "D"}
	jsonb := geoload.TableColumn{DeclaredType: "jsonb", TypeName: "jsonb", Category: "U"}
	bytea := geoload.TableColumn{DeclaredType: "bytea", TypeName: "bytea", Category: "U"}
	enum := geoload.TableColumn{DeclaredType: "land_use", TypeName: "land_use", Category: "E"}
	uuidCol := geoload.TableColumn{DeclaredType: "uuid", TypeName: "uuid", Category: "U"}
	geometry := geomCol("geom", "geometry")

	tests := []struct {
		name string
		ct   geoload.ColumnType
		tc   geoload.TableColumn
		want bool
	}{
		{"unknown into anything", geoload.ColumnTypeUnknown, bytea, true},
		{"integer into bigint", geoload.ColumnTypeInteger, int8, true},
		{"integer into float", geoload.ColumnTypeInteger, float8, true},
		{"integer into varchar", geoload.ColumnTypeInteger, varchar, true},
		{"integer into boolean", geoload.ColumnTypeInteger, boolean, false},
		{"float into numeric", geoload.ColumnTypeFloat, numeric, true},
		{"float into bigint", geoload.ColumnTypeFloat, int8, false},
		{"boolean into boolean", geoload.ColumnTypeBoolean, boolean, true},
		{"boolean into bigint", geoload.ColumnTypeBoolean, int8, false},
		{"text into varchar", geoload.ColumnTypeText, varchar, true},
		{"text into enum", geoload.ColumnTypeText, enum, true},
		{"text into uuid", geoload.ColumnTypeText, uuidCol, true},
		{"text into jsonb", geoload.ColumnTypeText, jsonb, true},
		{"text into integer", geoload.ColumnTypeText, int8, false},
		{"date into date", geoload.ColumnTypeDate, date, true},
		{"date into timestamptz", geoload.ColumnTypeDate, tstz, true},
		{"timestamp into date", geoload.ColumnTypeTimestamp, date, true},
		{"timestamp into numeric", geoload.ColumnTypeTimestamp, numeric, false},
		{"json into jsonb", geoload.ColumnTypeJSON, jsonb, true},
		{"json into varchar", geoload.ColumnTypeJSON, varchar, true},
		{"json into bytea", geoload.ColumnTypeJSON, bytea, false},
		{"binary into bytea", geoload.ColumnTypeBinary, bytea, true},
		{"binary into varchar", geoload.ColumnTypeBinary, varchar, false},
		{"anything into geometry", geoload.ColumnTypeText, geometry, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Coercible(tt.ct, tt.tc))
		})
	}
}
