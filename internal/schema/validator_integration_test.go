package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testhelpers "github.com/vvka-141/geoload/internal/testing"
	"github.com/vvka-141/geoload/pkg/geoload"
)

func TestFetch_Integration(t *testing.T) {
	pool := testhelpers.NewPostGISDatabase(t)
	ctx := context.Background()

	testhelpers.Exec(t, pool,
		`CREATE TYPE land_use AS ENUM ('residential', 'commercial')`,
		`CREATE TABLE parcels (
			id         bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			parcel_no  varchar(20) NOT NULL,
			use        land_use,
			area       numeric(12,2),
			surveyed   date DEFAULT current_date NOT NULL,
			dropped    text,
			geom       geometry(MultiPolygon, 25832)
		)`,
		`ALTER TABLE parcels DROP COLUMN dropped`,
		`CREATE TABLE empty_table ()`,
	)

	t.Run("reads columns in order", func(t *testing.T) {
		schema, err := Fetch(ctx, pool, geoload.TableRef{Schema: "public", Name: "parcels"})
		require.NoError(t, err)

		names := make([]string, len(schema.Columns))
		for i, c := range schema.Columns {
			names[i] = c.Name
		}
		assert.Equal(t, []string{"id", "parcel_no", "use", "area", "surveyed", "geom"}, names)

		id, _ := schema.Column("id")
		assert.True(t, id.NotNull)
		assert.True(t, id.HasDefault)
		assert.False(t, id.Required())

		parcelNo, _ := schema.Column("parcel_no")
		assert.Equal(t, "character varying(20)", parcelNo.DeclaredType)
		assert.Equal(t, "S", parcelNo.Category)
		assert.True(t, parcelNo.Required())

		use, _ := schema.Column("use")
		assert.Equal(t, "E", use.Category)

		surveyed, _ := schema.Column("surveyed")
		assert.False(t, surveyed.Required())

		geom, _ := schema.Column("geom")
		require.NotNil(t, geom.Geometry)
		assert.Equal(t, geoload.GeometrySpec{Type: "MULTIPOLYGON", SRID: 25832}, *geom.Geometry)
	})

	t.Run("table without columns", func(t *testing.T) {
		schema, err := Fetch(ctx, pool, geoload.TableRef{Schema: "public", Name: "empty_table"})
		require.NoError(t, err)
		assert.Empty(t, schema.Columns)
	})

	t.Run("missing table", func(t *testing.T) {
		_, err := Fetch(ctx, pool, geoload.TableRef{Schema: "public", Name: "nope"})
		var notFound *geoload.TableNotFoundError
		require.True(t, errors.As(err, &notFound))
		assert.Equal(t, geoload.ExitTableNotFound, geoload.ExitCodeForError(err))
	})

	t.Run("missing schema", func(t *testing.T) {
		_, err := Fetch(ctx, pool, geoload.TableRef{Schema: "gis", Name: "parcels"})
		assert.ErrorIs(t, err, geoload.ErrTableNotFound)
	})
}

func TestValidator_Integration(t *testing.T) {
	pool := testhelpers.NewPostGISDatabase(t)
	ctx := context.Background()

	testhelpers.Exec(t, pool,
		`CREATE TABLE wells (
			id    serial PRIMARY KEY,
			name  text,
			depth integer,
			geom  geometry(Point, 25832)
		)`,
	)

	table := geoload.TableRef{Schema: "public", Name: "wells"}
	ds := &geoload.Dataset{
		Columns: []geoload.Column{
			{Name: "name", Type: geoload.ColumnTypeText},
			{Name: "depth", Type: geoload.ColumnTypeInteger},
		},
		Records:      []geoload.Record{{Values: map[string]any{"name": "a", "depth": int64(3)}}},
		GeometryType: "Point",
		SRID:         4326,
	}

	v := New(nil)

	t.Run("reprojection with known srids", func(t *testing.T) {
		plan, err := v.Validate(ctx, pool, ds, table, geoload.ValidateOptions{})
		require.NoError(t, err)
		assert.True(t, plan.Transform)
		assert.Equal(t, 25832, plan.TargetSRID)
		assert.Len(t, plan.Columns, 2)
	})

	t.Run("unknown source srid", func(t *testing.T) {
		odd := *ds
		odd.SRID = 990001

		_, err := v.Validate(ctx, pool, &odd, table, geoload.ValidateOptions{})
		assert.ErrorIs(t, err, geoload.ErrTypeMismatch)
		assert.Contains(t, err.Error(), "990001")
	})

	t.Run("superset is rejected", func(t *testing.T) {
		extra := *ds
		extra.Columns = append(append([]geoload.Column{}, ds.Columns...), geoload.Column{Name: "operator", Type: geoload.ColumnTypeText})

		_, err := v.Validate(ctx, pool, &extra, table, geoload.ValidateOptions{})
		var mismatch *geoload.SchemaMismatchError
		require.True(t, errors.As(err, &mismatch))
		assert.Equal(t, []string{"operator"}, mismatch.Unexpected)
	})

	t.Run("missing table", func(t *testing.T) {
		_, err := v.Validate(ctx, pool, ds, geoload.TableRef{Schema: "public", Name: "springs"}, geoload.ValidateOptions{})
		assert.ErrorIs(t, err, geoload.ErrTableNotFound)
	})
}
