package services_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/geoload/internal/db"
	"github.com/vvka-141/geoload/internal/logging"
	"github.com/vvka-141/geoload/internal/sanitize"
	"github.com/vvka-141/geoload/internal/schema"
	"github.com/vvka-141/geoload/internal/services"
	"github.com/vvka-141/geoload/internal/source"
	testhelpers "github.com/vvka-141/geoload/internal/testing"
	"github.com/vvka-141/geoload/internal/writer"
	"github.com/vvka-141/geoload/pkg/geoload"
)

const wellsDDL = `CREATE TABLE wells (
	id       serial PRIMARY KEY,
	name     text,
	depth    integer CHECK (depth >= 0),
	status   text NOT NULL DEFAULT 'active',
	geom     geometry(Point, 4326)
)`

const seedWells = `INSERT INTO wells (name, depth, geom)
SELECT 'old-' || g, g, ST_SetSRID(ST_MakePoint(g, g), 4326) FROM generate_series(1, 5) g`

const twoWells = `{"type": "FeatureCollection", "features": [
	{"type": "Feature", "properties": {"name": "north", "depth": 120}, "geometry": {"type": "Point", "coordinates": [10.1, 50.2]}},
	{"type": "Feature", "properties": {"name": "south", "depth": 80}, "geometry": {"type": "Point", "coordinates": [10.3, 49.9]}}
]}`

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newService() *services.LoadService {
	logger := logging.NewNullLogger()
	return services.NewLoadService(
		db.NewConnector,
		&testhelpers.ForceApprover{},
		logger,
		source.New(logger),
		sanitize.New(),
		schema.New(logger),
		writer.New(logger),
	)
}

func wellsJob(t *testing.T, dbName, path string) geoload.JobConfig {
	return geoload.JobConfig{
		FilePath:   path,
		Table:      geoload.TableRef{Schema: "public", Name: "wells"},
		Connection: testhelpers.ConnectionConfig(t, dbName),
	}
}

func TestLoadService_Integration(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	setup := func(t *testing.T) (dbName string, count func() int) {
		pool := testhelpers.NewPostGISDatabase(t)
		testhelpers.Exec(t, pool, wellsDDL, seedWells)
		return pool.Config().ConnConfig.Database, func() int { return testhelpers.CountRows(t, pool, "wells") }
	}

	t.Run("replaces table contents", func(t *testing.T) {
		pool := testhelpers.NewPostGISDatabase(t)
		testhelpers.Exec(t, pool, wellsDDL, seedWells)
		dbName := pool.Config().ConnConfig.Database

		result, err := svc.Run(ctx, wellsJob(t, dbName, writeInput(t, "wells.geojson", twoWells)))
		require.NoError(t, err)
		assert.Equal(t, int64(2), result.RowsInserted)
		assert.Equal(t, 2, testhelpers.CountRows(t, pool, "wells"))

		var name, status string
		var depth, srid int
		require.NoError(t, pool.QueryRow(ctx,
			"SELECT name, depth, status, ST_SRID(geom) FROM wells WHERE id = 1").Scan(&name, &depth, &status, &srid))
		assert.Equal(t, "north", name)
		assert.Equal(t, 120, depth)
		assert.Equal(t, "active", status, "columns absent from the file get their default")
		assert.Equal(t, 4326, srid)
	})

	t.Run("dry run leaves table unchanged", func(t *testing.T) {
		dbName, count := setup(t)
		job := wellsJob(t, dbName, writeInput(t, "wells.geojson", twoWells))
		job.DryRun = true

		result, err := svc.Run(ctx, job)
		require.NoError(t, err)
		assert.True(t, result.DryRun)
		assert.Equal(t, 5, count())
	})

	t.Run("unsupported format", func(t *testing.T) {
		dbName, count := setup(t)

		_, err := svc.Run(ctx, wellsJob(t, dbName, writeInput(t, "wells.txt", twoWells)))
		assert.ErrorIs(t, err, geoload.ErrUnsupportedFormat)
		assert.Equal(t, 5, count())
	})

	t.Run("column collision", func(t *testing.T) {
		dbName, count := setup(t)
		input := `{"type": "FeatureCollection", "features": [
			{"type": "Feature", "properties": {"Name": "a", "NAME": "b"}, "geometry": {"type": "Point", "coordinates": [1, 2]}}
		]}`

		_, err := svc.Run(ctx, wellsJob(t, dbName, writeInput(t, "wells.geojson", input)))
		assert.ErrorIs(t, err, geoload.ErrColumnNameCollision)
		assert.Equal(t, 5, count())
	})

	t.Run("unexpected column", func(t *testing.T) {
		dbName, count := setup(t)
		input := `{"type": "FeatureCollection", "features": [
			{"type": "Feature", "properties": {"name": "a", "operator": "acme"}, "geometry": {"type": "Point", "coordinates": [1, 2]}}
		]}`

		_, err := svc.Run(ctx, wellsJob(t, dbName, writeInput(t, "wells.geojson", input)))
		assert.ErrorIs(t, err, geoload.ErrSchemaMismatch)
		assert.Contains(t, err.Error(), "operator")
		assert.Equal(t, 5, count())
	})

	t.Run("failed insert rolls back", func(t *testing.T) {
		dbName, count := setup(t)
		input := `{"type": "FeatureCollection", "features": [
			{"type": "Feature", "properties": {"name": "a", "depth": 10}, "geometry": {"type": "Point", "coordinates": [1, 2]}},
			{"type": "Feature", "properties": {"name": "b", "depth": -5}, "geometry": {"type": "Point", "coordinates": [1, 2]}}
		]}`

		_, err := svc.Run(ctx, wellsJob(t, dbName, writeInput(t, "wells.geojson", input)))
		assert.ErrorIs(t, err, geoload.ErrInsertionFailed)
		assert.Equal(t, geoload.ExitInsertionFailed, geoload.ExitCodeForError(err))
		assert.Equal(t, 5, count(), "truncate is rolled back with the failed insert")
	})

	t.Run("missing table", func(t *testing.T) {
		dbName, _ := setup(t)
		job := wellsJob(t, dbName, writeInput(t, "wells.geojson", twoWells))
		job.Table = geoload.TableRef{Schema: "public", Name: "boreholes"}

		_, err := svc.Run(ctx, job)
		assert.ErrorIs(t, err, geoload.ErrTableNotFound)
	})
}

func TestLoadService_Integration_PlainGeometryTable(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	load := func(t *testing.T, ddl, seed, table, input string) *pgxpool.Pool {
		pool := testhelpers.NewPostGISDatabase(t)
		testhelpers.Exec(t, pool, ddl, seed)

		job := wellsJob(t, pool.Config().ConnConfig.Database, writeInput(t, table+".geojson", input))
		job.Table = geoload.TableRef{Schema: "public", Name: table}
		result, err := svc.Run(ctx, job)
		require.NoError(t, err)
		assert.Equal(t, int64(2), result.RowsInserted)
		return pool
	}

	t.Run("mixed-case property and id replace seeded rows", func(t *testing.T) {
		input := `{"type": "FeatureCollection", "features": [
			{"type": "Feature", "properties": {"id": 7, "Name": "Elm Park", "fid": 1}, "geometry": {"type": "Point", "coordinates": [13.40, 52.52]}},
			{"type": "Feature", "properties": {"id": 9, "Name": "Oak Row", "fid": 2}, "geometry": {"type": "Point", "coordinates": [13.41, 52.53]}}
		]}`
		pool := load(t,
			`CREATE TABLE parks (id int, name text, geom geometry)`,
			`INSERT INTO parks SELECT g, 'seed-' || g, ST_SetSRID(ST_MakePoint(g, g), 4326) FROM generate_series(1, 5) g`,
			"parks", input)

		rows, err := pool.Query(ctx, "SELECT id, name, ST_SRID(geom) FROM parks ORDER BY id")
		require.NoError(t, err)
		defer rows.Close()

		type park struct {
			id   int
			name string
			srid int
		}
		var got []park
		for rows.Next() {
			var p park
			require.NoError(t, rows.Scan(&p.id, &p.name, &p.srid))
			got = append(got, p)
		}
		require.NoError(t, rows.Err())
		assert.Equal(t, []park{{7, "Elm Park", 4326}, {9, "Oak Row", 4326}}, got)
	})

	t.Run("timestamp text lands verbatim in a text column", func(t *testing.T) {
		input := `{"type": "FeatureCollection", "features": [
			{"type": "Feature", "properties": {"name": "a", "seen": "2020-01-01T10:00:00.500+00:00"}, "geometry": {"type": "Point", "coordinates": [1, 2]}},
			{"type": "Feature", "properties": {"name": "b", "seen": "2020-01-01"}, "geometry": {"type": "Point", "coordinates": [3, 4]}}
		]}`
		pool := load(t,
			`CREATE TABLE sightings (name text, seen text, geom geometry)`,
			`INSERT INTO sightings VALUES ('old', 'x', NULL)`,
			"sightings", input)

		var a, b string
		require.NoError(t, pool.QueryRow(ctx, "SELECT seen FROM sightings WHERE name = 'a'").Scan(&a))
		require.NoError(t, pool.QueryRow(ctx, "SELECT seen FROM sightings WHERE name = 'b'").Scan(&b))
		assert.Equal(t, "2020-01-01T10:00:00.500+00:00", a)
		assert.Equal(t, "2020-01-01", b)
	})

	t.Run("timestamp text is parsed by a timestamptz column", func(t *testing.T) {
		input := `{"type": "FeatureCollection", "features": [
			{"type": "Feature", "properties": {"name": "a", "seen": "2020-01-01T10:00:00.500+00:00"}, "geometry": {"type": "Point", "coordinates": [1, 2]}},
			{"type": "Feature", "properties": {"name": "b", "seen": "2020-01-01T12:00:00+02:00"}, "geometry": {"type": "Point", "coordinates": [3, 4]}}
		]}`
		pool := load(t,
			`CREATE TABLE sightings (name text, seen timestamptz, geom geometry)`,
			`INSERT INTO sightings VALUES ('old', now(), NULL)`,
			"sightings", input)

		var a, b time.Time
		require.NoError(t, pool.QueryRow(ctx, "SELECT seen FROM sightings WHERE name = 'a'").Scan(&a))
		require.NoError(t, pool.QueryRow(ctx, "SELECT seen FROM sightings WHERE name = 'b'").Scan(&b))
		assert.True(t, a.Equal(time.Date(2020, 1, 1, 10, 0, 0, 500_000_000, time.UTC)))
		assert.True(t, b.Equal(time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC)))
	})
}
