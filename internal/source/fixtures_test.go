package source

import (
	"archive/zip"
	"bytes"
	"database/sql"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

const (
	prjWGS84 = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

	prjETRS89UTM32 = `PROJCS["ETRS89 / UTM zone 32N",GEOGCS["ETRS89",DATUM["European_Terrestrial_Reference_System_1989",SPHEROID["GRS 1980",6378137,298.257222101,AUTHORITY["EPSG","7019"]],AUTHORITY["EPSG","6258"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4258"]],PROJECTION["Transverse_Mercator"],PARAMETER["latitude_of_origin",0],PARAMETER["central_meridian",9],PARAMETER["scale_factor",0.9996],PARAMETER["false_easting",500000],PARAMETER["false_northing",0],UNIT["metre",1,AUTHORITY["EPSG","9001"]],AXIS["Easting",EAST],AXIS["Northing",NORTH],AUTHORITY["EPSG","25832"]]`

	prjUTM33N = `PROJCS["WGS_1984_UTM_Zone_33N",GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],PARAMETER["False_Easting",500000.0],PARAMETER["Central_Meridian",15.0],UNIT["Meter",1.0]]`
)

// writeFile writes content to name inside a fresh temp dir and returns the path.
func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func compress(t *testing.T, kind compression, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch kind {
	case compressionGZ:
		w := gzip.NewWriter(&buf)
		_, err := w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case compressionZSTD:
		w, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case compressionXZ:
		w, err := xz.NewWriter(&buf)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	default:
		return data
	}
	return buf.Bytes()
}

// shapefileLayer describes one shapefile to put into a test archive.
type shapefileLayer struct {
	name      string
	shapeType shp.ShapeType
	fields    []shp.Field
	shapes    []shp.Shape
	rows      [][]interface{}
	prj       string
	cpg       string
}

// makeShapefileZip writes each layer with go-shp and zips the resulting
// .shp/.shx/.dbf files together with the .prj and .cpg sidecars.
func makeShapefileZip(t *testing.T, layers ...shapefileLayer) string {
	t.Helper()
	dir := t.TempDir()

	var members []string
	for _, l := range layers {
		w, err := shp.Create(filepath.Join(dir, l.name+".shp"), l.shapeType)
		require.NoError(t, err)
		if len(l.fields) > 0 {
			require.NoError(t, w.SetFields(l.fields))
		}
		for i, s := range l.shapes {
			n := w.Write(s)
			if i < len(l.rows) {
				for j, v := range l.rows[i] {
					require.NoError(t, w.WriteAttribute(int(n), j, v))
				}
			}
		}
		w.Close()

		// go-shp names the attribute file "<name>dbf" without the dot.
		undotted := filepath.Join(dir, l.name+"dbf")
		if _, err := os.Stat(undotted); err == nil {
			require.NoError(t, os.Rename(undotted, filepath.Join(dir, l.name+".dbf")))
		}

		members = append(members, l.name+".shp", l.name+".shx", l.name+".dbf")
		if l.prj != "" {
			require.NoError(t, os.WriteFile(filepath.Join(dir, l.name+".prj"), []byte(l.prj), 0o644))
			members = append(members, l.name+".prj")
		}
		if l.cpg != "" {
			require.NoError(t, os.WriteFile(filepath.Join(dir, l.name+".cpg"), []byte(l.cpg), 0o644))
			members = append(members, l.name+".cpg")
		}
	}

	zipPath := filepath.Join(t.TempDir(), "layers.zip")
	out, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for _, m := range members {
		f, err := os.Open(filepath.Join(dir, m))
		require.NoError(t, err)
		w, err := zw.Create(m)
		require.NoError(t, err)
		_, err = io.Copy(w, f)
		require.NoError(t, err)
		f.Close()
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
	return zipPath
}

func polygonShape(rings ...[]shp.Point) *shp.Polygon {
	p := shp.Polygon(*shp.NewPolyLine(rings))
	return &p
}

// gpkgBlob encodes g as a GeoPackage geometry blob: little-endian header
// without envelope, followed by WKB.
func gpkgBlob(t *testing.T, srsID uint32, g orb.Geometry) []byte {
	t.Helper()
	header := []byte{'G', 'P', 0, 0x01, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(header[4:], srsID)
	body, err := wkb.Marshal(g, binary.LittleEndian)
	require.NoError(t, err)
	return append(header, body...)
}

func gpkgEmptyBlob(srsID uint32) []byte {
	header := []byte{'G', 'P', 0, 0x11, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(header[4:], srsID)
	return header
}

var gpkgCoreSchema = []string{
	`CREATE TABLE gpkg_spatial_ref_sys (
		srs_name TEXT NOT NULL,
		srs_id INTEGER PRIMARY KEY,
		organization TEXT NOT NULL,
		organization_coordsys_id INTEGER NOT NULL,
		definition TEXT NOT NULL,
		description TEXT
	)`,
	`CREATE TABLE gpkg_contents (
		table_name TEXT NOT NULL PRIMARY KEY,
		data_type TEXT NOT NULL,
		identifier TEXT UNIQUE,
		description TEXT DEFAULT '',
		min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
		srs_id INTEGER
	)`,
	`CREATE TABLE gpkg_geometry_columns (
		table_name TEXT NOT NULL,
		column_name TEXT NOT NULL,
		geometry_type_name TEXT NOT NULL,
		srs_id INTEGER NOT NULL,
		z TINYINT NOT NULL,
		m TINYINT NOT NULL
	)`,
	`INSERT INTO gpkg_spatial_ref_sys VALUES
		('Undefined cartesian SRS', -1, 'NONE', -1, 'undefined', NULL),
		('Undefined geographic SRS', 0, 'NONE', 0, 'undefined', NULL),
		('WGS 84', 4326, 'EPSG', 4326, 'GEOGCS["WGS 84"]', NULL),
		('ETRS89 / UTM 32N', 100, 'epsg', 25832, 'PROJCS["ETRS89 / UTM zone 32N"]', NULL)`,
}

// makeGeoPackage creates a GeoPackage and runs the given statements after the core tables.
func makeGeoPackage(t *testing.T, statements ...string) (string, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.gpkg")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range append(append([]string{}, gpkgCoreSchema...), statements...) {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return path, db
}
