// Package source reads geospatial input files into geoload.Dataset values.
//
// Three container formats are supported, chosen by file extension or by an
// explicit format override:
//
//	.zip                        zipped ESRI Shapefile (.shp/.dbf/.prj/.cpg)
//	.geojson[.gz|.zst|.xz]      GeoJSON, optionally compressed
//	.gpkg                       OGC GeoPackage
//
// Every reader feeds the same normalization: attribute keys are unioned,
// absent values become nil, column types are inferred, and all geometries
// must share one type (X and MultiX are promoted to MultiX). A dataset
// without a coordinate reference system is rejected unless the caller
// supplies one.
//
// Reading never touches the target database.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vvka-141/geoload/internal/logging"
	"github.com/vvka-141/geoload/pkg/geoload"
)

// Loader implements geoload.DatasetLoader.
type Loader struct {
	logger geoload.Logger
}

// New creates a Loader. A nil logger discards diagnostics.
func New(logger geoload.Logger) *Loader {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Loader{logger: logger}
}

// Detect maps a file name to its format by extension (case-insensitive).
func Detect(path string) (geoload.Format, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return geoload.FormatShapefile, nil
	case strings.HasSuffix(trimCompression(lower), ".geojson"):
		return geoload.FormatGeoJSON, nil
	case strings.HasSuffix(lower, ".gpkg"):
		return geoload.FormatGeoPackage, nil
	}

	ext := filepath.Ext(path)
	if ext == "" {
		ext = "(no extension)"
	}
	return geoload.FormatUnknown, &geoload.UnsupportedFormatError{Path: path, Format: ext}
}

// Load reads the file at path into a Dataset.
func (l *Loader) Load(ctx context.Context, path string, opts geoload.ReadOptions) (*geoload.Dataset, error) {
	format := opts.Format
	if format == geoload.FormatUnknown {
		detected, err := Detect(path)
		if err != nil {
			return nil, err
		}
		format = detected
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &geoload.MalformedInputError{Path: path, Reason: "cannot read file", Err: err}
	}
	if info.IsDir() {
		return nil, &geoload.MalformedInputError{Path: path, Reason: "is a directory"}
	}

	checksum, err := fileChecksum(path)
	if err != nil {
		return nil, &geoload.MalformedInputError{Path: path, Reason: "cannot read file", Err: err}
	}

	l.logger.Verbose("Reading %s as %s (%d bytes, sha256 %s)", path, format, info.Size(), checksum)

	var b *builder
	switch format {
	case geoload.FormatShapefile:
		b, err = readShapefile(path, opts.Layer)
	case geoload.FormatGeoJSON:
		b, err = readGeoJSON(path)
	case geoload.FormatGeoPackage:
		b, err = readGeoPackage(ctx, path, opts.Layer)
	default:
		return nil, &geoload.UnsupportedFormatError{Path: path, Format: format.String()}
	}
	if err != nil {
		return nil, err
	}

	if opts.SourceSRID > 0 && b.srid > 0 && b.srid != opts.SourceSRID {
		l.logger.Verbose("Overriding declared SRID %d with %d", b.srid, opts.SourceSRID)
	}

	ds, err := b.build(opts.SourceSRID)
	if err != nil {
		return nil, err
	}
	ds.Checksum = checksum

	l.logger.Verbose("Read %d features, %d columns, geometry %s, SRID %d",
		len(ds.Records), len(ds.Columns), describeGeometryType(ds.GeometryType), ds.SRID)
	return ds, nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied input path
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func describeGeometryType(t string) string {
	if t == "" {
		return "(all null)"
	}
	return t
}

// Verify Loader implements the DatasetLoader interface at compile time
var _ geoload.DatasetLoader = (*Loader)(nil)
