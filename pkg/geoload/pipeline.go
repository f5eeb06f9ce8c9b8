package geoload

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// DB is the subset of *pgxpool.Pool used by the validator and the writer.
// Tests substitute a pool from a test database or a fake.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// DatasetLoader reads an input file into a Dataset.
type DatasetLoader interface {
	// Load detects the format of path (unless opts.Format is set) and reads it.
	// Fails with UnsupportedFormatError, MalformedInputError or EmptyDatasetError.
	Load(ctx context.Context, path string, opts ReadOptions) (*Dataset, error)
}

// Sanitizer rewrites dataset column names into safe identifiers.
type Sanitizer interface {
	// Sanitize returns a copy of ds with normalized column names.
	// Fails with ColumnNameCollisionError.
	Sanitize(ds *Dataset) (*Dataset, error)
}

// ValidateOptions carries the user choices that influence the load plan.
type ValidateOptions struct {
	GeometryColumn string
	GenerateIDs    bool
	Cascade        bool
	BatchSize      int
}

// SchemaValidator checks a sanitized dataset against the target table.
type SchemaValidator interface {
	// Validate reads the table schema and returns the load plan.
	// Fails with TableNotFoundError, SchemaMismatchError or TypeMismatchError.
	Validate(ctx context.Context, db DB, ds *Dataset, table TableRef, opts ValidateOptions) (*LoadPlan, error)
}

// TableWriter replaces the contents of the target table.
type TableWriter interface {
	// Replace truncates the table and inserts every record in one transaction.
	// On failure the transaction is rolled back before InsertionError is returned.
	Replace(ctx context.Context, db DB, plan *LoadPlan, ds *Dataset) (int64, error)
}
