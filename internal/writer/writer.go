// Package writer replaces the contents of a PostGIS table with a dataset.
//
// The replacement runs in a single transaction: TRUNCATE followed by batched
// INSERTs, committed only when every record is written. On any failure the
// transaction is rolled back and the table keeps its previous rows.
package writer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/geoload/internal/db"
	"github.com/vvka-141/geoload/internal/logging"
	"github.com/vvka-141/geoload/pkg/geoload"
)

// Writer implements geoload.TableWriter.
type Writer struct {
	logger geoload.Logger
}

// New creates a Writer. A nil logger discards diagnostics.
func New(logger geoload.Logger) *Writer {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Writer{logger: logger}
}

// Replace truncates plan.Table and inserts every record of ds, returning the
// number of rows inserted. Failures are returned as InsertionError, or as
// ConnectionError when connectivity was lost; in both cases nothing changed.
func (w *Writer) Replace(ctx context.Context, conn geoload.DB, plan *geoload.LoadPlan, ds *geoload.Dataset) (int64, error) {
	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, w.failure(plan, fmt.Errorf("failed to begin transaction: %w", err))
	}

	inserted, err := w.replace(ctx, tx, plan, ds)
	if err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			w.logger.Error("Rollback of %s failed: %v", plan.Table, rbErr)
		}
		return 0, w.failure(plan, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, w.failure(plan, fmt.Errorf("failed to commit: %w", err))
	}
	return inserted, nil
}

func (w *Writer) replace(ctx context.Context, tx pgx.Tx, plan *geoload.LoadPlan, ds *geoload.Dataset) (int64, error) {
	if plan.LockTimeout > 0 {
		timeout := fmt.Sprintf("%dms", plan.LockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", timeout); err != nil {
			return 0, fmt.Errorf("failed to set lock_timeout: %w", err)
		}
	}

	truncate := truncateSQL(plan)
	w.logger.Verbose("%s", truncate)
	if _, err := tx.Exec(ctx, truncate); err != nil {
		return 0, fmt.Errorf("failed to truncate: %w", err)
	}

	insert := insertSQL(plan)
	w.logger.Verbose("%s", insert)

	types := make(map[string]geoload.ColumnType, len(ds.Columns))
	for _, c := range ds.Columns {
		types[c.Name] = c.Type
	}

	batchSize := plan.BatchSize
	if batchSize <= 0 {
		batchSize = geoload.DefaultBatchSize
	}

	var inserted int64
	for start := 0; start < len(ds.Records); start += batchSize {
		end := min(start+batchSize, len(ds.Records))

		n, err := insertBatch(ctx, tx, insert, plan, types, ds.Records, start, end)
		inserted += n
		if err != nil {
			return inserted, err
		}
		w.logger.Verbose("Inserted %d/%d features", inserted, len(ds.Records))
	}
	return inserted, nil
}

func insertBatch(ctx context.Context, tx pgx.Tx, insert string, plan *geoload.LoadPlan, types map[string]geoload.ColumnType, records []geoload.Record, start, end int) (int64, error) {
	batch := &pgx.Batch{}
	for i := start; i < end; i++ {
		args, err := recordArgs(plan, types, records[i], i)
		if err != nil {
			return 0, fmt.Errorf("feature %d: %w", i+1, err)
		}
		batch.Queue(insert, args...)
	}

	results := tx.SendBatch(ctx, batch)

	var inserted int64
	for i := start; i < end; i++ {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return inserted, fmt.Errorf("feature %d: %w", i+1, err)
		}
		inserted += tag.RowsAffected()
	}

	if err := results.Close(); err != nil {
		return inserted, fmt.Errorf("failed to complete batch insert: %w", err)
	}
	return inserted, nil
}

func (w *Writer) failure(plan *geoload.LoadPlan, err error) error {
	if db.IsConnectionError(err) {
		return &geoload.ConnectionError{Err: err}
	}
	return &geoload.InsertionError{Table: plan.Table, Err: err}
}

var _ geoload.TableWriter = (*Writer)(nil)
