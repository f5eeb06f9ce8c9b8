package schema

import (
	"context"
	"fmt"

	"github.com/vvka-141/geoload/internal/db"
	"github.com/vvka-141/geoload/internal/logging"
	"github.com/vvka-141/geoload/pkg/geoload"
)

// Validator implements geoload.SchemaValidator against the live catalog.
type Validator struct {
	logger geoload.Logger
}

// New creates a Validator. A nil logger discards diagnostics.
func New(logger geoload.Logger) *Validator {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Validator{logger: logger}
}

// Validate fetches the table schema and compares ds against it.
// When the plan reprojects, both SRIDs must be known to spatial_ref_sys.
func (v *Validator) Validate(ctx context.Context, conn geoload.DB, ds *geoload.Dataset, table geoload.TableRef, opts geoload.ValidateOptions) (*geoload.LoadPlan, error) {
	schema, err := Fetch(ctx, conn, table)
	if err != nil {
		return nil, err
	}
	v.logger.Verbose("Table %s has %d columns", table, len(schema.Columns))

	plan, err := Compare(ds, schema, opts)
	if err != nil {
		return nil, err
	}

	if plan.Transform {
		if err := checkSRIDs(ctx, conn, plan); err != nil {
			return nil, err
		}
		v.logger.Verbose("Geometries will be transformed from SRID %d to %d", plan.SourceSRID, plan.TargetSRID)
	}
	if plan.PromoteToMulti {
		v.logger.Verbose("%s geometries will be promoted to Multi%s", ds.GeometryType, ds.GeometryType)
	}
	if plan.GeneratedIDColumn != "" {
		v.logger.Verbose("Column %q will be filled with 1..%d", plan.GeneratedIDColumn, len(ds.Records))
	}

	return plan, nil
}

func checkSRIDs(ctx context.Context, conn geoload.DB, plan *geoload.LoadPlan) error {
	rows, err := conn.Query(ctx,
		"SELECT srid FROM spatial_ref_sys WHERE srid = ANY($1)",
		[]int32{int32(plan.SourceSRID), int32(plan.TargetSRID)})
	if err != nil {
		return db.WrapConnectionError(fmt.Errorf("failed to look up spatial_ref_sys: %w", err))
	}
	defer rows.Close()

	known := map[int]bool{}
	for rows.Next() {
		var srid int32
		if err := rows.Scan(&srid); err != nil {
			return db.WrapConnectionError(fmt.Errorf("failed to scan spatial_ref_sys: %w", err))
		}
		known[int(srid)] = true
	}
	if err := rows.Err(); err != nil {
		return db.WrapConnectionError(fmt.Errorf("failed to look up spatial_ref_sys: %w", err))
	}

	for _, srid := range []int{plan.SourceSRID, plan.TargetSRID} {
		if !known[srid] {
			return &geoload.TypeMismatchError{
				Column:      plan.GeometryColumn,
				DatasetType: fmt.Sprintf("SRID %d", plan.SourceSRID),
				TableType:   fmt.Sprintf("SRID %d (SRID %d is not in spatial_ref_sys)", plan.TargetSRID, srid),
			}
		}
	}
	return nil
}

var _ geoload.SchemaValidator = (*Validator)(nil)
