package geoload

import "context"

// Approver handles operator confirmation before the target table is truncated.
//
// Implementations:
//   - AutoApprover: approves without prompting (--force, CI, piped stdin)
//   - InteractiveApprover: prompts the operator to type the table name
type Approver interface {
	// RequestApproval asks whether every row of table may be replaced by
	// featureCount new rows. Returns false when the operator declines.
	RequestApproval(ctx context.Context, table TableRef, featureCount int) (bool, error)
}
