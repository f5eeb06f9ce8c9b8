package geoload

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess           = 0  // Table replaced (or dry run validated) successfully
	ExitGeneralError      = 1  // Unknown or unclassified error
	ExitUsageError        = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic             = 3  // Internal panic (unexpected crash)
	ExitConfigError       = 10 // Invalid configuration or parameters
	ExitConnectionError   = 11 // Failed to connect to database
	ExitApprovalDenied    = 12 // Operator declined the table replacement
	ExitUnsupportedFormat = 20 // Input extension or --format not recognized
	ExitMalformedInput    = 21 // Input file corrupt or missing a CRS
	ExitEmptyDataset      = 22 // Input has zero features
	ExitColumnCollision   = 23 // Two columns sanitize to the same name
	ExitTableNotFound     = 30 // Target table does not exist
	ExitSchemaMismatch    = 31 // Dataset columns do not fit the table
	ExitTypeMismatch      = 32 // Column types are not coercible
	ExitInsertionFailed   = 40 // Truncate+insert transaction rolled back
)

const (
	// DefaultSchema is the schema used when --table carries no schema qualifier.
	DefaultSchema = "public"

	// DefaultGeometryColumn is preferred when the table has several geometry columns.
	DefaultGeometryColumn = "geom"

	// DefaultBatchSize is the number of INSERT statements sent per round-trip.
	DefaultBatchSize = 1000

	// DefaultTimeout bounds the whole run as protection against hangs.
	DefaultTimeout = 10 * time.Minute

	// DefaultSRID is the CRS assumed for GeoJSON without a crs member (RFC 7946).
	DefaultSRID = 4326

	// MaxIdentifierLength is PostgreSQL's NAMEDATALEN-1.
	MaxIdentifierLength = 63

	// DefaultForceApprovalCountdown is the grace period --force gives an
	// interactive operator to press Ctrl+C before the table is truncated.
	DefaultForceApprovalCountdown = 3 * time.Second

	// ApplicationName identifies geoload sessions in pg_stat_activity.
	ApplicationName = "geoload"
)
