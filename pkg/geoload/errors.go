package geoload

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error kinds using errors.Is().
// The typed errors below match their sentinel through an Is method, so
// both forms work:
//
//	var mismatch *geoload.SchemaMismatchError
//	if errors.As(err, &mismatch) {
//	    fmt.Println(mismatch.Unexpected)
//	}
//	if errors.Is(err, geoload.ErrSchemaMismatch) {
//	    // same failure, kind only
//	}
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrApprovalDenied indicates the operator declined the table replacement.
	ErrApprovalDenied = errors.New("approval denied")

	// ErrUnsupportedAuthMethod indicates the requested authentication method is not supported.
	ErrUnsupportedAuthMethod = errors.New("unsupported authentication method")

	// ErrUnsupportedFormat indicates the input file format is not recognized.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrMalformedInput indicates the input file is corrupt or cannot be interpreted.
	ErrMalformedInput = errors.New("malformed input")

	// ErrEmptyDataset indicates the input contains zero features.
	ErrEmptyDataset = errors.New("empty dataset")

	// ErrColumnNameCollision indicates two column names sanitize to the same identifier.
	ErrColumnNameCollision = errors.New("column name collision")

	// ErrTableNotFound indicates the target table does not exist.
	ErrTableNotFound = errors.New("table not found")

	// ErrSchemaMismatch indicates the dataset columns do not fit the table columns.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrTypeMismatch indicates a dataset column cannot be coerced to the table column type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInsertionFailed indicates the truncate+insert transaction failed and was rolled back.
	ErrInsertionFailed = errors.New("insertion failed")

	// ErrConnectionFailed indicates database connectivity was unavailable or lost.
	ErrConnectionFailed = errors.New("connection failed")
)

// UnsupportedFormatError is returned by the loader when the input's
// extension (or the --format override) names no known reader.
type UnsupportedFormatError struct {
	Path   string
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q for %s (use .zip, .geojson or .gpkg)", e.Format, e.Path)
}

func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

// MalformedInputError is returned when an input file cannot be decoded.
type MalformedInputError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed input %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed input %s: %s", e.Path, e.Reason)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

func (e *MalformedInputError) Is(target error) bool { return target == ErrMalformedInput }

// EmptyDatasetError is returned when the input has no features.
type EmptyDatasetError struct {
	Path string
}

func (e *EmptyDatasetError) Error() string {
	return fmt.Sprintf("empty dataset: %s contains no features", e.Path)
}

func (e *EmptyDatasetError) Is(target error) bool { return target == ErrEmptyDataset }

// ColumnNameCollisionError names both original columns that sanitize to Sanitized.
type ColumnNameCollisionError struct {
	Sanitized string
	First     string
	Second    string
}

func (e *ColumnNameCollisionError) Error() string {
	return fmt.Sprintf("column name collision: %q and %q both sanitize to %q", e.First, e.Second, e.Sanitized)
}

func (e *ColumnNameCollisionError) Is(target error) bool { return target == ErrColumnNameCollision }

// TableNotFoundError is returned when the target table does not exist.
type TableNotFoundError struct {
	Table TableRef
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table not found: %s", e.Table)
}

func (e *TableNotFoundError) Is(target error) bool { return target == ErrTableNotFound }

// SchemaMismatchError reports dataset columns absent from the table,
// required table columns absent from the dataset, or a structural problem
// with the table's geometry column (Reason).
type SchemaMismatchError struct {
	Table           TableRef
	Unexpected      []string
	MissingRequired []string
	Reason          string
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.Unexpected) > 0 {
		parts = append(parts, fmt.Sprintf("columns not in table: %s", strings.Join(e.Unexpected, ", ")))
	}
	if len(e.MissingRequired) > 0 {
		parts = append(parts, fmt.Sprintf("required columns missing from dataset: %s", strings.Join(e.MissingRequired, ", ")))
	}
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	return fmt.Sprintf("schema mismatch for table %s: %s", e.Table, strings.Join(parts, "; "))
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }

// TypeMismatchError names a column whose dataset type cannot be coerced to the table type.
type TypeMismatchError struct {
	Column      string
	DatasetType string
	TableType   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch for column %q: dataset type %s is not coercible to %s", e.Column, e.DatasetType, e.TableType)
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

// InsertionError wraps the database error that aborted the truncate+insert
// transaction. The transaction has already been rolled back.
type InsertionError struct {
	Table TableRef
	Err   error
}

func (e *InsertionError) Error() string {
	return fmt.Sprintf("insertion into %s failed (rolled back): %v", e.Table, e.Err)
}

func (e *InsertionError) Unwrap() error { return e.Err }

func (e *InsertionError) Is(target error) bool { return target == ErrInsertionFailed }

// ConnectionError wraps unavailable or lost database connectivity.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnectionFailed }

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrUnsupportedAuthMethod):
		return ExitConfigError
	case errors.Is(err, ErrApprovalDenied):
		return ExitApprovalDenied
	case errors.Is(err, ErrUnsupportedFormat):
		return ExitUnsupportedFormat
	case errors.Is(err, ErrMalformedInput):
		return ExitMalformedInput
	case errors.Is(err, ErrEmptyDataset):
		return ExitEmptyDataset
	case errors.Is(err, ErrColumnNameCollision):
		return ExitColumnCollision
	case errors.Is(err, ErrTableNotFound):
		return ExitTableNotFound
	case errors.Is(err, ErrSchemaMismatch):
		return ExitSchemaMismatch
	case errors.Is(err, ErrTypeMismatch):
		return ExitTypeMismatch
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrInsertionFailed):
		return ExitInsertionFailed
	}

	errStr := err.Error()
	if isUsageError(errStr) {
		return ExitUsageError
	}

	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}

// isUsageError recognizes the error strings cobra produces for bad invocations.
func isUsageError(errStr string) bool {
	usagePatterns := []string{
		"unknown flag",
		"unknown shorthand flag",
		"unknown command",
		"accepts ",
		"required flag",
		"invalid argument",
		"flag needs an argument",
	}
	for _, p := range usagePatterns {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}
