package geoload

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// Format identifies the container format of an input file.
type Format int

const (
	FormatUnknown Format = iota
	FormatShapefile
	FormatGeoJSON
	FormatGeoPackage
)

// String returns the name used by --format.
func (f Format) String() string {
	switch f {
	case FormatShapefile:
		return "shapefile"
	case FormatGeoJSON:
		return "geojson"
	case FormatGeoPackage:
		return "gpkg"
	default:
		return "unknown"
	}
}

// ParseFormat parses a --format value. Aliases "shp" and "geopackage" are accepted.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shapefile", "shp", "zip":
		return FormatShapefile, true
	case "geojson":
		return FormatGeoJSON, true
	case "gpkg", "geopackage":
		return FormatGeoPackage, true
	default:
		return FormatUnknown, false
	}
}

// ColumnType is the attribute type inferred by the loader.
type ColumnType int

const (
	ColumnTypeUnknown ColumnType = iota // every value is null
	ColumnTypeInteger
	ColumnTypeFloat
	ColumnTypeBoolean
	ColumnTypeText
	ColumnTypeDate
	ColumnTypeTimestamp
	ColumnTypeJSON
	ColumnTypeBinary
)

func (t ColumnType) String() string {
	switch t {
	case ColumnTypeUnknown:
		return "unknown"
	case ColumnTypeInteger:
		return "integer"
	case ColumnTypeFloat:
		return "float"
	case ColumnTypeBoolean:
		return "boolean"
	case ColumnTypeText:
		return "text"
	case ColumnTypeDate:
		return "date"
	case ColumnTypeTimestamp:
		return "timestamp"
	case ColumnTypeJSON:
		return "json"
	case ColumnTypeBinary:
		return "binary"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// Column is one attribute column of a Dataset.
type Column struct {
	Name string
	Type ColumnType
}

// Record is one feature: attribute values keyed by column name plus its geometry.
// Values hold nil, int64, float64, bool, string, time.Time, []byte,
// or a decoded JSON value for ColumnTypeJSON. Geometry is nil for null geometries.
type Record struct {
	Values   map[string]any
	Geometry orb.Geometry
}

// Dataset is the uniform in-memory form of an input file.
// Every record carries exactly the keys listed in Columns.
type Dataset struct {
	// Source is the path the dataset was read from.
	Source string

	// Format is the reader that produced the dataset.
	Format Format

	// Layer names the shapefile or GeoPackage table that was read ("" for GeoJSON).
	Layer string

	Columns []Column
	Records []Record

	// GeometryType is the OGC type name shared by all non-null geometries
	// ("Point", "MultiPolygon", ...), or "" when every geometry is null.
	GeometryType string

	// SRID is the EPSG code of the source coordinate reference system.
	SRID int

	// Checksum is the hex SHA-256 of the input file.
	Checksum string
}

// ColumnNames returns the column names in dataset order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column.
func (d *Dataset) Column(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// TableRef identifies a schema-qualified table.
type TableRef struct {
	Schema string
	Name   string
}

// ParseTableRef parses "table" or "schema.table".
// defaultSchema is used when no qualifier is given.
func ParseTableRef(s, defaultSchema string) (TableRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TableRef{}, fmt.Errorf("table name is required: %w", ErrInvalidConfig)
	}
	if defaultSchema == "" {
		defaultSchema = DefaultSchema
	}

	parts := strings.Split(s, ".")
	switch len(parts) {
	case 1:
		return TableRef{Schema: defaultSchema, Name: parts[0]}, nil
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return TableRef{}, fmt.Errorf("invalid table name %q: %w", s, ErrInvalidConfig)
		}
		return TableRef{Schema: parts[0], Name: parts[1]}, nil
	default:
		return TableRef{}, fmt.Errorf("invalid table name %q (expected table or schema.table): %w", s, ErrInvalidConfig)
	}
}

func (t TableRef) String() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// GeometrySpec is the typmod of a PostGIS geometry column.
// Type is upper case ("POINT", "MULTIPOLYGON"); "GEOMETRY" or "" means unconstrained.
// SRID 0 means unconstrained.
type GeometrySpec struct {
	Type string
	SRID int
	HasZ bool
	HasM bool
}

// TableColumn is one column of the target table as reported by the catalog.
type TableColumn struct {
	Name string

	// DeclaredType is format_type() output, e.g. "character varying(50)".
	DeclaredType string

	// TypeName is pg_type.typname, e.g. "varchar", "int4", "geometry".
	TypeName string

	// Category is pg_type.typcategory: 'N' numeric, 'S' string, 'B' boolean,
	// 'D' date/time, 'E' enum, 'U' user-defined, ...
	Category string

	NotNull    bool
	HasDefault bool

	// Geometry is set for geometry-typed columns.
	Geometry *GeometrySpec
}

// Required reports whether an INSERT must supply a value for the column.
func (c TableColumn) Required() bool {
	return c.NotNull && !c.HasDefault
}

// TableSchema is the target table's column set, fetched fresh for every run.
type TableSchema struct {
	Table   TableRef
	Columns []TableColumn
}

// Column returns the named column.
func (s *TableSchema) Column(name string) (TableColumn, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return TableColumn{}, false
}

// ColumnMapping pairs a dataset column with the declared type it is cast to.
type ColumnMapping struct {
	Column       string
	DeclaredType string
}

// LoadPlan is the validated mapping from a dataset onto the target table.
// It is produced by the schema validator and consumed by the writer.
type LoadPlan struct {
	Table          TableRef
	Columns        []ColumnMapping
	GeometryColumn string

	// SourceSRID is written into the EWKB; TargetSRID is the table's SRID (0 = unconstrained).
	SourceSRID int
	TargetSRID int

	// Transform applies ST_Transform(geom, TargetSRID).
	Transform bool

	// PromoteToMulti applies ST_Multi for a single-part dataset loaded into a MULTI* column.
	PromoteToMulti bool

	// GeneratedIDColumn is filled with 1..n when set.
	GeneratedIDColumn string

	Cascade     bool
	BatchSize   int
	LockTimeout time.Duration
}

// LoadResult summarizes a completed run.
type LoadResult struct {
	Table        TableRef
	RowsInserted int64
	Duration     time.Duration
	DryRun       bool
	Plan         *LoadPlan

	// RunID tags the session's application_name and the log lines of the run.
	RunID string
}

// ReadOptions controls how an input file is read.
type ReadOptions struct {
	// Format overrides extension-based detection when not FormatUnknown.
	Format Format

	// Layer selects a shapefile (base name) inside a zip or a GeoPackage table.
	Layer string

	// SourceSRID overrides the CRS declared by the file when non-zero.
	SourceSRID int
}

// JobConfig contains all parameters needed for one load run.
type JobConfig struct {
	// FilePath is the input dataset.
	FilePath string

	Read ReadOptions

	// Table is the target table.
	Table TableRef

	// GeometryColumn selects the target geometry column; empty means auto-detect.
	GeometryColumn string

	// GenerateIDs fills a missing NOT NULL "id" column with 1..n.
	GenerateIDs bool

	// Cascade adds CASCADE to TRUNCATE.
	Cascade bool

	BatchSize   int
	LockTimeout time.Duration

	// DryRun stops after schema validation.
	DryRun bool

	// Force skips the interactive confirmation.
	Force bool

	// Timeout is the global timeout for the run.
	Timeout time.Duration

	Verbose bool

	// Connection is the resolved database connection.
	Connection *ConnectionConfig
}

// Validate checks if the JobConfig has all required fields and valid values.
// It returns a multi-error if multiple validation failures occur.
func (c *JobConfig) Validate() error {
	var errs []error

	if c.FilePath == "" {
		errs = append(errs, fmt.Errorf("FilePath is required: %w", ErrInvalidConfig))
	}

	if c.Table.Name == "" {
		errs = append(errs, fmt.Errorf("Table is required: %w", ErrInvalidConfig))
	}

	if c.Connection == nil {
		errs = append(errs, fmt.Errorf("Connection is required: %w", ErrInvalidConfig))
	}

	if c.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("batch size cannot be negative: %w", ErrInvalidConfig))
	}

	if c.Read.SourceSRID < 0 {
		errs = append(errs, fmt.Errorf("source SRID cannot be negative: %w", ErrInvalidConfig))
	}

	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout cannot be negative: %w", ErrInvalidConfig))
	}

	if c.LockTimeout < 0 {
		errs = append(errs, fmt.Errorf("lock timeout cannot be negative: %w", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// ConnectionConfig represents parsed connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	// Additional connection parameters
	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string

	// Azure Entra ID authentication parameters (used when AuthMethod is AuthMethodAzureEntraID)
	// If all three are provided, Service Principal authentication is used.
	// If none are provided, DefaultAzureCredential chain is used (env vars, managed identity, CLI, etc.)
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string

	// AWSRegion is required for AuthMethodAWSIAM.
	AWSRegion string

	// GoogleInstance is the Cloud SQL instance connection name (project:region:instance).
	GoogleInstance string
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                         // AWS IAM Database Authentication
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the AuthMethod is a valid, defined value.
func (a AuthMethod) IsValid() bool {
	return a >= AuthMethodStandard && a <= AuthMethodAzureEntraID
}
