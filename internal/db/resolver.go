package db

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/vvka-141/geoload/internal/config"
	"github.com/vvka-141/geoload/pkg/geoload"
)

// GranularConnFlags represents connection parameters from CLI flags.
// These follow PostgreSQL standard flag conventions (-h, -p, -U, -d).
//
// Note: Password is NOT included as a CLI flag for security reasons.
// Use one of these methods instead:
//  1. $PGPASSWORD environment variable
//  2. .pgpass file (PostgreSQL standard)
//  3. Connection string with embedded password
type GranularConnFlags struct {
	Host     string
	Port     int
	Username string
	Database string
	SSLMode  string
}

// IsEmpty returns true if no connection-related granular flags were provided by the user.
// Note: Database flag is excluded from this check because it can be used to override
// the database specified in a connection string.
func (g *GranularConnFlags) IsEmpty() bool {
	return g.Host == "" && g.Port == 0 && g.Username == "" && g.SSLMode == ""
}

// AzureFlags represents Azure Entra ID CLI flags.
// These override the corresponding AZURE_* environment variables.
// Note: Client secret is NOT included as a CLI flag for security reasons.
// Use AZURE_CLIENT_SECRET environment variable instead.
type AzureFlags struct {
	Enabled  bool   // --azure
	TenantID string // Overrides AZURE_TENANT_ID
	ClientID string // Overrides AZURE_CLIENT_ID
}

// IsEmpty returns true if no Azure flags were provided.
func (a *AzureFlags) IsEmpty() bool {
	return a == nil || (!a.Enabled && a.TenantID == "" && a.ClientID == "")
}

// AWSFlags represents AWS RDS IAM CLI flags.
type AWSFlags struct {
	Enabled bool   // --aws
	Region  string // Overrides AWS_REGION
}

// GoogleFlags represents Google Cloud SQL IAM CLI flags.
type GoogleFlags struct {
	Enabled  bool   // --google
	Instance string // project:region:instance
}

// CertFlags carries client certificate paths passed through to libpq-style parameters.
type CertFlags struct {
	SSLCert     string
	SSLKey      string
	SSLRootCert string
}

// EnvVars represents PostgreSQL standard environment variables.
// See: https://www.postgresql.org/docs/current/libpq-envars.html
type EnvVars struct {
	PGHOST       string // PostgreSQL server host
	PGPORT       string // PostgreSQL server port
	PGUSER       string // PostgreSQL username
	PGPASSWORD   string // PostgreSQL password (discouraged, use .pgpass instead)
	PGDATABASE   string // Default database name
	PGSSLMODE    string // SSL mode
	DATABASE_URL string // Full connection string (Heroku/Rails convention)

	// GEOLOAD_CONNECTION_STRING takes precedence over DATABASE_URL.
	GEOLOAD_CONNECTION_STRING string

	// Azure Entra ID environment variables (Azure SDK standard names)
	AZURE_TENANT_ID     string // Azure AD tenant/directory ID
	AZURE_CLIENT_ID     string // Azure AD application/client ID
	AZURE_CLIENT_SECRET string // Azure AD client secret (for Service Principal auth)

	AWS_REGION string
}

// LoadFromEnvironment loads PostgreSQL and cloud provider environment variables.
// This follows standard PostgreSQL client behavior and Azure SDK conventions.
func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		PGHOST:                    os.Getenv("PGHOST"),
		PGPORT:                    os.Getenv("PGPORT"),
		PGUSER:                    os.Getenv("PGUSER"),
		PGPASSWORD:                os.Getenv("PGPASSWORD"),
		PGDATABASE:                os.Getenv("PGDATABASE"),
		PGSSLMODE:                 os.Getenv("PGSSLMODE"),
		DATABASE_URL:              os.Getenv("DATABASE_URL"),
		GEOLOAD_CONNECTION_STRING: os.Getenv("GEOLOAD_CONNECTION_STRING"),
		AZURE_TENANT_ID:           os.Getenv("AZURE_TENANT_ID"),
		AZURE_CLIENT_ID:           os.Getenv("AZURE_CLIENT_ID"),
		AZURE_CLIENT_SECRET:       os.Getenv("AZURE_CLIENT_SECRET"),
		AWS_REGION:                os.Getenv("AWS_REGION"),
	}
}

// HasAzureCredentials returns true if Azure Entra ID environment variables are set.
func (e *EnvVars) HasAzureCredentials() bool {
	return e.AZURE_TENANT_ID != "" || e.AZURE_CLIENT_ID != ""
}

// ResolveConnectionParams resolves connection parameters using PostgreSQL-standard precedence:
//
//  1. Connection string flag (--connection)
//  2. Granular flags (-h, -p, -U, -d), each falling back to its environment variable
//     and then to geoload.yaml
//  3. GEOLOAD_CONNECTION_STRING, then DATABASE_URL, when no granular flag is set
//  4. PG* environment variables, geoload.yaml, defaults (localhost:5432, prefer SSL)
//
// The -d flag overrides the database of any connection string.
//
// Cloud authentication is selected by --azure/--aws/--google (or auth_method in
// geoload.yaml); Azure is also selected implicitly by AZURE_* credentials.
// Selecting more than one provider is an error.
func ResolveConnectionParams(
	connStringFlag string,
	granularFlags *GranularConnFlags,
	azureFlags *AzureFlags,
	awsFlags *AWSFlags,
	googleFlags *GoogleFlags,
	certFlags *CertFlags,
	envVars *EnvVars,
	projectConfig *config.ProjectConfig,
) (*geoload.ConnectionConfig, error) {
	if granularFlags == nil {
		granularFlags = &GranularConnFlags{}
	}
	if azureFlags == nil {
		azureFlags = &AzureFlags{}
	}
	if awsFlags == nil {
		awsFlags = &AWSFlags{}
	}
	if googleFlags == nil {
		googleFlags = &GoogleFlags{}
	}
	if certFlags == nil {
		certFlags = &CertFlags{}
	}
	if envVars == nil {
		envVars = &EnvVars{}
	}

	var pc config.ConnectionConfig
	if projectConfig != nil {
		pc = projectConfig.Connection
	}

	// Check for conflicts: connection string XOR granular flags
	if connStringFlag != "" && !granularFlags.IsEmpty() {
		return nil, fmt.Errorf(
			"cannot specify both --connection and granular flags (-h, -p, -U)\n"+
				"Choose one approach:\n"+
				"  1. Connection string: --connection \"postgresql://user@localhost:5432/gis\"\n"+
				"  2. Granular flags: -h localhost -p 5432 -U myuser -d gis\n"+
				"  3. Environment variables: export PGHOST=localhost PGPORT=5432 PGUSER=myuser: %w",
			geoload.ErrInvalidConfig,
		)
	}

	connStr := connStringFlag
	if connStr == "" && granularFlags.IsEmpty() {
		connStr = envVars.GEOLOAD_CONNECTION_STRING
		if connStr == "" {
			connStr = envVars.DATABASE_URL
		}
	}

	var cfg *geoload.ConnectionConfig
	var err error
	if connStr != "" {
		cfg, err = resolveFromConnectionString(connStr, envVars)
	} else {
		cfg, err = resolveFromGranularParams(granularFlags, envVars, pc)
	}
	if err != nil {
		return nil, err
	}

	if granularFlags.Database != "" {
		cfg.Database = granularFlags.Database
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database name is required\n"+
			"Provide via:\n"+
			"  1. --database/-d flag: geoload run -d gis --table parcels --file parcels.zip\n"+
			"  2. Connection string: geoload run --connection \"postgresql://user@host/gis\" ...\n"+
			"  3. Environment variable: export PGDATABASE=gis: %w", geoload.ErrInvalidConfig)
	}
	if cfg.AppName == "" {
		cfg.AppName = geoload.ApplicationName
	}

	applyCertParams(cfg, certFlags, pc)

	if err := applyCloudAuth(cfg, azureFlags, awsFlags, googleFlags, envVars, pc); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyCertParams(cfg *geoload.ConnectionConfig, flags *CertFlags, pc config.ConnectionConfig) {
	set := func(key, flag, file string) {
		if flag == "" {
			flag = file
		}
		if flag != "" {
			if cfg.AdditionalParams == nil {
				cfg.AdditionalParams = make(map[string]string)
			}
			cfg.AdditionalParams[key] = flag
		}
	}
	set("sslcert", flags.SSLCert, pc.SSLCert)
	set("sslkey", flags.SSLKey, pc.SSLKey)
	set("sslrootcert", flags.SSLRootCert, pc.SSLRootCert)
}

func applyCloudAuth(cfg *geoload.ConnectionConfig, azure *AzureFlags, aws *AWSFlags, google *GoogleFlags, env *EnvVars, pc config.ConnectionConfig) error {
	method := strings.ToLower(pc.AuthMethod)

	var selected []string
	if azure.Enabled || method == "azure" {
		selected = append(selected, "--azure")
	}
	if aws.Enabled || method == "aws" {
		selected = append(selected, "--aws")
	}
	if google.Enabled || method == "google" {
		selected = append(selected, "--google")
	}
	if len(selected) > 1 {
		return fmt.Errorf("choose one cloud authentication method, got %s: %w",
			strings.Join(selected, ", "), geoload.ErrInvalidConfig)
	}

	switch {
	case aws.Enabled || method == "aws":
		cfg.AuthMethod = geoload.AuthMethodAWSIAM
		cfg.AWSRegion = firstNonEmpty(aws.Region, env.AWS_REGION, pc.AWSRegion)
	case google.Enabled || method == "google":
		cfg.AuthMethod = geoload.AuthMethodGoogleIAM
		cfg.GoogleInstance = firstNonEmpty(google.Instance, pc.GoogleInstance)
	default:
		fromFile := &AzureFlags{
			Enabled:  azure.Enabled || method == "azure",
			TenantID: firstNonEmpty(azure.TenantID, pc.AzureTenantID),
			ClientID: firstNonEmpty(azure.ClientID, pc.AzureClientID),
		}
		applyAzureAuth(cfg, fromFile, env)
	}
	return nil
}

// applyAzureAuth sets Azure Entra ID authentication on the config if credentials are available.
// CLI flags take precedence over environment variables.
func applyAzureAuth(config *geoload.ConnectionConfig, flags *AzureFlags, env *EnvVars) {
	tenantID := firstNonEmpty(flags.TenantID, env.AZURE_TENANT_ID)
	clientID := firstNonEmpty(flags.ClientID, env.AZURE_CLIENT_ID)

	// Client secret only comes from env var (no flag for security)
	clientSecret := env.AZURE_CLIENT_SECRET

	if flags.Enabled || tenantID != "" || clientID != "" {
		config.AuthMethod = geoload.AuthMethodAzureEntraID
		config.AzureTenantID = tenantID
		config.AzureClientID = clientID
		config.AzureClientSecret = clientSecret
	}
}

// resolveFromConnectionString parses a connection string and fills what it
// leaves out from the PG* environment variables, as libpq does.
func resolveFromConnectionString(connStr string, envVars *EnvVars) (*geoload.ConnectionConfig, error) {
	cfg, err := ParseConnectionString(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w: %w", err, geoload.ErrInvalidConfig)
	}
	if err := ApplyDefaults(cfg, envVars); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveFromGranularParams builds ConnectionConfig from granular flags and environment variables.
//
// Precedence for each parameter (following PostgreSQL standards):
// 1. CLI flag (highest priority)
// 2. Environment variable
// 3. geoload.yaml
// 4. Default value (lowest priority)
func resolveFromGranularParams(flags *GranularConnFlags, envVars *EnvVars, pc config.ConnectionConfig) (*geoload.ConnectionConfig, error) {
	cfg := &geoload.ConnectionConfig{
		AuthMethod:       geoload.AuthMethodStandard,
		AdditionalParams: make(map[string]string),
	}

	cfg.Host = firstNonEmpty(flags.Host, envVars.PGHOST, pc.Host, defaultHost)

	// Port: flag > PGPORT > geoload.yaml > default
	if flags.Port != 0 {
		cfg.Port = flags.Port
	} else if envVars.PGPORT != "" {
		port, err := strconv.Atoi(envVars.PGPORT)
		if err != nil {
			return nil, fmt.Errorf("invalid $PGPORT value '%s': must be an integer: %w", envVars.PGPORT, geoload.ErrInvalidConfig)
		}
		cfg.Port = port
	} else if pc.Port != 0 {
		cfg.Port = pc.Port
	} else {
		cfg.Port = defaultPort
	}

	// Username: flag > PGUSER > geoload.yaml > current OS user
	cfg.Username = firstNonEmpty(flags.Username, envVars.PGUSER, pc.Username, os.Getenv("USER"), os.Getenv("USERNAME"))

	cfg.Password = envVars.PGPASSWORD
	cfg.Database = firstNonEmpty(flags.Database, envVars.PGDATABASE, pc.Database)
	cfg.SSLMode = firstNonEmpty(flags.SSLMode, envVars.PGSSLMODE, pc.SSLMode, defaultSSLMode)

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
