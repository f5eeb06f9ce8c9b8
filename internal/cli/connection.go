package cli

import (
	"github.com/spf13/cobra"

	"github.com/vvka-141/geoload/internal/config"
	"github.com/vvka-141/geoload/internal/db"
	"github.com/vvka-141/geoload/pkg/geoload"
)

// connectionFlags holds the common connection-related flag values.
type connectionFlags struct {
	connection     string
	host           string
	port           int
	username       string
	database       string
	sslMode        string
	azure          bool
	azureTenantID  string
	azureClientID  string
	aws            bool
	awsRegion      string
	google         bool
	googleInstance string
	sslCert        string
	sslKey         string
	sslRootCert    string
}

// registerConnectionFlags binds the connection flags to cmd.
// Precedence for each value: flag > environment variable > geoload.yaml > default.
func registerConnectionFlags(cmd *cobra.Command, f *connectionFlags) {
	flags := cmd.Flags()

	flags.StringVar(&f.connection, "connection", "",
		"PostgreSQL connection string (URI or ADO.NET format).\n"+
			"Mutually exclusive with granular flags (--host, --port, --username).\n"+
			"Alternative: GEOLOAD_CONNECTION_STRING or DATABASE_URL environment variable.\n"+
			"Example: postgresql://user@localhost:5432/gis")
	flags.StringVarP(&f.host, "host", "h", "",
		"PostgreSQL server host\n"+
			"Precedence: --host > $PGHOST > geoload.yaml > localhost")
	flags.IntVarP(&f.port, "port", "p", 0,
		"PostgreSQL server port\n"+
			"Precedence: --port > $PGPORT > geoload.yaml > 5432")
	flags.StringVarP(&f.username, "username", "U", "",
		"PostgreSQL user (default: $PGUSER or current OS user)")
	flags.StringVarP(&f.database, "database", "d", "",
		"Database holding the target table (overrides the connection string database)")
	flags.StringVar(&f.sslMode, "sslmode", "",
		"SSL mode: disable|allow|prefer|require|verify-ca|verify-full\n"+
			"(default: prefer, or $PGSSLMODE)")
	flags.StringVar(&f.sslCert, "sslcert", "", "Client certificate file")
	flags.StringVar(&f.sslKey, "sslkey", "", "Client private key file")
	flags.StringVar(&f.sslRootCert, "sslrootcert", "", "Root CA certificate file")

	flags.BoolVar(&f.azure, "azure", false,
		"Enable Azure Entra ID authentication\n"+
			"Uses DefaultAzureCredential chain (Managed Identity, Azure CLI, etc.)")
	flags.StringVar(&f.azureTenantID, "azure-tenant-id", "",
		"Azure AD tenant/directory ID (overrides $AZURE_TENANT_ID)")
	flags.StringVar(&f.azureClientID, "azure-client-id", "",
		"Azure AD application/client ID (overrides $AZURE_CLIENT_ID)")
	flags.BoolVar(&f.aws, "aws", false, "Enable AWS RDS IAM authentication")
	flags.StringVar(&f.awsRegion, "aws-region", "", "AWS region of the RDS instance (overrides $AWS_REGION)")
	flags.BoolVar(&f.google, "google", false, "Enable Google Cloud SQL IAM authentication")
	flags.StringVar(&f.googleInstance, "google-instance", "",
		"Cloud SQL instance connection name (project:region:instance)")

	_ = cmd.RegisterFlagCompletionFunc("sslmode", completeSSLModes)
}

// resolveConnectionFromFlags resolves connection configuration from flags,
// environment and project config.
func resolveConnectionFromFlags(flags connectionFlags, projectCfg *config.ProjectConfig, logger geoload.Logger) (*geoload.ConnectionConfig, error) {
	connConfig, err := db.ResolveConnectionParams(
		flags.connection,
		&db.GranularConnFlags{
			Host:     flags.host,
			Port:     flags.port,
			Username: flags.username,
			Database: flags.database,
			SSLMode:  flags.sslMode,
		},
		&db.AzureFlags{
			Enabled:  flags.azure,
			TenantID: flags.azureTenantID,
			ClientID: flags.azureClientID,
		},
		&db.AWSFlags{
			Enabled: flags.aws,
			Region:  flags.awsRegion,
		},
		&db.GoogleFlags{
			Enabled:  flags.google,
			Instance: flags.googleInstance,
		},
		&db.CertFlags{
			SSLCert:     flags.sslCert,
			SSLKey:      flags.sslKey,
			SSLRootCert: flags.sslRootCert,
		},
		db.LoadFromEnvironment(),
		projectCfg,
	)
	if err != nil {
		return nil, err
	}

	logConnectionVerbose(logger, connConfig)
	return connConfig, nil
}

// logConnectionVerbose logs connection details when verbose mode is enabled.
func logConnectionVerbose(logger geoload.Logger, connConfig *geoload.ConnectionConfig) {
	logger.Verbose("Connection resolved:")
	logger.Verbose("  Host: %s", connConfig.Host)
	logger.Verbose("  Port: %d", connConfig.Port)
	logger.Verbose("  User: %s", connConfig.Username)
	logger.Verbose("  Database: %s", connConfig.Database)
	logger.Verbose("  SSL Mode: %s", connConfig.SSLMode)
	for _, key := range []string{"sslcert", "sslkey", "sslrootcert"} {
		if v := connConfig.AdditionalParams[key]; v != "" {
			logger.Verbose("  %s: %s", key, v)
		}
	}
	logger.Verbose("  Auth Method: %s", connConfig.AuthMethod)
}
