package db

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/geoload/pkg/geoload"
)

const (
	// DefaultMaxConns bounds the pool. The pipeline is sequential, so one
	// connection does the work and a second covers catalog reads.
	DefaultMaxConns = 2
	DefaultMinConns = 1
)

// NewConnector picks the Connector for config.AuthMethod and checks the
// settings that method needs before any network traffic.
func NewConnector(config *geoload.ConnectionConfig) (geoload.Connector, error) {
	switch config.AuthMethod {
	case geoload.AuthMethodStandard:
		return NewStandardConnector(config), nil
	case geoload.AuthMethodAWSIAM:
		provider, err := newRDSTokenProvider(config)
		if err != nil {
			return nil, err
		}
		return NewTokenConnector(config, provider, "AWS IAM"), nil
	case geoload.AuthMethodAzureEntraID:
		provider, err := newEntraTokenProvider(config)
		if err != nil {
			return nil, err
		}
		return NewTokenConnector(config, provider, "Azure"), nil
	case geoload.AuthMethodGoogleIAM:
		if config.GoogleInstance == "" {
			return nil, fmt.Errorf("Google Cloud SQL IAM auth requires --google-instance (project:region:instance): %w", geoload.ErrInvalidConfig)
		}
		if config.Username == "" {
			return nil, fmt.Errorf("Google Cloud SQL IAM auth requires username (-U): %w", geoload.ErrInvalidConfig)
		}
		return NewGoogleCloudSQLConnector(config, config.GoogleInstance), nil
	}
	return nil, fmt.Errorf("unsupported auth method %v: %w", config.AuthMethod, geoload.ErrUnsupportedAuthMethod)
}

// StandardConnector logs in with username and password. A failed attempt
// is reported, not retried.
type StandardConnector struct {
	config *geoload.ConnectionConfig
}

func NewStandardConnector(config *geoload.ConnectionConfig) *StandardConnector {
	return &StandardConnector{config: config}
}

func (c *StandardConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	return openPool(ctx, c.config, BuildConnectionString(c.config))
}

func configurePool(poolConfig *pgxpool.Config) {
	poolConfig.MaxConns = DefaultMaxConns
	poolConfig.MinConns = DefaultMinConns
	poolConfig.ConnConfig.OnNotice = func(_ *pgconn.PgConn, notice *pgconn.Notice) {
		fmt.Fprintln(os.Stderr, notice.Message)
	}
}

// openPool dials connStr and pings once. Failures come back as
// ConnectionError with guidance for the target in config.
func openPool(ctx context.Context, config *geoload.ConnectionConfig, connStr string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w: %w", err, geoload.ErrInvalidConfig)
	}
	configurePool(poolConfig)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, wrapConnectionError(err, config)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrapConnectionError(err, config)
	}
	return pool, nil
}

// connectionHint maps a fragment of a driver error to advice. The first
// hint whose fragment appears in the lowercased error wins.
type connectionHint struct {
	fragments []string
	headline  func(c *geoload.ConnectionConfig) string
	causes    []string
}

var connectionHints = []connectionHint{
	{
		fragments: []string{"connection refused", "actively refused"},
		headline: func(c *geoload.ConnectionConfig) string {
			return fmt.Sprintf("connection refused to %s:%d", c.Host, c.Port)
		},
		causes: []string{
			"PostgreSQL is not running (check: pg_isready -h <host> -p <port>)",
			"Wrong --host (-h) or --port (-p)",
			"A firewall is blocking the port",
		},
	},
	{
		fragments: []string{"no such host", "no host"},
		headline: func(c *geoload.ConnectionConfig) string {
			return fmt.Sprintf("cannot resolve host %q", c.Host)
		},
		causes: []string{
			"The host name is misspelled",
			"DNS is not reachable from this machine",
		},
	},
	{
		fragments: []string{"password authentication failed"},
		headline: func(c *geoload.ConnectionConfig) string {
			return fmt.Sprintf("password authentication failed for user %q on database %q", c.Username, c.Database)
		},
		causes: []string{
			"Wrong password (check $PGPASSWORD or the connection string)",
			"Wrong --username (-U)",
			"The role has no LOGIN or no access to this database",
		},
	},
	{
		fragments: []string{"does not exist"},
		headline: func(c *geoload.ConnectionConfig) string {
			return fmt.Sprintf("database %q does not exist", c.Database)
		},
		causes: []string{
			"geoload loads into an existing table of an existing database",
			"Wrong --database (-d) or database in the connection string",
		},
	},
	{
		fragments: []string{"timeout", "timed out"},
		headline: func(c *geoload.ConnectionConfig) string {
			return fmt.Sprintf("connection timed out to %s:%d", c.Host, c.Port)
		},
		causes: []string{
			"The server is overloaded or unreachable",
			"A firewall is silently dropping packets",
		},
	},
	{
		fragments: []string{"ssl", "tls"},
		headline: func(*geoload.ConnectionConfig) string {
			return "SSL/TLS connection error"
		},
		causes: []string{
			"The server and --sslmode disagree about encryption",
			"Certificate verification failed (check --sslrootcert)",
		},
	},
	{
		fragments: []string{"too many connections"},
		headline: func(c *geoload.ConnectionConfig) string {
			return fmt.Sprintf("too many connections to database %q", c.Database)
		},
		causes: []string{
			"max_connections is exhausted on the server",
			"A connection pooler in front of the server is full",
		},
	},
}

// wrapConnectionError turns a driver error into a ConnectionError that
// still unwraps to err.
func wrapConnectionError(err error, config *geoload.ConnectionConfig) error {
	msg := strings.ToLower(err.Error())
	for _, hint := range connectionHints {
		for _, fragment := range hint.fragments {
			if !strings.Contains(msg, fragment) {
				continue
			}
			var b strings.Builder
			b.WriteString(hint.headline(config))
			b.WriteString("\n\nPossible causes:\n")
			for _, cause := range hint.causes {
				b.WriteString("  - " + cause + "\n")
			}
			return &geoload.ConnectionError{Err: fmt.Errorf("%s\nOriginal error: %w", b.String(), err)}
		}
	}
	return &geoload.ConnectionError{Err: fmt.Errorf("failed to connect to database: %w", err)}
}
