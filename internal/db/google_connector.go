package db

import (
	"context"
	"fmt"
	"net"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/geoload/pkg/geoload"
)

// GoogleCloudSQLConnector reaches a Cloud SQL instance through the Cloud SQL
// Go connector with IAM database authentication. The connector handles TLS,
// so the DSN itself disables sslmode.
//
// Close must be called after the pool returned by Connect has been closed.
type GoogleCloudSQLConnector struct {
	config   *geoload.ConnectionConfig
	instance string // project:region:instance
	dialer   *cloudsqlconn.Dialer
}

func NewGoogleCloudSQLConnector(config *geoload.ConnectionConfig, instance string) *GoogleCloudSQLConnector {
	return &GoogleCloudSQLConnector{config: config, instance: instance}
}

// cloudSQLConfig renders the pool config. The host in the DSN is only a
// placeholder; every dial goes to the instance.
func (c *GoogleCloudSQLConnector) cloudSQLConfig(dialer *cloudsqlconn.Dialer) (*pgxpool.Config, error) {
	appName := c.config.AppName
	if appName == "" {
		appName = geoload.ApplicationName
	}

	poolConfig, err := pgxpool.ParseConfig(fmt.Sprintf(
		"host=cloudsql user=%s dbname=%s sslmode=disable application_name=%s",
		c.config.Username, c.config.Database, appName,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w: %w", err, geoload.ErrInvalidConfig)
	}
	poolConfig.ConnConfig.DialFunc = func(ctx context.Context, _, _ string) (net.Conn, error) {
		return dialer.Dial(ctx, c.instance)
	}
	configurePool(poolConfig)
	return poolConfig, nil
}

func (c *GoogleCloudSQLConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	dialer, err := cloudsqlconn.NewDialer(ctx, cloudsqlconn.WithIAMAuthN())
	if err != nil {
		return nil, &geoload.ConnectionError{Err: fmt.Errorf("failed to create Cloud SQL dialer for %s: %w", c.instance, err)}
	}

	poolConfig, err := c.cloudSQLConfig(dialer)
	if err != nil {
		dialer.Close()
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err == nil {
		if err = pool.Ping(ctx); err != nil {
			pool.Close()
		}
	}
	if err != nil {
		dialer.Close()
		label := *c.config
		label.Host = c.instance
		return nil, wrapConnectionError(err, &label)
	}

	c.dialer = dialer
	return pool, nil
}

// Close releases the dialer. It is safe to call more than once.
func (c *GoogleCloudSQLConnector) Close() error {
	if c.dialer != nil {
		c.dialer.Close()
		c.dialer = nil
	}
	return nil
}
