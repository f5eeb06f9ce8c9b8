package testinfra

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DefaultPostGISImage is used unless GEOLOAD_TEST_POSTGIS_IMAGE names another.
const DefaultPostGISImage = "postgis/postgis:17-3.5"

const (
	adminUser     = "postgres"
	adminPassword = "postgres"
	adminDatabase = "postgres"
	startupLimit  = 90 * time.Second
)

// PostGIS is a throwaway server whose template1 already carries the
// postgis extension, so every database created from it can store geometry.
type PostGIS struct {
	*postgres.PostgresContainer
	ConnString string
}

func postGISImage() string {
	if image := os.Getenv("GEOLOAD_TEST_POSTGIS_IMAGE"); image != "" {
		return image
	}
	return DefaultPostGISImage
}

// StartPostGIS runs the server and returns an admin connection string for
// the maintenance database.
func StartPostGIS(ctx context.Context) (*PostGIS, error) {
	image := postGISImage()
	ctr, err := postgres.Run(ctx, image,
		postgres.WithUsername(adminUser),
		postgres.WithPassword(adminPassword),
		postgres.WithDatabase(adminDatabase),
		// The entrypoint restarts the server once after init.
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(startupLimit),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("starting %s: %w", image, err)
	}

	code, _, err := ctr.Exec(ctx, []string{
		"psql", "-U", adminUser, "-d", "template1", "-c", "CREATE EXTENSION IF NOT EXISTS postgis",
	})
	if err == nil && code != 0 {
		err = fmt.Errorf("psql exited with %d", code)
	}
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("enabling postgis in template1: %w", err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("reading connection string of %s: %w", image, err)
	}
	return &PostGIS{PostgresContainer: ctr, ConnString: connStr}, nil
}
