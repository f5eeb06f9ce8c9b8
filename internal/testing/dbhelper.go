package testing

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/geoload/internal/db"
	"github.com/vvka-141/geoload/internal/testinfra"
	"github.com/vvka-141/geoload/pkg/geoload"
)

var (
	testContainerOnce sync.Once
	testContainerConn string
	testContainerErr  error
)

func getOrStartTestContainer() (string, error) {
	testContainerOnce.Do(func() {
		ctx := context.Background()
		container, err := testinfra.StartPostGIS(ctx)
		if err != nil {
			testContainerErr = err
			return
		}
		testContainerConn = container.ConnString
	})
	return testContainerConn, testContainerErr
}

// GetTestConnectionString returns the test database connection string.
// Priority: GEOLOAD_TEST_CONN env var > auto-started testcontainer > skip test.
// The server must have the PostGIS packages available.
func GetTestConnectionString(t *testing.T) string {
	t.Helper()

	if connString := os.Getenv("GEOLOAD_TEST_CONN"); connString != "" {
		return connString
	}

	connString, err := getOrStartTestContainer()
	if err != nil {
		t.Skipf("GEOLOAD_TEST_CONN not set and Docker unavailable: %v", err)
	}
	return connString
}

// SkipIfShort skips the test if running in short mode (-short flag).
func SkipIfShort(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// RequireDatabase combines SkipIfShort and GetTestConnectionString for convenience.
// Returns the test connection string if available, otherwise skips the test.
func RequireDatabase(t *testing.T) string {
	t.Helper()

	SkipIfShort(t)
	return GetTestConnectionString(t)
}

// NewPostGISDatabase creates a uniquely named database with the postgis
// extension and returns a pool connected to it. The database is dropped
// when the test completes.
func NewPostGISDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()

	connString := RequireDatabase(t)
	dbName := "geoload_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	CreateTestDB(t, connString, dbName)
	t.Cleanup(func() { CleanupTestDB(t, connString, dbName) })

	pool := GetTestPool(t, connString, dbName)
	if _, err := pool.Exec(context.Background(), "CREATE EXTENSION IF NOT EXISTS postgis"); err != nil {
		t.Fatalf("Failed to create postgis extension in %s: %v", dbName, err)
	}
	return pool
}

// Exec runs each statement against pool and fails the test on the first error.
func Exec(t *testing.T, pool *pgxpool.Pool, stmts ...string) {
	t.Helper()

	for _, stmt := range stmts {
		if _, err := pool.Exec(context.Background(), stmt); err != nil {
			t.Fatalf("Failed to execute %q: %v", stmt, err)
		}
	}
}

// CountRows returns the row count of table.
func CountRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()

	var n int
	if err := pool.QueryRow(context.Background(), "SELECT count(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("Failed to count rows of %s: %v", table, err)
	}
	return n
}

// ForceApprover is a test approver that always approves table replacement.
type ForceApprover struct{}

// RequestApproval always returns true.
func (a *ForceApprover) RequestApproval(ctx context.Context, table geoload.TableRef, featureCount int) (bool, error) {
	return true, nil
}

// CreateTestDB creates a test database with the given name.
func CreateTestDB(t *testing.T, connString, dbName string) {
	t.Helper()

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Fatalf("Failed to connect for test DB creation: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", dbName)); err != nil {
		t.Fatalf("Failed to create test database %s: %v", dbName, err)
	}
	t.Logf("✓ Created test database %s", dbName)
}

// CleanupTestDB drops the test database.
// Safe to call multiple times (uses DROP DATABASE IF EXISTS).
func CleanupTestDB(t *testing.T, connString, dbName string) {
	t.Helper()

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Logf("Warning: Failed to connect for cleanup: %v", err)
		return
	}
	defer pool.Close()

	dropQuery := fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", dbName)
	if _, err := pool.Exec(ctx, dropQuery); err != nil {
		t.Logf("Warning: Failed to drop database %s: %v", dbName, err)
	} else {
		t.Logf("✓ Cleaned up database %s", dbName)
	}
}

// GetTestPool creates a connection pool to the specified database for testing.
// The pool is automatically closed when the test completes.
func GetTestPool(t *testing.T, connString, dbName string) *pgxpool.Pool {
	t.Helper()

	config, err := db.ParseConnectionString(connString)
	if err != nil {
		t.Fatalf("Failed to parse connection string: %v", err)
	}
	if err := db.ApplyDefaults(config, nil); err != nil {
		t.Fatalf("Failed to complete connection string: %v", err)
	}
	config.Database = dbName

	pool, err := pgxpool.New(context.Background(), db.BuildConnectionString(config))
	if err != nil {
		t.Fatalf("Failed to create connection pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

// ConnectionConfig returns the parsed test connection pointed at dbName.
func ConnectionConfig(t *testing.T, dbName string) *geoload.ConnectionConfig {
	t.Helper()

	config, err := db.ParseConnectionString(RequireDatabase(t))
	if err != nil {
		t.Fatalf("Failed to parse connection string: %v", err)
	}
	if err := db.ApplyDefaults(config, nil); err != nil {
		t.Fatalf("Failed to complete connection string: %v", err)
	}
	config.Database = dbName
	return config
}
