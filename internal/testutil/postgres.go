// Package testutil starts throwaway Postgres instances for integration tests.
package testutil

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"orderdesk/pkg/db"
)

// StartPostgres runs a postgres container and returns its DSN. The container
// is terminated when the test ends. Skipped under -short.
func StartPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("orders_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	return dsn
}

// MigrationsDir is the absolute path of db/migrations.
func MigrationsDir() string {
	_, currentFile, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(currentFile), "../../db/migrations")
}

// SetupDB is container + pool + migrations. Most integration tests use this.
func SetupDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()

	conn, err := db.Connect(ctx, StartPostgres(t), db.DefaultOptions())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if _, err := db.NewMigrator(conn, MigrationsDir(), nil).ApplyAll(ctx); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn
}
