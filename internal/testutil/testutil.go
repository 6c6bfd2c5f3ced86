package testutil

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/nkiryanov/fittrack/internal/db"
)

// RandomPort asks the kernel for a free loopback port
func RandomPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:")
	if err != nil {
		return 0, err
	}
	defer ln.Close() // nolint:errcheck

	addr := ln.Addr().(*net.TCPAddr)
	return addr.Port, nil
}

type PostgresContainer struct {
	DSN       string
	Pool      *pgxpool.Pool
	Terminate func()
}

// StartPostgresContainer runs a throwaway postgres with fittrack schema applied.
// Test fails right away when docker is missing or the container is not healthy.
// Call Terminate from TestMain once the package tests are done.
func StartPostgresContainer(t *testing.T) PostgresContainer {
	t.Helper()

	if out, err := exec.Command("docker", "info", "--format", "{{.ServerVersion}}").CombinedOutput(); err != nil {
		t.Fatalf("docker is required for postgres tests: %s", out)
	}

	port, err := RandomPort()
	require.NoError(t, err, "no free port for postgres container")

	container, err := postgres.Run(t.Context(),
		"postgres:17-alpine",
		postgres.WithDatabase("fittrack-test"),
		postgres.WithUsername("fittrack"),
		postgres.WithPassword("pwd"),
		postgres.BasicWaitStrategies(),
		testcontainers.CustomizeRequestOption(func(req *testcontainers.GenericContainerRequest) error {
			req.ExposedPorts = []string{fmt.Sprintf("%d:5432", port)}
			return nil
		}),
	)
	require.NoError(t, err, "postgres container did not start")

	dsn, err := container.ConnectionString(t.Context(), "sslmode=disable")
	require.NoError(t, err, "postgres container has no connection string")
	t.Logf("postgres is up at %s", dsn)

	dbpool, err := db.ConnectAndMigrate(t.Context(), dsn, db.Options{MaxConns: 8, PingTimeout: 10 * time.Second})
	require.NoError(t, err, "fittrack schema not applied")

	return PostgresContainer{
		DSN:  dsn,
		Pool: dbpool,
		Terminate: func() {
			dbpool.Close()
			testcontainers.CleanupContainer(t, container)
		},
	}
}

type dbtx interface {
	Begin(context.Context) (pgx.Tx, error)
}

// WithTx runs fn inside a transaction that is always rolled back,
// so every subtest starts from the same empty schema.
func WithTx(dbtx dbtx, t *testing.T, fn func(tx pgx.Tx)) {
	t.Helper()

	tx, err := dbtx.Begin(t.Context())
	require.NoError(t, err)
	t.Cleanup(func() {
		// t.Context is already cancelled in cleanup
		require.NoError(t, tx.Rollback(context.Background()))
	})

	fn(tx)
}
