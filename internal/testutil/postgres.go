package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/config"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/database"
)

const postgresImage = "postgres:16-alpine"

// NewPostgresDB starts a throwaway PostgreSQL container and returns a
// migrated database on it plus the config that reaches it. The test is
// skipped in -short mode or when no container runtime is available.
func NewPostgresDB(t *testing.T) (*database.Database, config.DatabaseConfig) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL container in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase("forum"),
		postgres.WithUsername("forum"),
		postgres.WithPassword("forum"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}

	host, err := ctr.Host(ctx)
	if err != nil {
		t.Fatalf("postgres container host: %v", err)
	}
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("postgres container port: %v", err)
	}

	cfg := config.DatabaseConfig{
		Driver:     database.DriverPostgres,
		Host:       host,
		Port:       port.Port(),
		User:       "forum",
		Password:   "forum",
		Name:       "forum",
		SSLMode:    "disable",
		MaxRetries: 5,
	}
	d, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("opening postgres: %v", err)
	}
	if err := d.Migrate(); err != nil {
		t.Fatalf("migrating postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("closing postgres: %v", err)
		}
	})

	return d, cfg
}
