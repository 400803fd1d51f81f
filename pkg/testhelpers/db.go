// Package testhelpers provides a migrated, isolated store per test plus
// seeding shortcuts for dimensions and facts.
package testhelpers

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/fleetlens-io/fleetlens-engine/pkg/config"
	"github.com/fleetlens-io/fleetlens-engine/pkg/database"
	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
	"github.com/fleetlens-io/fleetlens-engine/pkg/repositories"
	"github.com/fleetlens-io/fleetlens-engine/pkg/schema"
)

// NewTestDB opens a fresh store file under t.TempDir() with migrations and
// dimension tables applied. The store is torn down with the test.
func NewTestDB(t *testing.T) *database.DB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Path:          filepath.Join(t.TempDir(), "engine.db"),
		MaxReaders:    4,
		BusyTimeoutMS: 5000,
	}

	ctx := context.Background()
	db, err := database.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := zap.NewNop()
	if err := database.RunMigrations(db, logger); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	if err := schema.New(db, logger).Create(ctx); err != nil {
		t.Fatalf("Failed to create dimension tables: %v", err)
	}

	return db
}

// SeedDimension inserts values into a dimension table and returns their ids
// keyed by value. parentID applies only to categories with a parent.
func SeedDimension(t *testing.T, db *database.DB, cat models.DimensionCategory, parentID uint32, values ...string) map[string]uint32 {
	t.Helper()

	ctx := context.Background()
	h, err := db.Acquire(ctx)
	if err != nil {
		t.Fatalf("Failed to acquire handle: %v", err)
	}
	defer h.Close()

	dims := schema.New(db, zap.NewNop())
	ids := make(map[string]uint32, len(values))
	for _, v := range values {
		id, err := dims.GetOrCreateID(ctx, h, cat, v, parentID)
		if err != nil {
			t.Fatalf("Failed to seed %s value %q: %v", cat, v, err)
		}
		ids[v] = id
	}
	return ids
}

// SeedVehicleFacts inserts vehicle fact rows directly.
func SeedVehicleFacts(t *testing.T, db *database.DB, facts []models.VehicleFact) {
	t.Helper()
	seedFacts(t, db, func(ctx context.Context, tx *sql.Tx) error {
		return repositories.NewFactRepository().InsertVehicleFacts(ctx, tx, facts)
	})
}

// SeedLicenseFacts inserts license fact rows directly.
func SeedLicenseFacts(t *testing.T, db *database.DB, facts []models.LicenseFact) {
	t.Helper()
	seedFacts(t, db, func(ctx context.Context, tx *sql.Tx) error {
		return repositories.NewFactRepository().InsertLicenseFacts(ctx, tx, facts)
	})
}

func seedFacts(t *testing.T, db *database.DB, insert func(context.Context, *sql.Tx) error) {
	t.Helper()

	ctx := context.Background()
	h, err := db.Acquire(ctx)
	if err != nil {
		t.Fatalf("Failed to acquire handle: %v", err)
	}
	defer h.Close()

	err = h.Tx(ctx, func(tx *sql.Tx) error {
		if err := insert(ctx, tx); err != nil {
			return err
		}
		return database.BumpDataGeneration(ctx, database.TxQueryer(tx))
	})
	if err != nil {
		t.Fatalf("Failed to seed facts: %v", err)
	}
}

// IntPtr returns a pointer to v for optional fact fields.
func IntPtr(v int) *int { return &v }

// FloatPtr returns a pointer to v for optional fact fields.
func FloatPtr(v float64) *float64 { return &v }
