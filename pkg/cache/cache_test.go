package cache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleetlens-io/fleetlens-engine/pkg/apperrors"
	"github.com/fleetlens-io/fleetlens-engine/pkg/cache"
	"github.com/fleetlens-io/fleetlens-engine/pkg/database"
	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
	"github.com/fleetlens-io/fleetlens-engine/pkg/regularization"
	"github.com/fleetlens-io/fleetlens-engine/pkg/repositories"
	"github.com/fleetlens-io/fleetlens-engine/pkg/testhelpers"
)

func newTestCache(t *testing.T) (*cache.FilterCache, *database.DB) {
	t.Helper()
	db := testhelpers.NewTestDB(t)
	c := cache.NewFilterCache(db,
		repositories.NewDimensionRepository(),
		repositories.NewMappingRepository(),
		zap.NewNop())
	return c, db
}

func TestFilterCache_Lifecycle(t *testing.T) {
	ctx := context.Background()
	c, db := newTestCache(t)

	assert.Equal(t, cache.StateUninitialized, c.State())
	assert.False(t, c.IsReady())

	_, err := c.Snapshot()
	assert.ErrorIs(t, err, apperrors.ErrCacheNotReady)

	makes := testhelpers.SeedDimension(t, db, models.DimMake, 0, "Honda", "Toyota")
	testhelpers.SeedDimension(t, db, models.DimModel, makes["Honda"], "CR-V")

	require.NoError(t, c.Initialize(ctx, models.ScopeVehicle))
	assert.Equal(t, cache.StateReady, c.State())
	assert.True(t, c.IsReady())

	snap, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, models.ScopeVehicle, snap.Scope())

	id, ok := snap.ValueID(models.DimMake, "Honda")
	assert.True(t, ok)
	assert.Equal(t, makes["Honda"], id)

	_, ok = snap.ValueID(models.DimMake, "Mazda")
	assert.False(t, ok)

	// License categories were not loaded for the vehicle scope.
	assert.Empty(t, snap.Items(models.DimLicenseClass))

	c.Invalidate()
	assert.Equal(t, cache.StateUninitialized, c.State())
	_, err = c.Snapshot()
	assert.ErrorIs(t, err, apperrors.ErrCacheNotReady)
}

func TestFilterCache_InitializeRejectsInvalidScope(t *testing.T) {
	c, _ := newTestCache(t)
	assert.Error(t, c.Initialize(context.Background(), models.EntityScope("fleet")))
}

func TestFilterCache_StaleSnapshotRebuilds(t *testing.T) {
	ctx := context.Background()
	c, db := newTestCache(t)

	testhelpers.SeedDimension(t, db, models.DimMake, 0, "Honda")
	require.NoError(t, c.Initialize(ctx, models.ScopeVehicle))

	snap, err := c.Snapshot()
	require.NoError(t, err)
	gen := snap.Generation()

	// Unchanged store: Initialize is a no-op and keeps the snapshot.
	require.NoError(t, c.Initialize(ctx, models.ScopeVehicle))
	same, err := c.Snapshot()
	require.NoError(t, err)
	assert.Same(t, snap, same)

	// Seeding facts bumps the data generation; the next Initialize rebuilds
	// without an explicit Invalidate.
	testhelpers.SeedDimension(t, db, models.DimMake, 0, "Mazda")
	testhelpers.SeedVehicleFacts(t, db, []models.VehicleFact{
		{Year: 2020, MakeID: 1, ModelID: 1, MassKG: 1200},
	})

	require.NoError(t, c.Initialize(ctx, models.ScopeVehicle))
	rebuilt, err := c.Snapshot()
	require.NoError(t, err)
	assert.Greater(t, rebuilt.Generation(), gen)

	_, ok := rebuilt.ValueID(models.DimMake, "Mazda")
	assert.True(t, ok)
}

func TestFilterCache_SnapshotIndexesMappings(t *testing.T) {
	ctx := context.Background()
	c, db := newTestCache(t)

	makes := testhelpers.SeedDimension(t, db, models.DimMake, 0, "HONDA", "Honda")
	uncuratedModel := testhelpers.SeedDimension(t, db, models.DimModel, makes["HONDA"], "CRV")
	canonicalModel := testhelpers.SeedDimension(t, db, models.DimModel, makes["Honda"], "CR-V")
	fuels := testhelpers.SeedDimension(t, db, models.DimFuelType, 0, "Gasoline", models.UnknownValue)
	years := testhelpers.SeedDimension(t, db, models.DimModelYear, 0, "2003")

	mapping := &models.RegularizationMapping{
		UncuratedMakeID:  makes["HONDA"],
		UncuratedModelID: uncuratedModel["CRV"],
		ModelYearID:      years["2003"],
		CanonicalMakeID:  makes["Honda"],
		CanonicalModelID: canonicalModel["CR-V"],
		FuelTypeID:       fuels["Gasoline"],
		RecordCount:      14,
	}
	engine := regularization.NewEngine(db,
		repositories.NewMappingRepository(),
		repositories.NewHierarchyRepository(),
		zap.NewNop())
	require.NoError(t, engine.AddMapping(ctx, mapping))

	require.NoError(t, c.Initialize(ctx, models.ScopeVehicle))
	snap, err := c.Snapshot()
	require.NoError(t, err)

	require.Len(t, snap.AllMappings(), 1)

	// Both sides of the model index resolve to the mapping.
	assert.Len(t, snap.MappingsForModel(uncuratedModel["CRV"]), 1)
	assert.Len(t, snap.MappingsForModel(canonicalModel["CR-V"]), 1)

	mm, ok := snap.MakeMappings()[makes["HONDA"]]
	require.True(t, ok)
	assert.Equal(t, makes["Honda"], mm.CanonicalMakeID)

	fuel, ok := snap.TripletFuel(models.TripletKey{
		MakeID:      makes["HONDA"],
		ModelID:     uncuratedModel["CRV"],
		ModelYearID: years["2003"],
	})
	assert.True(t, ok)
	assert.Equal(t, fuels["Gasoline"], fuel)

	assert.Equal(t, fuels[models.UnknownValue], snap.UnknownFuelID())

	// Model adjacency is computed by the snapshot, per make.
	assert.Equal(t, []uint32{uncuratedModel["CRV"]}, snap.ModelsByMake(makes["HONDA"]))
}
