package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleetlens-io/fleetlens-engine/pkg/cache"
	"github.com/fleetlens-io/fleetlens-engine/pkg/config"
	"github.com/fleetlens-io/fleetlens-engine/pkg/database"
	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
	"github.com/fleetlens-io/fleetlens-engine/pkg/query"
	"github.com/fleetlens-io/fleetlens-engine/pkg/regularization"
	"github.com/fleetlens-io/fleetlens-engine/pkg/repositories"
	"github.com/fleetlens-io/fleetlens-engine/pkg/testhelpers"
	"github.com/fleetlens-io/fleetlens-engine/pkg/translator"
)

type queryFixture struct {
	service *QueryService
	db      *database.DB
	makes   map[string]uint32
	models  map[string]uint32
}

func testRegConfig() config.RegularizationConfig {
	return config.RegularizationConfig{
		CuratedFrom:              2011,
		CuratedUntil:             2024,
		Coupling:                 true,
		IncludeLegacyFuelRecords: true,
	}
}

func testWeightTables() *query.WeightTables {
	return &query.WeightTables{
		AxleDistributions: map[int][]float64{
			2: {50, 50},
			3: {40, 30, 30},
		},
		VehicleTypeFallbacks: map[string]query.Fallback{},
		Wildcard:             query.Fallback{Axles: 2},
	}
}

// newQueryFixture seeds the CR-V constellation: 197 curated records under
// the canonical spelling, 14 uncurated records under "HONDA"/"CRV", mapped
// together, plus an unrelated Toyota population.
func newQueryFixture(t *testing.T) *queryFixture {
	t.Helper()
	ctx := context.Background()

	db := testhelpers.NewTestDB(t)
	makes := testhelpers.SeedDimension(t, db, models.DimMake, 0, "Honda", "HONDA", "Toyota")
	modelIDs := testhelpers.SeedDimension(t, db, models.DimModel, makes["Honda"], "CR-V")
	for k, v := range testhelpers.SeedDimension(t, db, models.DimModel, makes["HONDA"], "CRV") {
		modelIDs[k] = v
	}
	for k, v := range testhelpers.SeedDimension(t, db, models.DimModel, makes["Toyota"], "Corolla") {
		modelIDs[k] = v
	}

	var facts []models.VehicleFact
	addFacts := func(n, year int, makeID, modelID uint32, mass float64) {
		for i := 0; i < n; i++ {
			facts = append(facts, models.VehicleFact{
				Year: year, MakeID: makeID, ModelID: modelID, MassKG: mass,
				AxleCount: testhelpers.IntPtr(2),
			})
		}
	}
	addFacts(100, 2015, makes["Honda"], modelIDs["CR-V"], 1500)
	addFacts(97, 2016, makes["Honda"], modelIDs["CR-V"], 1500)
	addFacts(14, 2003, makes["HONDA"], modelIDs["CRV"], 1400)
	addFacts(50, 2015, makes["Toyota"], modelIDs["Corolla"], 1300)
	testhelpers.SeedVehicleFacts(t, db, facts)

	engine := regularization.NewEngine(db,
		repositories.NewMappingRepository(),
		repositories.NewHierarchyRepository(),
		zap.NewNop())
	require.NoError(t, engine.AddMapping(ctx, &models.RegularizationMapping{
		UncuratedMakeID:  makes["HONDA"],
		UncuratedModelID: modelIDs["CRV"],
		CanonicalMakeID:  makes["Honda"],
		CanonicalModelID: modelIDs["CR-V"],
		RecordCount:      14,
	}))

	filterCache := cache.NewFilterCache(db,
		repositories.NewDimensionRepository(),
		repositories.NewMappingRepository(),
		zap.NewNop())
	require.NoError(t, filterCache.Initialize(ctx, models.ScopeVehicle))

	executor := query.NewExecutor(db, 30*time.Second, false, zap.NewNop())
	service := NewQueryService(
		translator.New(filterCache),
		executor,
		filterCache,
		testRegConfig(),
		testWeightTables(),
		zap.NewNop())

	return &queryFixture{service: service, db: db, makes: makes, models: modelIDs}
}

func modelFilter(name string) models.FilterSpec {
	return models.FilterSpec{
		Scope: models.ScopeVehicle,
		Selected: map[models.DimensionCategory][]string{
			models.DimModel: {name},
		},
	}
}

func total(result *QueryResult) float64 {
	var sum float64
	for _, p := range result.Series.Points {
		if p.Defined {
			sum += p.Value
		}
	}
	return sum
}

func TestResolveAndQuery_Count(t *testing.T) {
	ctx := context.Background()
	f := newQueryFixture(t)
	count := models.MetricSpec{Kind: models.MetricCount}

	t.Run("canonical spelling without regularization", func(t *testing.T) {
		result, err := f.service.ResolveAndQuery(ctx, modelFilter("CR-V"), count, false)
		require.NoError(t, err)
		assert.Equal(t, 197.0, total(result))
		assert.Equal(t, 197.0, result.Summary.Total)
	})

	t.Run("canonical spelling with regularization includes mapped records", func(t *testing.T) {
		result, err := f.service.ResolveAndQuery(ctx, modelFilter("CR-V"), count, true)
		require.NoError(t, err)
		assert.Equal(t, 211.0, total(result))
	})

	t.Run("uncurated spelling without regularization", func(t *testing.T) {
		result, err := f.service.ResolveAndQuery(ctx, modelFilter("CRV"), count, false)
		require.NoError(t, err)
		assert.Equal(t, 14.0, total(result))
	})

	t.Run("uncurated spelling with regularization reaches both sides", func(t *testing.T) {
		result, err := f.service.ResolveAndQuery(ctx, modelFilter("CRV"), count, true)
		require.NoError(t, err)
		assert.Equal(t, 211.0, total(result))
	})

	t.Run("unmapped model is unaffected by regularization", func(t *testing.T) {
		off, err := f.service.ResolveAndQuery(ctx, modelFilter("Corolla"), count, false)
		require.NoError(t, err)
		on, err := f.service.ResolveAndQuery(ctx, modelFilter("Corolla"), count, true)
		require.NoError(t, err)
		assert.Equal(t, total(off), total(on))
		assert.Equal(t, 50.0, total(on))
	})
}

func TestResolveAndQuery_SumAndAverage(t *testing.T) {
	ctx := context.Background()
	f := newQueryFixture(t)

	sum, err := f.service.ResolveAndQuery(ctx, modelFilter("CR-V"),
		models.MetricSpec{Kind: models.MetricSum, Measure: models.MeasureMass}, false)
	require.NoError(t, err)
	assert.Equal(t, 197*1500.0, total(sum))

	avg, err := f.service.ResolveAndQuery(ctx, modelFilter("CRV"),
		models.MetricSpec{Kind: models.MetricAverage, Measure: models.MeasureMass}, false)
	require.NoError(t, err)
	require.Len(t, avg.Series.Points, 1)
	assert.Equal(t, 1400.0, avg.Series.Points[0].Value)
}

func TestResolveAndQuery_Percentage(t *testing.T) {
	ctx := context.Background()
	f := newQueryFixture(t)

	result, err := f.service.ResolveAndQuery(ctx, modelFilter("Corolla"),
		models.MetricSpec{Kind: models.MetricPercentage}, false)
	require.NoError(t, err)

	// The denominator is the whole vehicle population per year. 2015 has
	// 100 CR-V + 50 Corolla records.
	byYear := make(map[int]models.Point)
	for _, p := range result.Series.Points {
		byYear[p.Year] = p
	}
	require.Contains(t, byYear, 2015)
	assert.InDelta(t, 50.0/150.0, byYear[2015].Value, 1e-9)

	// Years with no Corolla records are defined zeros, not gaps.
	require.Contains(t, byYear, 2016)
	assert.True(t, byYear[2016].Defined)
	assert.Equal(t, 0.0, byYear[2016].Value)
}

func TestResolveAndQuery_RoadWear(t *testing.T) {
	ctx := context.Background()
	f := newQueryFixture(t)

	result, err := f.service.ResolveAndQuery(ctx, modelFilter("CRV"),
		models.MetricSpec{Kind: models.MetricRoadWear}, false)
	require.NoError(t, err)

	// 14 records, 2 axles at 50/50 (coefficient 0.125), mass 1400.
	want := 14 * 0.125 * 1400.0 * 1400.0 * 1400.0 * 1400.0
	require.Len(t, result.Series.Points, 1)
	assert.InDelta(t, want, result.Series.Points[0].Value, want*1e-9)
}

func TestResolveAndQuery_Normalize(t *testing.T) {
	ctx := context.Background()
	f := newQueryFixture(t)

	result, err := f.service.ResolveAndQuery(ctx, modelFilter("CR-V"),
		models.MetricSpec{Kind: models.MetricCount, Normalize: true}, false)
	require.NoError(t, err)

	require.Len(t, result.Series.Points, 2)
	assert.Equal(t, 1.0, result.Series.Points[0].Value)
	assert.InDelta(t, 0.97, result.Series.Points[1].Value, 1e-9)
}

func TestResolveAndQuery_RejectsInvalidMetric(t *testing.T) {
	ctx := context.Background()
	f := newQueryFixture(t)

	_, err := f.service.ResolveAndQuery(ctx, modelFilter("CR-V"),
		models.MetricSpec{Kind: models.MetricSum}, false)
	assert.Error(t, err)
}
