package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
	"github.com/fleetlens-io/fleetlens-engine/pkg/query"
	"github.com/fleetlens-io/fleetlens-engine/pkg/testhelpers"
)

func TestExecutor_Run(t *testing.T) {
	ctx := context.Background()
	db := testhelpers.NewTestDB(t)

	testhelpers.SeedVehicleFacts(t, db, []models.VehicleFact{
		{Year: 2015, MakeID: 1, ModelID: 1, MassKG: 1000},
		{Year: 2015, MakeID: 1, ModelID: 1, MassKG: 1200},
		{Year: 2016, MakeID: 2, ModelID: 2, MassKG: 1500},
	})

	executor := query.NewExecutor(db, 30*time.Second, false, zap.NewNop())

	t.Run("scans a per-year series in year order", func(t *testing.T) {
		f := models.NewFilterIDs(models.ScopeVehicle)
		series, warning, err := executor.Run(ctx, query.BuildCount(f))
		require.NoError(t, err)
		assert.Nil(t, warning)

		require.Len(t, series.Points, 2)
		assert.Equal(t, models.Point{Year: 2015, Value: 2, Defined: true}, series.Points[0])
		assert.Equal(t, models.Point{Year: 2016, Value: 1, Defined: true}, series.Points[1])
	})

	t.Run("filters bind correctly", func(t *testing.T) {
		f := models.NewFilterIDs(models.ScopeVehicle)
		f.Add(models.DimMake, 2)

		series, _, err := executor.Run(ctx, query.BuildSum(f, models.MeasureMass))
		require.NoError(t, err)
		require.Len(t, series.Points, 1)
		assert.Equal(t, 1500.0, series.Points[0].Value)
	})

	t.Run("NULL aggregates become undefined points", func(t *testing.T) {
		f := models.NewFilterIDs(models.ScopeVehicle)
		series, _, err := executor.Run(ctx, query.BuildAverage(f, models.MeasureCO2))
		require.NoError(t, err)

		// No record carries a CO2 value.
		for _, p := range series.Points {
			assert.False(t, p.Defined)
		}
	})

	t.Run("empty result is an empty series, not an error", func(t *testing.T) {
		f := models.NewFilterIDs(models.ScopeVehicle)
		f.Add(models.DimMake, 999)

		series, _, err := executor.Run(ctx, query.BuildCount(f))
		require.NoError(t, err)
		assert.Empty(t, series.Points)
	})
}

func TestExplainPlan(t *testing.T) {
	ctx := context.Background()
	db := testhelpers.NewTestDB(t)

	h, err := db.Acquire(ctx)
	require.NoError(t, err)
	defer h.Close()

	t.Run("unindexed predicate classifies as full scan", func(t *testing.T) {
		q := query.Query{
			SQL:   `SELECT key FROM engine_meta WHERE value = ?`,
			Args:  []any{"x"},
			Table: "engine_meta",
		}

		classification, err := query.ExplainPlan(ctx, h, q)
		require.NoError(t, err)
		assert.Equal(t, query.PlanFullScan, classification.Class)
		assert.Contains(t, classification.Detail, "engine_meta")
	})

	t.Run("primary-key lookup classifies as indexed", func(t *testing.T) {
		q := query.Query{
			SQL:   `SELECT value FROM engine_meta WHERE key = ?`,
			Args:  []any{"data_generation"},
			Table: "engine_meta",
		}

		classification, err := query.ExplainPlan(ctx, h, q)
		require.NoError(t, err)
		assert.Equal(t, query.PlanIndexed, classification.Class)
	})
}
