package query

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/fleetlens-io/fleetlens-engine/pkg/apperrors"
	"github.com/fleetlens-io/fleetlens-engine/pkg/database"
	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
)

// Executor runs aggregate queries against the fact store. Each execution
// acquires its own handle; handles are never shared across concurrent
// callers.
type Executor struct {
	db      *database.DB
	timeout time.Duration
	explain bool
	logger  *zap.Logger
}

// NewExecutor creates an Executor. When explainBeforeRun is set, every query
// is plan-classified first and full scans are reported as a
// SlowQueryWarning alongside the result.
func NewExecutor(db *database.DB, timeout time.Duration, explainBeforeRun bool, logger *zap.Logger) *Executor {
	return &Executor{
		db:      db,
		timeout: timeout,
		explain: explainBeforeRun,
		logger:  logger,
	}
}

// Run executes one per-year aggregate query and scans it into a time
// series. A NULL aggregate (e.g. AVG over all-NULL measures) becomes an
// undefined point. The returned warning, if any, is informational; results
// are always complete.
func (e *Executor) Run(ctx context.Context, q Query) (models.TimeSeries, *apperrors.SlowQueryWarning, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	h, err := e.db.Acquire(ctx)
	if err != nil {
		return models.TimeSeries{}, nil, apperrors.Storage("acquire for query", err)
	}
	defer h.Close()

	var warning *apperrors.SlowQueryWarning
	if e.explain {
		classification, err := ExplainPlan(ctx, h, q)
		if err != nil {
			// Plan classification never blocks execution.
			e.logger.Warn("Plan classification failed", zap.Error(err))
		} else if classification.Class == PlanFullScan {
			warning = &apperrors.SlowQueryWarning{Table: q.Table, Detail: classification.Detail}
			e.logger.Warn("Query will full-scan",
				zap.String("table", q.Table),
				zap.String("detail", classification.Detail))
		}
	}

	start := time.Now()
	rows, err := h.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return models.TimeSeries{}, warning, apperrors.Storage("execute query", err)
	}
	defer rows.Close()

	var series models.TimeSeries
	for rows.Next() {
		var year int
		var value sql.NullFloat64
		if err := rows.Scan(&year, &value); err != nil {
			return models.TimeSeries{}, warning, apperrors.Storage("scan query row", err)
		}
		series.Points = append(series.Points, models.Point{
			Year:    year,
			Value:   value.Float64,
			Defined: value.Valid,
		})
	}
	if err := rows.Err(); err != nil {
		return models.TimeSeries{}, warning, apperrors.Storage("iterate query rows", err)
	}

	e.logger.Debug("Query executed",
		zap.String("table", q.Table),
		zap.Int("years", len(series.Points)),
		zap.Duration("elapsed", time.Since(start)))
	return series, warning, nil
}
