package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fleetlens-io/fleetlens-engine/pkg/apperrors"
	"github.com/fleetlens-io/fleetlens-engine/pkg/cache"
	"github.com/fleetlens-io/fleetlens-engine/pkg/config"
	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
	"github.com/fleetlens-io/fleetlens-engine/pkg/query"
	"github.com/fleetlens-io/fleetlens-engine/pkg/translator"
)

// QueryResult is what the presentation collaborator receives: the series,
// its summary statistics, and an optional informational slow-query warning.
type QueryResult struct {
	Series  models.TimeSeries        `json:"series"`
	Summary models.SummaryStatistics `json:"summary"`
	Warning string                   `json:"warning,omitempty"`
}

// QueryService orchestrates filter resolution, query building, execution
// and post-processing.
type QueryService struct {
	translator *translator.Translator
	executor   *query.Executor
	cache      *cache.FilterCache
	regCfg     config.RegularizationConfig

	weightTables *query.WeightTables
	coefficients *query.CoefficientCache

	logger *zap.Logger
}

// NewQueryService creates a QueryService.
func NewQueryService(
	t *translator.Translator,
	executor *query.Executor,
	filterCache *cache.FilterCache,
	regCfg config.RegularizationConfig,
	weightTables *query.WeightTables,
	logger *zap.Logger,
) *QueryService {
	return &QueryService{
		translator:   t,
		executor:     executor,
		cache:        filterCache,
		regCfg:       regCfg,
		weightTables: weightTables,
		coefficients: query.NewCoefficientCache(),
		logger:       logger,
	}
}

// ResolveAndQuery resolves the filter, executes the requested metric and
// applies post-processing in the fixed normalize-then-cumulate order.
// regularize toggles mapping expansion for this request; coupling and
// legacy-fuel policy come from configuration.
func (s *QueryService) ResolveAndQuery(ctx context.Context, spec models.FilterSpec, metric models.MetricSpec, regularize bool) (*QueryResult, error) {
	if err := metric.Validate(); err != nil {
		return nil, err
	}

	opts := translator.Options{
		Regularize:        regularize,
		Coupling:          s.regCfg.Coupling,
		IncludeLegacyFuel: s.regCfg.IncludeLegacyFuelRecords,
	}

	filterIDs, err := s.translator.Resolve(spec, opts)
	if err != nil {
		return nil, err
	}

	series, warning, err := s.runMetric(ctx, filterIDs, spec, metric, opts)
	if err != nil {
		return nil, err
	}

	series = query.PostProcess(series, metric.Normalize, metric.Cumulative)

	result := &QueryResult{
		Series:  series,
		Summary: series.Summarize(),
	}
	if warning != nil {
		result.Warning = warning.Error()
	}
	return result, nil
}

func (s *QueryService) runMetric(ctx context.Context, filterIDs models.FilterIDs, spec models.FilterSpec, metric models.MetricSpec, opts translator.Options) (models.TimeSeries, *apperrors.SlowQueryWarning, error) {
	switch metric.Kind {
	case models.MetricCount:
		return s.executor.Run(ctx, query.BuildCount(filterIDs))

	case models.MetricSum:
		return s.executor.Run(ctx, query.BuildSum(filterIDs, metric.Measure))

	case models.MetricAverage:
		return s.executor.Run(ctx, query.BuildAverage(filterIDs, metric.Measure))

	case models.MetricCoverage:
		return s.executor.Run(ctx, query.BuildCoverage(filterIDs, metric.Measure))

	case models.MetricPercentage:
		return s.runPercentage(ctx, filterIDs, spec, metric, opts)

	case models.MetricRoadWear:
		return s.runRoadWear(ctx, filterIDs)

	default:
		return models.TimeSeries{}, nil, fmt.Errorf("unknown metric kind %q", metric.Kind)
	}
}

// runPercentage executes the numerator over the resolved filter and the
// denominator over the baseline (or the unfiltered population of the same
// scope), then divides per year.
func (s *QueryService) runPercentage(ctx context.Context, numIDs models.FilterIDs, spec models.FilterSpec, metric models.MetricSpec, opts translator.Options) (models.TimeSeries, *apperrors.SlowQueryWarning, error) {
	baselineSpec := models.FilterSpec{
		Scope:     spec.Scope,
		YearFrom:  spec.YearFrom,
		YearUntil: spec.YearUntil,
	}
	if metric.Baseline != nil {
		baselineSpec = *metric.Baseline
	}

	denomIDs, err := s.translator.Resolve(baselineSpec, opts)
	if err != nil {
		return models.TimeSeries{}, nil, err
	}

	num, numWarning, err := s.executor.Run(ctx, query.BuildCount(numIDs))
	if err != nil {
		return models.TimeSeries{}, nil, err
	}
	denom, denomWarning, err := s.executor.Run(ctx, query.BuildCount(denomIDs))
	if err != nil {
		return models.TimeSeries{}, nil, err
	}

	warning := numWarning
	if warning == nil {
		warning = denomWarning
	}
	return query.Percentage(num, denom), warning, nil
}

// runRoadWear renders the coefficient configuration into the aggregate and
// executes it. Vehicle-type fallback names resolve against the live
// snapshot; unrecognized names simply never match and fall through to the
// wildcard.
func (s *QueryService) runRoadWear(ctx context.Context, filterIDs models.FilterIDs) (models.TimeSeries, *apperrors.SlowQueryWarning, error) {
	if filterIDs.Scope != models.ScopeVehicle {
		return models.TimeSeries{}, nil, fmt.Errorf("road-wear index requires the vehicle scope")
	}

	coeffs, err := s.coefficients.Get(s.weightTables)
	if err != nil {
		return models.TimeSeries{}, nil, err
	}

	snap, err := s.cache.Snapshot()
	if err != nil {
		return models.TimeSeries{}, nil, err
	}

	typeIDs := make(map[uint32]float64, len(coeffs.ByVehicleType))
	for typeName, coefficient := range coeffs.ByVehicleType {
		if id, ok := snap.ValueID(models.DimVehicleType, typeName); ok {
			typeIDs[id] = coefficient
		}
	}

	return s.executor.Run(ctx, query.BuildRoadWear(filterIDs, coeffs, typeIDs))
}
