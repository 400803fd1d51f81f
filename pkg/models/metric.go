package models

import "fmt"

// MetricKind enumerates the fixed family of aggregate query shapes the
// engine serves. There is deliberately no general query language.
type MetricKind string

const (
	MetricCount      MetricKind = "count"
	MetricSum        MetricKind = "sum"
	MetricAverage    MetricKind = "average"
	MetricPercentage MetricKind = "percentage"
	MetricCoverage   MetricKind = "coverage"
	MetricRoadWear   MetricKind = "road_wear"
)

// MetricSpec describes the requested aggregate plus post-processing.
type MetricSpec struct {
	Kind MetricKind

	// Measure is required for sum, average and coverage.
	Measure Measure

	// Baseline is the denominator filter for percentage metrics. When nil,
	// the denominator is the unfiltered fact population of the same scope.
	Baseline *FilterSpec

	// Post-processing transforms, applied in fixed order: normalize first,
	// then cumulative sum. The reverse order changes the result's meaning
	// and is not offered.
	Normalize  bool
	Cumulative bool
}

// Validate fails fast on malformed metric requests before any storage
// access.
func (m *MetricSpec) Validate() error {
	switch m.Kind {
	case MetricCount, MetricPercentage, MetricRoadWear:
	case MetricSum, MetricAverage, MetricCoverage:
		if !m.Measure.Valid() {
			return fmt.Errorf("metric %s requires a valid measure, got %q", m.Kind, m.Measure)
		}
	default:
		return fmt.Errorf("unknown metric kind %q", m.Kind)
	}
	return nil
}
