package models

import "math"

// Point is one year of a time series. Defined is false for sentinel points:
// a percentage over a zero denominator, or a series normalized against a
// zero first year. The engine never fabricates a number for those.
type Point struct {
	Year    int     `json:"year"`
	Value   float64 `json:"value"`
	Defined bool    `json:"defined"`
}

// TimeSeries is the ordered per-year result of an aggregate query.
type TimeSeries struct {
	Points []Point `json:"points"`
}

// Years returns the years covered, in order.
func (s *TimeSeries) Years() []int {
	years := make([]int, len(s.Points))
	for i, p := range s.Points {
		years[i] = p.Year
	}
	return years
}

// SummaryStatistics accompany every query result.
type SummaryStatistics struct {
	Total        float64 `json:"total"`
	Mean         float64 `json:"mean"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	DefinedCount int     `json:"defined_count"`
	FirstYear    int     `json:"first_year"`
	LastYear     int     `json:"last_year"`
}

// Summarize computes summary statistics over the defined points of s.
func (s *TimeSeries) Summarize() SummaryStatistics {
	stats := SummaryStatistics{
		Min: math.Inf(1),
		Max: math.Inf(-1),
	}
	for _, p := range s.Points {
		if !p.Defined {
			continue
		}
		if stats.DefinedCount == 0 {
			stats.FirstYear = p.Year
		}
		stats.LastYear = p.Year
		stats.DefinedCount++
		stats.Total += p.Value
		if p.Value < stats.Min {
			stats.Min = p.Value
		}
		if p.Value > stats.Max {
			stats.Max = p.Value
		}
	}
	if stats.DefinedCount == 0 {
		stats.Min, stats.Max = 0, 0
		return stats
	}
	stats.Mean = stats.Total / float64(stats.DefinedCount)
	return stats
}
