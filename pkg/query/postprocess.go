package query

import (
	"sort"

	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
)

// PostProcess applies the requested transforms in their fixed order:
// normalize first, then cumulative sum. Applying the cumulative sum before
// normalization changes the result's meaning, so the reverse ordering is
// not offered.
func PostProcess(series models.TimeSeries, normalize, cumulative bool) models.TimeSeries {
	out := series
	if normalize {
		out = Normalize(out)
	}
	if cumulative {
		out = Cumulative(out)
	}
	return out
}

// Normalize divides every year's value by the first defined year's value.
// A zero (or absent) first year makes every point undefined: there is no
// meaningful base, and the engine never fabricates a number.
func Normalize(series models.TimeSeries) models.TimeSeries {
	out := models.TimeSeries{Points: make([]models.Point, len(series.Points))}
	copy(out.Points, series.Points)

	var base float64
	baseFound := false
	for _, p := range series.Points {
		if p.Defined {
			base = p.Value
			baseFound = true
			break
		}
	}

	if !baseFound || base == 0 {
		for i := range out.Points {
			out.Points[i].Value = 0
			out.Points[i].Defined = false
		}
		return out
	}

	for i := range out.Points {
		if !out.Points[i].Defined {
			continue
		}
		out.Points[i].Value /= base
	}
	return out
}

// Cumulative replaces each defined value with the running sum of the defined
// values up to and including it. Undefined points stay undefined and do not
// contribute.
func Cumulative(series models.TimeSeries) models.TimeSeries {
	out := models.TimeSeries{Points: make([]models.Point, len(series.Points))}
	copy(out.Points, series.Points)

	var sum float64
	for i := range out.Points {
		if !out.Points[i].Defined {
			continue
		}
		sum += out.Points[i].Value
		out.Points[i].Value = sum
	}
	return out
}

// Percentage divides the numerator series by the denominator series per
// year. The year axis is the union of both; a year with a zero or missing
// denominator yields an undefined point, never a fabricated value. A year
// missing from the numerator counts as zero.
func Percentage(num, denom models.TimeSeries) models.TimeSeries {
	numByYear := make(map[int]models.Point, len(num.Points))
	for _, p := range num.Points {
		numByYear[p.Year] = p
	}
	denomByYear := make(map[int]models.Point, len(denom.Points))
	for _, p := range denom.Points {
		denomByYear[p.Year] = p
	}

	years := unionYears(num, denom)
	out := models.TimeSeries{Points: make([]models.Point, 0, len(years))}
	for _, year := range years {
		d, dOK := denomByYear[year]
		if !dOK || !d.Defined || d.Value == 0 {
			out.Points = append(out.Points, models.Point{Year: year})
			continue
		}
		var n float64
		if np, ok := numByYear[year]; ok && np.Defined {
			n = np.Value
		}
		out.Points = append(out.Points, models.Point{
			Year:    year,
			Value:   n / d.Value,
			Defined: true,
		})
	}
	return out
}

func unionYears(a, b models.TimeSeries) []int {
	seen := make(map[int]struct{}, len(a.Points)+len(b.Points))
	var years []int
	for _, s := range []models.TimeSeries{a, b} {
		for _, p := range s.Points {
			if _, ok := seen[p.Year]; !ok {
				seen[p.Year] = struct{}{}
				years = append(years, p.Year)
			}
		}
	}
	sort.Ints(years)
	return years
}
