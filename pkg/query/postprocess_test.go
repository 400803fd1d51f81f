package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
)

func series(points ...models.Point) models.TimeSeries {
	return models.TimeSeries{Points: points}
}

func defined(year int, value float64) models.Point {
	return models.Point{Year: year, Value: value, Defined: true}
}

func undefined(year int) models.Point {
	return models.Point{Year: year}
}

func TestNormalize(t *testing.T) {
	t.Run("divides by the first defined value", func(t *testing.T) {
		out := Normalize(series(defined(2010, 200), defined(2011, 300), defined(2012, 100)))

		require.Len(t, out.Points, 3)
		assert.Equal(t, 1.0, out.Points[0].Value)
		assert.Equal(t, 1.5, out.Points[1].Value)
		assert.Equal(t, 0.5, out.Points[2].Value)
	})

	t.Run("skips leading undefined points when picking the base", func(t *testing.T) {
		out := Normalize(series(undefined(2010), defined(2011, 50), defined(2012, 100)))

		assert.False(t, out.Points[0].Defined)
		assert.Equal(t, 1.0, out.Points[1].Value)
		assert.Equal(t, 2.0, out.Points[2].Value)
	})

	t.Run("zero base makes every point undefined", func(t *testing.T) {
		out := Normalize(series(defined(2010, 0), defined(2011, 300)))

		for _, p := range out.Points {
			assert.False(t, p.Defined)
			assert.Equal(t, 0.0, p.Value)
		}
	})

	t.Run("all-undefined input stays undefined", func(t *testing.T) {
		out := Normalize(series(undefined(2010), undefined(2011)))

		for _, p := range out.Points {
			assert.False(t, p.Defined)
		}
	})

	t.Run("does not mutate the input", func(t *testing.T) {
		in := series(defined(2010, 200), defined(2011, 300))
		_ = Normalize(in)

		assert.Equal(t, 200.0, in.Points[0].Value)
		assert.Equal(t, 300.0, in.Points[1].Value)
	})
}

func TestCumulative(t *testing.T) {
	out := Cumulative(series(defined(2010, 1), undefined(2011), defined(2012, 2), defined(2013, 3)))

	require.Len(t, out.Points, 4)
	assert.Equal(t, 1.0, out.Points[0].Value)
	assert.False(t, out.Points[1].Defined)
	assert.Equal(t, 3.0, out.Points[2].Value)
	assert.Equal(t, 6.0, out.Points[3].Value)
}

func TestPostProcess_OrderIsNormalizeThenCumulative(t *testing.T) {
	in := series(defined(2010, 2), defined(2011, 4), defined(2012, 6))

	out := PostProcess(in, true, true)

	// normalize: 1, 2, 3; cumulative: 1, 3, 6.
	require.Len(t, out.Points, 3)
	assert.Equal(t, 1.0, out.Points[0].Value)
	assert.Equal(t, 3.0, out.Points[1].Value)
	assert.Equal(t, 6.0, out.Points[2].Value)
}

func TestPercentage(t *testing.T) {
	t.Run("divides per year over the union of years", func(t *testing.T) {
		num := series(defined(2010, 25), defined(2011, 50))
		denom := series(defined(2010, 100), defined(2011, 100), defined(2012, 100))

		out := Percentage(num, denom)

		require.Len(t, out.Points, 3)
		assert.Equal(t, 0.25, out.Points[0].Value)
		assert.Equal(t, 0.5, out.Points[1].Value)
		// Missing numerator counts as zero.
		assert.True(t, out.Points[2].Defined)
		assert.Equal(t, 0.0, out.Points[2].Value)
	})

	t.Run("zero or missing denominator yields an undefined point", func(t *testing.T) {
		num := series(defined(2010, 25), defined(2011, 50))
		denom := series(defined(2010, 0))

		out := Percentage(num, denom)

		require.Len(t, out.Points, 2)
		assert.False(t, out.Points[0].Defined)
		assert.False(t, out.Points[1].Defined)
	})
}
