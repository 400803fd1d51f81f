package regularization

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAutoAssign(t *testing.T) {
	priorities := []string{"Gasoline", "Diesel", "Hybrid"}

	tests := []struct {
		name     string
		observed []ValueCount
		want     string
		wantOK   bool
	}{
		{
			name:     "single observed value assigns directly",
			observed: []ValueCount{{Value: "Diesel", Count: 40}},
			want:     "Diesel",
			wantOK:   true,
		},
		{
			name: "several values pick the highest priority",
			observed: []ValueCount{
				{Value: "Hybrid", Count: 100},
				{Value: "Diesel", Count: 3},
			},
			want:   "Diesel",
			wantOK: true,
		},
		{
			name: "no priority match stays unresolved",
			observed: []ValueCount{
				{Value: "LPG", Count: 5},
				{Value: "CNG", Count: 2},
			},
			wantOK: false,
		},
		{
			name:   "no observations stay unresolved",
			wantOK: false,
		},
		{
			name: "zero counts do not count as observed",
			observed: []ValueCount{
				{Value: "Gasoline", Count: 0},
				{Value: "Diesel", Count: 7},
			},
			want:   "Diesel",
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AutoAssign(tt.observed, priorities)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDominantValue(t *testing.T) {
	t.Run("highest count wins", func(t *testing.T) {
		got, ok := DominantValue([]ValueCount{
			{Value: "Diesel", Count: 3},
			{Value: "Gasoline", Count: 10},
		})
		assert.True(t, ok)
		assert.Equal(t, "Gasoline", got)
	})

	t.Run("ties break by value", func(t *testing.T) {
		got, ok := DominantValue([]ValueCount{
			{Value: "Gasoline", Count: 5},
			{Value: "Diesel", Count: 5},
		})
		assert.True(t, ok)
		assert.Equal(t, "Diesel", got)
	})

	t.Run("empty input", func(t *testing.T) {
		_, ok := DominantValue(nil)
		assert.False(t, ok)
	})
}
