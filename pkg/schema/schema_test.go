package schema_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleetlens-io/fleetlens-engine/pkg/apperrors"
	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
	"github.com/fleetlens-io/fleetlens-engine/pkg/schema"
	"github.com/fleetlens-io/fleetlens-engine/pkg/testhelpers"
)

func TestCreateAndVerifyIndexes(t *testing.T) {
	ctx := context.Background()
	db := testhelpers.NewTestDB(t)
	dims := schema.New(db, zap.NewNop())

	// NewTestDB already ran Create; it is idempotent.
	require.NoError(t, dims.Create(ctx))
	require.NoError(t, dims.VerifyIndexes(ctx))
}

func TestVerifyIndexes_NamesTheOffendingTable(t *testing.T) {
	ctx := context.Background()
	db := testhelpers.NewTestDB(t)
	dims := schema.New(db, zap.NewNop())

	h, err := db.Acquire(ctx)
	require.NoError(t, err)
	_, err = h.Exec(ctx, `DROP INDEX idx_dim_color_value`)
	require.NoError(t, err)
	h.Close()

	err = dims.VerifyIndexes(ctx)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "dim_color"))
	assert.ErrorIs(t, err, apperrors.ErrSchema)
}

func TestVerifyIndexes_MissingTable(t *testing.T) {
	ctx := context.Background()
	db := testhelpers.NewTestDB(t)
	dims := schema.New(db, zap.NewNop())

	h, err := db.Acquire(ctx)
	require.NoError(t, err)
	_, err = h.Exec(ctx, `DROP TABLE dim_body_type`)
	require.NoError(t, err)
	h.Close()

	err = dims.VerifyIndexes(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dim_body_type")
}

func TestValidateValue(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain value", "Honda", "Honda", false},
		{"trims whitespace", "  CR-V  ", "CR-V", false},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"too long", strings.Repeat("x", 257), "", true},
		{"invalid utf8", "Hond\xff", "", true},
		{"at the length limit", strings.Repeat("x", 256), strings.Repeat("x", 256), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := schema.ValidateValue(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetOrCreateID(t *testing.T) {
	ctx := context.Background()
	db := testhelpers.NewTestDB(t)
	dims := schema.New(db, zap.NewNop())

	h, err := db.Acquire(ctx)
	require.NoError(t, err)
	defer h.Close()

	t.Run("allocates once and returns the same id", func(t *testing.T) {
		first, err := dims.GetOrCreateID(ctx, h, models.DimMake, "Honda", 0)
		require.NoError(t, err)
		require.NotZero(t, first)

		second, err := dims.GetOrCreateID(ctx, h, models.DimMake, "Honda", 0)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("distinct values get distinct ids", func(t *testing.T) {
		a, err := dims.GetOrCreateID(ctx, h, models.DimMake, "Toyota", 0)
		require.NoError(t, err)
		b, err := dims.GetOrCreateID(ctx, h, models.DimMake, "Mazda", 0)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("a value is unique per dimension, not per parent", func(t *testing.T) {
		hondaID, err := dims.GetOrCreateID(ctx, h, models.DimMake, "Honda", 0)
		require.NoError(t, err)
		toyotaID, err := dims.GetOrCreateID(ctx, h, models.DimMake, "Toyota", 0)
		require.NoError(t, err)

		first, err := dims.GetOrCreateID(ctx, h, models.DimModel, "GT", hondaID)
		require.NoError(t, err)
		// The same model name under another make resolves to the same id;
		// this is exactly why model filters need make coupling.
		second, err := dims.GetOrCreateID(ctx, h, models.DimModel, "GT", toyotaID)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("rejects malformed values", func(t *testing.T) {
		_, err := dims.GetOrCreateID(ctx, h, models.DimMake, "   ", 0)
		assert.Error(t, err)
	})
}
