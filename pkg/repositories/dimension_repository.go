package repositories

import (
	"context"
	"fmt"

	"github.com/fleetlens-io/fleetlens-engine/pkg/apperrors"
	"github.com/fleetlens-io/fleetlens-engine/pkg/database"
	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
)

// DimensionRepository provides read access to the dimension tables. Writes
// go through schema.DimensionSchema on the single-writer ingestion path.
type DimensionRepository interface {
	ListByCategory(ctx context.Context, h *database.Handle, cat models.DimensionCategory) ([]models.DimensionValue, error)
	GetByValue(ctx context.Context, h *database.Handle, cat models.DimensionCategory, value string) (uint32, error)
	GetByID(ctx context.Context, h *database.Handle, cat models.DimensionCategory, id uint32) (*models.DimensionValue, error)
}

type dimensionRepository struct{}

// NewDimensionRepository creates a new DimensionRepository.
func NewDimensionRepository() DimensionRepository {
	return &dimensionRepository{}
}

var _ DimensionRepository = (*dimensionRepository)(nil)

func (r *dimensionRepository) ListByCategory(ctx context.Context, h *database.Handle, cat models.DimensionCategory) ([]models.DimensionValue, error) {
	table := cat.TableName()

	var query string
	if cat.HasParent() {
		query = fmt.Sprintf(`SELECT id, value, make_id FROM %s ORDER BY value`, table)
	} else {
		query = fmt.Sprintf(`SELECT id, value, 0 FROM %s ORDER BY value`, table)
	}

	rows, err := h.Query(ctx, query)
	if err != nil {
		return nil, apperrors.Storage("list dimension "+string(cat), err)
	}
	defer rows.Close()

	var items []models.DimensionValue
	for rows.Next() {
		var item models.DimensionValue
		if err := rows.Scan(&item.ID, &item.Value, &item.ParentID); err != nil {
			return nil, apperrors.Storage("scan dimension "+string(cat), err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("iterate dimension "+string(cat), err)
	}

	return items, nil
}

func (r *dimensionRepository) GetByValue(ctx context.Context, h *database.Handle, cat models.DimensionCategory, value string) (uint32, error) {
	var id uint32
	err := h.QueryRow(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE value = ?`, cat.TableName()), value).Scan(&id)
	if err != nil {
		if database.IsNoRows(err) {
			return 0, apperrors.ErrNotFound
		}
		return 0, apperrors.Storage("get dimension by value", err)
	}
	return id, nil
}

func (r *dimensionRepository) GetByID(ctx context.Context, h *database.Handle, cat models.DimensionCategory, id uint32) (*models.DimensionValue, error) {
	table := cat.TableName()

	var query string
	if cat.HasParent() {
		query = fmt.Sprintf(`SELECT id, value, make_id FROM %s WHERE id = ?`, table)
	} else {
		query = fmt.Sprintf(`SELECT id, value, 0 FROM %s WHERE id = ?`, table)
	}

	var item models.DimensionValue
	err := h.QueryRow(ctx, query, id).Scan(&item.ID, &item.Value, &item.ParentID)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Storage("get dimension by id", err)
	}
	return &item, nil
}
