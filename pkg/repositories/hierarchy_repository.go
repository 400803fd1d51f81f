package repositories

import (
	"context"
	"database/sql"

	"github.com/fleetlens-io/fleetlens-engine/pkg/apperrors"
	"github.com/fleetlens-io/fleetlens-engine/pkg/database"
	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
)

// HierarchyRepository persists the materialized canonical hierarchy: the
// (make, model, model year, fuel type, vehicle type) combinations observed
// in curated years, with record counts. The table is cache-only and fully
// derivable from vehicle_facts.
type HierarchyRepository interface {
	AggregateCurated(ctx context.Context, h *database.Handle, curated models.YearRange) ([]models.HierarchyEntry, error)
	Replace(ctx context.Context, h *database.Handle, entries []models.HierarchyEntry, cacheKey string) error
	List(ctx context.Context, h *database.Handle) ([]models.HierarchyEntry, error)
	ListByPair(ctx context.Context, h *database.Handle, makeID, modelID uint32) ([]models.HierarchyEntry, error)
	CacheKey(ctx context.Context, h *database.Handle) (string, error)
}

type hierarchyRepository struct{}

// NewHierarchyRepository creates a new HierarchyRepository.
func NewHierarchyRepository() HierarchyRepository {
	return &hierarchyRepository{}
}

var _ HierarchyRepository = (*hierarchyRepository)(nil)

// AggregateCurated runs the full grouped aggregation over curated-year
// vehicle facts. This is the single most expensive query in the engine;
// callers memoize the result keyed by (curated years, mapping version).
func (r *hierarchyRepository) AggregateCurated(ctx context.Context, h *database.Handle, curated models.YearRange) ([]models.HierarchyEntry, error) {
	rows, err := h.Query(ctx, `
		SELECT make_id, model_id, model_year_id, fuel_type_id, vehicle_type_id, COUNT(*)
		FROM vehicle_facts
		WHERE year BETWEEN ? AND ?
		GROUP BY make_id, model_id, model_year_id, fuel_type_id, vehicle_type_id
		ORDER BY make_id, model_id, model_year_id`, curated.From, curated.Until)
	if err != nil {
		return nil, apperrors.Storage("aggregate curated facts", err)
	}
	defer rows.Close()

	return scanHierarchyRows(rows)
}

// Replace swaps the materialized hierarchy in one transaction and records
// the cache key it was built under.
func (r *hierarchyRepository) Replace(ctx context.Context, h *database.Handle, entries []models.HierarchyEntry, cacheKey string) error {
	err := h.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM canonical_hierarchy`); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO canonical_hierarchy (
				make_id, model_id, model_year_id, fuel_type_id, vehicle_type_id, record_count
			) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx,
				e.MakeID, e.ModelID, e.ModelYearID, e.FuelTypeID, e.VehicleTypeID, e.RecordCount); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO engine_meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			database.MetaHierarchyCacheKey, cacheKey)
		return err
	})
	if err != nil {
		return apperrors.Storage("replace hierarchy", err)
	}
	return nil
}

func (r *hierarchyRepository) List(ctx context.Context, h *database.Handle) ([]models.HierarchyEntry, error) {
	rows, err := h.Query(ctx, `
		SELECT make_id, model_id, model_year_id, fuel_type_id, vehicle_type_id, record_count
		FROM canonical_hierarchy
		ORDER BY make_id, model_id, model_year_id`)
	if err != nil {
		return nil, apperrors.Storage("list hierarchy", err)
	}
	defer rows.Close()

	return scanHierarchyRows(rows)
}

func (r *hierarchyRepository) ListByPair(ctx context.Context, h *database.Handle, makeID, modelID uint32) ([]models.HierarchyEntry, error) {
	rows, err := h.Query(ctx, `
		SELECT make_id, model_id, model_year_id, fuel_type_id, vehicle_type_id, record_count
		FROM canonical_hierarchy
		WHERE make_id = ? AND model_id = ?
		ORDER BY model_year_id`, makeID, modelID)
	if err != nil {
		return nil, apperrors.Storage("list hierarchy by pair", err)
	}
	defer rows.Close()

	return scanHierarchyRows(rows)
}

func (r *hierarchyRepository) CacheKey(ctx context.Context, h *database.Handle) (string, error) {
	return database.GetMeta(ctx, h, database.MetaHierarchyCacheKey)
}

func scanHierarchyRows(rows *sql.Rows) ([]models.HierarchyEntry, error) {
	var entries []models.HierarchyEntry
	for rows.Next() {
		var e models.HierarchyEntry
		if err := rows.Scan(&e.MakeID, &e.ModelID, &e.ModelYearID, &e.FuelTypeID, &e.VehicleTypeID, &e.RecordCount); err != nil {
			return nil, apperrors.Storage("scan hierarchy entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("iterate hierarchy", err)
	}
	return entries, nil
}
