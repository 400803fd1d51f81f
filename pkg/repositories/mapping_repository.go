package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fleetlens-io/fleetlens-engine/pkg/apperrors"
	"github.com/fleetlens-io/fleetlens-engine/pkg/database"
	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
)

// MappingRepository provides data access for regularization mappings.
// The make-consistency invariant is enforced one layer up, in the
// regularization engine, before any write reaches this repository.
type MappingRepository interface {
	Insert(ctx context.Context, h *database.Handle, m *models.RegularizationMapping) error
	Delete(ctx context.Context, h *database.Handle, id uuid.UUID) error
	ListAll(ctx context.Context, h *database.Handle) ([]*models.RegularizationMapping, error)
	CanonicalMakeFor(ctx context.Context, h *database.Handle, uncuratedMakeID uint32) (uint32, bool, error)
}

type mappingRepository struct{}

// NewMappingRepository creates a new MappingRepository.
func NewMappingRepository() MappingRepository {
	return &mappingRepository{}
}

var _ MappingRepository = (*mappingRepository)(nil)

const mappingColumns = `
	id, uncurated_make_id, uncurated_model_id, model_year_id,
	canonical_make_id, canonical_model_id, fuel_type_id, vehicle_type_id,
	record_count, created_at, updated_at`

func (r *mappingRepository) Insert(ctx context.Context, h *database.Handle, m *models.RegularizationMapping) error {
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	_, err := h.Exec(ctx, `
		INSERT INTO regularization_mappings (
			id, uncurated_make_id, uncurated_model_id, model_year_id,
			canonical_make_id, canonical_model_id, fuel_type_id, vehicle_type_id,
			record_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID.String(),
		m.UncuratedMakeID,
		m.UncuratedModelID,
		m.ModelYearID,
		m.CanonicalMakeID,
		m.CanonicalModelID,
		m.FuelTypeID,
		m.VehicleTypeID,
		m.RecordCount,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return apperrors.Storage("insert mapping", err)
	}
	return nil
}

func (r *mappingRepository) Delete(ctx context.Context, h *database.Handle, id uuid.UUID) error {
	result, err := h.Exec(ctx,
		`DELETE FROM regularization_mappings WHERE id = ?`, id.String())
	if err != nil {
		return apperrors.Storage("delete mapping", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Storage("delete mapping", err)
	}
	if affected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *mappingRepository) ListAll(ctx context.Context, h *database.Handle) ([]*models.RegularizationMapping, error) {
	rows, err := h.Query(ctx, `
		SELECT `+mappingColumns+`
		FROM regularization_mappings
		ORDER BY uncurated_make_id, uncurated_model_id, model_year_id`)
	if err != nil {
		return nil, apperrors.Storage("list mappings", err)
	}
	defer rows.Close()

	var mappings []*models.RegularizationMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("iterate mappings", err)
	}

	return mappings, nil
}

// CanonicalMakeFor returns the canonical make bound to an uncurated make, if
// any mapping references it.
func (r *mappingRepository) CanonicalMakeFor(ctx context.Context, h *database.Handle, uncuratedMakeID uint32) (uint32, bool, error) {
	var canonical uint32
	err := h.QueryRow(ctx, `
		SELECT canonical_make_id FROM regularization_mappings
		WHERE uncurated_make_id = ?
		LIMIT 1`, uncuratedMakeID).Scan(&canonical)
	if err != nil {
		if database.IsNoRows(err) {
			return 0, false, nil
		}
		return 0, false, apperrors.Storage("lookup canonical make", err)
	}
	return canonical, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMapping(row rowScanner) (*models.RegularizationMapping, error) {
	var m models.RegularizationMapping
	var rawID string

	err := row.Scan(
		&rawID,
		&m.UncuratedMakeID,
		&m.UncuratedModelID,
		&m.ModelYearID,
		&m.CanonicalMakeID,
		&m.CanonicalModelID,
		&m.FuelTypeID,
		&m.VehicleTypeID,
		&m.RecordCount,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, apperrors.Storage("scan mapping", err)
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, apperrors.Storage("parse mapping id", err)
	}
	m.ID = id
	return &m, nil
}
