package repositories

import (
	"context"
	"database/sql"

	"github.com/fleetlens-io/fleetlens-engine/pkg/apperrors"
	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
)

// FactRepository writes fact rows. Used exclusively by the single-writer
// importer; all methods operate inside the importer's transaction so a
// year's rows are replaced atomically.
type FactRepository interface {
	DeleteYear(ctx context.Context, tx *sql.Tx, scope models.EntityScope, year int) error
	InsertVehicleFacts(ctx context.Context, tx *sql.Tx, facts []models.VehicleFact) error
	InsertLicenseFacts(ctx context.Context, tx *sql.Tx, facts []models.LicenseFact) error
	CountYear(ctx context.Context, tx *sql.Tx, scope models.EntityScope, year int) (int64, error)
}

type factRepository struct{}

// NewFactRepository creates a new FactRepository.
func NewFactRepository() FactRepository {
	return &factRepository{}
}

var _ FactRepository = (*factRepository)(nil)

func factTable(scope models.EntityScope) string {
	if scope == models.ScopeLicense {
		return "license_facts"
	}
	return "vehicle_facts"
}

func (r *factRepository) DeleteYear(ctx context.Context, tx *sql.Tx, scope models.EntityScope, year int) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM `+factTable(scope)+` WHERE year = ?`, year)
	if err != nil {
		return apperrors.Storage("delete year", err)
	}
	return nil
}

func (r *factRepository) InsertVehicleFacts(ctx context.Context, tx *sql.Tx, facts []models.VehicleFact) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vehicle_facts (
			year, make_id, model_id, model_year_id, fuel_type_id,
			vehicle_type_id, body_type_id, color_id, municipality_id,
			mass_kg, displacement_ccm, axle_count, co2_g_km
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return apperrors.Storage("prepare vehicle insert", err)
	}
	defer stmt.Close()

	for i := range facts {
		f := &facts[i]
		_, err := stmt.ExecContext(ctx,
			f.Year, f.MakeID, f.ModelID, f.ModelYearID, f.FuelTypeID,
			f.VehicleTypeID, f.BodyTypeID, f.ColorID, f.MunicipalityID,
			f.MassKG, f.DisplacementCCM, nullableInt(f.AxleCount), nullableFloat(f.CO2GKM))
		if err != nil {
			return apperrors.Storage("insert vehicle fact", err)
		}
	}
	return nil
}

func (r *factRepository) InsertLicenseFacts(ctx context.Context, tx *sql.Tx, facts []models.LicenseFact) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO license_facts (
			year, license_class_id, issuing_office_id, municipality_id, holder_birth_year
		) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return apperrors.Storage("prepare license insert", err)
	}
	defer stmt.Close()

	for i := range facts {
		f := &facts[i]
		_, err := stmt.ExecContext(ctx,
			f.Year, f.LicenseClassID, f.IssuingOfficeID, f.MunicipalityID, f.HolderBirthYear)
		if err != nil {
			return apperrors.Storage("insert license fact", err)
		}
	}
	return nil
}

func (r *factRepository) CountYear(ctx context.Context, tx *sql.Tx, scope models.EntityScope, year int) (int64, error) {
	var count int64
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+factTable(scope)+` WHERE year = ?`, year).Scan(&count)
	if err != nil {
		return 0, apperrors.Storage("count year", err)
	}
	return count, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
