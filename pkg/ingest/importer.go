// Package ingest is the single-writer import path: it receives streamed
// batches of raw records from the ETL collaborator, performs get-or-create
// on dimensions, and replaces a year's fact rows atomically.
package ingest

import (
	"context"
	"database/sql"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/fleetlens-io/fleetlens-engine/pkg/apperrors"
	"github.com/fleetlens-io/fleetlens-engine/pkg/database"
	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
	"github.com/fleetlens-io/fleetlens-engine/pkg/repositories"
	"github.com/fleetlens-io/fleetlens-engine/pkg/schema"
)

// Report summarizes one year import. Malformed rows are skipped and
// reported, never abort the batch.
type Report struct {
	Year     int            `json:"year"`
	Imported int            `json:"imported"`
	Skipped  int            `json:"skipped"`
	Reasons  map[string]int `json:"reasons,omitempty"`
}

func (r *Report) skip(reason string) {
	r.Skipped++
	if r.Reasons == nil {
		r.Reasons = make(map[string]int)
	}
	r.Reasons[reason]++
}

// Importer is the only actor permitted to allocate dimension ids. It runs
// one import at a time; a second concurrent call fails with
// ErrImportInProgress.
type Importer struct {
	db     *database.DB
	schema *schema.DimensionSchema
	facts  repositories.FactRepository
	logger *zap.Logger

	running atomic.Bool
}

// NewImporter creates an Importer.
func NewImporter(db *database.DB, dims *schema.DimensionSchema, facts repositories.FactRepository, logger *zap.Logger) *Importer {
	return &Importer{db: db, schema: dims, facts: facts, logger: logger}
}

// ImportVehicleYear replaces the given year's vehicle facts with the
// streamed records, in one transaction: either the whole year lands or
// nothing changes. Cancellation via ctx rolls the year back. A successful
// import bumps the data-generation stamp so filter caches refresh.
func (i *Importer) ImportVehicleYear(ctx context.Context, year int, records <-chan models.RawVehicleRecord) (*Report, error) {
	if !i.running.CompareAndSwap(false, true) {
		return nil, apperrors.ErrImportInProgress
	}
	defer i.running.Store(false)

	report := &Report{Year: year}

	h, err := i.db.Acquire(ctx)
	if err != nil {
		return nil, apperrors.Storage("acquire for import", err)
	}
	defer h.Close()

	err = h.Tx(ctx, func(tx *sql.Tx) error {
		q := database.TxQueryer(tx)

		if err := i.facts.DeleteYear(ctx, tx, models.ScopeVehicle, year); err != nil {
			return err
		}

		batch := make([]models.VehicleFact, 0, batchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			if err := i.facts.InsertVehicleFacts(ctx, tx, batch); err != nil {
				return err
			}
			batch = batch[:0]
			return nil
		}

		for record := range records {
			if err := ctx.Err(); err != nil {
				return err
			}

			fact, reason := i.resolveVehicle(ctx, q, year, &record)
			if reason != "" {
				report.skip(reason)
				continue
			}
			batch = append(batch, *fact)
			report.Imported++

			if len(batch) == batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		if err := flush(); err != nil {
			return err
		}

		return database.BumpDataGeneration(ctx, q)
	})
	if err != nil {
		return nil, err
	}

	i.logger.Info("Vehicle year imported",
		zap.Int("year", year),
		zap.Int("imported", report.Imported),
		zap.Int("skipped", report.Skipped))
	return report, nil
}

// ImportLicenseYear is the license-scope counterpart of ImportVehicleYear.
func (i *Importer) ImportLicenseYear(ctx context.Context, year int, records <-chan models.RawLicenseRecord) (*Report, error) {
	if !i.running.CompareAndSwap(false, true) {
		return nil, apperrors.ErrImportInProgress
	}
	defer i.running.Store(false)

	report := &Report{Year: year}

	h, err := i.db.Acquire(ctx)
	if err != nil {
		return nil, apperrors.Storage("acquire for import", err)
	}
	defer h.Close()

	err = h.Tx(ctx, func(tx *sql.Tx) error {
		q := database.TxQueryer(tx)

		if err := i.facts.DeleteYear(ctx, tx, models.ScopeLicense, year); err != nil {
			return err
		}

		batch := make([]models.LicenseFact, 0, batchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			if err := i.facts.InsertLicenseFacts(ctx, tx, batch); err != nil {
				return err
			}
			batch = batch[:0]
			return nil
		}

		for record := range records {
			if err := ctx.Err(); err != nil {
				return err
			}

			fact, reason := i.resolveLicense(ctx, q, year, &record)
			if reason != "" {
				report.skip(reason)
				continue
			}
			batch = append(batch, *fact)
			report.Imported++

			if len(batch) == batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		if err := flush(); err != nil {
			return err
		}

		return database.BumpDataGeneration(ctx, q)
	})
	if err != nil {
		return nil, err
	}

	i.logger.Info("License year imported",
		zap.Int("year", year),
		zap.Int("imported", report.Imported),
		zap.Int("skipped", report.Skipped))
	return report, nil
}

const batchSize = 500

// resolveVehicle translates raw categorical strings into dimension ids.
// Returns a non-empty skip reason for malformed rows. Make and model are
// mandatory; the schema-evolution fields (fuel type) and cosmetic fields
// fall back to the unknown sentinel when absent.
func (i *Importer) resolveVehicle(ctx context.Context, q database.Queryer, year int, r *models.RawVehicleRecord) (*models.VehicleFact, string) {
	makeID, err := i.schema.GetOrCreateID(ctx, q, models.DimMake, r.Make, 0)
	if err != nil {
		return nil, "invalid make"
	}
	modelID, err := i.schema.GetOrCreateID(ctx, q, models.DimModel, r.Model, makeID)
	if err != nil {
		return nil, "invalid model"
	}
	if r.MassKG <= 0 {
		return nil, "non-positive mass"
	}

	fact := &models.VehicleFact{
		Year:            year,
		MakeID:          makeID,
		ModelID:         modelID,
		MassKG:          r.MassKG,
		DisplacementCCM: r.DisplacementCCM,
		AxleCount:       r.AxleCount,
		CO2GKM:          r.CO2GKM,
	}

	optional := []struct {
		cat   models.DimensionCategory
		raw   string
		field *uint32
	}{
		{models.DimModelYear, r.ModelYear, &fact.ModelYearID},
		{models.DimFuelType, r.FuelType, &fact.FuelTypeID},
		{models.DimVehicleType, r.VehicleType, &fact.VehicleTypeID},
		{models.DimBodyType, r.BodyType, &fact.BodyTypeID},
		{models.DimColor, r.Color, &fact.ColorID},
		{models.DimMunicipality, r.Municipality, &fact.MunicipalityID},
	}
	for _, opt := range optional {
		raw := opt.raw
		if raw == "" {
			raw = models.UnknownValue
		}
		id, err := i.schema.GetOrCreateID(ctx, q, opt.cat, raw, 0)
		if err != nil {
			return nil, "invalid " + string(opt.cat)
		}
		*opt.field = id
	}

	return fact, ""
}

func (i *Importer) resolveLicense(ctx context.Context, q database.Queryer, year int, r *models.RawLicenseRecord) (*models.LicenseFact, string) {
	classID, err := i.schema.GetOrCreateID(ctx, q, models.DimLicenseClass, r.LicenseClass, 0)
	if err != nil {
		return nil, "invalid license class"
	}
	if r.HolderBirthYear <= 0 || r.HolderBirthYear > year {
		return nil, "implausible birth year"
	}

	fact := &models.LicenseFact{
		Year:            year,
		LicenseClassID:  classID,
		HolderBirthYear: r.HolderBirthYear,
	}

	office := r.IssuingOffice
	if office == "" {
		office = models.UnknownValue
	}
	officeID, err := i.schema.GetOrCreateID(ctx, q, models.DimIssuingOffice, office, 0)
	if err != nil {
		return nil, "invalid issuing office"
	}
	fact.IssuingOfficeID = officeID

	muni := r.Municipality
	if muni == "" {
		muni = models.UnknownValue
	}
	muniID, err := i.schema.GetOrCreateID(ctx, q, models.DimMunicipality, muni, 0)
	if err != nil {
		return nil, "invalid municipality"
	}
	fact.MunicipalityID = muniID

	return fact, ""
}
