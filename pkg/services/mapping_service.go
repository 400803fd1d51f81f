package services

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fleetlens-io/fleetlens-engine/pkg/apperrors"
	"github.com/fleetlens-io/fleetlens-engine/pkg/cache"
	"github.com/fleetlens-io/fleetlens-engine/pkg/config"
	"github.com/fleetlens-io/fleetlens-engine/pkg/database"
	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
	"github.com/fleetlens-io/fleetlens-engine/pkg/regularization"
	"github.com/fleetlens-io/fleetlens-engine/pkg/repositories"
)

// MappingView is a RegularizationMapping with display names resolved for
// the curation tooling.
type MappingView struct {
	ID uuid.UUID `json:"id"`

	UncuratedMake  string `json:"uncurated_make"`
	UncuratedModel string `json:"uncurated_model"`
	ModelYear      string `json:"model_year,omitempty"`

	CanonicalMake  string `json:"canonical_make"`
	CanonicalModel string `json:"canonical_model"`
	FuelType       string `json:"fuel_type,omitempty"`
	VehicleType    string `json:"vehicle_type,omitempty"`

	RecordCount int `json:"record_count"`
}

// MappingSuggestion is the pre-filled mapping the curation tooling offers
// for an uncurated pair: the heuristic's fuel-type and vehicle-type picks
// plus the curated observations they were derived from.
type MappingSuggestion struct {
	CanonicalMakeID  uint32 `json:"canonical_make_id"`
	CanonicalModelID uint32 `json:"canonical_model_id"`

	FuelType         string `json:"fuel_type,omitempty"`
	FuelTypeResolved bool   `json:"fuel_type_resolved"`

	VehicleType         string `json:"vehicle_type,omitempty"`
	VehicleTypeResolved bool   `json:"vehicle_type_resolved"`

	ObservedFuelTypes    []regularization.ValueCount `json:"observed_fuel_types"`
	ObservedVehicleTypes []regularization.ValueCount `json:"observed_vehicle_types"`
}

// MappingService fronts the regularization engine for the curation API and
// computes auto-assignment suggestions from the canonical hierarchy.
type MappingService struct {
	db     *database.DB
	engine *regularization.Engine
	dims   repositories.DimensionRepository
	cache  *cache.FilterCache
	regCfg config.RegularizationConfig
	logger *zap.Logger
}

// NewMappingService creates a MappingService.
func NewMappingService(
	db *database.DB,
	engine *regularization.Engine,
	dims repositories.DimensionRepository,
	filterCache *cache.FilterCache,
	regCfg config.RegularizationConfig,
	logger *zap.Logger,
) *MappingService {
	return &MappingService{
		db:     db,
		engine: engine,
		dims:   dims,
		cache:  filterCache,
		regCfg: regCfg,
		logger: logger,
	}
}

// Add persists a new mapping and refreshes the vehicle filter cache so the
// next query sees it.
func (s *MappingService) Add(ctx context.Context, m *models.RegularizationMapping) error {
	if err := s.engine.AddMapping(ctx, m); err != nil {
		return err
	}
	return s.cache.Initialize(ctx, models.ScopeVehicle)
}

// Remove deletes a mapping by id and refreshes the vehicle filter cache.
func (s *MappingService) Remove(ctx context.Context, id uuid.UUID) error {
	if err := s.engine.RemoveMapping(ctx, id); err != nil {
		return err
	}
	return s.cache.Initialize(ctx, models.ScopeVehicle)
}

// List returns every mapping with display names resolved.
func (s *MappingService) List(ctx context.Context) ([]MappingView, error) {
	mappings, err := s.engine.ListMappings(ctx)
	if err != nil {
		return nil, err
	}

	h, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, apperrors.Storage("acquire for mapping list", err)
	}
	defer h.Close()

	views := make([]MappingView, 0, len(mappings))
	for _, m := range mappings {
		view := MappingView{ID: m.ID, RecordCount: m.RecordCount}

		if view.UncuratedMake, err = s.valueName(ctx, h, models.DimMake, m.UncuratedMakeID); err != nil {
			return nil, err
		}
		if view.UncuratedModel, err = s.valueName(ctx, h, models.DimModel, m.UncuratedModelID); err != nil {
			return nil, err
		}
		if view.CanonicalMake, err = s.valueName(ctx, h, models.DimMake, m.CanonicalMakeID); err != nil {
			return nil, err
		}
		if view.CanonicalModel, err = s.valueName(ctx, h, models.DimModel, m.CanonicalModelID); err != nil {
			return nil, err
		}
		if view.ModelYear, err = s.valueName(ctx, h, models.DimModelYear, m.ModelYearID); err != nil {
			return nil, err
		}
		if view.FuelType, err = s.valueName(ctx, h, models.DimFuelType, m.FuelTypeID); err != nil {
			return nil, err
		}
		if view.VehicleType, err = s.valueName(ctx, h, models.DimVehicleType, m.VehicleTypeID); err != nil {
			return nil, err
		}

		views = append(views, view)
	}
	return views, nil
}

// GenerateHierarchy materializes the canonical hierarchy over the
// configured curated window.
func (s *MappingService) GenerateHierarchy(ctx context.Context) (int, error) {
	curated := models.YearRange{
		From:  s.regCfg.CuratedFrom,
		Until: s.regCfg.CuratedUntil,
	}
	entries, err := s.engine.GenerateCanonicalHierarchy(ctx, curated)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Suggest pre-fills a mapping for an uncurated pair targeting the given
// canonical pair. Fuel-type and vehicle-type picks come from the curated
// observations of the canonical pair, run through the priority heuristic.
func (s *MappingService) Suggest(ctx context.Context, canonicalMakeID, canonicalModelID uint32) (*MappingSuggestion, error) {
	entries, err := s.engine.HierarchyForPair(ctx, canonicalMakeID, canonicalModelID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, apperrors.ErrNotFound
	}

	h, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, apperrors.Storage("acquire for suggestion", err)
	}
	defer h.Close()

	fuelCounts := make(map[uint32]int)
	typeCounts := make(map[uint32]int)
	for _, e := range entries {
		fuelCounts[e.FuelTypeID] += e.RecordCount
		typeCounts[e.VehicleTypeID] += e.RecordCount
	}

	observedFuel, err := s.namedCounts(ctx, h, models.DimFuelType, fuelCounts)
	if err != nil {
		return nil, err
	}
	observedType, err := s.namedCounts(ctx, h, models.DimVehicleType, typeCounts)
	if err != nil {
		return nil, err
	}

	suggestion := &MappingSuggestion{
		CanonicalMakeID:      canonicalMakeID,
		CanonicalModelID:     canonicalModelID,
		ObservedFuelTypes:    observedFuel,
		ObservedVehicleTypes: observedType,
	}
	suggestion.FuelType, suggestion.FuelTypeResolved =
		regularization.AutoAssign(observedFuel, s.regCfg.FuelTypePriorities)
	suggestion.VehicleType, suggestion.VehicleTypeResolved =
		regularization.AutoAssign(observedType, s.regCfg.VehicleTypePriorities)

	return suggestion, nil
}

// valueName resolves a dimension id to its display value. Zero ids are the
// unset sentinel and resolve to "".
func (s *MappingService) valueName(ctx context.Context, h *database.Handle, cat models.DimensionCategory, id uint32) (string, error) {
	if id == 0 {
		return "", nil
	}
	item, err := s.dims.GetByID(ctx, h, cat, id)
	if err != nil {
		return "", err
	}
	return item.Value, nil
}

// namedCounts converts an id-keyed count map into named observations,
// skipping the unknown sentinel so it never wins an auto-assignment.
func (s *MappingService) namedCounts(ctx context.Context, h *database.Handle, cat models.DimensionCategory, counts map[uint32]int) ([]regularization.ValueCount, error) {
	observed := make([]regularization.ValueCount, 0, len(counts))
	for id, count := range counts {
		name, err := s.valueName(ctx, h, cat, id)
		if err != nil {
			return nil, err
		}
		if name == "" || name == models.UnknownValue {
			continue
		}
		observed = append(observed, regularization.ValueCount{Value: name, Count: count})
	}
	sort.Slice(observed, func(i, j int) bool {
		if observed[i].Count != observed[j].Count {
			return observed[i].Count > observed[j].Count
		}
		return observed[i].Value < observed[j].Value
	})
	return observed, nil
}
