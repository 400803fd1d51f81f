package cache

import (
	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
)

// Snapshot is one immutable, fully built view of the dimension tables plus
// regularization metadata. Readers hold a *Snapshot and never observe
// partial state; rebuilds construct a fresh Snapshot and publish it
// atomically.
type Snapshot struct {
	scope      models.EntityScope
	generation uint64

	items      map[models.DimensionCategory][]models.DimensionValue
	valueIndex map[models.DimensionCategory]map[string]uint32

	mappings     []*models.RegularizationMapping
	byModel      map[uint32][]*models.RegularizationMapping
	byPair       map[models.PairKey][]*models.RegularizationMapping
	makeMappings map[uint32]models.MakeMapping
	tripletFuel  map[models.TripletKey]uint32

	modelsByMake  map[uint32][]uint32
	unknownFuelID uint32
}

// Scope returns the entity scope the snapshot was warmed for.
func (s *Snapshot) Scope() models.EntityScope { return s.scope }

// Generation returns the data-generation stamp the snapshot was built from.
func (s *Snapshot) Generation() uint64 { return s.generation }

// Items returns the dimension values loaded for a category, sorted by value.
func (s *Snapshot) Items(cat models.DimensionCategory) []models.DimensionValue {
	return s.items[cat]
}

// ValueID resolves a display value to its dimension id.
func (s *Snapshot) ValueID(cat models.DimensionCategory, value string) (uint32, bool) {
	idx, ok := s.valueIndex[cat]
	if !ok {
		return 0, false
	}
	id, ok := idx[value]
	return id, ok
}

// AllMappings returns every regularization mapping (vehicle scope only).
func (s *Snapshot) AllMappings() []*models.RegularizationMapping {
	return s.mappings
}

// MappingsForModel returns mappings touching the model id on either the
// uncurated or the canonical side.
func (s *Snapshot) MappingsForModel(modelID uint32) []*models.RegularizationMapping {
	return s.byModel[modelID]
}

// MappingsForPair returns mappings whose uncurated (make, model) pair
// matches.
func (s *Snapshot) MappingsForPair(makeID, modelID uint32) []*models.RegularizationMapping {
	return s.byPair[models.PairKey{MakeID: makeID, ModelID: modelID}]
}

// MakeMappings returns the make-level regularization view, derived by
// grouping model-level mappings by uncurated make.
func (s *Snapshot) MakeMappings() map[uint32]models.MakeMapping {
	return s.makeMappings
}

// ModelsByMake returns the model ids whose parent is the given make. The UI
// consumes this adjacency for hierarchical filtering; it is computed here,
// never by the UI.
func (s *Snapshot) ModelsByMake(makeID uint32) []uint32 {
	return s.modelsByMake[makeID]
}

// TripletFuel returns the fuel type assigned to a (make, model, model year)
// triplet by the mapping set, if any. Fuel resolution is triplet-scoped
// because a model's fuel composition changes across model-year generations.
func (s *Snapshot) TripletFuel(key models.TripletKey) (uint32, bool) {
	id, ok := s.tripletFuel[key]
	return id, ok
}

// FuelTripletsFor returns every mapped triplet resolving to one of the given
// fuel ids. Used to include pre-schema-change records that carry no
// observable fuel value.
func (s *Snapshot) FuelTripletsFor(fuelIDs []uint32) []models.TripletKey {
	want := make(map[uint32]struct{}, len(fuelIDs))
	for _, id := range fuelIDs {
		want[id] = struct{}{}
	}
	var triplets []models.TripletKey
	for key, fuel := range s.tripletFuel {
		if _, ok := want[fuel]; ok {
			triplets = append(triplets, key)
		}
	}
	return triplets
}

// UnknownFuelID returns the id of the unknown-fuel sentinel value, 0 when
// the dimension does not contain one.
func (s *Snapshot) UnknownFuelID() uint32 { return s.unknownFuelID }
