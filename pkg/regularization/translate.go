package regularization

import "github.com/fleetlens-io/fleetlens-engine/pkg/models"

// MappingSource is the read view TranslateFilter consults. The filter
// cache's snapshot satisfies it.
type MappingSource interface {
	MappingsForModel(modelID uint32) []*models.RegularizationMapping
	MakeMappings() map[uint32]models.MakeMapping
	FuelTripletsFor(fuelIDs []uint32) []models.TripletKey
	UnknownFuelID() uint32
}

// TranslateFilter expands a resolved filter under the regularization
// mapping set.
//
// For every selected value with a known mapping the id set is widened to
// include both the uncurated and the canonical id (bidirectional: selecting
// either side matches records written under both spellings).
//
// With coupling enabled, expanding model values without an accompanying
// explicit make filter injects the make ids referenced by the mappings as a
// constraint, so an identically named model under an unrelated make cannot
// leak into the result. With coupling disabled, make and model stay
// independent even under expansion.
//
// With includeLegacyFuel enabled, a fuel-type constraint also admits records
// predating the fuel field whose (make, model, model year) triplet is mapped
// to a requested fuel.
func TranslateFilter(src MappingSource, filter models.FilterIDs, coupling, includeLegacyFuel bool) models.FilterIDs {
	out := filter.Clone()
	hadExplicitMake := filter.Has(models.DimMake)

	// Make-level bidirectional expansion.
	if hadExplicitMake {
		for _, makeID := range filter.IDs[models.DimMake] {
			for uncurated, mm := range src.MakeMappings() {
				if uncurated == makeID {
					out.Add(models.DimMake, mm.CanonicalMakeID)
				}
				if mm.CanonicalMakeID == makeID {
					out.Add(models.DimMake, uncurated)
				}
			}
		}
	}

	// Model-level bidirectional expansion, collecting coupled makes.
	var coupledMakes []uint32
	for _, modelID := range filter.IDs[models.DimModel] {
		for _, m := range src.MappingsForModel(modelID) {
			out.Add(models.DimModel, m.UncuratedModelID, m.CanonicalModelID)
			coupledMakes = append(coupledMakes, m.UncuratedMakeID, m.CanonicalMakeID)
		}
	}
	if coupling && !hadExplicitMake && len(coupledMakes) > 0 {
		out.Add(models.DimMake, coupledMakes...)
	}

	// Triplet-scoped fuel widening for pre-schema-change records.
	if includeLegacyFuel && filter.Has(models.DimFuelType) {
		if unknownID := src.UnknownFuelID(); unknownID != 0 {
			triplets := src.FuelTripletsFor(out.IDs[models.DimFuelType])
			if len(triplets) > 0 {
				out.FuelTriplets = triplets
				out.UnknownFuelID = unknownID
			}
		}
	}

	return out
}
