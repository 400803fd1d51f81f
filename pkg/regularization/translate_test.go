package regularization

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
)

// fakeSource is a hand-rolled MappingSource for translation tests.
type fakeSource struct {
	byModel      map[uint32][]*models.RegularizationMapping
	makeMappings map[uint32]models.MakeMapping
	tripletFuel  map[models.TripletKey]uint32
	unknownFuel  uint32
}

func (f *fakeSource) MappingsForModel(modelID uint32) []*models.RegularizationMapping {
	return f.byModel[modelID]
}

func (f *fakeSource) MakeMappings() map[uint32]models.MakeMapping {
	return f.makeMappings
}

func (f *fakeSource) FuelTripletsFor(fuelIDs []uint32) []models.TripletKey {
	want := make(map[uint32]struct{}, len(fuelIDs))
	for _, id := range fuelIDs {
		want[id] = struct{}{}
	}
	var out []models.TripletKey
	for key, fuel := range f.tripletFuel {
		if _, ok := want[fuel]; ok {
			out = append(out, key)
		}
	}
	return out
}

func (f *fakeSource) UnknownFuelID() uint32 { return f.unknownFuel }

// crvSource models the classic case: uncurated make 10 "HONDA" / model 14
// "CRV" mapped to canonical make 11 "Honda" / model 197 "CR-V".
func crvSource() *fakeSource {
	mapping := &models.RegularizationMapping{
		UncuratedMakeID:  10,
		UncuratedModelID: 14,
		CanonicalMakeID:  11,
		CanonicalModelID: 197,
	}
	return &fakeSource{
		byModel: map[uint32][]*models.RegularizationMapping{
			14:  {mapping},
			197: {mapping},
		},
		makeMappings: map[uint32]models.MakeMapping{
			10: {UncuratedMakeID: 10, CanonicalMakeID: 11, ModelCount: 1},
		},
	}
}

func TestTranslateFilter_ModelExpansionIsBidirectional(t *testing.T) {
	src := crvSource()

	t.Run("selecting the canonical side admits the uncurated side", func(t *testing.T) {
		f := models.NewFilterIDs(models.ScopeVehicle)
		f.Add(models.DimModel, 197)

		out := TranslateFilter(src, f, true, false)

		assert.Equal(t, []uint32{14, 197}, out.IDs[models.DimModel])
	})

	t.Run("selecting the uncurated side admits the canonical side", func(t *testing.T) {
		f := models.NewFilterIDs(models.ScopeVehicle)
		f.Add(models.DimModel, 14)

		out := TranslateFilter(src, f, true, false)

		assert.Equal(t, []uint32{14, 197}, out.IDs[models.DimModel])
	})
}

func TestTranslateFilter_Coupling(t *testing.T) {
	src := crvSource()

	t.Run("coupling injects both mapped makes when no make was selected", func(t *testing.T) {
		f := models.NewFilterIDs(models.ScopeVehicle)
		f.Add(models.DimModel, 197)

		out := TranslateFilter(src, f, true, false)

		assert.Equal(t, []uint32{10, 11}, out.IDs[models.DimMake])
	})

	t.Run("coupling off leaves the make unconstrained", func(t *testing.T) {
		f := models.NewFilterIDs(models.ScopeVehicle)
		f.Add(models.DimModel, 197)

		out := TranslateFilter(src, f, false, false)

		assert.False(t, out.Has(models.DimMake))
	})

	t.Run("an explicit make filter suppresses coupling injection", func(t *testing.T) {
		f := models.NewFilterIDs(models.ScopeVehicle)
		f.Add(models.DimMake, 11)
		f.Add(models.DimModel, 197)

		out := TranslateFilter(src, f, true, false)

		// The make set is still expanded bidirectionally, but only from the
		// explicit selection, not from the model mappings.
		assert.Equal(t, []uint32{10, 11}, out.IDs[models.DimMake])
	})
}

func TestTranslateFilter_MakeExpansionIsBidirectional(t *testing.T) {
	src := crvSource()

	for _, selected := range []uint32{10, 11} {
		f := models.NewFilterIDs(models.ScopeVehicle)
		f.Add(models.DimMake, selected)

		out := TranslateFilter(src, f, true, false)

		assert.Equal(t, []uint32{10, 11}, out.IDs[models.DimMake], "selected make %d", selected)
	}
}

func TestTranslateFilter_UnmappedValuesAreUnchanged(t *testing.T) {
	src := crvSource()

	f := models.NewFilterIDs(models.ScopeVehicle)
	f.Add(models.DimMake, 99)
	f.Add(models.DimModel, 500)
	f.Add(models.DimColor, 3)

	out := TranslateFilter(src, f, true, true)

	assert.Equal(t, f.IDs, out.IDs)
	assert.Empty(t, out.FuelTriplets)
}

func TestTranslateFilter_LegacyFuelWidening(t *testing.T) {
	src := crvSource()
	src.unknownFuel = 90
	src.tripletFuel = map[models.TripletKey]uint32{
		{MakeID: 10, ModelID: 14, ModelYearID: 3}: 5,
		{MakeID: 10, ModelID: 14, ModelYearID: 4}: 6,
	}

	f := models.NewFilterIDs(models.ScopeVehicle)
	f.Add(models.DimFuelType, 5)

	t.Run("enabled", func(t *testing.T) {
		out := TranslateFilter(src, f, true, true)

		assert.Equal(t, uint32(90), out.UnknownFuelID)
		assert.Equal(t,
			[]models.TripletKey{{MakeID: 10, ModelID: 14, ModelYearID: 3}},
			out.FuelTriplets)
	})

	t.Run("disabled", func(t *testing.T) {
		out := TranslateFilter(src, f, true, false)

		assert.Empty(t, out.FuelTriplets)
		assert.Zero(t, out.UnknownFuelID)
	})
}

func TestDeriveMakeMappings(t *testing.T) {
	mappings := []*models.RegularizationMapping{
		{UncuratedMakeID: 10, UncuratedModelID: 14, CanonicalMakeID: 11, CanonicalModelID: 197, RecordCount: 14},
		{UncuratedMakeID: 10, UncuratedModelID: 15, CanonicalMakeID: 11, CanonicalModelID: 198, RecordCount: 6},
		{UncuratedMakeID: 20, UncuratedModelID: 30, CanonicalMakeID: 21, CanonicalModelID: 31, RecordCount: 1},
	}

	out := DeriveMakeMappings(mappings)

	assert.Equal(t, []models.MakeMapping{
		{UncuratedMakeID: 10, CanonicalMakeID: 11, ModelCount: 2, RecordCount: 20},
		{UncuratedMakeID: 20, CanonicalMakeID: 21, ModelCount: 1, RecordCount: 1},
	}, out)
}
