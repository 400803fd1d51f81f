package regularization

import (
	"sort"

	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
)

// DeriveMakeMappings groups model-level mappings by uncurated make to
// produce the make-level regularization view. There is no stored
// make-mapping; this derivation is the only source of make-level data, so
// it can never drift from the model-level mapping set.
func DeriveMakeMappings(mappings []*models.RegularizationMapping) []models.MakeMapping {
	grouped := make(map[uint32]*models.MakeMapping)
	for _, m := range mappings {
		mm, ok := grouped[m.UncuratedMakeID]
		if !ok {
			mm = &models.MakeMapping{
				UncuratedMakeID: m.UncuratedMakeID,
				CanonicalMakeID: m.CanonicalMakeID,
			}
			grouped[m.UncuratedMakeID] = mm
		}
		mm.ModelCount++
		mm.RecordCount += m.RecordCount
	}

	out := make([]models.MakeMapping, 0, len(grouped))
	for _, mm := range grouped {
		out = append(out, *mm)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UncuratedMakeID < out[j].UncuratedMakeID
	})
	return out
}
