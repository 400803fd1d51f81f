// Package translator converts presentation-supplied FilterSpecs into
// resolved dimension-id sets, consulting the filter cache and the
// regularization engine.
package translator

import (
	"github.com/fleetlens-io/fleetlens-engine/pkg/apperrors"
	"github.com/fleetlens-io/fleetlens-engine/pkg/cache"
	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
	"github.com/fleetlens-io/fleetlens-engine/pkg/regularization"
)

// Options control filter resolution.
type Options struct {
	// Regularize enables mapping expansion.
	Regularize bool
	// Coupling injects the mapped make constraint when models expand
	// without an explicit make filter. Only meaningful when Regularize is
	// set.
	Coupling bool
	// IncludeLegacyFuel admits pre-schema-change records into fuel-type
	// filters via triplet mappings.
	IncludeLegacyFuel bool
}

// Translator resolves FilterSpecs against the filter cache.
type Translator struct {
	cache *cache.FilterCache
}

// New creates a Translator reading from c.
func New(c *cache.FilterCache) *Translator {
	return &Translator{cache: c}
}

// Resolve translates a FilterSpec into dimension-id sets. Every selected
// token is parsed once (badge and parenthetical code stripped) and looked up
// in the cache snapshot; tokens matching nothing produce an
// UnresolvedFilterValueError naming them all - the engine never drops a
// filter silently. Requires a Ready cache, otherwise ErrCacheNotReady.
func (t *Translator) Resolve(spec models.FilterSpec, opts Options) (models.FilterIDs, error) {
	snap, err := t.cache.Snapshot()
	if err != nil {
		return models.FilterIDs{}, err
	}
	if snap.Scope() != spec.Scope {
		return models.FilterIDs{}, apperrors.ErrCacheNotReady
	}

	out := models.NewFilterIDs(spec.Scope)
	out.YearFrom = spec.YearFrom
	out.YearUntil = spec.YearUntil

	for _, cat := range models.CategoriesForScope(spec.Scope) {
		raws, ok := spec.Selected[cat]
		if !ok || len(raws) == 0 {
			continue
		}

		var unresolved []string
		for _, raw := range raws {
			token := ParseToken(raw)

			if token.DimensionID != 0 {
				out.Add(cat, token.DimensionID)
				continue
			}
			id, ok := snap.ValueID(cat, token.DisplayName)
			if !ok {
				unresolved = append(unresolved, token.DisplayName)
				continue
			}
			out.Add(cat, id)
		}
		if len(unresolved) > 0 {
			return models.FilterIDs{}, &apperrors.UnresolvedFilterValueError{
				Category: string(cat),
				Tokens:   unresolved,
			}
		}
	}

	if opts.Regularize && spec.Scope == models.ScopeVehicle {
		out = regularization.TranslateFilter(snap, out, opts.Coupling, opts.IncludeLegacyFuel)
	}

	return out, nil
}
