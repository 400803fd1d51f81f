// Package cache holds the in-memory, swappable snapshot of all dimension
// tables plus regularization metadata. The cache is an explicitly owned
// service instance passed to its callers; there is no ambient global state.
package cache

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fleetlens-io/fleetlens-engine/pkg/apperrors"
	"github.com/fleetlens-io/fleetlens-engine/pkg/database"
	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
	"github.com/fleetlens-io/fleetlens-engine/pkg/regularization"
	"github.com/fleetlens-io/fleetlens-engine/pkg/repositories"
)

// State is the cache lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// FilterCache loads and serves dimension snapshots. At most one population
// runs at a time; concurrent Initialize calls for the same scope collapse
// into the in-flight build. Initialize compares the store's data-generation
// stamp against the live snapshot and rebuilds automatically when they
// differ, so callers are not required to Invalidate first.
type FilterCache struct {
	db       *database.DB
	dims     repositories.DimensionRepository
	mappings repositories.MappingRepository
	logger   *zap.Logger

	state    atomic.Int32
	snapshot atomic.Pointer[Snapshot]
	flight   singleflight.Group
}

// NewFilterCache creates an uninitialized FilterCache.
func NewFilterCache(db *database.DB, dims repositories.DimensionRepository, mappings repositories.MappingRepository, logger *zap.Logger) *FilterCache {
	return &FilterCache{
		db:       db,
		dims:     dims,
		mappings: mappings,
		logger:   logger,
	}
}

// State returns the current lifecycle state.
func (c *FilterCache) State() State {
	return State(c.state.Load())
}

// IsReady reports whether a snapshot is available for reading.
func (c *FilterCache) IsReady() bool {
	return c.State() == StateReady && c.snapshot.Load() != nil
}

// Snapshot returns the current snapshot, or ErrCacheNotReady.
func (c *FilterCache) Snapshot() (*Snapshot, error) {
	snap := c.snapshot.Load()
	if snap == nil || c.State() != StateReady {
		return nil, apperrors.ErrCacheNotReady
	}
	return snap, nil
}

// Initialize loads the dimensions relevant to scope (the shared set plus the
// scope-specific set) into memory. It is a no-op when a snapshot for the
// scope is already live and its data-generation stamp still matches the
// store. Rebuilds publish atomically; readers keep the old snapshot until
// the new one is complete.
func (c *FilterCache) Initialize(ctx context.Context, scope models.EntityScope) error {
	if !scope.Valid() {
		return fmt.Errorf("invalid entity scope %q", scope)
	}

	if snap := c.snapshot.Load(); snap != nil && snap.Scope() == scope {
		stale, err := c.isStale(ctx, snap)
		if err != nil {
			return err
		}
		if !stale {
			return nil
		}
	}

	if c.snapshot.Load() == nil {
		c.state.Store(int32(StateInitializing))
	}

	_, err, _ := c.flight.Do(string(scope), func() (any, error) {
		snap, err := c.build(ctx, scope)
		if err != nil {
			if c.snapshot.Load() == nil {
				c.state.Store(int32(StateUninitialized))
			}
			return nil, err
		}
		c.snapshot.Store(snap)
		c.state.Store(int32(StateReady))
		c.logger.Info("Filter cache ready",
			zap.String("scope", string(scope)),
			zap.Uint64("generation", snap.Generation()),
			zap.Int("mappings", len(snap.AllMappings())))
		return nil, nil
	})
	return err
}

// Invalidate drops the snapshot and returns the cache to Uninitialized.
// Kept for explicit cache drops; routine refreshes happen automatically via
// the generation stamp on Initialize.
func (c *FilterCache) Invalidate() {
	c.snapshot.Store(nil)
	c.state.Store(int32(StateUninitialized))
	c.logger.Info("Filter cache invalidated")
}

// isStale compares the snapshot's generation stamp with the store's.
func (c *FilterCache) isStale(ctx context.Context, snap *Snapshot) (bool, error) {
	h, err := c.db.Acquire(ctx)
	if err != nil {
		return false, apperrors.Storage("acquire for staleness check", err)
	}
	defer h.Close()

	gen, err := database.DataGeneration(ctx, h)
	if err != nil {
		return false, err
	}
	return gen != snap.Generation(), nil
}

// build loads a complete snapshot on its own handle.
func (c *FilterCache) build(ctx context.Context, scope models.EntityScope) (*Snapshot, error) {
	h, err := c.db.Acquire(ctx)
	if err != nil {
		return nil, apperrors.Storage("acquire for cache build", err)
	}
	defer h.Close()

	gen, err := database.DataGeneration(ctx, h)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		scope:        scope,
		generation:   gen,
		items:        make(map[models.DimensionCategory][]models.DimensionValue),
		valueIndex:   make(map[models.DimensionCategory]map[string]uint32),
		byModel:      make(map[uint32][]*models.RegularizationMapping),
		byPair:       make(map[models.PairKey][]*models.RegularizationMapping),
		makeMappings: make(map[uint32]models.MakeMapping),
		tripletFuel:  make(map[models.TripletKey]uint32),
		modelsByMake: make(map[uint32][]uint32),
	}

	for _, cat := range models.CategoriesForScope(scope) {
		items, err := c.dims.ListByCategory(ctx, h, cat)
		if err != nil {
			return nil, err
		}
		snap.items[cat] = items

		idx := make(map[string]uint32, len(items))
		for _, item := range items {
			idx[item.Value] = item.ID
			if cat == models.DimModel && item.ParentID != 0 {
				snap.modelsByMake[item.ParentID] = append(snap.modelsByMake[item.ParentID], item.ID)
			}
			if cat == models.DimFuelType && item.Value == models.UnknownValue {
				snap.unknownFuelID = item.ID
			}
		}
		snap.valueIndex[cat] = idx
	}

	if scope == models.ScopeVehicle {
		mappings, err := c.mappings.ListAll(ctx, h)
		if err != nil {
			return nil, err
		}
		snap.mappings = mappings

		for _, m := range mappings {
			snap.byModel[m.UncuratedModelID] = append(snap.byModel[m.UncuratedModelID], m)
			if m.CanonicalModelID != m.UncuratedModelID {
				snap.byModel[m.CanonicalModelID] = append(snap.byModel[m.CanonicalModelID], m)
			}
			pair := models.PairKey{MakeID: m.UncuratedMakeID, ModelID: m.UncuratedModelID}
			snap.byPair[pair] = append(snap.byPair[pair], m)

			if m.FuelTypeID != 0 {
				key := models.TripletKey{
					MakeID:      m.UncuratedMakeID,
					ModelID:     m.UncuratedModelID,
					ModelYearID: m.ModelYearID,
				}
				snap.tripletFuel[key] = m.FuelTypeID
			}
		}

		for _, mm := range regularization.DeriveMakeMappings(mappings) {
			snap.makeMappings[mm.UncuratedMakeID] = mm
		}
	}

	return snap, nil
}
