// Package regularization stores curated mappings from non-canonical
// categorical combinations to canonical ones, materializes the canonical
// hierarchy over curated years, and expands filter requests under the
// configured coupling policy.
package regularization

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fleetlens-io/fleetlens-engine/pkg/apperrors"
	"github.com/fleetlens-io/fleetlens-engine/pkg/database"
	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
	"github.com/fleetlens-io/fleetlens-engine/pkg/repositories"
)

// ErrSuperseded reports that a hierarchy generation was overtaken by a newer
// configuration while running. Its partial result is discarded, never
// merged; the caller may simply re-request.
var ErrSuperseded = errors.New("hierarchy generation superseded")

// Engine owns the regularization mapping set and the canonical hierarchy.
type Engine struct {
	db        *database.DB
	mappings  repositories.MappingRepository
	hierarchy repositories.HierarchyRepository
	logger    *zap.Logger

	// generation orders hierarchy computations; a stale computation
	// observes a newer value and discards its result.
	generation atomic.Uint64

	memoMu      sync.Mutex
	memoKey     string
	memoEntries []models.HierarchyEntry
}

// NewEngine creates a regularization engine.
func NewEngine(db *database.DB, mappings repositories.MappingRepository, hierarchy repositories.HierarchyRepository, logger *zap.Logger) *Engine {
	return &Engine{
		db:        db,
		mappings:  mappings,
		hierarchy: hierarchy,
		logger:    logger,
	}
}

// AddMapping validates and persists a curated mapping. Violating the
// make-consistency invariant (one uncurated make bound to two different
// canonical makes) fails with ConflictingMappingError before any write.
// Successful mutations bump the data-generation stamp so caches refresh.
func (e *Engine) AddMapping(ctx context.Context, m *models.RegularizationMapping) error {
	if err := validateMapping(m); err != nil {
		return err
	}

	h, err := e.db.Acquire(ctx)
	if err != nil {
		return apperrors.Storage("acquire for add mapping", err)
	}
	defer h.Close()

	existing, found, err := e.mappings.CanonicalMakeFor(ctx, h, m.UncuratedMakeID)
	if err != nil {
		return err
	}
	if found && existing != m.CanonicalMakeID {
		return &apperrors.ConflictingMappingError{
			UncuratedMakeID:     m.UncuratedMakeID,
			ExistingCanonicalID: existing,
			ProposedCanonicalID: m.CanonicalMakeID,
		}
	}

	if err := e.mappings.Insert(ctx, h, m); err != nil {
		return err
	}
	if err := database.BumpDataGeneration(ctx, h); err != nil {
		return err
	}

	e.logger.Info("Regularization mapping added",
		zap.String("id", m.ID.String()),
		zap.Uint32("uncurated_make", m.UncuratedMakeID),
		zap.Uint32("uncurated_model", m.UncuratedModelID),
		zap.Uint32("canonical_make", m.CanonicalMakeID),
		zap.Uint32("canonical_model", m.CanonicalModelID))
	return nil
}

// RemoveMapping deletes a mapping by id and bumps the data generation.
func (e *Engine) RemoveMapping(ctx context.Context, id uuid.UUID) error {
	h, err := e.db.Acquire(ctx)
	if err != nil {
		return apperrors.Storage("acquire for remove mapping", err)
	}
	defer h.Close()

	if err := e.mappings.Delete(ctx, h, id); err != nil {
		return err
	}
	if err := database.BumpDataGeneration(ctx, h); err != nil {
		return err
	}

	e.logger.Info("Regularization mapping removed", zap.String("id", id.String()))
	return nil
}

// ListMappings returns the full mapping set.
func (e *Engine) ListMappings(ctx context.Context) ([]*models.RegularizationMapping, error) {
	h, err := e.db.Acquire(ctx)
	if err != nil {
		return nil, apperrors.Storage("acquire for list mappings", err)
	}
	defer h.Close()

	return e.mappings.ListAll(ctx, h)
}

func validateMapping(m *models.RegularizationMapping) error {
	if m.UncuratedMakeID == 0 || m.UncuratedModelID == 0 {
		return fmt.Errorf("mapping requires an uncurated make and model")
	}
	if m.CanonicalMakeID == 0 || m.CanonicalModelID == 0 {
		return fmt.Errorf("mapping requires a canonical make and model")
	}
	if m.UncuratedMakeID == m.CanonicalMakeID && m.UncuratedModelID == m.CanonicalModelID {
		return fmt.Errorf("mapping must change the make or the model")
	}
	return nil
}

// GenerateCanonicalHierarchy materializes the (make, model, model year,
// fuel type, vehicle type) hierarchy over curated years. The result is
// memoized keyed by a hash of (curated years, data generation) and
// recomputed only when that key changes; the aggregation itself is the most
// expensive operation in the engine. A computation overtaken by a newer one
// returns ErrSuperseded and its result is discarded.
func (e *Engine) GenerateCanonicalHierarchy(ctx context.Context, curated models.YearRange) ([]models.HierarchyEntry, error) {
	h, err := e.db.Acquire(ctx)
	if err != nil {
		return nil, apperrors.Storage("acquire for hierarchy", err)
	}
	defer h.Close()

	gen, err := database.DataGeneration(ctx, h)
	if err != nil {
		return nil, err
	}
	key := hierarchyCacheKey(curated, gen)

	// In-process memo.
	e.memoMu.Lock()
	if e.memoKey == key && e.memoEntries != nil {
		entries := e.memoEntries
		e.memoMu.Unlock()
		return entries, nil
	}
	e.memoMu.Unlock()

	// Persisted memo: a previous process may have built this key already.
	persistedKey, err := e.hierarchy.CacheKey(ctx, h)
	if err != nil {
		return nil, err
	}
	if persistedKey == key {
		entries, err := e.hierarchy.List(ctx, h)
		if err != nil {
			return nil, err
		}
		e.storeMemo(key, entries)
		return entries, nil
	}

	myGen := e.generation.Add(1)

	entries, err := e.hierarchy.AggregateCurated(ctx, h, curated)
	if err != nil {
		return nil, err
	}

	if e.generation.Load() != myGen {
		return nil, ErrSuperseded
	}

	if err := e.hierarchy.Replace(ctx, h, entries, key); err != nil {
		return nil, err
	}
	e.storeMemo(key, entries)

	e.logger.Info("Canonical hierarchy generated",
		zap.Int("combinations", len(entries)),
		zap.Int("curated_from", curated.From),
		zap.Int("curated_until", curated.Until))
	return entries, nil
}

// HierarchyForPair reads the materialized hierarchy for one (make, model)
// pair. Serves the curation tooling's read API.
func (e *Engine) HierarchyForPair(ctx context.Context, makeID, modelID uint32) ([]models.HierarchyEntry, error) {
	h, err := e.db.Acquire(ctx)
	if err != nil {
		return nil, apperrors.Storage("acquire for hierarchy read", err)
	}
	defer h.Close()

	return e.hierarchy.ListByPair(ctx, h, makeID, modelID)
}

func (e *Engine) storeMemo(key string, entries []models.HierarchyEntry) {
	e.memoMu.Lock()
	e.memoKey = key
	e.memoEntries = entries
	e.memoMu.Unlock()
}

func hierarchyCacheKey(curated models.YearRange, generation uint64) string {
	d := xxhash.New()
	_, _ = d.WriteString(strconv.Itoa(curated.From))
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(strconv.Itoa(curated.Until))
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(strconv.FormatUint(generation, 10))
	return strconv.FormatUint(d.Sum64(), 16)
}
