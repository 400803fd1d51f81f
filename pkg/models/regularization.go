package models

import (
	"time"

	"github.com/google/uuid"
)

// RegularizationMapping maps a non-canonical (make, model[, model year])
// combination observed in uncurated years to its canonical form. Curated by
// a human reviewer; persisted; rarely deleted.
//
// Invariant: all mappings sharing an UncuratedMakeID resolve to the same
// CanonicalMakeID. A make never maps to two different canonical makes.
type RegularizationMapping struct {
	ID uuid.UUID

	UncuratedMakeID  uint32
	UncuratedModelID uint32
	ModelYearID      uint32 // 0 = applies to all model years of the pair

	CanonicalMakeID  uint32
	CanonicalModelID uint32
	FuelTypeID       uint32 // 0 = fuel type not assigned
	VehicleTypeID    uint32 // 0 = vehicle type not assigned

	RecordCount int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PairKey identifies the uncurated (make, model) pair of a mapping.
type PairKey struct {
	MakeID  uint32
	ModelID uint32
}

// TripletKey identifies a (make, model, model year) combination. Fuel-type
// resolution is scoped to the triplet because a model's fuel composition
// changes across model-year generations.
type TripletKey struct {
	MakeID      uint32
	ModelID     uint32
	ModelYearID uint32
}

// MakeMapping is the make-level view derived by grouping model-level
// mappings by uncurated make. It is never stored; it always reflects the
// model-level mapping set.
type MakeMapping struct {
	UncuratedMakeID uint32
	CanonicalMakeID uint32
	ModelCount      int
	RecordCount     int
}

// HierarchyEntry is one row of the materialized canonical hierarchy: a
// (make, model, model year, fuel type, vehicle type) combination observed in
// curated years, with its record count.
type HierarchyEntry struct {
	MakeID        uint32
	ModelID       uint32
	ModelYearID   uint32
	FuelTypeID    uint32
	VehicleTypeID uint32
	RecordCount   int
}

// YearRange is a closed interval of calendar years.
type YearRange struct {
	From  int
	Until int
}

// Contains reports whether year falls inside the range.
func (r YearRange) Contains(year int) bool {
	return year >= r.From && year <= r.Until
}
