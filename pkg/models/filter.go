package models

import "sort"

// FilterToken is a single selected filter value, parsed once at the system
// boundary. The presentation layer sends display strings that may carry a
// parenthetical numeric code and a badge marking known non-canonical
// spellings; internals only ever see this typed form and never re-parse
// display strings.
type FilterToken struct {
	DisplayName   string
	DimensionID   uint32 // 0 when the token carried no embedded code
	IsRegularized bool
}

// FilterSpec is the ephemeral, presentation-supplied request: selected
// display tokens per filter category. Never persisted.
type FilterSpec struct {
	Scope     EntityScope
	Selected  map[DimensionCategory][]string
	YearFrom  int // 0 = unbounded
	YearUntil int // 0 = unbounded
}

// FilterIDs is a fully resolved filter: for each constrained category, the
// set of dimension ids a fact row may match. An absent category is
// unconstrained.
type FilterIDs struct {
	Scope     EntityScope
	IDs       map[DimensionCategory][]uint32
	YearFrom  int
	YearUntil int

	// FuelTriplets widens a fuel-type constraint to records predating the
	// fuel field: a row with the unknown-fuel sentinel matches when its
	// (make, model, model year) triplet is mapped to a requested fuel.
	FuelTriplets  []TripletKey
	UnknownFuelID uint32
}

// NewFilterIDs returns an empty resolved filter for scope.
func NewFilterIDs(scope EntityScope) FilterIDs {
	return FilterIDs{Scope: scope, IDs: make(map[DimensionCategory][]uint32)}
}

// Add appends ids to the category's constraint set, deduplicating and
// keeping the set sorted so that equal filters compare equal.
func (f *FilterIDs) Add(cat DimensionCategory, ids ...uint32) {
	if len(ids) == 0 {
		return
	}
	merged := append(f.IDs[cat], ids...)
	sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })
	out := merged[:0]
	var last uint32
	for i, id := range merged {
		if i == 0 || id != last {
			out = append(out, id)
		}
		last = id
	}
	f.IDs[cat] = out
}

// Has reports whether the category is constrained.
func (f *FilterIDs) Has(cat DimensionCategory) bool {
	return len(f.IDs[cat]) > 0
}

// Clone returns a deep copy. Query building mutates filters while attaching
// regularization expansions; callers keep their original.
func (f *FilterIDs) Clone() FilterIDs {
	out := FilterIDs{
		Scope:     f.Scope,
		IDs:       make(map[DimensionCategory][]uint32, len(f.IDs)),
		YearFrom:  f.YearFrom,
		YearUntil: f.YearUntil,
	}
	for cat, ids := range f.IDs {
		cp := make([]uint32, len(ids))
		copy(cp, ids)
		out.IDs[cat] = cp
	}
	if len(f.FuelTriplets) > 0 {
		out.FuelTriplets = make([]TripletKey, len(f.FuelTriplets))
		copy(out.FuelTriplets, f.FuelTriplets)
	}
	out.UnknownFuelID = f.UnknownFuelID
	return out
}
