package models

// EntityScope selects which family of fact records and dimensions an
// operation concerns. The vehicle and license families share only a small
// set of dimensions; loading both at once would pull tens of thousands of
// irrelevant values into memory.
type EntityScope string

const (
	ScopeVehicle EntityScope = "vehicle"
	ScopeLicense EntityScope = "license"
)

// Valid reports whether s names a known entity scope.
func (s EntityScope) Valid() bool {
	return s == ScopeVehicle || s == ScopeLicense
}

// DimensionCategory identifies one enumerated categorical field.
type DimensionCategory string

const (
	// Shared across both entity scopes.
	DimModelYear    DimensionCategory = "model_year"
	DimMunicipality DimensionCategory = "municipality"

	// Vehicle scope.
	DimMake        DimensionCategory = "make"
	DimModel       DimensionCategory = "model"
	DimFuelType    DimensionCategory = "fuel_type"
	DimVehicleType DimensionCategory = "vehicle_type"
	DimBodyType    DimensionCategory = "body_type"
	DimColor       DimensionCategory = "color"

	// License scope.
	DimLicenseClass  DimensionCategory = "license_class"
	DimIssuingOffice DimensionCategory = "issuing_office"
)

// SharedCategories are loaded for every scope.
var SharedCategories = []DimensionCategory{DimModelYear, DimMunicipality}

// VehicleCategories are loaded only for ScopeVehicle.
var VehicleCategories = []DimensionCategory{
	DimMake, DimModel, DimFuelType, DimVehicleType, DimBodyType, DimColor,
}

// LicenseCategories are loaded only for ScopeLicense.
var LicenseCategories = []DimensionCategory{DimLicenseClass, DimIssuingOffice}

// CategoriesForScope returns the shared categories plus the scope-specific
// ones, in stable order.
func CategoriesForScope(scope EntityScope) []DimensionCategory {
	cats := make([]DimensionCategory, 0, len(SharedCategories)+len(VehicleCategories))
	cats = append(cats, SharedCategories...)
	switch scope {
	case ScopeVehicle:
		cats = append(cats, VehicleCategories...)
	case ScopeLicense:
		cats = append(cats, LicenseCategories...)
	}
	return cats
}

// TableName returns the dimension table backing the category.
func (c DimensionCategory) TableName() string {
	return "dim_" + string(c)
}

// HasParent reports whether values in this dimension carry a parent id
// (currently only models, whose parent is the make).
func (c DimensionCategory) HasParent() bool {
	return c == DimModel
}

// UnknownValue is the sentinel stored when a record predates a field's
// existence in the registry schema (e.g. fuel type before its introduction).
const UnknownValue = "(unknown)"

// DimensionValue is one row of a dimension table: a stable integer id for a
// categorical value. IDs are assigned once at ingestion and never reused or
// mutated; values are never deleted, only superseded by regularization.
type DimensionValue struct {
	ID       uint32
	Value    string
	ParentID uint32 // 0 when the dimension has no parent
}
