package models

// VehicleFact is one observed vehicle-year: dimension-id foreign keys plus
// scalar measures. Immutable after import; a whole year is replaced
// atomically on re-import.
type VehicleFact struct {
	Year           int
	MakeID         uint32
	ModelID        uint32
	ModelYearID    uint32
	FuelTypeID     uint32
	VehicleTypeID  uint32
	BodyTypeID     uint32
	ColorID        uint32
	MunicipalityID uint32

	MassKG          float64
	DisplacementCCM float64
	AxleCount       *int     // nil when the registry did not record axles
	CO2GKM          *float64 // nil for records predating the CO2 field
}

// LicenseFact is one observed license-year.
type LicenseFact struct {
	Year            int
	LicenseClassID  uint32
	IssuingOfficeID uint32
	MunicipalityID  uint32
	HolderBirthYear int
}

// RawVehicleRecord is what the ingestion collaborator hands the engine: raw
// categorical strings (the engine performs get-or-create on dimensions) plus
// measures. Malformed rows are skipped and reported, never abort a batch.
type RawVehicleRecord struct {
	Make         string
	Model        string
	ModelYear    string
	FuelType     string
	VehicleType  string
	BodyType     string
	Color        string
	Municipality string

	MassKG          float64
	DisplacementCCM float64
	AxleCount       *int
	CO2GKM          *float64
}

// RawLicenseRecord is the license-scope counterpart of RawVehicleRecord.
type RawLicenseRecord struct {
	LicenseClass    string
	IssuingOffice   string
	Municipality    string
	HolderBirthYear int
}

// Measure names a scalar column of the vehicle fact table usable in
// sum/average/coverage metrics.
type Measure string

const (
	MeasureMass         Measure = "mass_kg"
	MeasureDisplacement Measure = "displacement_ccm"
	MeasureCO2          Measure = "co2_g_km"
	MeasureAxleCount    Measure = "axle_count"
)

// Valid reports whether m names a known measure column.
func (m Measure) Valid() bool {
	switch m {
	case MeasureMass, MeasureDisplacement, MeasureCO2, MeasureAxleCount:
		return true
	}
	return false
}
