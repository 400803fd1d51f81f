package query

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

// shareTolerance is how far (in percentage points) a distribution may
// deviate from summing to 100 before it is rejected. The tables are
// hand-edited.
const shareTolerance = 0.5

// WeightTables is the user-editable road-wear configuration: axle load
// distributions per axle count, assumed-axle fallbacks per vehicle type,
// and a wildcard fallback for unrecognized types.
type WeightTables struct {
	// AxleDistributions gives the percentage of total mass carried by each
	// axle, keyed by axle count. Each list must sum to 100 (+-tolerance).
	AxleDistributions map[int][]float64 `yaml:"axle_distributions"`

	// VehicleTypeFallbacks assign an assumed axle configuration to a
	// vehicle type, used when a record carries no axle count.
	VehicleTypeFallbacks map[string]Fallback `yaml:"vehicle_type_fallbacks"`

	// Wildcard applies when the vehicle type itself is unrecognized.
	Wildcard Fallback `yaml:"wildcard"`
}

// Fallback names an assumed axle count, optionally with its own load
// distribution overriding the axle-count table.
type Fallback struct {
	Axles  int       `yaml:"axles"`
	Shares []float64 `yaml:"shares,omitempty"`
}

// LoadWeightTables reads and validates the weight tables from a YAML file.
func LoadWeightTables(path string) (*WeightTables, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read weight tables %s: %w", path, err)
	}

	var wt WeightTables
	if err := yaml.Unmarshal(raw, &wt); err != nil {
		return nil, fmt.Errorf("failed to parse weight tables %s: %w", path, err)
	}
	if err := wt.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weight tables %s: %w", path, err)
	}
	return &wt, nil
}

// Validate checks every distribution sums to 100% within tolerance and every
// fallback references a known axle count or carries its own shares.
func (wt *WeightTables) Validate() error {
	if len(wt.AxleDistributions) == 0 {
		return fmt.Errorf("no axle distributions configured")
	}
	for axles, shares := range wt.AxleDistributions {
		if err := validateShares(axles, shares); err != nil {
			return err
		}
	}
	for typ, fb := range wt.VehicleTypeFallbacks {
		if err := wt.validateFallback(fb); err != nil {
			return fmt.Errorf("vehicle type %q: %w", typ, err)
		}
	}
	if err := wt.validateFallback(wt.Wildcard); err != nil {
		return fmt.Errorf("wildcard: %w", err)
	}
	return nil
}

func (wt *WeightTables) validateFallback(fb Fallback) error {
	if len(fb.Shares) > 0 {
		return validateShares(len(fb.Shares), fb.Shares)
	}
	if _, ok := wt.AxleDistributions[fb.Axles]; !ok {
		return fmt.Errorf("assumed axle count %d has no distribution", fb.Axles)
	}
	return nil
}

func validateShares(axles int, shares []float64) error {
	if len(shares) != axles {
		return fmt.Errorf("distribution for %d axles has %d shares", axles, len(shares))
	}
	var sum float64
	for _, s := range shares {
		if s < 0 {
			return fmt.Errorf("distribution for %d axles has a negative share", axles)
		}
		sum += s
	}
	if math.Abs(sum-100) > shareTolerance {
		return fmt.Errorf("distribution for %d axles sums to %.2f, want 100", axles, sum)
	}
	return nil
}

// Hash returns a stable key over the table contents. Coefficient sets are
// cached under this key and rebuilt only when the configuration changes.
func (wt *WeightTables) Hash() string {
	d := xxhash.New()

	axles := make([]int, 0, len(wt.AxleDistributions))
	for n := range wt.AxleDistributions {
		axles = append(axles, n)
	}
	sort.Ints(axles)
	for _, n := range axles {
		_, _ = d.WriteString(strconv.Itoa(n))
		for _, s := range wt.AxleDistributions[n] {
			_, _ = d.WriteString(strconv.FormatFloat(s, 'g', -1, 64))
		}
	}

	types := make([]string, 0, len(wt.VehicleTypeFallbacks))
	for t := range wt.VehicleTypeFallbacks {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fb := wt.VehicleTypeFallbacks[t]
		_, _ = d.WriteString(t)
		_, _ = d.WriteString(strconv.Itoa(fb.Axles))
		for _, s := range fb.Shares {
			_, _ = d.WriteString(strconv.FormatFloat(s, 'g', -1, 64))
		}
	}

	_, _ = d.WriteString(strconv.Itoa(wt.Wildcard.Axles))
	for _, s := range wt.Wildcard.Shares {
		_, _ = d.WriteString(strconv.FormatFloat(s, 'g', -1, 64))
	}

	return strconv.FormatUint(d.Sum64(), 16)
}

// CoefficientSet holds derived road-wear coefficients: for an axle load
// distribution, the coefficient is the sum over axles of loadFraction^4.
type CoefficientSet struct {
	ByAxleCount   map[int]float64
	ByVehicleType map[string]float64
	Wildcard      float64
	Key           string
}

// Coefficient computes sum(share/100)^4 over one load distribution. An even
// N-way split yields N*(1/N)^4 = 1/N^3.
func Coefficient(shares []float64) float64 {
	var c float64
	for _, s := range shares {
		frac := s / 100
		c += frac * frac * frac * frac
	}
	return c
}

// CoefficientCache derives and memoizes coefficient sets keyed by the
// weight-table hash. Deriving is cheap, but the key also gates the far more
// expensive road-wear SQL regeneration upstream.
type CoefficientCache struct {
	mu   sync.Mutex
	sets map[string]*CoefficientSet
}

// NewCoefficientCache creates an empty cache.
func NewCoefficientCache() *CoefficientCache {
	return &CoefficientCache{sets: make(map[string]*CoefficientSet)}
}

// Get returns the coefficient set for wt, deriving it on first use.
func (c *CoefficientCache) Get(wt *WeightTables) (*CoefficientSet, error) {
	if err := wt.Validate(); err != nil {
		return nil, err
	}
	key := wt.Hash()

	c.mu.Lock()
	defer c.mu.Unlock()
	if set, ok := c.sets[key]; ok {
		return set, nil
	}

	set := &CoefficientSet{
		ByAxleCount:   make(map[int]float64, len(wt.AxleDistributions)),
		ByVehicleType: make(map[string]float64, len(wt.VehicleTypeFallbacks)),
		Key:           key,
	}
	for axles, shares := range wt.AxleDistributions {
		set.ByAxleCount[axles] = Coefficient(shares)
	}
	for typ, fb := range wt.VehicleTypeFallbacks {
		set.ByVehicleType[typ] = c.fallbackCoefficient(wt, fb)
	}
	set.Wildcard = c.fallbackCoefficient(wt, wt.Wildcard)

	c.sets[key] = set
	return set, nil
}

func (c *CoefficientCache) fallbackCoefficient(wt *WeightTables, fb Fallback) float64 {
	if len(fb.Shares) > 0 {
		return Coefficient(fb.Shares)
	}
	return Coefficient(wt.AxleDistributions[fb.Axles])
}
