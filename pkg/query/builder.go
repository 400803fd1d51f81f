// Package query assembles and executes the parametrized aggregate queries
// the engine serves: counts, sums, averages, percentages, coverage and the
// road-wear index, grouped by year, with ordered post-processing.
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
)

// Query is a parametrized aggregate statement ready for execution.
type Query struct {
	SQL   string
	Args  []any
	Table string
}

// factTable returns the fact table for a scope.
func factTable(scope models.EntityScope) string {
	if scope == models.ScopeLicense {
		return "license_facts"
	}
	return "vehicle_facts"
}

// column maps a dimension category to its fact-table foreign-key column.
func column(cat models.DimensionCategory) string {
	return string(cat) + "_id"
}

// buildWhere renders the resolved filter as a WHERE clause. Every value is
// bound as a parameter; no user input reaches the SQL text.
func buildWhere(f models.FilterIDs) (string, []any) {
	var clauses []string
	var args []any

	if f.YearFrom != 0 {
		clauses = append(clauses, "year >= ?")
		args = append(args, f.YearFrom)
	}
	if f.YearUntil != 0 {
		clauses = append(clauses, "year <= ?")
		args = append(args, f.YearUntil)
	}

	cats := make([]models.DimensionCategory, 0, len(f.IDs))
	for cat := range f.IDs {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

	for _, cat := range cats {
		ids := f.IDs[cat]
		if len(ids) == 0 {
			continue
		}

		if cat == models.DimFuelType && len(f.FuelTriplets) > 0 && f.UnknownFuelID != 0 {
			clause, clauseArgs := fuelClause(ids, f.FuelTriplets, f.UnknownFuelID)
			clauses = append(clauses, clause)
			args = append(args, clauseArgs...)
			continue
		}

		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", column(cat), placeholders(len(ids))))
		for _, id := range ids {
			args = append(args, id)
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// fuelClause admits rows matching the requested fuel ids directly, plus
// pre-schema-change rows (unknown fuel) whose (make, model, model year)
// triplet is mapped to a requested fuel.
func fuelClause(fuelIDs []uint32, triplets []models.TripletKey, unknownID uint32) (string, []any) {
	args := make([]any, 0, len(fuelIDs)+1+3*len(triplets))
	for _, id := range fuelIDs {
		args = append(args, id)
	}
	args = append(args, unknownID)

	rows := make([]string, len(triplets))
	for i, t := range triplets {
		rows[i] = "(?, ?, ?)"
		args = append(args, t.MakeID, t.ModelID, t.ModelYearID)
	}

	clause := fmt.Sprintf(
		"(fuel_type_id IN (%s) OR (fuel_type_id = ? AND (make_id, model_id, model_year_id) IN (VALUES %s)))",
		placeholders(len(fuelIDs)), strings.Join(rows, ", "))
	return clause, args
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// BuildCount builds the per-year record count query.
func BuildCount(f models.FilterIDs) Query {
	table := factTable(f.Scope)
	where, args := buildWhere(f)
	return Query{
		SQL: fmt.Sprintf(
			`SELECT year, CAST(COUNT(*) AS REAL) FROM %s%s GROUP BY year ORDER BY year`,
			table, where),
		Args:  args,
		Table: table,
	}
}

// BuildSum builds the per-year sum over a measure. NULL measures are
// ignored; a year whose rows are all NULL yields an undefined point.
func BuildSum(f models.FilterIDs, measure models.Measure) Query {
	table := factTable(f.Scope)
	where, args := buildWhere(f)
	return Query{
		SQL: fmt.Sprintf(
			`SELECT year, CAST(SUM(%s) AS REAL) FROM %s%s GROUP BY year ORDER BY year`,
			measure, table, where),
		Args:  args,
		Table: table,
	}
}

// BuildAverage builds the per-year mean of a measure.
func BuildAverage(f models.FilterIDs, measure models.Measure) Query {
	table := factTable(f.Scope)
	where, args := buildWhere(f)
	return Query{
		SQL: fmt.Sprintf(
			`SELECT year, AVG(%s) FROM %s%s GROUP BY year ORDER BY year`,
			measure, table, where),
		Args:  args,
		Table: table,
	}
}

// BuildCoverage builds the per-year fraction of rows where the measure is
// non-null.
func BuildCoverage(f models.FilterIDs, measure models.Measure) Query {
	table := factTable(f.Scope)
	where, args := buildWhere(f)
	return Query{
		SQL: fmt.Sprintf(
			`SELECT year, AVG(CASE WHEN %s IS NOT NULL THEN 1.0 ELSE 0.0 END) FROM %s%s GROUP BY year ORDER BY year`,
			measure, table, where),
		Args:  args,
		Table: table,
	}
}

// BuildRoadWear builds the per-year road-wear index: the sum over vehicles
// of coefficient(axle info) x mass^4. The coefficient comes from the actual
// axle count when recorded, falling back to the vehicle-type table and
// finally the wildcard. Coefficients are rendered as a CASE expression so
// the whole aggregation runs in one indexed pass.
func BuildRoadWear(f models.FilterIDs, coeffs *CoefficientSet, typeIDs map[uint32]float64) Query {
	table := factTable(f.Scope)
	where, args := buildWhere(f)

	var sb strings.Builder
	sb.WriteString("CASE")
	axles := make([]int, 0, len(coeffs.ByAxleCount))
	for n := range coeffs.ByAxleCount {
		axles = append(axles, n)
	}
	sort.Ints(axles)
	for _, n := range axles {
		fmt.Fprintf(&sb, " WHEN axle_count = %d THEN %.12g", n, coeffs.ByAxleCount[n])
	}
	if len(typeIDs) == 0 {
		fmt.Fprintf(&sb, " ELSE %.12g END", coeffs.Wildcard)
	} else {
		sb.WriteString(" ELSE CASE vehicle_type_id")
		typeIDList := make([]uint32, 0, len(typeIDs))
		for id := range typeIDs {
			typeIDList = append(typeIDList, id)
		}
		sort.Slice(typeIDList, func(i, j int) bool { return typeIDList[i] < typeIDList[j] })
		for _, id := range typeIDList {
			fmt.Fprintf(&sb, " WHEN %d THEN %.12g", id, typeIDs[id])
		}
		fmt.Fprintf(&sb, " ELSE %.12g END END", coeffs.Wildcard)
	}

	return Query{
		SQL: fmt.Sprintf(
			`SELECT year, SUM((%s) * mass_kg * mass_kg * mass_kg * mass_kg) FROM %s%s GROUP BY year ORDER BY year`,
			sb.String(), table, where),
		Args:  args,
		Table: table,
	}
}
