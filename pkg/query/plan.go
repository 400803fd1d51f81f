package query

import (
	"context"
	"strings"

	"github.com/fleetlens-io/fleetlens-engine/pkg/apperrors"
	"github.com/fleetlens-io/fleetlens-engine/pkg/database"
)

// PlanClass classifies how the store will execute a query.
type PlanClass string

const (
	// PlanIndexed means every fact-table access uses an index.
	PlanIndexed PlanClass = "indexed"
	// PlanFullScan means at least one fact-table access scans the whole
	// table. Over census-scale data that is an order of magnitude slower.
	PlanFullScan PlanClass = "full_scan"
)

// PlanClassification is the result of a pre-execution plan check. Callers
// may warn on or reject pathological shapes; execution itself is never
// blocked here.
type PlanClassification struct {
	Class  PlanClass
	Detail string
}

// ExplainPlan runs EXPLAIN QUERY PLAN for q and classifies the result.
func ExplainPlan(ctx context.Context, h *database.Handle, q Query) (PlanClassification, error) {
	rows, err := h.Query(ctx, "EXPLAIN QUERY PLAN "+q.SQL, q.Args...)
	if err != nil {
		return PlanClassification{}, apperrors.Storage("explain query plan", err)
	}
	defer rows.Close()

	result := PlanClassification{Class: PlanIndexed}
	for rows.Next() {
		var id, parent, notused int
		var detail string
		if err := rows.Scan(&id, &parent, &notused, &detail); err != nil {
			return PlanClassification{}, apperrors.Storage("scan plan row", err)
		}

		// SQLite reports indexed access as "SEARCH <table> USING ...";
		// a bare "SCAN <table>" reads every row.
		if strings.HasPrefix(detail, "SCAN ") &&
			strings.Contains(detail, q.Table) &&
			!strings.Contains(detail, "USING") {
			result.Class = PlanFullScan
			result.Detail = detail
		}
	}
	if err := rows.Err(); err != nil {
		return PlanClassification{}, apperrors.Storage("iterate plan rows", err)
	}

	return result, nil
}
