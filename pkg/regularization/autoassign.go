package regularization

import "sort"

// ValueCount is one observed value of a field within curated data for a
// (make, model) pair, with the number of records carrying it.
type ValueCount struct {
	Value string
	Count int
}

// AutoAssign is the heuristic the curation tooling uses to pre-fill a
// mapping field (fuel type, vehicle type) from curated observations:
//
//   - exactly one observed value: assign it;
//   - several observed values: assign the first entry of the ordered
//     priority list that was observed;
//   - otherwise: leave unresolved pending manual curation.
//
// Pure function; it never touches storage.
func AutoAssign(observed []ValueCount, priorities []string) (string, bool) {
	distinct := distinctValues(observed)
	switch len(distinct) {
	case 0:
		return "", false
	case 1:
		return distinct[0], true
	}

	seen := make(map[string]struct{}, len(distinct))
	for _, v := range distinct {
		seen[v] = struct{}{}
	}
	for _, p := range priorities {
		if _, ok := seen[p]; ok {
			return p, true
		}
	}
	return "", false
}

// DominantValue returns the observed value with the highest record count,
// breaking ties by value for determinism. Used by the curation UI to order
// suggestions; assignment itself goes through AutoAssign.
func DominantValue(observed []ValueCount) (string, bool) {
	if len(observed) == 0 {
		return "", false
	}
	best := observed[0]
	for _, vc := range observed[1:] {
		if vc.Count > best.Count || (vc.Count == best.Count && vc.Value < best.Value) {
			best = vc
		}
	}
	return best.Value, true
}

func distinctValues(observed []ValueCount) []string {
	set := make(map[string]struct{}, len(observed))
	for _, vc := range observed {
		if vc.Count > 0 {
			set[vc.Value] = struct{}{}
		}
	}
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}
