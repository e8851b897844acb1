// Package identity matches the functions of a file's previous observation
// to the functions of its new version so that function entities keep their
// identity across edits.
package identity

import (
	"sort"

	"github.com/ayanftw/commit-history/pkg/history"
)

// Prior is the last known state of an open function entity.
type Prior struct {
	ID     history.EntityID
	Metric history.FunctionMetric
}

// Pair links a prior entity to its metric in the new version.
type Pair struct {
	ID         history.EntityID
	Metric     history.FunctionMetric
	Positional bool // matched by position and signature rather than name
}

// Result is the outcome of matching one file version.
type Result struct {
	Matched []Pair                   // in new version order
	Created []history.FunctionMetric // in new version order
	Retired []Prior                  // by ascending id
}

// Match resolves function identity within one file. The first rule that
// applies wins and matched entities leave consideration on both sides:
//
//  1. identical qualified name;
//  2. the new start line lies in the prior [start, end] range shifted
//     through hunks, and the parameter count is unchanged. Among several
//     candidates the one whose shifted start is closest wins, then the
//     lowest id;
//  3. remaining priors retire and remaining new functions are created.
func Match(prior []Prior, next []history.FunctionMetric, hunks history.Hunks) Result {
	ordered := append([]Prior(nil), prior...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	used := make([]bool, len(ordered))
	assigned := make([]int, len(next))
	for i := range assigned {
		assigned[i] = -1
	}

	byName := make(map[string]int, len(ordered))
	for i, p := range ordered {
		if _, dup := byName[p.Metric.QualifiedName]; !dup {
			byName[p.Metric.QualifiedName] = i
		}
	}
	for i, m := range next {
		if j, ok := byName[m.QualifiedName]; ok && !used[j] {
			used[j] = true
			assigned[i] = j
		}
	}

	positional := make([]bool, len(next))
	for i, m := range next {
		if assigned[i] >= 0 {
			continue
		}
		best, bestDist := -1, 0
		for j, p := range ordered {
			if used[j] || p.Metric.Params != m.Params {
				continue
			}
			start := hunks.ShiftLine(p.Metric.StartLine)
			end := hunks.ShiftLine(p.Metric.EndLine)
			if m.StartLine < start || m.StartLine > end {
				continue
			}
			dist := abs(m.StartLine - start)
			if best < 0 || dist < bestDist {
				best, bestDist = j, dist
			}
		}
		if best >= 0 {
			used[best] = true
			assigned[i] = best
			positional[i] = true
		}
	}

	var res Result
	for i, m := range next {
		if j := assigned[i]; j >= 0 {
			res.Matched = append(res.Matched, Pair{ID: ordered[j].ID, Metric: m, Positional: positional[i]})
		} else {
			res.Created = append(res.Created, m)
		}
	}
	for j, p := range ordered {
		if !used[j] {
			res.Retired = append(res.Retired, p)
		}
	}
	return res
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
