package identity

import (
	"sort"
	"strconv"

	"github.com/ayanftw/commit-history/pkg/history"
)

// Orphan is a function about to retire from file File in this commit.
type Orphan struct {
	File history.EntityID
	Prior
}

// Newcomer is a function about to be created in file File in this commit.
// Index is its position in that file's Result.Created.
type Newcomer struct {
	File   history.EntityID
	Index  int
	Metric history.FunctionMetric
}

// Transfer moves an orphaned entity into another file as the newcomer.
type Transfer struct {
	From Orphan
	To   Newcomer
}

// TransferAcrossFiles pairs orphans with newcomers in other files that have
// the same qualified name and parameter count. A pairing is made only when
// exactly one orphan and exactly one newcomer carry that signature.
// Transfers are returned ordered by orphan id.
func TransferAcrossFiles(orphans []Orphan, newcomers []Newcomer) []Transfer {
	key := func(m history.FunctionMetric) string {
		return m.QualifiedName + "\x00" + strconv.Itoa(m.Params)
	}

	orphanBy := make(map[string][]Orphan)
	for _, o := range orphans {
		k := key(o.Metric)
		orphanBy[k] = append(orphanBy[k], o)
	}
	newBy := make(map[string][]Newcomer)
	for _, n := range newcomers {
		k := key(n.Metric)
		newBy[k] = append(newBy[k], n)
	}

	var out []Transfer
	for k, os := range orphanBy {
		ns := newBy[k]
		if len(os) != 1 || len(ns) != 1 || os[0].File == ns[0].File {
			continue
		}
		out = append(out, Transfer{From: os[0], To: ns[0]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].From.ID < out[j].From.ID })
	return out
}
