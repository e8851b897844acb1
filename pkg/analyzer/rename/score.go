package rename

import (
	"sort"

	"github.com/agnivade/levenshtein"
)

// Shape is the structural fingerprint of a file version used to judge
// implicit moves.
type Shape struct {
	Lines int
	Names []string
}

// Options tunes implicit move detection.
type Options struct {
	// MinNameOverlap is the minimum |D∩A| / max(|D|,|A|) of qualified names.
	MinNameOverlap float64
	// RequireEqualLines demands identical total line counts.
	RequireEqualLines bool
}

// DefaultOptions returns the default move heuristic.
func DefaultOptions() Options {
	return Options{MinNameOverlap: 0.5, RequireEqualLines: true}
}

// NameOverlap returns |a∩b| / max(|a|,|b|) over distinct names, or 0 when
// both are empty.
func NameOverlap(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	denom := max(len(setA), len(setB))
	if denom == 0 {
		return 0
	}
	common := 0
	for name := range setA {
		if setB[name] {
			common++
		}
	}
	return float64(common) / float64(denom)
}

// Similar reports whether an added file is a plausible continuation of a
// deleted one. Files without functions never match.
func Similar(deleted, added Shape, opts Options) bool {
	if opts.RequireEqualLines && deleted.Lines != added.Lines {
		return false
	}
	if len(deleted.Names) == 0 || len(added.Names) == 0 {
		return false
	}
	return NameOverlap(deleted.Names, added.Names) >= opts.MinNameOverlap
}

// Candidate is one side of a potential move.
type Candidate struct {
	Path  string
	Shape Shape
}

// Move pairs a deleted path with the added path that continues it.
type Move struct {
	From     string
	To       string
	Distance int
}

// Ambiguity records an endpoint withdrawn from matching because two or more
// equally close counterparts competed for it.
type Ambiguity struct {
	Path     string
	Rivals   []string
	Distance int
}

type pair struct {
	del, add string
	dist     int
}

// MatchMoves pairs deleted and added files. Every similar pair is scored by
// the edit distance between the two paths and pairs are taken in order of
// (distance, deleted path, added path). Pairs are settled one distance at a
// time: when two open pairs at the same distance share an endpoint, that
// endpoint is a true tie, it is withdrawn from matching and reported as an
// Ambiguity. The result is deterministic for any input order.
func MatchMoves(deleted, added []Candidate, opts Options) ([]Move, []Ambiguity) {
	var pairs []pair
	for _, d := range deleted {
		for _, a := range added {
			if !Similar(d.Shape, a.Shape, opts) {
				continue
			}
			pairs = append(pairs, pair{del: d.Path, add: a.Path, dist: levenshtein.ComputeDistance(d.Path, a.Path)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].dist != pairs[j].dist {
			return pairs[i].dist < pairs[j].dist
		}
		if pairs[i].del != pairs[j].del {
			return pairs[i].del < pairs[j].del
		}
		return pairs[i].add < pairs[j].add
	})

	usedDel := make(map[string]bool)
	usedAdd := make(map[string]bool)
	var moves []Move
	var ambiguities []Ambiguity

	for start := 0; start < len(pairs); {
		end := start
		for end < len(pairs) && pairs[end].dist == pairs[start].dist {
			end++
		}

		var open []pair
		for _, p := range pairs[start:end] {
			if !usedDel[p.del] && !usedAdd[p.add] {
				open = append(open, p)
			}
		}

		delRivals := make(map[string][]string)
		addRivals := make(map[string][]string)
		for _, p := range open {
			delRivals[p.del] = append(delRivals[p.del], p.add)
			addRivals[p.add] = append(addRivals[p.add], p.del)
		}

		dist := pairs[start].dist
		for _, p := range open {
			if rivals := delRivals[p.del]; len(rivals) > 1 && !usedDel[p.del] {
				usedDel[p.del] = true
				ambiguities = append(ambiguities, Ambiguity{Path: p.del, Rivals: rivals, Distance: dist})
			}
			if rivals := addRivals[p.add]; len(rivals) > 1 && !usedAdd[p.add] {
				usedAdd[p.add] = true
				ambiguities = append(ambiguities, Ambiguity{Path: p.add, Rivals: rivals, Distance: dist})
			}
		}

		for _, p := range open {
			if usedDel[p.del] || usedAdd[p.add] {
				continue
			}
			usedDel[p.del] = true
			usedAdd[p.add] = true
			moves = append(moves, Move{From: p.del, To: p.add, Distance: p.dist})
		}

		start = end
	}

	return moves, ambiguities
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
