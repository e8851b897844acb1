// Package rename resolves file identity across a commit: it decides which
// paths continue which file entities given explicit renames and copies,
// implicit moves (a deletion paired with a similar addition), additions and
// modifications.
package rename

import (
	"sort"

	"github.com/ayanftw/commit-history/pkg/history"
)

// PathMap maps each live path to the open file entity occupying it. A path
// holds at most one open entity.
type PathMap map[string]history.EntityID

// Clone returns a copy of the map.
func (m PathMap) Clone() PathMap {
	out := make(PathMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Paths returns the live paths in sorted order.
func (m PathMap) Paths() []string {
	out := make([]string, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Allocator creates, moves and closes file entities on behalf of the
// resolver. The timeline builder implements it.
type Allocator interface {
	Open(path string) history.EntityID
	Copy(src history.EntityID, path string) history.EntityID
	Relink(id history.EntityID, path string)
	Close(id history.EntityID)
}

// Op says how a touched entity arrived at its path in this commit.
type Op uint8

const (
	Opened Op = iota + 1
	Continued
	Relinked
	Moved
	Copied
)

func (o Op) String() string {
	switch o {
	case Opened:
		return "opened"
	case Continued:
		return "continued"
	case Relinked:
		return "relinked"
	case Moved:
		return "moved"
	case Copied:
		return "copied"
	default:
		return "unknown"
	}
}

// Touch is a file entity live after the commit whose content the commit
// changed.
type Touch struct {
	Entity history.EntityID
	Path   string
	From   string // previous path for relinks, moves and copies
	Op     Op
	Hunks  history.Hunks
}

// Shapes supplies fingerprints for implicit move detection: pre-images of
// deleted files by old path and post-images of added files by new path.
type Shapes struct {
	Before map[string]Shape
	After  map[string]Shape
}

// Outcome is the result of resolving one commit.
type Outcome struct {
	Touches     []Touch
	Closed      []history.EntityID
	Moves       []Move
	Ambiguities []Ambiguity
}

// Resolver applies a commit's changes to a PathMap.
type Resolver struct {
	opts Options
}

// New creates a resolver with the given move heuristic.
func New(opts Options) *Resolver {
	return &Resolver{opts: opts}
}

// Apply updates paths for one commit. Changes are applied in four phases,
// each in path order: explicit renames and copies; deletions, with implicit
// move detection against additions; remaining additions; modifications.
func (r *Resolver) Apply(paths PathMap, changes []history.FileChange, shapes Shapes, alloc Allocator) Outcome {
	var out Outcome

	byKind := make(map[history.ChangeKind][]history.FileChange)
	for _, c := range changes {
		byKind[c.Kind] = append(byKind[c.Kind], c)
	}
	for _, list := range byKind {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Path() < list[j].Path() })
	}

	evict := func(path string, keep history.EntityID) {
		if occ, ok := paths[path]; ok && occ != keep {
			alloc.Close(occ)
			out.Closed = append(out.Closed, occ)
			delete(paths, path)
		}
	}

	explicit := append(append([]history.FileChange(nil), byKind[history.Renamed]...), byKind[history.Copied]...)
	sort.SliceStable(explicit, func(i, j int) bool { return explicit[i].Path() < explicit[j].Path() })
	for _, c := range explicit {
		switch c.Kind {
		case history.Renamed:
			id, ok := paths[c.OldPath]
			if ok {
				delete(paths, c.OldPath)
			}
			evict(c.NewPath, id)
			if ok {
				alloc.Relink(id, c.NewPath)
				out.Touches = append(out.Touches, Touch{Entity: id, Path: c.NewPath, From: c.OldPath, Op: Relinked, Hunks: c.Hunks})
			} else {
				id = alloc.Open(c.NewPath)
				out.Touches = append(out.Touches, Touch{Entity: id, Path: c.NewPath, Op: Opened})
			}
			paths[c.NewPath] = id
		case history.Copied:
			src, ok := paths[c.OldPath]
			if ok && c.NewPath == c.OldPath {
				continue
			}
			evict(c.NewPath, 0)
			var id history.EntityID
			if ok {
				id = alloc.Copy(src, c.NewPath)
				out.Touches = append(out.Touches, Touch{Entity: id, Path: c.NewPath, From: c.OldPath, Op: Copied, Hunks: c.Hunks})
			} else {
				id = alloc.Open(c.NewPath)
				out.Touches = append(out.Touches, Touch{Entity: id, Path: c.NewPath, Op: Opened})
			}
			paths[c.NewPath] = id
		}
	}

	var deleted, added []Candidate
	for _, c := range byKind[history.Deleted] {
		if _, ok := paths[c.OldPath]; !ok {
			continue
		}
		if shape, ok := shapes.Before[c.OldPath]; ok {
			deleted = append(deleted, Candidate{Path: c.OldPath, Shape: shape})
		}
	}
	for _, c := range byKind[history.Added] {
		if _, taken := paths[c.NewPath]; taken {
			continue
		}
		if shape, ok := shapes.After[c.NewPath]; ok {
			added = append(added, Candidate{Path: c.NewPath, Shape: shape})
		}
	}
	moves, ambiguities := MatchMoves(deleted, added, r.opts)
	out.Moves = moves
	out.Ambiguities = ambiguities

	moveTo := make(map[string]string, len(moves))
	movedInto := make(map[string]bool, len(moves))
	for _, m := range moves {
		moveTo[m.From] = m.To
		movedInto[m.To] = true
	}

	for _, c := range byKind[history.Deleted] {
		id, ok := paths[c.OldPath]
		if !ok {
			continue
		}
		delete(paths, c.OldPath)
		if to, moved := moveTo[c.OldPath]; moved {
			alloc.Relink(id, to)
			paths[to] = id
			out.Touches = append(out.Touches, Touch{Entity: id, Path: to, From: c.OldPath, Op: Moved})
			continue
		}
		alloc.Close(id)
		out.Closed = append(out.Closed, id)
	}

	for _, c := range byKind[history.Added] {
		if movedInto[c.NewPath] {
			continue
		}
		if id, ok := paths[c.NewPath]; ok {
			out.Touches = append(out.Touches, Touch{Entity: id, Path: c.NewPath, Op: Continued, Hunks: c.Hunks})
			continue
		}
		id := alloc.Open(c.NewPath)
		paths[c.NewPath] = id
		out.Touches = append(out.Touches, Touch{Entity: id, Path: c.NewPath, Op: Opened})
	}

	for _, c := range byKind[history.Modified] {
		if id, ok := paths[c.NewPath]; ok {
			out.Touches = append(out.Touches, Touch{Entity: id, Path: c.NewPath, Op: Continued, Hunks: c.Hunks})
			continue
		}
		id := alloc.Open(c.NewPath)
		paths[c.NewPath] = id
		out.Touches = append(out.Touches, Touch{Entity: id, Path: c.NewPath, Op: Opened})
	}

	return out
}
