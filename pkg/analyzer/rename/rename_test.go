package rename

import (
	"fmt"
	"testing"

	"github.com/ayanftw/commit-history/pkg/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAlloc records allocator calls and hands out sequential ids.
type fakeAlloc struct {
	next  history.EntityID
	calls []string
}

func newFakeAlloc(start history.EntityID) *fakeAlloc {
	return &fakeAlloc{next: start}
}

func (a *fakeAlloc) Open(path string) history.EntityID {
	a.next++
	a.calls = append(a.calls, fmt.Sprintf("open %s=%d", path, a.next))
	return a.next
}

func (a *fakeAlloc) Copy(src history.EntityID, path string) history.EntityID {
	a.next++
	a.calls = append(a.calls, fmt.Sprintf("copy %d->%s=%d", src, path, a.next))
	return a.next
}

func (a *fakeAlloc) Relink(id history.EntityID, path string) {
	a.calls = append(a.calls, fmt.Sprintf("relink %d->%s", id, path))
}

func (a *fakeAlloc) Close(id history.EntityID) {
	a.calls = append(a.calls, fmt.Sprintf("close %d", id))
}

func shape(lines int, names ...string) Shape {
	return Shape{Lines: lines, Names: names}
}

func TestNameOverlap(t *testing.T) {
	assert.Equal(t, 1.0, NameOverlap([]string{"g", "h"}, []string{"h", "g"}))
	assert.Equal(t, 0.5, NameOverlap([]string{"g", "h"}, []string{"g", "x"}))
	assert.InDelta(t, 1.0/3.0, NameOverlap([]string{"g"}, []string{"g", "x", "y"}), 1e-9)
	assert.Equal(t, 0.0, NameOverlap(nil, nil))
}

func TestSimilar(t *testing.T) {
	opts := DefaultOptions()

	tests := []struct {
		name string
		del  Shape
		add  Shape
		opts Options
		want bool
	}{
		{"identical", shape(10, "g", "h"), shape(10, "g", "h"), opts, true},
		{"half overlap", shape(10, "g", "h"), shape(10, "g", "x"), opts, true},
		{"below overlap", shape(10, "g", "h", "i"), shape(10, "g", "x", "y"), opts, false},
		{"different line count", shape(10, "g"), shape(11, "g"), opts, false},
		{"line count ignored", shape(10, "g"), shape(11, "g"), Options{MinNameOverlap: 0.5}, true},
		{"no functions", shape(10), shape(10), opts, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Similar(tt.del, tt.add, tt.opts))
		})
	}
}

func TestMatchMoves_PrefersSmallerDistance(t *testing.T) {
	s := shape(10, "g", "h")
	moves, amb := MatchMoves(
		[]Candidate{{Path: "src/a/old.x", Shape: s}, {Path: "lib/zzz/other.x", Shape: s}},
		[]Candidate{{Path: "src/a/new.x", Shape: s}},
		DefaultOptions(),
	)

	require.Len(t, moves, 1)
	assert.Equal(t, "src/a/old.x", moves[0].From)
	assert.Equal(t, "src/a/new.x", moves[0].To)
	assert.Empty(t, amb)
}

func TestMatchMoves_TrueTieIsNoMatch(t *testing.T) {
	s := shape(10, "g")
	moves, amb := MatchMoves(
		[]Candidate{{Path: "a1.x", Shape: s}, {Path: "a2.x", Shape: s}},
		[]Candidate{{Path: "b.x", Shape: s}},
		DefaultOptions(),
	)

	assert.Empty(t, moves)
	require.Len(t, amb, 1)
	assert.Equal(t, "b.x", amb[0].Path)
	assert.Equal(t, []string{"a1.x", "a2.x"}, amb[0].Rivals)
}

func TestMatchMoves_WithdrawnEndpointCanMatchLater(t *testing.T) {
	s := shape(10, "g")
	// At distance 1, d.x competes for e.x and f.x and e.x competes for d.x
	// and ee.x: both are withdrawn. ee.x then takes f.x at distance 2.
	moves, amb := MatchMoves(
		[]Candidate{{Path: "d.x", Shape: s}, {Path: "ee.x", Shape: s}},
		[]Candidate{{Path: "e.x", Shape: s}, {Path: "f.x", Shape: s}},
		DefaultOptions(),
	)

	assert.Equal(t, []Move{{From: "ee.x", To: "f.x", Distance: 2}}, moves)
	assert.Equal(t, []Ambiguity{
		{Path: "d.x", Rivals: []string{"e.x", "f.x"}, Distance: 1},
		{Path: "e.x", Rivals: []string{"d.x", "ee.x"}, Distance: 1},
	}, amb)
}

func TestMatchMoves_Deterministic(t *testing.T) {
	s := shape(5, "f")
	del := []Candidate{{Path: "x/one.x", Shape: s}, {Path: "y/two.x", Shape: s}}
	add := []Candidate{{Path: "y/two2.x", Shape: s}, {Path: "x/one1.x", Shape: s}}

	m1, a1 := MatchMoves(del, add, DefaultOptions())
	m2, a2 := MatchMoves([]Candidate{del[1], del[0]}, []Candidate{add[1], add[0]}, DefaultOptions())

	assert.Equal(t, m1, m2)
	assert.Equal(t, a1, a2)
	require.Len(t, m1, 2)
	assert.Equal(t, Move{From: "x/one.x", To: "x/one1.x", Distance: 1}, m1[0])
}

func TestApply_ExplicitRename(t *testing.T) {
	paths := PathMap{"old.x": 1}
	alloc := newFakeAlloc(10)
	hunks := history.Hunks{{OldStart: 1, OldLines: 1, NewStart: 1, NewLines: 2}}

	out := New(DefaultOptions()).Apply(paths, []history.FileChange{
		{Kind: history.Renamed, OldPath: "old.x", NewPath: "new.x", Hunks: hunks},
	}, Shapes{}, alloc)

	assert.Equal(t, PathMap{"new.x": 1}, paths)
	require.Len(t, out.Touches, 1)
	assert.Equal(t, Touch{Entity: 1, Path: "new.x", From: "old.x", Op: Relinked, Hunks: hunks}, out.Touches[0])
	assert.Equal(t, []string{"relink 1->new.x"}, alloc.calls)
}

func TestApply_RenameOntoOccupiedPathClosesOccupant(t *testing.T) {
	paths := PathMap{"a.x": 1, "b.x": 2}
	alloc := newFakeAlloc(10)

	out := New(DefaultOptions()).Apply(paths, []history.FileChange{
		{Kind: history.Renamed, OldPath: "a.x", NewPath: "b.x"},
	}, Shapes{}, alloc)

	assert.Equal(t, PathMap{"b.x": 1}, paths)
	assert.Equal(t, []history.EntityID{2}, out.Closed)
	assert.Equal(t, []string{"close 2", "relink 1->b.x"}, alloc.calls)
}

func TestApply_RenameWithoutHistoryOpens(t *testing.T) {
	paths := PathMap{}
	alloc := newFakeAlloc(0)

	out := New(DefaultOptions()).Apply(paths, []history.FileChange{
		{Kind: history.Renamed, OldPath: "ghost.x", NewPath: "real.x"},
	}, Shapes{}, alloc)

	assert.Equal(t, PathMap{"real.x": 1}, paths)
	assert.Equal(t, Opened, out.Touches[0].Op)
}

func TestApply_Copy(t *testing.T) {
	paths := PathMap{"src.x": 1}
	alloc := newFakeAlloc(5)

	out := New(DefaultOptions()).Apply(paths, []history.FileChange{
		{Kind: history.Copied, OldPath: "src.x", NewPath: "dup.x"},
	}, Shapes{}, alloc)

	assert.Equal(t, PathMap{"src.x": 1, "dup.x": 6}, paths)
	assert.Equal(t, Touch{Entity: 6, Path: "dup.x", From: "src.x", Op: Copied}, out.Touches[0])
	assert.Equal(t, []string{"copy 1->dup.x=6"}, alloc.calls)
}

func TestApply_ImplicitMove(t *testing.T) {
	paths := PathMap{"old.x": 1, "keep.x": 2}
	alloc := newFakeAlloc(2)

	out := New(DefaultOptions()).Apply(paths, []history.FileChange{
		{Kind: history.Deleted, OldPath: "old.x"},
		{Kind: history.Added, NewPath: "new.x"},
	}, Shapes{
		Before: map[string]Shape{"old.x": shape(20, "g", "h")},
		After:  map[string]Shape{"new.x": shape(20, "g", "h")},
	}, alloc)

	assert.Equal(t, PathMap{"new.x": 1, "keep.x": 2}, paths)
	assert.Empty(t, out.Closed)
	require.Len(t, out.Moves, 1)
	assert.Equal(t, Touch{Entity: 1, Path: "new.x", From: "old.x", Op: Moved}, out.Touches[0])
}

func TestApply_UnmatchedDeletionCloses(t *testing.T) {
	paths := PathMap{"old.x": 1}
	alloc := newFakeAlloc(1)

	out := New(DefaultOptions()).Apply(paths, []history.FileChange{
		{Kind: history.Deleted, OldPath: "old.x"},
		{Kind: history.Added, NewPath: "unrelated.x"},
	}, Shapes{
		Before: map[string]Shape{"old.x": shape(20, "g", "h")},
		After:  map[string]Shape{"unrelated.x": shape(20, "p", "q")},
	}, alloc)

	assert.Equal(t, PathMap{"unrelated.x": 2}, paths)
	assert.Equal(t, []history.EntityID{1}, out.Closed)
	assert.Equal(t, []string{"close 1", "open unrelated.x=2"}, alloc.calls)
}

func TestApply_TieOpensNewEntity(t *testing.T) {
	paths := PathMap{"a1.x": 1, "a2.x": 2}
	alloc := newFakeAlloc(2)
	s := shape(4, "f")

	out := New(DefaultOptions()).Apply(paths, []history.FileChange{
		{Kind: history.Deleted, OldPath: "a1.x"},
		{Kind: history.Deleted, OldPath: "a2.x"},
		{Kind: history.Added, NewPath: "b.x"},
	}, Shapes{
		Before: map[string]Shape{"a1.x": s, "a2.x": s},
		After:  map[string]Shape{"b.x": s},
	}, alloc)

	assert.Equal(t, PathMap{"b.x": 3}, paths)
	assert.Equal(t, []history.EntityID{1, 2}, out.Closed)
	require.Len(t, out.Ambiguities, 1)
}

func TestApply_AddedAndModified(t *testing.T) {
	paths := PathMap{"merged.x": 1, "known.x": 2}
	alloc := newFakeAlloc(2)

	out := New(DefaultOptions()).Apply(paths, []history.FileChange{
		{Kind: history.Modified, OldPath: "known.x", NewPath: "known.x"},
		{Kind: history.Modified, OldPath: "fresh.x", NewPath: "fresh.x"},
		{Kind: history.Added, NewPath: "merged.x"},
		{Kind: history.Deleted, OldPath: "never-seen.x"},
	}, Shapes{}, alloc)

	assert.Equal(t, PathMap{"merged.x": 1, "known.x": 2, "fresh.x": 3}, paths)
	require.Len(t, out.Touches, 3)
	assert.Equal(t, Touch{Entity: 1, Path: "merged.x", Op: Continued}, out.Touches[0])
	assert.Equal(t, Touch{Entity: 3, Path: "fresh.x", Op: Opened}, out.Touches[1])
	assert.Equal(t, Touch{Entity: 2, Path: "known.x", Op: Continued}, out.Touches[2])
	assert.Empty(t, out.Closed)
}

func TestPathMap(t *testing.T) {
	m := PathMap{"b": 2, "a": 1}
	c := m.Clone()
	c["z"] = 3

	assert.Len(t, m, 2)
	assert.Equal(t, []string{"a", "b", "z"}, c.Paths())
	assert.Equal(t, "moved", Moved.String())
}
