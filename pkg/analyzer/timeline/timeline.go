package timeline

import (
	"github.com/ayanftw/commit-history/pkg/analyzer/rename"
	"github.com/ayanftw/commit-history/pkg/history"
)

// Timeline is a frozen snapshot of the builder state. It is safe for
// concurrent reads.
type Timeline struct {
	arena    []slot
	paths    rename.PathMap
	commits  []*history.Commit
	ordinals map[string]int
	events   []history.ChangeEvent
	diags    []history.Diagnostic
}

// Commits returns the applied commits in processing order.
func (t *Timeline) Commits() []*history.Commit {
	return t.commits
}

// Head returns the last applied commit, or nil for an empty timeline.
func (t *Timeline) Head() *history.Commit {
	if len(t.commits) == 0 {
		return nil
	}
	return t.commits[len(t.commits)-1]
}

// Ordinal returns the 1-based processing position of commit hash.
func (t *Timeline) Ordinal(hash string) (int, bool) {
	n, ok := t.ordinals[hash]
	return n, ok
}

// Files returns every file entity in id order.
func (t *Timeline) Files() []*File {
	var out []*File
	for _, s := range t.arena {
		if s.file != nil {
			out = append(out, s.file)
		}
	}
	return out
}

// Functions returns every function entity in id order.
func (t *Timeline) Functions() []*Function {
	var out []*Function
	for _, s := range t.arena {
		if s.fn != nil {
			out = append(out, s.fn)
		}
	}
	return out
}

// File looks up a file entity by id.
func (t *Timeline) File(id history.EntityID) (*File, bool) {
	if id == 0 || int(id) > len(t.arena) || t.arena[id-1].file == nil {
		return nil, false
	}
	return t.arena[id-1].file, true
}

// Function looks up a function entity by id.
func (t *Timeline) Function(id history.EntityID) (*Function, bool) {
	if id == 0 || int(id) > len(t.arena) || t.arena[id-1].fn == nil {
		return nil, false
	}
	return t.arena[id-1].fn, true
}

// FileAt returns the open file entity at path.
func (t *Timeline) FileAt(path string) (*File, bool) {
	id, ok := t.paths[path]
	if !ok {
		return nil, false
	}
	return t.File(id)
}

// Paths returns the live paths in sorted order.
func (t *Timeline) Paths() []string {
	return t.paths.Paths()
}

// FunctionsOf returns the functions last owned by file id, in id order.
func (t *Timeline) FunctionsOf(id history.EntityID) []*Function {
	var out []*Function
	for _, s := range t.arena {
		if s.fn != nil && s.fn.File == id {
			out = append(out, s.fn)
		}
	}
	return out
}

// Events returns the lifecycle events in emission order.
func (t *Timeline) Events() []history.ChangeEvent {
	return t.events
}

// Diagnostics returns the recoverable conditions met during the walk.
func (t *Timeline) Diagnostics() []history.Diagnostic {
	return t.diags
}

// ObservationsAt returns every function observation recorded at commit
// hash, in entity id order.
func (t *Timeline) ObservationsAt(hash string) []FunctionObservation {
	ordinal, ok := t.ordinals[hash]
	if !ok {
		return nil
	}
	var out []FunctionObservation
	for _, s := range t.arena {
		if s.fn == nil || !s.fn.ObservedAt(ordinal) {
			continue
		}
		if o, ok := s.fn.At(hash); ok {
			out = append(out, o)
		}
	}
	return out
}
