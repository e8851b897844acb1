// Package timeline builds the per-entity history of a repository: file and
// function entities with stable synthetic ids, their observations at every
// commit that touched them, and their lifecycle events.
package timeline

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/ayanftw/commit-history/pkg/analyzer/extract"
	"github.com/ayanftw/commit-history/pkg/analyzer/identity"
	"github.com/ayanftw/commit-history/pkg/analyzer/rename"
	"github.com/ayanftw/commit-history/pkg/history"
)

// Extraction is the analysis of one commit's file versions. After holds
// post-images by new path, Before pre-images of deleted files by old path.
// Files missing from After keep their prior timeline unchanged.
type Extraction struct {
	After       map[string]*extract.FileVersion
	Before      map[string]*extract.FileVersion
	Diagnostics []history.Diagnostic
}

type slot struct {
	file *File
	fn   *Function
}

// Builder owns the entity arena and the path map and applies commits to
// them one at a time. It is not safe for concurrent use.
type Builder struct {
	resolver  *rename.Resolver
	crossFile bool

	arena    []slot // arena[id-1]
	paths    rename.PathMap
	commits  []*history.Commit
	ordinals map[string]int
	parents  map[string]bool
	events   []history.ChangeEvent
	diags    []history.Diagnostic

	// state of the commit being applied
	commit  string
	ordinal int
	closing []history.EntityID
	fresh   map[history.EntityID]int
}

// NewBuilder creates an empty builder.
func NewBuilder(opts rename.Options, crossFileMoves bool) *Builder {
	return &Builder{
		resolver:  rename.New(opts),
		crossFile: crossFileMoves,
		paths:     make(rename.PathMap),
		ordinals:  make(map[string]int),
		parents:   make(map[string]bool),
	}
}

// Check reports whether c may be applied next: its hash must be new and
// must not already be the parent of an applied commit.
func (b *Builder) Check(c *history.Commit) error {
	if _, dup := b.ordinals[c.Hash]; dup {
		return &history.OrderingViolationError{Commit: c.Hash, Reason: "delivered twice"}
	}
	if b.parents[c.Hash] {
		return &history.OrderingViolationError{Commit: c.Hash, Reason: "delivered after one of its children"}
	}
	return nil
}

// Tracks reports whether an open file entity occupies path.
func (b *Builder) Tracks(path string) bool {
	_, ok := b.paths[path]
	return ok
}

// Len returns the number of commits applied.
func (b *Builder) Len() int {
	return len(b.commits)
}

// Apply resolves and records one fully extracted commit. Nothing is
// modified when an ordering violation is returned.
func (b *Builder) Apply(c *history.Commit, changes []history.FileChange, ex Extraction) error {
	if err := b.Check(c); err != nil {
		return err
	}

	meta := *c
	meta.Changes = nil
	b.commits = append(b.commits, &meta)
	b.ordinal = len(b.commits)
	b.commit = c.Hash
	b.ordinals[c.Hash] = b.ordinal
	for _, p := range c.Parents {
		b.parents[p] = true
	}
	b.closing = b.closing[:0]
	b.fresh = make(map[history.EntityID]int)

	for _, d := range ex.Diagnostics {
		if d.Commit == "" {
			d.Commit = c.Hash
		}
		b.diags = append(b.diags, d)
	}

	shapes := rename.Shapes{Before: shapesOf(ex.Before), After: shapesOf(ex.After)}
	out := b.resolver.Apply(b.paths, changes, shapes, b)
	for _, a := range out.Ambiguities {
		b.diags = append(b.diags, history.Diagnostic{
			Kind:    history.IdentityAmbiguity,
			Commit:  c.Hash,
			Path:    a.Path,
			Message: fmt.Sprintf("%d candidates at distance %d (%s); no move recorded", len(a.Rivals), a.Distance, strings.Join(a.Rivals, ", ")),
		})
	}

	b.record(out.Touches, ex.After)
	return nil
}

type pending struct {
	touch   rename.Touch
	file    *File
	version *extract.FileVersion
	result  identity.Result
}

type newcomerKey struct {
	file  history.EntityID
	index int
}

func (b *Builder) record(touches []rename.Touch, after map[string]*extract.FileVersion) {
	var work []pending
	for _, t := range touches {
		v := after[t.Path]
		if v == nil {
			continue
		}
		f := b.file(t.Entity)
		prior := b.priors(f)
		if t.Op == rename.Copied {
			prior = b.priors(b.file(f.CopiedFrom))
		}
		work = append(work, pending{touch: t, file: f, version: v, result: identity.Match(prior, v.Functions, t.Hunks)})
	}

	var orphans []identity.Orphan
	for _, w := range work {
		if w.touch.Op == rename.Copied {
			continue
		}
		for _, p := range w.result.Retired {
			orphans = append(orphans, identity.Orphan{File: w.file.ID, Prior: p})
		}
	}
	for _, id := range b.closing {
		fn := b.function(id)
		last, _ := fn.Last()
		orphans = append(orphans, identity.Orphan{File: fn.File, Prior: identity.Prior{ID: id, Metric: last.Metric}})
	}

	claimed := make(map[newcomerKey]history.EntityID)
	transferred := make(map[history.EntityID]bool)
	if b.crossFile {
		var newcomers []identity.Newcomer
		for _, w := range work {
			for i, m := range w.result.Created {
				newcomers = append(newcomers, identity.Newcomer{File: w.file.ID, Index: i, Metric: m})
			}
		}
		for _, tr := range identity.TransferAcrossFiles(orphans, newcomers) {
			claimed[newcomerKey{tr.To.File, tr.To.Index}] = tr.From.ID
			transferred[tr.From.ID] = true
		}
	}

	for _, w := range work {
		b.observeFile(w, claimed)
	}

	var retiring []identity.Orphan
	for _, o := range orphans {
		if !transferred[o.ID] {
			retiring = append(retiring, o)
		}
	}
	sort.Slice(retiring, func(i, j int) bool { return retiring[i].ID < retiring[j].ID })
	for _, o := range retiring {
		b.retireFunction(o.ID)
	}
}

func (b *Builder) observeFile(w pending, claimed map[newcomerKey]history.EntityID) {
	f := w.file
	fns := w.version.Functions
	ids := make([]history.EntityID, len(fns))

	matched, created := w.result.Matched, 0
	var clones map[history.EntityID]history.EntityID
	for i, m := range fns {
		if len(matched) > 0 && matched[0].Metric.QualifiedName == m.QualifiedName {
			pair := matched[0]
			matched = matched[1:]
			if w.touch.Op == rename.Copied {
				ids[i] = b.newFunction(f, m, pair.ID)
				b.inherit(b.function(ids[i]), b.function(pair.ID))
				if clones == nil {
					clones = make(map[history.EntityID]history.EntityID)
				}
				clones[pair.ID] = ids[i]
			} else {
				ids[i] = pair.ID
				b.function(pair.ID).Name = m.QualifiedName
			}
		} else {
			if id, ok := claimed[newcomerKey{f.ID, created}]; ok {
				fn := b.function(id)
				if owner := b.file(fn.File); owner != nil {
					owner.disown(id)
				}
				fn.File = f.ID
				fn.Name = m.QualifiedName
				f.own(id)
				ids[i] = id
			} else {
				ids[i] = b.newFunction(f, m, 0)
			}
			created++
		}
		b.function(ids[i]).observe(FunctionObservation{
			Commit:  b.commit,
			Ordinal: b.ordinal,
			File:    f.ID,
			Path:    f.Path,
			Metric:  m,
		})
	}

	if clones != nil {
		for j, o := range f.Observations {
			if o.Ordinal >= b.ordinal {
				continue
			}
			remapped := make([]history.EntityID, len(o.Functions))
			for k, id := range o.Functions {
				if c, ok := clones[id]; ok {
					id = c
				}
				remapped[k] = id
			}
			f.Observations[j].Functions = remapped
		}
	}

	f.observe(FileObservation{
		Commit:    b.commit,
		Ordinal:   b.ordinal,
		Path:      f.Path,
		Lines:     w.version.Lines,
		Functions: ids,
		Metrics:   fns,
	})
	if idx, ok := b.fresh[f.ID]; ok {
		b.events[idx].NewValue = len(fns)
	}
}

func (b *Builder) priors(f *File) []identity.Prior {
	if f == nil {
		return nil
	}
	out := make([]identity.Prior, 0, len(f.owned))
	for _, id := range f.owned {
		if last, ok := b.function(id).Last(); ok {
			out = append(out, identity.Prior{ID: id, Metric: last.Metric})
		}
	}
	return out
}

func (b *Builder) newFunction(f *File, m history.FunctionMetric, copiedFrom history.EntityID) history.EntityID {
	id := b.nextID()
	b.arena = append(b.arena, slot{fn: &Function{
		ID:         id,
		Name:       m.QualifiedName,
		File:       f.ID,
		CopiedFrom: copiedFrom,
		Lifespan:   Lifespan{Created: b.commit, CreatedOrdinal: b.ordinal},
		seen:       roaring.New(),
	}})
	f.own(id)
	b.emit(history.ChangeEvent{
		Entity:     id,
		EntityKind: history.FunctionEntity,
		Kind:       history.Created,
		NewValue:   m.Cyclomatic,
		Path:       f.Path,
		Name:       m.QualifiedName,
	})
	return id
}

// inherit seeds dst with the observations src made before the current
// commit, re-owned by dst's file.
func (b *Builder) inherit(dst, src *Function) {
	if src == nil {
		return
	}
	for _, o := range src.Observations {
		if o.Ordinal >= b.ordinal {
			break
		}
		o.File = dst.File
		dst.Observations = append(dst.Observations, o)
		dst.seen.Add(uint32(o.Ordinal))
	}
}

func (b *Builder) retireFunction(id history.EntityID) {
	fn := b.function(id)
	fn.Retired, fn.RetiredOrdinal = b.commit, b.ordinal
	path := ""
	if owner := b.file(fn.File); owner != nil {
		owner.disown(id)
		path = owner.Path
	}
	last, _ := fn.Last()
	b.emit(history.ChangeEvent{
		Entity:     id,
		EntityKind: history.FunctionEntity,
		Kind:       history.Retired,
		OldValue:   last.Metric.Cyclomatic,
		Path:       path,
		Name:       fn.Name,
	})
}

// Open implements rename.Allocator.
func (b *Builder) Open(path string) history.EntityID {
	id := b.nextID()
	b.arena = append(b.arena, slot{file: &File{
		ID:       id,
		Path:     path,
		Lifespan: Lifespan{Created: b.commit, CreatedOrdinal: b.ordinal},
		seen:     roaring.New(),
	}})
	b.fresh[id] = len(b.events)
	b.emit(history.ChangeEvent{
		Entity:     id,
		EntityKind: history.FileEntity,
		Kind:       history.Created,
		Path:       path,
	})
	return id
}

// Copy implements rename.Allocator. The copy is a new entity that starts
// with the source's observation history; its functions clone the history of
// their source functions when the copy is observed.
func (b *Builder) Copy(src history.EntityID, path string) history.EntityID {
	id := b.Open(path)
	f := b.file(id)
	f.CopiedFrom = src
	if s := b.file(src); s != nil {
		for _, o := range s.Observations {
			if o.Ordinal >= b.ordinal {
				break
			}
			f.Observations = append(f.Observations, o)
			f.seen.Add(uint32(o.Ordinal))
		}
	}
	return id
}

// Relink implements rename.Allocator.
func (b *Builder) Relink(id history.EntityID, path string) {
	b.file(id).Path = path
}

// Close implements rename.Allocator. The file's functions retire at the end
// of the commit unless another file claims them.
func (b *Builder) Close(id history.EntityID) {
	f := b.file(id)
	f.Retired, f.RetiredOrdinal = b.commit, b.ordinal
	b.closing = append(b.closing, f.owned...)
	b.emit(history.ChangeEvent{
		Entity:     id,
		EntityKind: history.FileEntity,
		Kind:       history.Retired,
		OldValue:   len(f.owned),
		Path:       f.Path,
	})
}

func (b *Builder) emit(e history.ChangeEvent) {
	e.Commit = b.commit
	e.Ordinal = b.ordinal
	b.events = append(b.events, e)
}

func (b *Builder) nextID() history.EntityID {
	return history.EntityID(len(b.arena) + 1)
}

func (b *Builder) file(id history.EntityID) *File {
	if id == 0 || int(id) > len(b.arena) {
		return nil
	}
	return b.arena[id-1].file
}

func (b *Builder) function(id history.EntityID) *Function {
	if id == 0 || int(id) > len(b.arena) {
		return nil
	}
	return b.arena[id-1].fn
}

// Snapshot freezes the current state. Later commits applied to the builder
// do not affect the returned timeline.
func (b *Builder) Snapshot() *Timeline {
	t := &Timeline{
		arena:    make([]slot, len(b.arena)),
		paths:    b.paths.Clone(),
		commits:  slices.Clone(b.commits),
		ordinals: maps.Clone(b.ordinals),
		events:   slices.Clone(b.events),
		diags:    slices.Clone(b.diags),
	}
	for i, s := range b.arena {
		switch {
		case s.file != nil:
			f := *s.file
			f.Observations = slices.Clip(f.Observations)
			f.owned = slices.Clone(f.owned)
			f.seen = s.file.seen.Clone()
			t.arena[i] = slot{file: &f}
		case s.fn != nil:
			fn := *s.fn
			fn.Observations = slices.Clip(fn.Observations)
			fn.seen = s.fn.seen.Clone()
			t.arena[i] = slot{fn: &fn}
		}
	}
	return t
}

func shapesOf(versions map[string]*extract.FileVersion) map[string]rename.Shape {
	out := make(map[string]rename.Shape, len(versions))
	for path, v := range versions {
		out[path] = rename.Shape{Lines: v.Lines, Names: v.Names()}
	}
	return out
}
