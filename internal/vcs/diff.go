package vcs

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ayanftw/commit-history/pkg/history"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// changes diffs c against its first parent, or against the empty tree for
// root commits. Renames are detected by content similarity; go-git does
// not report copies.
func (r *Reader) changes(ctx context.Context, c *object.Commit, filter func(string) bool) ([]history.FileChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tree, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("tree: %w", err)
	}
	var parentTree *object.Tree
	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("parent: %w", err)
		}
		if parentTree, err = parent.Tree(); err != nil {
			return nil, fmt.Errorf("parent tree: %w", err)
		}
	}

	diffs, err := object.DiffTreeWithOptions(ctx, parentTree, tree, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}

	var out []history.FileChange
	for _, d := range diffs {
		fc, ok, err := r.convert(ctx, d, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, fc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Path() < out[j].Path()
	})
	return out, nil
}

func (r *Reader) convert(ctx context.Context, d *object.Change, filter func(string) bool) (history.FileChange, bool, error) {
	from, to := regular(d.From), regular(d.To)
	if filter != nil {
		from = from && filter(d.From.Name)
		to = to && filter(d.To.Name)
	}

	action, err := d.Action()
	if err != nil {
		return history.FileChange{}, false, fmt.Errorf("change %s: %w", d, err)
	}

	var fc history.FileChange
	switch {
	case action == merkletrie.Insert && to:
		fc = history.FileChange{Kind: history.Added, NewPath: d.To.Name, After: r.blob(d.To)}
	case action == merkletrie.Delete && from:
		fc = history.FileChange{Kind: history.Deleted, OldPath: d.From.Name, Before: r.blob(d.From)}
	case action == merkletrie.Modify && from && to:
		kind := history.Modified
		if d.From.Name != d.To.Name {
			kind = history.Renamed
		}
		fc = history.FileChange{
			Kind:    kind,
			OldPath: d.From.Name,
			NewPath: d.To.Name,
			Before:  r.blob(d.From),
			After:   r.blob(d.To),
		}
		if d.From.TreeEntry.Hash != d.To.TreeEntry.Hash {
			if fc.Hunks, err = hunks(ctx, d); err != nil {
				return history.FileChange{}, false, err
			}
		}
	case action == merkletrie.Modify && to:
		// Only the new side is tracked.
		fc = history.FileChange{Kind: history.Added, NewPath: d.To.Name, After: r.blob(d.To)}
	case action == merkletrie.Modify && from:
		fc = history.FileChange{Kind: history.Deleted, OldPath: d.From.Name, Before: r.blob(d.From)}
	default:
		return history.FileChange{}, false, nil
	}
	return fc, true, nil
}

func (r *Reader) blob(e object.ChangeEntry) history.Content {
	return &blob{reader: r, hash: e.TreeEntry.Hash}
}

func regular(e object.ChangeEntry) bool {
	if e.Name == "" {
		return false
	}
	switch e.TreeEntry.Mode {
	case filemode.Regular, filemode.Executable, filemode.Deprecated:
		return true
	default:
		return false
	}
}

// hunks reduces the change's patch to the line ranges it touches.
func hunks(ctx context.Context, d *object.Change) (history.Hunks, error) {
	patch, err := d.PatchContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("patch %s: %w", d, err)
	}
	var out history.Hunks
	for _, fp := range patch.FilePatches() {
		if fp.IsBinary() {
			continue
		}
		out = append(out, chunkHunks(fp.Chunks())...)
	}
	return out, nil
}

// chunkHunks folds consecutive delete and add chunks into hunks with
// 1-based line numbers.
func chunkHunks(chunks []diff.Chunk) history.Hunks {
	var out history.Hunks
	var cur *history.Hunk
	oldLine, newLine := 1, 1
	flush := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}
	for _, c := range chunks {
		n := countLines(c.Content())
		if c.Type() == diff.Equal {
			flush()
			oldLine += n
			newLine += n
			continue
		}
		if cur == nil {
			cur = &history.Hunk{OldStart: oldLine, NewStart: newLine}
		}
		switch c.Type() {
		case diff.Delete:
			cur.OldLines += n
			oldLine += n
		case diff.Add:
			cur.NewLines += n
			newLine += n
		}
	}
	flush()
	return out
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
