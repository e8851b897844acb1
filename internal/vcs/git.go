// Package vcs reads commit history from git repositories as a stream of
// history.Commit values in parent-before-child order.
package vcs

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ayanftw/commit-history/pkg/history"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"gonum.org/v1/gonum/graph/simple"
)

// Reader reads commits from one repository.
type Reader struct {
	repo *git.Repository
	path string

	// go-git object storage is not safe for concurrent reads.
	mu sync.Mutex
}

// Open opens the repository containing path, searching parent directories
// for .git.
func Open(path string) (*Reader, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, &history.RepositoryReadError{Err: fmt.Errorf("open %s: %w", path, err)}
	}
	return &Reader{repo: repo, path: path}, nil
}

// Path returns the path the reader was opened with.
func (r *Reader) Path() string {
	return r.path
}

// LogOptions configures the commit walk.
type LogOptions struct {
	// From excludes this revision and everything reachable from it.
	From string
	// To is the tip revision, HEAD when empty.
	To string
	// FirstParent follows only the first parent of merges.
	FirstParent bool
	// Filter keeps changes where either side's path passes. Nil keeps all.
	Filter func(path string) bool
	// Since drops commits authored before it. Zero keeps all.
	Since time.Time
	// Authors keeps commits whose author name or email contains one of
	// these, case-insensitively. Empty keeps all.
	Authors []string
}

// Commits resolves the commit range and orders it parents first. Ties
// between independent commits are broken by author time, then hash. Diffs
// are computed lazily by Iterator.ForEach.
func (r *Reader) Commits(ctx context.Context, opts LogOptions) (*Iterator, error) {
	it := &Iterator{reader: r, filter: opts.Filter}

	tipRev := opts.To
	if tipRev == "" {
		tipRev = "HEAD"
	}
	tip, err := r.repo.ResolveRevision(plumbing.Revision(tipRev))
	if err != nil {
		if opts.To == "" && errors.Is(err, plumbing.ErrReferenceNotFound) {
			// Empty repository.
			return it, nil
		}
		return nil, &history.RepositoryReadError{Err: fmt.Errorf("resolve %s: %w", tipRev, err)}
	}

	excluded := make(map[plumbing.Hash]bool)
	if opts.From != "" {
		from, err := r.repo.ResolveRevision(plumbing.Revision(opts.From))
		if err != nil {
			return nil, &history.RepositoryReadError{Err: fmt.Errorf("resolve %s: %w", opts.From, err)}
		}
		if err := r.walk(ctx, *from, false, excluded, func(*object.Commit) {}); err != nil {
			return nil, err
		}
	}

	var commits []*object.Commit
	seen := make(map[plumbing.Hash]bool, len(excluded))
	for h := range excluded {
		seen[h] = true
	}
	if err := r.walk(ctx, *tip, opts.FirstParent, seen, func(c *object.Commit) {
		commits = append(commits, c)
	}); err != nil {
		return nil, err
	}

	ordered, err := topoOrder(commits, opts.FirstParent)
	if err != nil {
		return nil, &history.RepositoryReadError{Err: err}
	}

	for _, c := range ordered {
		if keep(c, opts) {
			it.commits = append(it.commits, c)
		}
	}

	it.branches, err = r.branchTips()
	if err != nil {
		return nil, &history.RepositoryReadError{Err: fmt.Errorf("list branches: %w", err)}
	}
	return it, nil
}

// walk visits start and its unseen ancestors breadth first, marking them
// in seen.
func (r *Reader) walk(ctx context.Context, start plumbing.Hash, firstParent bool, seen map[plumbing.Hash]bool, visit func(*object.Commit)) error {
	if seen[start] {
		return nil
	}
	seen[start] = true
	queue := []plumbing.Hash{start}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		h := queue[0]
		queue = queue[1:]

		c, err := r.repo.CommitObject(h)
		if err != nil {
			return &history.RepositoryReadError{Commit: h.String(), Err: err}
		}
		visit(c)

		parents := c.ParentHashes
		if firstParent && len(parents) > 1 {
			parents = parents[:1]
		}
		for _, p := range parents {
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}
	return nil
}

// topoOrder sorts commits so every parent precedes its children. Among
// commits whose parents are all placed, the earliest author time goes
// first, then the smallest hash.
func topoOrder(commits []*object.Commit, firstParent bool) ([]*object.Commit, error) {
	index := make(map[plumbing.Hash]int64, len(commits))
	g := simple.NewDirectedGraph()
	for i, c := range commits {
		index[c.Hash] = int64(i)
		g.AddNode(simple.Node(i))
	}
	for i, c := range commits {
		parents := c.ParentHashes
		if firstParent && len(parents) > 1 {
			parents = parents[:1]
		}
		for _, p := range parents {
			if j, ok := index[p]; ok && j != int64(i) {
				g.SetEdge(g.NewEdge(simple.Node(j), simple.Node(i)))
			}
		}
	}

	ready := &readyQueue{less: func(a, b int64) bool {
		ca, cb := commits[a], commits[b]
		if !ca.Author.When.Equal(cb.Author.When) {
			return ca.Author.When.Before(cb.Author.When)
		}
		return ca.Hash.String() < cb.Hash.String()
	}}
	pending := make([]int, len(commits))
	for i := range commits {
		pending[i] = g.To(int64(i)).Len()
		if pending[i] == 0 {
			heap.Push(ready, int64(i))
		}
	}

	out := make([]*object.Commit, 0, len(commits))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(int64)
		out = append(out, commits[id])
		children := g.From(id)
		for children.Next() {
			child := children.Node().ID()
			if pending[child]--; pending[child] == 0 {
				heap.Push(ready, child)
			}
		}
	}
	if len(out) != len(commits) {
		return nil, errors.New("order commits: parent graph has a cycle")
	}
	return out, nil
}

// readyQueue is a heap of commit indexes.
type readyQueue struct {
	ids  []int64
	less func(a, b int64) bool
}

func (q *readyQueue) Len() int           { return len(q.ids) }
func (q *readyQueue) Less(i, j int) bool { return q.less(q.ids[i], q.ids[j]) }
func (q *readyQueue) Swap(i, j int)      { q.ids[i], q.ids[j] = q.ids[j], q.ids[i] }
func (q *readyQueue) Push(x any)         { q.ids = append(q.ids, x.(int64)) }

func (q *readyQueue) Pop() any {
	n := len(q.ids)
	id := q.ids[n-1]
	q.ids = q.ids[:n-1]
	return id
}

func keep(c *object.Commit, opts LogOptions) bool {
	if !opts.Since.IsZero() && c.Author.When.Before(opts.Since) {
		return false
	}
	if len(opts.Authors) == 0 {
		return true
	}
	name := strings.ToLower(c.Author.Name)
	email := strings.ToLower(c.Author.Email)
	for _, a := range opts.Authors {
		a = strings.ToLower(a)
		if strings.Contains(name, a) || strings.Contains(email, a) {
			return true
		}
	}
	return false
}

// branchTips maps commit hashes to the local branches pointing at them.
func (r *Reader) branchTips() (map[plumbing.Hash][]string, error) {
	refs, err := r.repo.Branches()
	if err != nil {
		return nil, err
	}
	defer refs.Close()

	tips := make(map[plumbing.Hash][]string)
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		tips[ref.Hash()] = append(tips[ref.Hash()], ref.Name().Short())
		return nil
	})
	for _, names := range tips {
		sort.Strings(names)
	}
	return tips, err
}

// Iterator is an ordered commit range. It is restartable only by calling
// Reader.Commits again.
type Iterator struct {
	reader   *Reader
	commits  []*object.Commit
	branches map[plumbing.Hash][]string
	filter   func(string) bool
}

// Len returns the number of commits in the range.
func (it *Iterator) Len() int {
	return len(it.commits)
}

// Headers returns the commits in order without computing their changes.
func (it *Iterator) Headers() []*history.Commit {
	out := make([]*history.Commit, len(it.commits))
	for i, c := range it.commits {
		out[i] = it.header(c)
	}
	return out
}

// ForEach calls fn with each commit and its changes against the first
// parent. It stops at the first error from fn or from reading the
// repository; read failures are *history.RepositoryReadError.
func (it *Iterator) ForEach(ctx context.Context, fn func(*history.Commit) error) error {
	for _, c := range it.commits {
		if err := ctx.Err(); err != nil {
			return err
		}
		hc := it.header(c)
		changes, err := it.reader.changes(ctx, c, it.filter)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &history.RepositoryReadError{Commit: c.Hash.String(), Err: err}
		}
		hc.Changes = changes
		if err := fn(hc); err != nil {
			return err
		}
	}
	return nil
}

func (it *Iterator) header(c *object.Commit) *history.Commit {
	parents := make([]string, len(c.ParentHashes))
	for i, p := range c.ParentHashes {
		parents[i] = p.String()
	}
	return &history.Commit{
		Hash:     c.Hash.String(),
		Parents:  parents,
		Author:   history.Signature{Name: c.Author.Name, Email: c.Author.Email},
		When:     c.Author.When,
		Branches: it.branches[c.Hash],
		Message:  c.Message,
	}
}

// blob is file content backed by a git blob, read on demand.
type blob struct {
	reader *Reader
	hash   plumbing.Hash
}

func (b *blob) ID() string {
	return b.hash.String()
}

func (b *blob) Bytes() ([]byte, error) {
	b.reader.mu.Lock()
	defer b.reader.mu.Unlock()

	obj, err := b.reader.repo.BlobObject(b.hash)
	if err != nil {
		return nil, fmt.Errorf("blob %s: %w", b.hash, err)
	}
	rd, err := obj.Reader()
	if err != nil {
		return nil, fmt.Errorf("blob %s: %w", b.hash, err)
	}
	defer rd.Close()
	return io.ReadAll(rd)
}
