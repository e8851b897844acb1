package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitRepo is a throwaway repository in a test's temp directory.
type GitRepo struct {
	Dir string

	t     *testing.T
	wt    *git.Worktree
	clock time.Time
}

// NewGitRepo initializes an empty repository.
func NewGitRepo(t *testing.T) *GitRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init repository: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	return &GitRepo{
		Dir:   dir,
		t:     t,
		wt:    wt,
		clock: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

// Commit writes files, removes paths and commits as author one hour after
// the previous commit. It returns the commit hash.
func (r *GitRepo) Commit(author, message string, files map[string]string, remove ...string) string {
	r.t.Helper()
	for name, content := range files {
		WriteFile(r.t, filepath.Join(r.Dir, name), content)
		if _, err := r.wt.Add(name); err != nil {
			r.t.Fatalf("add %s: %v", name, err)
		}
	}
	for _, name := range remove {
		if _, err := r.wt.Remove(name); err != nil {
			r.t.Fatalf("remove %s: %v", name, err)
		}
	}

	r.clock = r.clock.Add(time.Hour)
	h, err := r.wt.Commit(message, &git.CommitOptions{
		Author:            &object.Signature{Name: author, Email: author + "@example.com", When: r.clock},
		AllowEmptyCommits: true,
	})
	if err != nil {
		r.t.Fatalf("commit: %v", err)
	}
	return h.String()
}

// Rename moves a tracked file and commits it.
func (r *GitRepo) Rename(author, from, to string) string {
	r.t.Helper()
	data, err := os.ReadFile(filepath.Join(r.Dir, from))
	if err != nil {
		r.t.Fatalf("read %s: %v", from, err)
	}
	return r.Commit(author, "rename "+from, map[string]string{to: string(data)}, from)
}

// Advance moves the commit clock by d.
func (r *GitRepo) Advance(d time.Duration) {
	r.clock = r.clock.Add(d)
}
