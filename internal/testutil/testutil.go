// Package testutil provides fixtures shared by package tests: a tiny
// line-oriented analyzer, commit builders and filesystem helpers.
package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/ayanftw/commit-history/pkg/history"
)

// Analyzer understands ".x" files where every line of the form
//
//	func NAME COMPLEXITY [PARAMS]
//
// starts a function that extends to the line before the next one. Content
// starting with "!" fails to parse.
type Analyzer struct{}

// Language implements extract.Analyzer.
func (Analyzer) Language(path string) string {
	if strings.HasSuffix(path, ".x") {
		return "x"
	}
	return ""
}

// Analyze implements extract.Analyzer.
func (Analyzer) Analyze(path, lang string, content []byte) ([]history.FunctionMetric, error) {
	text := string(content)
	if strings.HasPrefix(text, "!") {
		return nil, fmt.Errorf("%w: %s: unexpected token", history.ErrParse, path)
	}

	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	var out []history.FunctionMetric
	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[0] != "func" {
			continue
		}
		cc, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("%w: %s:%d: bad complexity", history.ErrParse, path, i+1)
		}
		params := 0
		if len(fields) > 3 {
			params, _ = strconv.Atoi(fields[3])
		}
		if n := len(out); n > 0 {
			out[n-1].EndLine = i
		}
		out = append(out, history.FunctionMetric{
			QualifiedName: fields[1],
			StartLine:     i + 1,
			EndLine:       len(lines),
			Cyclomatic:    cc,
			Params:        params,
		})
	}
	for i := range out {
		out[i].Lines = out[i].EndLine - out[i].StartLine + 1
	}
	return out, nil
}

// Commit builds a commit with the given parents and changes.
func Commit(hash string, parents []string, changes ...history.FileChange) *history.Commit {
	return &history.Commit{
		Hash:    hash,
		Parents: parents,
		Author:  history.Signature{Name: "Dev", Email: "dev@example.com"},
		Message: "commit " + hash,
		Changes: changes,
	}
}

// Add is an addition of path with content src.
func Add(path, src string) history.FileChange {
	return history.FileChange{Kind: history.Added, NewPath: path, After: history.Bytes([]byte(src))}
}

// Modify is an in-place modification of path.
func Modify(path, src string, hunks ...history.Hunk) history.FileChange {
	return history.FileChange{
		Kind:    history.Modified,
		OldPath: path,
		NewPath: path,
		Hunks:   hunks,
		After:   history.Bytes([]byte(src)),
	}
}

// Delete is a deletion of path whose last content was src.
func Delete(path, src string) history.FileChange {
	return history.FileChange{Kind: history.Deleted, OldPath: path, Before: history.Bytes([]byte(src))}
}

// Rename is an explicit rename with the new content src.
func Rename(from, to, src string, hunks ...history.Hunk) history.FileChange {
	return history.FileChange{
		Kind:    history.Renamed,
		OldPath: from,
		NewPath: to,
		Hunks:   hunks,
		After:   history.Bytes([]byte(src)),
	}
}

// Copy is an explicit copy of from to to with content src.
func Copy(from, to, src string) history.FileChange {
	return history.FileChange{
		Kind:    history.Copied,
		OldPath: from,
		NewPath: to,
		After:   history.Bytes([]byte(src)),
	}
}

// ErrUnreadable is returned by Unreadable content.
var ErrUnreadable = errors.New("object not found")

// Unreadable is content whose bytes cannot be read.
type Unreadable struct{}

func (Unreadable) ID() string             { return "unreadable" }
func (Unreadable) Bytes() ([]byte, error) { return nil, ErrUnreadable }

// WriteFile writes content to a file in the real filesystem.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll(%s) error: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile(%s) error: %v", path, err)
	}
}

// CreateFileTree creates multiple files from a map of path -> content.
func CreateFileTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		WriteFile(t, filepath.Join(root, name), content)
	}
}
