package extract

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ayanftw/commit-history/internal/cache"
	"github.com/ayanftw/commit-history/pkg/analyzer/complexity"
	"github.com/ayanftw/commit-history/pkg/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAnalyzer returns canned metrics for .x files and fails for content
// starting with "!".
type stubAnalyzer struct {
	calls   atomic.Int32
	metrics []history.FunctionMetric
}

func (s *stubAnalyzer) Language(path string) string {
	if strings.HasSuffix(path, ".x") {
		return "x"
	}
	return ""
}

func (s *stubAnalyzer) Analyze(path, lang string, content []byte) ([]history.FunctionMetric, error) {
	s.calls.Add(1)
	if strings.HasPrefix(string(content), "!") {
		return nil, errors.New("unexpected token")
	}
	return s.metrics, nil
}

type failingContent struct{}

func (failingContent) ID() string             { return "missing" }
func (failingContent) Bytes() ([]byte, error) { return nil, errors.New("object not found") }

func TestNormalize(t *testing.T) {
	raw := []history.FunctionMetric{
		{QualifiedName: "b", StartLine: 10, EndLine: 12, Cyclomatic: 2, Lines: 3},
		{QualifiedName: "", StartLine: 5, EndLine: 6, Cyclomatic: -1, Lines: 0, Params: -2},
		{QualifiedName: "b", StartLine: 1, EndLine: 3, Cyclomatic: 1, Lines: 3},
		{QualifiedName: "b", StartLine: 20, EndLine: 19, Cyclomatic: 1, Lines: 0},
	}

	v := Normalize("f.x", "x", "d1", 30, raw)

	require.Len(t, v.Functions, 4)
	assert.Equal(t, []string{"b", AnonymousName, "b#2", "b#3"}, v.Names())
	assert.Equal(t, history.FunctionMetric{QualifiedName: AnonymousName, StartLine: 5, EndLine: 6, Cyclomatic: 0, Lines: 2, Params: 0}, v.Functions[1])
	assert.Equal(t, 20, v.Functions[3].EndLine)
	assert.Equal(t, 1, v.Functions[3].Lines)
	assert.Equal(t, 4, v.TotalComplexity())
	assert.Equal(t, "b", raw[0].QualifiedName, "input must not be mutated")
}

func TestNormalize_SuffixSkipsNamesInUse(t *testing.T) {
	raw := []history.FunctionMetric{
		{QualifiedName: "foo", StartLine: 1, EndLine: 2},
		{QualifiedName: "foo", StartLine: 5, EndLine: 6},
		{QualifiedName: "foo#2", StartLine: 10, EndLine: 11},
		{QualifiedName: "foo", StartLine: 15, EndLine: 16},
	}

	v := Normalize("f.x", "x", "d1", 20, raw)

	assert.Equal(t, []string{"foo", "foo#3", "foo#2", "foo#4"}, v.Names())
}

func TestExtract(t *testing.T) {
	stub := &stubAnalyzer{metrics: []history.FunctionMetric{{QualifiedName: "f", StartLine: 1, EndLine: 2, Cyclomatic: 3, Lines: 2}}}
	e := New(stub)

	v, err := e.Extract("a.x", history.Bytes([]byte("one\ntwo\n")))
	require.NoError(t, err)
	assert.Equal(t, "a.x", v.Path)
	assert.Equal(t, "x", v.Language)
	assert.Equal(t, 2, v.Lines)
	assert.Equal(t, []string{"f"}, v.Names())
	assert.True(t, e.Supports("b.x"))
	assert.False(t, e.Supports("b.md"))
}

func TestExtract_Errors(t *testing.T) {
	e := New(&stubAnalyzer{})

	_, err := e.Extract("readme.md", history.Bytes([]byte("hi")))
	assert.ErrorIs(t, err, history.ErrUnsupportedLanguage)

	_, err = e.Extract("a.x", history.Bytes([]byte("!broken")))
	var analysisErr *history.AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, "a.x", analysisErr.Path)
	assert.ErrorIs(t, err, history.ErrParse)

	_, err = e.Extract("a.x", failingContent{})
	assert.ErrorIs(t, err, history.ErrRepositoryRead)

	_, err = e.Extract("a.x", nil)
	assert.ErrorIs(t, err, history.ErrRepositoryRead)
}

func TestExtract_UsesCache(t *testing.T) {
	c, err := cache.New("", 0, true)
	require.NoError(t, err)
	stub := &stubAnalyzer{metrics: []history.FunctionMetric{{QualifiedName: "f", StartLine: 1, EndLine: 1, Cyclomatic: 1, Lines: 1}}}
	e := New(stub, WithCache(c))

	content := history.Bytes([]byte("same"))
	first, err := e.Extract("a.x", content)
	require.NoError(t, err)
	second, err := e.Extract("renamed.x", content)
	require.NoError(t, err)

	assert.Equal(t, int32(1), stub.calls.Load())
	assert.Equal(t, "renamed.x", second.Path)
	assert.Equal(t, first.Functions, second.Functions)
}

func TestExtractAll(t *testing.T) {
	stub := &stubAnalyzer{metrics: []history.FunctionMetric{{QualifiedName: "f", StartLine: 1, EndLine: 1, Cyclomatic: 1, Lines: 1}}}
	e := New(stub, WithWorkers(4))

	shared := history.Bytes([]byte("body"))
	reqs := []Request{
		{Path: "a.x", Content: shared},
		{Path: "b.x", Content: history.Bytes([]byte("!bad"))},
		{Path: "a.x", Content: shared},
		{Path: "c.md", Content: shared},
	}

	results := e.ExtractAll(context.Background(), reqs)
	require.Len(t, results, 4)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, "a.x", results[0].Version.Path)
	assert.Error(t, results[1].Err)
	assert.Same(t, results[0].Version, results[2].Version)
	assert.ErrorIs(t, results[3].Err, history.ErrUnsupportedLanguage)
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestExtract_WithComplexityAnalyzer(t *testing.T) {
	e := New(complexity.New())

	src := "package main\n\nfunc a() {}\n\nfunc b(x int) int {\n\tif x > 1 {\n\t\treturn 1\n\t}\n\treturn 0\n}\n"
	v, err := e.Extract("main.go", history.Bytes([]byte(src)))
	require.NoError(t, err)

	assert.Equal(t, "go", v.Language)
	assert.Equal(t, 10, v.Lines)
	require.Equal(t, []string{"a", "b"}, v.Names())
	assert.Equal(t, 2, v.Functions[1].Cyclomatic)
	assert.Equal(t, 1, v.Functions[1].Params)
}
