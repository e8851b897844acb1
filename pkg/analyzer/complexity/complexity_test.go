package complexity

import (
	"sync"
	"testing"

	"github.com/ayanftw/commit-history/pkg/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goSource = `package main

func simple() int {
	return 42
}

func withIf(x int) int {
	if x > 0 {
		return x
	}
	return 0
}

func cond(x, y int) bool {
	if x > 0 && y > 0 {
		return true
	}
	return false
}

func sw(x int) string {
	switch x {
	case 1:
		return "one"
	case 2:
		return "two"
	default:
		return "many"
	}
}
`

func TestAnalyze_Go(t *testing.T) {
	a := New()

	metrics, err := a.Analyze("main.go", "go", []byte(goSource))
	require.NoError(t, err)
	require.Len(t, metrics, 4)

	want := []history.FunctionMetric{
		{QualifiedName: "simple", StartLine: 3, EndLine: 5, Cyclomatic: 1, Lines: 3, Params: 0},
		{QualifiedName: "withIf", StartLine: 7, EndLine: 12, Cyclomatic: 2, Lines: 6, Params: 1},
		{QualifiedName: "cond", StartLine: 14, EndLine: 19, Cyclomatic: 3, Lines: 6, Params: 2},
		{QualifiedName: "sw", StartLine: 21, EndLine: 30, Cyclomatic: 3, Lines: 10, Params: 1},
	}
	assert.Equal(t, want, metrics)
}

func TestAnalyze_DetectsLanguageWhenHintEmpty(t *testing.T) {
	a := New()

	metrics, err := a.Analyze("script.py", "", []byte("def f(a):\n    if a:\n        return 1\n    return 0\n"))
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, "f", metrics[0].QualifiedName)
	assert.Equal(t, 2, metrics[0].Cyclomatic)
}

func TestAnalyze_Unsupported(t *testing.T) {
	a := New()

	_, err := a.Analyze("notes.txt", "", []byte("hello"))
	assert.ErrorIs(t, err, history.ErrUnsupportedLanguage)
	assert.Equal(t, "", a.Language("notes.txt"))
	assert.Equal(t, "go", a.Language("main.go"))
}

func TestAnalyze_MaxFileSize(t *testing.T) {
	a := New(WithMaxFileSize(10))

	_, err := a.Analyze("main.go", "go", []byte(goSource))
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestAnalyze_StrictSyntax(t *testing.T) {
	broken := []byte("package main\n\nfunc broken( {\n")

	_, err := New().Analyze("broken.go", "go", broken)
	assert.NoError(t, err)

	_, err = New(WithStrictSyntax(true)).Analyze("broken.go", "go", broken)
	assert.ErrorIs(t, err, history.ErrParse)
}

func TestAnalyze_Concurrent(t *testing.T) {
	a := New()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metrics, err := a.Analyze("main.go", "go", []byte(goSource))
			if err == nil && len(metrics) != 4 {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
