// Package extract turns analyzer output for one file version into a
// normalized FileVersion record, memoized by content and computed in
// parallel across the files of a commit.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/ayanftw/commit-history/internal/cache"
	"github.com/ayanftw/commit-history/internal/fileproc"
	"github.com/ayanftw/commit-history/pkg/history"
)

// AnonymousName replaces empty function names.
const AnonymousName = "<anonymous>"

// Analyzer is the static complexity analyzer boundary. Analyze must be a
// pure function of its inputs and safe for concurrent use.
type Analyzer interface {
	// Language returns the language for path, or "" when unsupported.
	Language(path string) string
	Analyze(path, lang string, content []byte) ([]history.FunctionMetric, error)
}

// FileVersion is the normalized analysis of one file at one commit.
type FileVersion struct {
	Path      string                   `json:"path"`
	Language  string                   `json:"language"`
	Digest    string                   `json:"digest"`
	Lines     int                      `json:"lines"`
	Functions []history.FunctionMetric `json:"functions"`
}

// Names returns the qualified names of the version's functions.
func (v *FileVersion) Names() []string {
	names := make([]string, len(v.Functions))
	for i, fn := range v.Functions {
		names[i] = fn.QualifiedName
	}
	return names
}

// TotalComplexity sums the cyclomatic complexity of all functions.
func (v *FileVersion) TotalComplexity() int {
	total := 0
	for _, fn := range v.Functions {
		total += fn.Cyclomatic
	}
	return total
}

// Extractor runs the analyzer and normalizes its output.
type Extractor struct {
	analyzer Analyzer
	cache    *cache.Cache
	workers  int
}

// Option is a functional option for configuring Extractor.
type Option func(*Extractor)

// WithCache memoizes analysis results by content.
func WithCache(c *cache.Cache) Option {
	return func(e *Extractor) {
		e.cache = c
	}
}

// WithWorkers bounds the number of concurrent analyzer calls (0 = 2x NumCPU).
func WithWorkers(n int) Option {
	return func(e *Extractor) {
		e.workers = n
	}
}

// New creates an Extractor around analyzer.
func New(analyzer Analyzer, opts ...Option) *Extractor {
	e := &Extractor{analyzer: analyzer}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Supports reports whether the analyzer handles path.
func (e *Extractor) Supports(path string) bool {
	return e.analyzer.Language(path) != ""
}

// Extract analyzes one file version. Content read failures wrap
// history.ErrRepositoryRead, unsupported files history.ErrUnsupportedLanguage,
// and analyzer failures are returned as *history.AnalysisError.
func (e *Extractor) Extract(path string, content history.Content) (*FileVersion, error) {
	lang := e.analyzer.Language(path)
	if lang == "" {
		return nil, fmt.Errorf("%w: %s", history.ErrUnsupportedLanguage, path)
	}
	if content == nil {
		return nil, fmt.Errorf("%w: no content for %s", history.ErrRepositoryRead, path)
	}

	key := cache.BlobKey(lang, content.ID())
	if data, ok := e.cache.Get(key); ok {
		var v FileVersion
		if err := json.Unmarshal(data, &v); err == nil {
			v.Path = path
			return &v, nil
		}
	}

	data, err := content.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", history.ErrRepositoryRead, path, err)
	}

	metrics, err := e.analyzer.Analyze(path, lang, data)
	if err != nil {
		if errors.Is(err, history.ErrUnsupportedLanguage) {
			return nil, err
		}
		if !errors.Is(err, history.ErrParse) {
			err = fmt.Errorf("%w: %v", history.ErrParse, err)
		}
		return nil, &history.AnalysisError{Path: path, Err: err}
	}

	v := Normalize(path, lang, content.ID(), history.CountLines(data), metrics)
	if e.cache.Enabled() {
		if encoded, err := json.Marshal(v); err == nil {
			_ = e.cache.Set(key, encoded)
		}
	}
	return v, nil
}

// Request names one file version to extract.
type Request struct {
	Path    string
	Content history.Content
}

// Result pairs a request with its outcome.
type Result struct {
	Request
	Version *FileVersion
	Err     error
}

// ExtractAll analyzes the requests concurrently and returns results in
// request order. Identical (path, content) requests are analyzed once.
func (e *Extractor) ExtractAll(ctx context.Context, reqs []Request) []Result {
	type job struct {
		req Request
		key string
	}
	seen := make(map[string]int)
	jobs := make([]job, 0, len(reqs))
	slot := make([]int, len(reqs))
	for i, r := range reqs {
		key := r.Path
		if r.Content != nil {
			key += "\x00" + r.Content.ID()
		}
		idx, ok := seen[key]
		if !ok {
			idx = len(jobs)
			seen[key] = idx
			jobs = append(jobs, job{req: r, key: key})
		}
		slot[i] = idx
	}

	versions, errs := fileproc.MapIndexed(ctx, jobs, e.workers, func(_ context.Context, j job) (*FileVersion, error) {
		return e.Extract(j.req.Path, j.req.Content)
	})

	results := make([]Result, len(reqs))
	for i, r := range reqs {
		results[i] = Result{Request: r, Version: versions[slot[i]], Err: errs[slot[i]]}
	}
	return results
}

// Normalize produces the stable record shape from raw analyzer output:
// functions ordered by position, empty names replaced, duplicate names
// suffixed "#2", "#3" in position order (skipping names already in use),
// and out-of-range values clamped.
func Normalize(path, lang, digest string, lines int, metrics []history.FunctionMetric) *FileVersion {
	fns := make([]history.FunctionMetric, len(metrics))
	copy(fns, metrics)

	for i := range fns {
		fn := &fns[i]
		if fn.QualifiedName == "" {
			fn.QualifiedName = AnonymousName
		}
		if fn.StartLine < 1 {
			fn.StartLine = 1
		}
		if fn.EndLine < fn.StartLine {
			fn.EndLine = fn.StartLine
		}
		if fn.Lines < 1 {
			fn.Lines = fn.EndLine - fn.StartLine + 1
		}
		if fn.Cyclomatic < 0 {
			fn.Cyclomatic = 0
		}
		if fn.Params < 0 {
			fn.Params = 0
		}
	}

	sort.SliceStable(fns, func(i, j int) bool {
		a, b := fns[i], fns[j]
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		if a.EndLine != b.EndLine {
			return a.EndLine < b.EndLine
		}
		return a.QualifiedName < b.QualifiedName
	})

	taken := make(map[string]bool, len(fns))
	for _, fn := range fns {
		taken[fn.QualifiedName] = true
	}
	counts := make(map[string]int, len(fns))
	for i := range fns {
		name := fns[i].QualifiedName
		counts[name]++
		if counts[name] == 1 {
			continue
		}
		n := counts[name]
		for taken[name+"#"+strconv.Itoa(n)] {
			n++
		}
		counts[name] = n
		fns[i].QualifiedName = name + "#" + strconv.Itoa(n)
		taken[fns[i].QualifiedName] = true
	}

	return &FileVersion{
		Path:      path,
		Language:  lang,
		Digest:    digest,
		Lines:     lines,
		Functions: fns,
	}
}
