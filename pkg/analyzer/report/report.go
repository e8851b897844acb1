// Package report folds a frozen timeline and its detected events into
// per-function, per-file and per-repository summaries. It never mutates
// the timeline.
package report

import (
	"fmt"
	"sort"

	"github.com/ayanftw/commit-history/pkg/analyzer/timeline"
	"github.com/ayanftw/commit-history/pkg/analyzer/trend"
	"github.com/ayanftw/commit-history/pkg/history"
	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/stat"
)

// DefaultTop is the default length of the top-N lists.
const DefaultTop = 10

// FunctionSummary is the life of one function entity in numbers.
type FunctionSummary struct {
	ID           history.EntityID `json:"id" toon:"id"`
	Name         string           `json:"name" toon:"name"`
	FileID       history.EntityID `json:"file_id" toon:"file_id"`
	Path         string           `json:"path" toon:"path"`
	Open         bool             `json:"open" toon:"open"`
	Created      string           `json:"created" toon:"created"`
	Retired      string           `json:"retired,omitempty" toon:"retired,omitempty"`
	First        int              `json:"first" toon:"first"`
	Last         int              `json:"last" toon:"last"`
	Peak         int              `json:"peak" toon:"peak"`
	Growth       float64          `json:"growth" toon:"growth"`
	Slope        float64          `json:"slope" toon:"slope"`
	Breaches     int              `json:"breaches" toon:"breaches"`
	Reversals    int              `json:"reversals" toon:"reversals"`
	Outliers     int              `json:"outliers" toon:"outliers"`
	Observations int              `json:"observations" toon:"observations"`
}

// FileSummary rolls up the latest complexity of a file's functions.
type FileSummary struct {
	ID            history.EntityID `json:"id" toon:"id"`
	Path          string           `json:"path" toon:"path"`
	Open          bool             `json:"open" toon:"open"`
	Created       string           `json:"created" toon:"created"`
	Retired       string           `json:"retired,omitempty" toon:"retired,omitempty"`
	CopiedFrom    history.EntityID `json:"copied_from,omitempty" toon:"copied_from,omitempty"`
	Lines         int              `json:"lines" toon:"lines"`
	OpenFunctions int              `json:"open_functions" toon:"open_functions"`
	SumComplexity int              `json:"sum_complexity" toon:"sum_complexity"`
	MaxComplexity int              `json:"max_complexity" toon:"max_complexity"`
	Breaches      int              `json:"breaches" toon:"breaches"`
	Observations  int              `json:"observations" toon:"observations"`
}

// Summary describes the repository as a whole.
type Summary struct {
	Commits       int            `json:"commits" toon:"commits"`
	Head          string         `json:"head,omitempty" toon:"head,omitempty"`
	Files         int            `json:"files" toon:"files"`
	OpenFiles     int            `json:"open_files" toon:"open_files"`
	Functions     int            `json:"functions" toon:"functions"`
	OpenFunctions int            `json:"open_functions" toon:"open_functions"`
	Events        map[string]int `json:"events" toon:"events"`
	Diagnostics   int            `json:"diagnostics" toon:"diagnostics"`
}

// Report is the full aggregation result.
type Report struct {
	Summary       Summary               `json:"summary" toon:"summary"`
	TopBreaches   []FunctionSummary     `json:"top_breaches" toon:"top_breaches"`
	TopComplexity []FunctionSummary     `json:"top_complexity" toon:"top_complexity"`
	TopGrowth     []FunctionSummary     `json:"top_growth" toon:"top_growth"`
	Files         []FileSummary         `json:"files" toon:"files"`
	Functions     []FunctionSummary     `json:"functions" toon:"functions"`
	Events        []history.ChangeEvent `json:"events" toon:"events"`
	Diagnostics   []history.Diagnostic  `json:"diagnostics" toon:"diagnostics"`
	Digest        string                `json:"digest" toon:"digest"`
}

// Build aggregates tl. detected are the trend events for tl; they are
// merged with the lifecycle events. top <= 0 uses DefaultTop.
func Build(tl *timeline.Timeline, detected []history.ChangeEvent, top int) *Report {
	if top <= 0 {
		top = DefaultTop
	}

	events := make([]history.ChangeEvent, 0, len(tl.Events())+len(detected))
	events = append(events, tl.Events()...)
	events = append(events, detected...)
	trend.Sort(events)

	counts := make(map[history.EntityID]map[history.EventKind]int)
	for _, e := range events {
		if counts[e.Entity] == nil {
			counts[e.Entity] = make(map[history.EventKind]int)
		}
		counts[e.Entity][e.Kind]++
	}

	r := &Report{
		Events:      events,
		Diagnostics: tl.Diagnostics(),
		Digest:      Digest(tl, events),
	}

	byID := make(map[history.EntityID]FunctionSummary)
	for _, fn := range tl.Functions() {
		s := summarizeFunction(tl, fn, counts[fn.ID])
		byID[fn.ID] = s
		r.Functions = append(r.Functions, s)
	}
	for _, f := range tl.Files() {
		r.Files = append(r.Files, summarizeFile(tl, f, byID))
	}

	r.Summary = Summary{
		Commits:     len(tl.Commits()),
		Files:       len(r.Files),
		Functions:   len(r.Functions),
		Events:      make(map[string]int),
		Diagnostics: len(r.Diagnostics),
	}
	if head := tl.Head(); head != nil {
		r.Summary.Head = head.Hash
	}
	for _, f := range r.Files {
		if f.Open {
			r.Summary.OpenFiles++
		}
	}
	for _, fn := range r.Functions {
		if fn.Open {
			r.Summary.OpenFunctions++
		}
	}
	for _, e := range events {
		r.Summary.Events[e.Kind.String()]++
	}

	r.TopBreaches = topN(r.Functions, top, func(s FunctionSummary) bool { return s.Breaches > 0 },
		func(a, b FunctionSummary) bool { return a.Breaches > b.Breaches })
	r.TopComplexity = topN(r.Functions, top, func(s FunctionSummary) bool { return s.Open },
		func(a, b FunctionSummary) bool { return a.Last > b.Last })
	r.TopGrowth = topN(r.Functions, top, func(s FunctionSummary) bool { return s.Growth > 0 },
		func(a, b FunctionSummary) bool { return a.Growth > b.Growth })

	return r
}

func summarizeFunction(tl *timeline.Timeline, fn *timeline.Function, counts map[history.EventKind]int) FunctionSummary {
	s := FunctionSummary{
		ID:           fn.ID,
		Name:         fn.Name,
		FileID:       fn.File,
		Open:         fn.Open(),
		Created:      fn.Created,
		Retired:      fn.Retired,
		Breaches:     counts[history.ThresholdBreach],
		Reversals:    counts[history.TrendReversal],
		Outliers:     counts[history.Outlier],
		Observations: len(fn.Observations),
	}
	if f, ok := tl.File(fn.File); ok {
		s.Path = f.Path
	}
	if len(fn.Observations) == 0 {
		return s
	}

	first := fn.Observations[0]
	last := fn.Observations[len(fn.Observations)-1]
	s.First = first.Metric.Cyclomatic
	s.Last = last.Metric.Cyclomatic
	for _, o := range fn.Observations {
		s.Peak = max(s.Peak, o.Metric.Cyclomatic)
	}
	if elapsed := last.Ordinal - first.Ordinal; elapsed > 0 {
		s.Growth = float64(s.Last-s.First) / float64(elapsed)
	}
	s.Slope = slope(fn.Observations)
	return s
}

// slope fits complexity against commit ordinal.
func slope(obs []timeline.FunctionObservation) float64 {
	if len(obs) < 2 {
		return 0
	}
	xs := make([]float64, len(obs))
	ys := make([]float64, len(obs))
	for i, o := range obs {
		xs[i] = float64(o.Ordinal)
		ys[i] = float64(o.Metric.Cyclomatic)
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	return beta
}

func summarizeFile(tl *timeline.Timeline, f *timeline.File, fns map[history.EntityID]FunctionSummary) FileSummary {
	s := FileSummary{
		ID:           f.ID,
		Path:         f.Path,
		Open:         f.Open(),
		Created:      f.Created,
		Retired:      f.Retired,
		CopiedFrom:   f.CopiedFrom,
		Observations: len(f.Observations),
	}
	if last, ok := f.Last(); ok {
		s.Lines = last.Lines
	}
	for _, id := range f.Owned() {
		fn := fns[id]
		s.OpenFunctions++
		s.SumComplexity += fn.Last
		s.MaxComplexity = max(s.MaxComplexity, fn.Last)
	}
	for _, fn := range tl.FunctionsOf(f.ID) {
		s.Breaches += fns[fn.ID].Breaches
	}
	return s
}

func topN(all []FunctionSummary, n int, keep func(FunctionSummary) bool, better func(a, b FunctionSummary) bool) []FunctionSummary {
	var out []FunctionSummary
	for _, s := range all {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if better(out[i], out[j]) {
			return true
		}
		if better(out[j], out[i]) {
			return false
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Digest fingerprints the entity id assignment order and the event
// sequence. Two walks of the same history produce the same digest.
func Digest(tl *timeline.Timeline, events []history.ChangeEvent) string {
	h := xxhash.New()
	for _, f := range tl.Files() {
		fmt.Fprintf(h, "file %d %s %s\n", f.ID, f.Created, f.Path)
	}
	for _, fn := range tl.Functions() {
		fmt.Fprintf(h, "function %d %s %d %s\n", fn.ID, fn.Created, fn.File, fn.Name)
	}
	for _, e := range events {
		fmt.Fprintf(h, "event %d %d %s %d %d %d %s %s\n", e.Ordinal, e.Entity, e.Kind, e.OldValue, e.NewValue, e.EntityKind, e.Path, e.Name)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
