package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/ayanftw/commit-history/internal/output"
	"github.com/ayanftw/commit-history/internal/testutil"
	"github.com/ayanftw/commit-history/pkg/analyzer/extract"
	"github.com/ayanftw/commit-history/pkg/analyzer/timeline"
	"github.com/ayanftw/commit-history/pkg/analyzer/trend"
	"github.com/ayanftw/commit-history/pkg/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() history.SliceSource {
	return history.SliceSource{
		testutil.Commit("a", nil, testutil.Add("a.x", "func f 3\nfunc g 1\n")),
		testutil.Commit("b", []string{"a"}, testutil.Modify("a.x", "func f 12\nfunc g 2\n")),
		testutil.Commit("c", []string{"b"},
			testutil.Modify("a.x", "func f 14\nfunc g 3\n"),
			testutil.Add("b.x", "func h 5\n"),
		),
		testutil.Commit("d", []string{"c"}, testutil.Delete("b.x", "func h 5\n")),
	}
}

func build(t *testing.T, src history.SliceSource) (*Report, *timeline.Timeline) {
	t.Helper()
	tl, err := timeline.NewEngine(extract.New(testutil.Analyzer{})).Run(context.Background(), src)
	require.NoError(t, err)
	return Build(tl, trend.DetectAll(trend.DefaultConfig(), tl), 0), tl
}

func names(fns []FunctionSummary) []string {
	out := make([]string, len(fns))
	for i, fn := range fns {
		out[i] = fn.Name
	}
	return out
}

func TestBuild_Summaries(t *testing.T) {
	r, _ := build(t, fixture())

	assert.Equal(t, Summary{
		Commits:       4,
		Head:          "d",
		Files:         2,
		OpenFiles:     1,
		Functions:     3,
		OpenFunctions: 2,
		Events:        map[string]int{"created": 5, "retired": 2, "threshold_breach": 1},
		Diagnostics:   0,
	}, r.Summary)

	require.Len(t, r.Functions, 3)
	f := r.Functions[0]
	assert.Equal(t, "f", f.Name)
	assert.Equal(t, "a.x", f.Path)
	assert.Equal(t, 3, f.First)
	assert.Equal(t, 14, f.Last)
	assert.Equal(t, 14, f.Peak)
	assert.InDelta(t, 5.5, f.Growth, 1e-9)
	assert.InDelta(t, 5.5, f.Slope, 1e-9)
	assert.Equal(t, 1, f.Breaches)
	assert.Equal(t, 3, f.Observations)

	h := r.Functions[2]
	assert.False(t, h.Open)
	assert.Equal(t, "d", h.Retired)
	assert.Zero(t, h.Growth)

	require.Len(t, r.Files, 2)
	assert.Equal(t, FileSummary{
		ID: 1, Path: "a.x", Open: true, Created: "a", Lines: 2,
		OpenFunctions: 2, SumComplexity: 17, MaxComplexity: 14, Breaches: 1, Observations: 3,
	}, r.Files[0])
	assert.False(t, r.Files[1].Open)
	assert.Zero(t, r.Files[1].OpenFunctions)
}

func TestBuild_TopLists(t *testing.T) {
	r, _ := build(t, fixture())

	assert.Equal(t, []string{"f"}, names(r.TopBreaches))
	assert.Equal(t, []string{"f", "g"}, names(r.TopComplexity))
	assert.Equal(t, []string{"f", "g"}, names(r.TopGrowth))

	tl, err := timeline.NewEngine(extract.New(testutil.Analyzer{})).Run(context.Background(), fixture())
	require.NoError(t, err)
	short := Build(tl, nil, 1)
	assert.Equal(t, []string{"f"}, names(short.TopComplexity))
	assert.Empty(t, short.TopBreaches)
}

func TestBuild_TopTiesBreakByID(t *testing.T) {
	r, _ := build(t, history.SliceSource{
		testutil.Commit("a", nil, testutil.Add("a.x", "func z 4\nfunc y 4\n")),
	})
	assert.Equal(t, []string{"z", "y"}, names(r.TopComplexity))
}

func TestBuild_EventsAreMergedInOrder(t *testing.T) {
	r, _ := build(t, fixture())

	for i := 1; i < len(r.Events); i++ {
		prev, cur := r.Events[i-1], r.Events[i]
		assert.LessOrEqual(t, prev.Ordinal, cur.Ordinal)
	}
	var breach history.ChangeEvent
	for _, e := range r.Events {
		if e.Kind == history.ThresholdBreach {
			breach = e
		}
	}
	assert.Equal(t, "b", breach.Commit)
	assert.Equal(t, history.EntityID(2), breach.Entity)
}

func TestDigest_Replay(t *testing.T) {
	first, _ := build(t, fixture())
	second, _ := build(t, fixture())
	assert.Equal(t, first.Digest, second.Digest)
	assert.Len(t, first.Digest, 16)

	other, _ := build(t, fixture()[:3])
	assert.NotEqual(t, first.Digest, other.Digest)
}

func TestReport_Render(t *testing.T) {
	r, _ := build(t, fixture())

	var text bytes.Buffer
	require.NoError(t, r.RenderText(&text, false))
	for _, want := range []string{"Complexity History", "Summary", "Most Threshold Breaches", "Highest Complexity", "Signals", "a.x", "3 -> 12"} {
		assert.Contains(t, text.String(), want)
	}

	var md bytes.Buffer
	require.NoError(t, r.RenderMarkdown(&md))
	assert.Contains(t, md.String(), "# Complexity History")
	assert.Contains(t, md.String(), "| ID | Function |")

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	require.NoError(t, r.RenderCSV(w))
	w.Flush()
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, []string{"2", "f", "1", "a.x"}, rows[1][:4])
}

func TestReport_ThroughFormatter(t *testing.T) {
	r, _ := build(t, fixture())

	for _, format := range []output.Format{output.FormatJSON, output.FormatYAML, output.FormatTOON, output.FormatCSV} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, output.NewWriterFormatter(format, &buf, false).Output(r))
			assert.Contains(t, buf.String(), "a.x")
		})
	}
}

func TestTraceFile(t *testing.T) {
	r, tl := build(t, fixture())

	trace, err := TraceFile(r, tl, "a.x", "")
	require.NoError(t, err)
	assert.Equal(t, history.EntityID(1), trace.File.ID)
	assert.Len(t, trace.Observations, 3)
	require.Len(t, trace.Functions, 2)
	assert.Len(t, trace.Functions[0].Observations, 3)
	assert.Len(t, trace.Events, 4, "three created events and one breach")

	only, err := TraceFile(r, tl, "a.x", "g")
	require.NoError(t, err)
	require.Len(t, only.Functions, 1)
	assert.Equal(t, "g", only.Functions[0].Name)

	closed, err := TraceFile(r, tl, "b.x", "")
	require.NoError(t, err)
	assert.False(t, closed.File.Open)
	require.Len(t, closed.Functions, 1)

	_, err = TraceFile(r, tl, "nope.x", "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = TraceFile(r, tl, "a.x", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	var text bytes.Buffer
	require.NoError(t, trace.RenderText(&text, false))
	assert.Contains(t, text.String(), "History of a.x")
	assert.Contains(t, text.String(), "Observations")

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	require.NoError(t, trace.RenderCSV(w))
	w.Flush()
	assert.Equal(t, 7, strings.Count(buf.String(), "\n"))
}

func TestCommitLog(t *testing.T) {
	day := func(d, hour int) time.Time { return time.Date(2024, 5, d, hour, 30, 0, 0, time.UTC) }
	commit := func(hash, msg string, when time.Time) *history.Commit {
		return &history.Commit{Hash: hash, Message: msg, When: when, Author: history.Signature{Name: "lb"}}
	}

	log := NewCommitLog([]RepoCommits{
		{Repo: "api", Commits: []*history.Commit{
			commit("aaaaaaaaaa", "Fix login\n\nhandles expired tokens\n", day(2, 9)),
			commit("bbbbbbbbbb", "Add cache", day(1, 14)),
		}},
		{Repo: "web", Commits: []*history.Commit{
			commit("cccccccccc", "Bump deps", day(2, 11)),
		}},
	}, time.UTC)

	require.Len(t, log.Days, 2)
	assert.Equal(t, "2024-05-01", log.Days[0].Date)
	assert.Equal(t, "2024-05-02", log.Days[1].Date)
	require.Len(t, log.Days[1].Repos, 2)
	assert.Equal(t, "api", log.Days[1].Repos[0].Repo)
	assert.Equal(t, LogEntry{
		Hash:    "aaaaaaaa",
		Time:    "09:30",
		Author:  "lb",
		Subject: "Fix login",
		Body:    []string{"handles expired tokens"},
	}, log.Days[1].Repos[0].Commits[0])

	var text bytes.Buffer
	require.NoError(t, log.RenderText(&text, false))
	assert.Contains(t, text.String(), "┌────────────┐\n│ 2024-05-01 │\n└────────────┘\n")
	assert.Contains(t, text.String(), "api: 1 commits\n  14:30 Add cache\n")
	assert.Contains(t, text.String(), "\n        handles expired tokens\n")

	var md bytes.Buffer
	require.NoError(t, log.RenderMarkdown(&md))
	assert.Contains(t, md.String(), "### web (1 commits)")
}
