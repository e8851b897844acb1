package trend

import (
	"context"
	"fmt"
	"testing"

	"github.com/ayanftw/commit-history/internal/testutil"
	"github.com/ayanftw/commit-history/pkg/analyzer/extract"
	"github.com/ayanftw/commit-history/pkg/analyzer/timeline"
	"github.com/ayanftw/commit-history/pkg/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(values ...int) []Point {
	points := make([]Point, len(values))
	for i, v := range values {
		points[i] = Point{Commit: fmt.Sprintf("c%d", i+1), Ordinal: i + 1, Value: v, Path: "f.x", Name: "f"}
	}
	return points
}

type hit struct {
	kind    history.EventKind
	ordinal int
}

func hits(events []history.ChangeEvent) []hit {
	var out []hit
	for _, e := range events {
		out = append(out, hit{e.Kind, e.Ordinal})
	}
	return out
}

func TestDetect(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutlierZ = 0

	tests := []struct {
		name   string
		values []int
		want   []hit
	}{
		{"single observation", []int{50}, nil},
		{"breach", []int{3, 12}, []hit{{history.ThresholdBreach, 2}}},
		{"first observation above ceiling", []int{15, 20}, nil},
		{"equal at ceiling", []int{10, 10}, nil},
		{"equal above ceiling", []int{11, 11}, nil},
		{"ceiling itself is not a breach", []int{9, 10}, nil},
		{"breach again after falling back", []int{12, 5, 12}, []hit{{history.ThresholdBreach, 3}}},
		{"rise then fall", []int{1, 2, 3, 2}, []hit{{history.TrendReversal, 4}}},
		{"fall then rise", []int{5, 4, 3, 4}, []hit{{history.TrendReversal, 4}}},
		{"run too short", []int{1, 2, 1}, nil},
		{"equal value resets the run", []int{1, 2, 3, 3, 2}, nil},
		{"repeated reversals", []int{1, 2, 3, 2, 1, 0, 1}, []hit{
			{history.TrendReversal, 4},
			{history.TrendReversal, 7},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hits(Detect(cfg, 1, series(tt.values...))))
		})
	}
}

func TestDetect_CustomRunLength(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RunLength = 2
	cfg.OutlierZ = 0

	assert.Equal(t, []hit{{history.TrendReversal, 3}}, hits(Detect(cfg, 1, series(1, 2, 1))))
}

func TestDetect_Outlier(t *testing.T) {
	cfg := DefaultConfig()

	events := Detect(cfg, 7, series(0, 1, 3, 4, 6, 7, 47))
	assert.Equal(t, []hit{{history.ThresholdBreach, 7}, {history.Outlier, 7}}, hits(events))

	outlier := events[1]
	assert.Equal(t, history.EntityID(7), outlier.Entity)
	assert.Equal(t, 7, outlier.OldValue)
	assert.Equal(t, 47, outlier.NewValue)
	assert.Greater(t, outlier.Score, 3.0)
}

func TestDetect_OutlierNeedsSamples(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ceiling = 100

	assert.Empty(t, Detect(cfg, 1, series(0, 1, 3, 4, 6, 46)))
	assert.Empty(t, Detect(cfg, 1, series(0, 1, 2, 3, 4, 5, 45)), "constant steps have no spread")

	cfg.OutlierZ = 0
	assert.Empty(t, Detect(cfg, 1, series(0, 1, 3, 4, 6, 7, 47)))
}

func TestScanner_IsIncremental(t *testing.T) {
	cfg := DefaultConfig()
	s := NewScanner(cfg, 3)

	assert.Empty(t, s.Observe(Point{Commit: "a", Ordinal: 1, Value: 3}))
	events := s.Observe(Point{Commit: "b", Ordinal: 2, Value: 12, Path: "file.x", Name: "f"})

	require.Len(t, events, 1)
	assert.Equal(t, history.ChangeEvent{
		Entity:     3,
		EntityKind: history.FunctionEntity,
		Commit:     "b",
		Ordinal:    2,
		Kind:       history.ThresholdBreach,
		OldValue:   3,
		NewValue:   12,
		Path:       "file.x",
		Name:       "f",
		Score:      2,
	}, events[0])
}

func TestDetectAll_BreachAcrossCommits(t *testing.T) {
	engine := timeline.NewEngine(extract.New(testutil.Analyzer{}))
	tl, err := engine.Run(context.Background(), history.SliceSource{
		testutil.Commit("a", nil, testutil.Add("file.x", "func f 3\nfunc g 1\n")),
		testutil.Commit("b", []string{"a"}, testutil.Modify("file.x", "func f 12\nfunc g 11\n")),
	})
	require.NoError(t, err)

	events := DetectAll(DefaultConfig(), tl)
	require.Len(t, events, 2)
	assert.Equal(t, history.EntityID(2), events[0].Entity)
	assert.Equal(t, history.EntityID(3), events[1].Entity)
	for _, e := range events {
		assert.Equal(t, history.ThresholdBreach, e.Kind)
		assert.Equal(t, "b", e.Commit)
	}
}

func TestDetectAll_CopyRaisesNoInheritedEvents(t *testing.T) {
	engine := timeline.NewEngine(extract.New(testutil.Analyzer{}))
	tl, err := engine.Run(context.Background(), history.SliceSource{
		testutil.Commit("a", nil, testutil.Add("src.x", "func f 3\n")),
		testutil.Commit("b", []string{"a"}, testutil.Modify("src.x", "func f 12\n")),
		testutil.Commit("c", []string{"b"}, testutil.Copy("src.x", "dup.x", "func f 12\n")),
	})
	require.NoError(t, err)

	clone, ok := tl.Function(4)
	require.True(t, ok)
	require.Len(t, clone.Observations, 3)

	events := DetectAll(DefaultConfig(), tl)
	require.Len(t, events, 1)
	assert.Equal(t, history.EntityID(2), events[0].Entity)
	assert.Equal(t, history.ThresholdBreach, events[0].Kind)
}

func TestSort(t *testing.T) {
	events := []history.ChangeEvent{
		{Ordinal: 2, Entity: 1, Kind: history.Outlier},
		{Ordinal: 1, Entity: 5, Kind: history.TrendReversal},
		{Ordinal: 2, Entity: 1, Kind: history.ThresholdBreach},
		{Ordinal: 1, Entity: 2, Kind: history.ThresholdBreach},
	}
	Sort(events)

	assert.Equal(t, []hit{
		{history.ThresholdBreach, 1},
		{history.TrendReversal, 1},
		{history.ThresholdBreach, 2},
		{history.Outlier, 2},
	}, hits(events))
}
