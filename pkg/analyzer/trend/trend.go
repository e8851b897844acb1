// Package trend detects threshold breaches, trend reversals and outlier
// jumps in a function's complexity timeline with a single forward scan.
package trend

import (
	"math"
	"sort"

	"github.com/ayanftw/commit-history/pkg/analyzer/timeline"
	"github.com/ayanftw/commit-history/pkg/history"
	"gonum.org/v1/gonum/stat"
)

// Config holds detector settings.
type Config struct {
	// Ceiling is the complexity a value must rise above to breach.
	Ceiling int
	// RunLength is the number of strictly monotone observations that must
	// precede a reversal.
	RunLength int
	// OutlierZ is the |z| above which a step is an outlier. 0 disables.
	OutlierZ float64
	// OutlierWindow is the number of previous steps the z-score uses.
	OutlierWindow int
	// OutlierMinSamples is the number of previous steps required before
	// outliers are reported.
	OutlierMinSamples int
}

// DefaultConfig returns the default detector settings.
func DefaultConfig() Config {
	return Config{
		Ceiling:           10,
		RunLength:         3,
		OutlierZ:          3.0,
		OutlierWindow:     10,
		OutlierMinSamples: 5,
	}
}

// Point is one observation of the scanned value.
type Point struct {
	Commit  string
	Ordinal int
	Value   int
	Path    string
	Name    string
}

// Scanner consumes one entity's observations in order and emits events as
// soon as they are decidable. Events are never revised.
type Scanner struct {
	cfg    Config
	entity history.EntityID

	prev   Point
	seen   bool
	dir    int // +1 rising, -1 falling, 0 flat or unknown
	run    int // observations in the current monotone run
	deltas []float64
}

// NewScanner creates a scanner for entity.
func NewScanner(cfg Config, entity history.EntityID) *Scanner {
	return &Scanner{cfg: cfg, entity: entity}
}

// Observe feeds the next observation and returns the events it triggers,
// ordered by kind.
func (s *Scanner) Observe(p Point) []history.ChangeEvent {
	if !s.seen {
		s.seen = true
		s.prev = p
		s.run = 1
		return nil
	}

	prev := s.prev
	s.prev = p
	delta := p.Value - prev.Value

	var events []history.ChangeEvent
	event := func(kind history.EventKind, score float64) {
		events = append(events, history.ChangeEvent{
			Entity:     s.entity,
			EntityKind: history.FunctionEntity,
			Commit:     p.Commit,
			Ordinal:    p.Ordinal,
			Kind:       kind,
			OldValue:   prev.Value,
			NewValue:   p.Value,
			Path:       p.Path,
			Name:       p.Name,
			Score:      score,
		})
	}

	if delta != 0 && prev.Value <= s.cfg.Ceiling && p.Value > s.cfg.Ceiling {
		event(history.ThresholdBreach, float64(p.Value-s.cfg.Ceiling))
	}

	switch dir := sign(delta); {
	case dir == 0:
		s.dir, s.run = 0, 1
	case dir == s.dir:
		s.run++
	default:
		if s.dir != 0 && s.run >= s.cfg.RunLength {
			event(history.TrendReversal, float64(s.run))
		}
		s.dir, s.run = dir, 2
	}

	if z, ok := s.zscore(float64(delta)); ok && delta != 0 && math.Abs(z) > s.cfg.OutlierZ {
		event(history.Outlier, z)
	}
	s.push(float64(delta))

	return events
}

func (s *Scanner) zscore(delta float64) (float64, bool) {
	if s.cfg.OutlierZ <= 0 || len(s.deltas) < max(s.cfg.OutlierMinSamples, 2) {
		return 0, false
	}
	mean, sd := stat.MeanStdDev(s.deltas, nil)
	if sd == 0 || math.IsNaN(sd) {
		return 0, false
	}
	return (delta - mean) / sd, true
}

func (s *Scanner) push(delta float64) {
	if s.cfg.OutlierZ <= 0 {
		return
	}
	s.deltas = append(s.deltas, delta)
	if window := s.cfg.OutlierWindow; window > 0 && len(s.deltas) > window {
		s.deltas = s.deltas[len(s.deltas)-window:]
	}
}

// Detect scans one series.
func Detect(cfg Config, entity history.EntityID, points []Point) []history.ChangeEvent {
	s := NewScanner(cfg, entity)
	var out []history.ChangeEvent
	for _, p := range points {
		out = append(out, s.Observe(p)...)
	}
	return out
}

// Series returns the cyclomatic complexity series of a function entity.
func Series(fn *timeline.Function) []Point {
	points := make([]Point, len(fn.Observations))
	for i, o := range fn.Observations {
		points[i] = Point{
			Commit:  o.Commit,
			Ordinal: o.Ordinal,
			Value:   o.Metric.Cyclomatic,
			Path:    o.Path,
			Name:    o.Metric.QualifiedName,
		}
	}
	return points
}

// DetectAll scans every function entity of tl and returns the events
// ordered by ordinal, entity id and kind. History a copy inherited from its
// source feeds the scan but raises no events of its own.
func DetectAll(cfg Config, tl *timeline.Timeline) []history.ChangeEvent {
	var out []history.ChangeEvent
	for _, fn := range tl.Functions() {
		for _, e := range Detect(cfg, fn.ID, Series(fn)) {
			if e.Ordinal >= fn.CreatedOrdinal {
				out = append(out, e)
			}
		}
	}
	Sort(out)
	return out
}

// Sort orders events by ordinal, entity id and kind.
func Sort(events []history.ChangeEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Ordinal != b.Ordinal {
			return a.Ordinal < b.Ordinal
		}
		if a.Entity != b.Entity {
			return a.Entity < b.Entity
		}
		return a.Kind < b.Kind
	})
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}
