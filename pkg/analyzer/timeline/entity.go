package timeline

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/ayanftw/commit-history/pkg/history"
)

// FileObservation is one snapshot of a file entity at a commit.
type FileObservation struct {
	Commit    string                   `json:"commit"`
	Ordinal   int                      `json:"ordinal"`
	Path      string                   `json:"path"`
	Lines     int                      `json:"lines"`
	Functions []history.EntityID       `json:"functions"`
	Metrics   []history.FunctionMetric `json:"metrics"`
}

// TotalComplexity sums the cyclomatic complexity of the observed functions.
func (o FileObservation) TotalComplexity() int {
	total := 0
	for _, m := range o.Metrics {
		total += m.Cyclomatic
	}
	return total
}

// MaxComplexity returns the highest cyclomatic complexity observed.
func (o FileObservation) MaxComplexity() int {
	highest := 0
	for _, m := range o.Metrics {
		highest = max(highest, m.Cyclomatic)
	}
	return highest
}

// FunctionObservation is one snapshot of a function entity at a commit.
type FunctionObservation struct {
	Commit  string                 `json:"commit"`
	Ordinal int                    `json:"ordinal"`
	File    history.EntityID       `json:"file"`
	Path    string                 `json:"path"`
	Metric  history.FunctionMetric `json:"metric"`
}

// Lifespan records when an entity was created and, once closed, retired.
type Lifespan struct {
	Created        string `json:"created"`
	CreatedOrdinal int    `json:"created_ordinal"`
	Retired        string `json:"retired,omitempty"`
	RetiredOrdinal int    `json:"retired_ordinal,omitempty"`
}

// Open reports whether the entity has not been retired.
func (l Lifespan) Open() bool {
	return l.RetiredOrdinal == 0
}

// File is a logical file across its lifetime.
type File struct {
	ID           history.EntityID  `json:"id"`
	Path         string            `json:"path"`
	CopiedFrom   history.EntityID  `json:"copied_from,omitempty"`
	Observations []FileObservation `json:"observations"`
	Lifespan

	owned []history.EntityID // open functions, ascending
	seen  *roaring.Bitmap
}

// Last returns the most recent observation.
func (f *File) Last() (FileObservation, bool) {
	if len(f.Observations) == 0 {
		return FileObservation{}, false
	}
	return f.Observations[len(f.Observations)-1], true
}

// Owned returns the ids of the open functions the file owns.
func (f *File) Owned() []history.EntityID {
	return append([]history.EntityID(nil), f.owned...)
}

// ObservedAt reports whether the file has an observation at ordinal.
func (f *File) ObservedAt(ordinal int) bool {
	return f.seen.Contains(uint32(ordinal))
}

// Function is a logical function across its lifetime.
type Function struct {
	ID           history.EntityID      `json:"id"`
	Name         string                `json:"name"`
	File         history.EntityID      `json:"file"`
	CopiedFrom   history.EntityID      `json:"copied_from,omitempty"`
	Observations []FunctionObservation `json:"observations"`
	Lifespan

	seen *roaring.Bitmap
}

// Last returns the most recent observation.
func (fn *Function) Last() (FunctionObservation, bool) {
	if len(fn.Observations) == 0 {
		return FunctionObservation{}, false
	}
	return fn.Observations[len(fn.Observations)-1], true
}

// ObservedAt reports whether the function has an observation at ordinal.
func (fn *Function) ObservedAt(ordinal int) bool {
	return fn.seen.Contains(uint32(ordinal))
}

// At returns the observation recorded at commit hash.
func (fn *Function) At(hash string) (FunctionObservation, bool) {
	for _, o := range fn.Observations {
		if o.Commit == hash {
			return o, true
		}
	}
	return FunctionObservation{}, false
}

func (f *File) observe(o FileObservation) {
	if f.seen.Contains(uint32(o.Ordinal)) {
		f.Observations[len(f.Observations)-1] = o
		return
	}
	f.seen.Add(uint32(o.Ordinal))
	f.Observations = append(f.Observations, o)
}

func (fn *Function) observe(o FunctionObservation) {
	if fn.seen.Contains(uint32(o.Ordinal)) {
		fn.Observations[len(fn.Observations)-1] = o
		return
	}
	fn.seen.Add(uint32(o.Ordinal))
	fn.Observations = append(fn.Observations, o)
}

func (f *File) own(id history.EntityID) {
	i := searchID(f.owned, id)
	if i < len(f.owned) && f.owned[i] == id {
		return
	}
	f.owned = append(f.owned, 0)
	copy(f.owned[i+1:], f.owned[i:])
	f.owned[i] = id
}

func (f *File) disown(id history.EntityID) {
	i := searchID(f.owned, id)
	if i < len(f.owned) && f.owned[i] == id {
		f.owned = append(f.owned[:i], f.owned[i+1:]...)
	}
}

func searchID(ids []history.EntityID, id history.EntityID) int {
	lo, hi := 0, len(ids)
	for lo < hi {
		mid := (lo + hi) / 2
		if ids[mid] < id {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
