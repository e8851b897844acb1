package history

import "fmt"

// FunctionMetric is the analyzer's record for one function in one file
// version.
type FunctionMetric struct {
	QualifiedName string `json:"name" toon:"name"`
	StartLine     int    `json:"start_line" toon:"start_line"`
	EndLine       int    `json:"end_line" toon:"end_line"`
	Cyclomatic    int    `json:"cyclomatic" toon:"cyclomatic"`
	Lines         int    `json:"lines" toon:"lines"`
	Params        int    `json:"params" toon:"params"`
}

// Contains reports whether line falls inside the function's range.
func (m FunctionMetric) Contains(line int) bool {
	return line >= m.StartLine && line <= m.EndLine
}

// EntityID is a synthetic identity for a file or function tracked across
// its lifetime. IDs are allocated from 1 in creation order and never reused.
type EntityID uint64

// EntityKind distinguishes file entities from function entities.
type EntityKind uint8

const (
	FileEntity EntityKind = iota + 1
	FunctionEntity
)

func (k EntityKind) String() string {
	switch k {
	case FileEntity:
		return "file"
	case FunctionEntity:
		return "function"
	default:
		return fmt.Sprintf("EntityKind(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k EntityKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// EventKind is the closed set of change events.
type EventKind uint8

const (
	Created EventKind = iota + 1
	Retired
	ThresholdBreach
	TrendReversal
	Outlier
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "created"
	case Retired:
		return "retired"
	case ThresholdBreach:
		return "threshold_breach"
	case TrendReversal:
		return "trend_reversal"
	case Outlier:
		return "outlier"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// EventKinds lists every event kind in declaration order.
var EventKinds = []EventKind{Created, Retired, ThresholdBreach, TrendReversal, Outlier}

// ChangeEvent is derived from the timeline and never mutated after
// emission. For function lifecycle events OldValue and NewValue carry the
// cyclomatic complexity; for file lifecycle events they carry the number of
// functions in the file.
type ChangeEvent struct {
	Entity     EntityID   `json:"entity" toon:"entity"`
	EntityKind EntityKind `json:"entity_kind" toon:"entity_kind"`
	Commit     string     `json:"commit" toon:"commit"`
	Ordinal    int        `json:"ordinal" toon:"ordinal"`
	Kind       EventKind  `json:"kind" toon:"kind"`
	OldValue   int        `json:"old_value" toon:"old_value"`
	NewValue   int        `json:"new_value" toon:"new_value"`
	Path       string     `json:"path,omitempty" toon:"path,omitempty"`
	Name       string     `json:"name,omitempty" toon:"name,omitempty"`
	Score      float64    `json:"score,omitempty" toon:"score,omitempty"`
}

func (e ChangeEvent) String() string {
	label := e.Path
	if e.Name != "" {
		label = e.Path + ":" + e.Name
	}
	return fmt.Sprintf("%s %s#%d %s %d->%d", shortHash(e.Commit), e.EntityKind, e.Entity, e.Kind, e.OldValue, e.NewValue) + " " + label
}

// DiagnosticKind is the closed set of recoverable conditions reported out of
// band.
type DiagnosticKind uint8

const (
	AnalysisFailure DiagnosticKind = iota + 1
	IdentityAmbiguity
	UnsupportedFile
	ReadFailure
)

func (k DiagnosticKind) String() string {
	switch k {
	case AnalysisFailure:
		return "analysis_error"
	case IdentityAmbiguity:
		return "identity_ambiguity"
	case UnsupportedFile:
		return "unsupported_language"
	case ReadFailure:
		return "repository_read_error"
	default:
		return fmt.Sprintf("DiagnosticKind(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k DiagnosticKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Diagnostic records a recoverable error or warning encountered during the
// walk. Diagnostics are kept apart from change events.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind" toon:"kind"`
	Commit  string         `json:"commit,omitempty" toon:"commit,omitempty"`
	Path    string         `json:"path,omitempty" toon:"path,omitempty"`
	Message string         `json:"message" toon:"message"`
	Err     error          `json:"-"`
}

func (d Diagnostic) String() string {
	if d.Path == "" {
		return fmt.Sprintf("%s %s: %s", shortHash(d.Commit), d.Kind, d.Message)
	}
	return fmt.Sprintf("%s %s %s: %s", shortHash(d.Commit), d.Kind, d.Path, d.Message)
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
