package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/ayanftw/commit-history/internal/output"
	"github.com/ayanftw/commit-history/pkg/analyzer/timeline"
	"github.com/ayanftw/commit-history/pkg/history"
)

// ErrNotFound is returned when no entity matches a trace request.
var ErrNotFound = errors.New("entity not found")

// FunctionTrace is a function summary with its full observation list.
type FunctionTrace struct {
	FunctionSummary
	Observations []timeline.FunctionObservation `json:"history" toon:"history"`
}

// Trace is the history of one file entity and the functions it owns.
type Trace struct {
	File         FileSummary                `json:"file" toon:"file"`
	Observations []timeline.FileObservation `json:"history" toon:"history"`
	Functions    []FunctionTrace            `json:"functions" toon:"functions"`
	Events       []history.ChangeEvent      `json:"events" toon:"events"`
}

// TraceFile returns the history of the file at path. The open entity at
// path wins; otherwise the most recently created closed entity last seen
// there. A non-empty function restricts the trace to that function name.
func TraceFile(r *Report, tl *timeline.Timeline, path, function string) (*Trace, error) {
	f, ok := tl.FileAt(path)
	if !ok {
		files := tl.Files()
		for i := len(files) - 1; i >= 0; i-- {
			if files[i].Path == path {
				f, ok = files[i], true
				break
			}
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: no file at %s", ErrNotFound, path)
	}

	t := &Trace{Observations: f.Observations}
	for _, s := range r.Files {
		if s.ID == f.ID {
			t.File = s
			break
		}
	}

	include := map[history.EntityID]bool{f.ID: true}
	byID := make(map[history.EntityID]FunctionSummary, len(r.Functions))
	for _, s := range r.Functions {
		byID[s.ID] = s
	}
	for _, fn := range tl.FunctionsOf(f.ID) {
		if function != "" && fn.Name != function {
			continue
		}
		include[fn.ID] = true
		t.Functions = append(t.Functions, FunctionTrace{
			FunctionSummary: byID[fn.ID],
			Observations:    fn.Observations,
		})
	}
	if function != "" && len(t.Functions) == 0 {
		return nil, fmt.Errorf("%w: no function %s in %s", ErrNotFound, function, path)
	}

	for _, e := range r.Events {
		if include[e.Entity] {
			t.Events = append(t.Events, e)
		}
	}
	return t, nil
}

func (t *Trace) RenderData() any {
	return t
}

func (t *Trace) RenderText(w io.Writer, colored bool) error {
	return t.document(colored).RenderText(w, colored)
}

func (t *Trace) RenderMarkdown(w io.Writer) error {
	return t.document(false).RenderMarkdown(w)
}

// RenderCSV writes one row per function observation.
func (t *Trace) RenderCSV(w *csv.Writer) error {
	if err := w.Write([]string{"function_id", "name", "commit", "ordinal", "path", "cyclomatic", "lines", "params"}); err != nil {
		return err
	}
	for _, fn := range t.Functions {
		for _, o := range fn.Observations {
			if err := w.Write([]string{
				id(fn.ID), o.Metric.QualifiedName, o.Commit, strconv.Itoa(o.Ordinal), o.Path,
				strconv.Itoa(o.Metric.Cyclomatic), strconv.Itoa(o.Metric.Lines), strconv.Itoa(o.Metric.Params),
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Trace) document(colored bool) *output.Report {
	status := "open"
	if !t.File.Open {
		status = "retired at " + short(t.File.Retired)
	}
	doc := &output.Report{Title: fmt.Sprintf("History of %s", t.File.Path)}
	doc.Sections = append(doc.Sections, &output.Section{
		Title: "File",
		Content: fmt.Sprintf("Entity %d, created at %s, %s, %d observations, %d open functions",
			t.File.ID, short(t.File.Created), status, t.File.Observations, t.File.OpenFunctions),
	})

	var rows [][]string
	for _, fn := range t.Functions {
		for _, o := range fn.Observations {
			rows = append(rows, []string{
				id(fn.ID),
				o.Metric.QualifiedName,
				short(o.Commit),
				o.Path,
				strconv.Itoa(o.Metric.Cyclomatic),
				strconv.Itoa(o.Metric.Lines),
			})
		}
	}
	if len(rows) > 0 {
		doc.Sections = append(doc.Sections, output.NewTable("Observations",
			[]string{"ID", "Function", "Commit", "Path", "Complexity", "Lines"}, rows, nil, t.Functions))
	}
	if len(t.Events) > 0 {
		doc.Sections = append(doc.Sections, EventTable("Events", t.Events, colored))
	}
	return doc
}
