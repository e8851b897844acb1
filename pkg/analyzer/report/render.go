package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ayanftw/commit-history/internal/output"
	"github.com/ayanftw/commit-history/pkg/history"
)

// MaxEventRows bounds the events table in text and markdown output.
const MaxEventRows = 50

func (r *Report) RenderData() any {
	return r
}

func (r *Report) RenderText(w io.Writer, colored bool) error {
	return r.document(colored).RenderText(w, colored)
}

func (r *Report) RenderMarkdown(w io.Writer) error {
	return r.document(false).RenderMarkdown(w)
}

// RenderCSV writes one row per function entity.
func (r *Report) RenderCSV(w *csv.Writer) error {
	if err := w.Write([]string{
		"id", "name", "file_id", "path", "open", "created", "retired",
		"first", "last", "peak", "growth", "slope", "breaches", "reversals", "outliers", "observations",
	}); err != nil {
		return err
	}
	for _, fn := range r.Functions {
		if err := w.Write([]string{
			id(fn.ID), fn.Name, id(fn.FileID), fn.Path, strconv.FormatBool(fn.Open), fn.Created, fn.Retired,
			strconv.Itoa(fn.First), strconv.Itoa(fn.Last), strconv.Itoa(fn.Peak),
			strconv.FormatFloat(fn.Growth, 'f', 4, 64), strconv.FormatFloat(fn.Slope, 'f', 4, 64),
			strconv.Itoa(fn.Breaches), strconv.Itoa(fn.Reversals), strconv.Itoa(fn.Outliers),
			strconv.Itoa(fn.Observations),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Report) document(colored bool) *output.Report {
	doc := &output.Report{Title: "Complexity History"}
	doc.Sections = append(doc.Sections, r.summarySection())

	if len(r.TopBreaches) > 0 {
		doc.Sections = append(doc.Sections, functionTable("Most Threshold Breaches", r.TopBreaches))
	}
	if len(r.TopComplexity) > 0 {
		doc.Sections = append(doc.Sections, functionTable("Highest Complexity", r.TopComplexity))
	}
	if len(r.TopGrowth) > 0 {
		doc.Sections = append(doc.Sections, functionTable("Fastest Growth", r.TopGrowth))
	}
	if files := r.hottestFiles(); len(files) > 0 {
		doc.Sections = append(doc.Sections, fileTable(files))
	}
	if signals := r.signals(); len(signals) > 0 {
		doc.Sections = append(doc.Sections, EventTable("Signals", signals, colored))
	}
	if len(r.Diagnostics) > 0 {
		doc.Sections = append(doc.Sections, DiagnosticTable(r.Diagnostics))
	}
	return doc
}

func (r *Report) summarySection() *output.Section {
	s := r.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "Commits:    %d", s.Commits)
	if s.Head != "" {
		fmt.Fprintf(&b, " (head %s)", short(s.Head))
	}
	fmt.Fprintf(&b, "\nFiles:      %d open / %d tracked", s.OpenFiles, s.Files)
	fmt.Fprintf(&b, "\nFunctions:  %d open / %d tracked", s.OpenFunctions, s.Functions)

	kinds := make([]string, 0, len(history.EventKinds))
	for _, k := range history.EventKinds {
		if n := s.Events[k.String()]; n > 0 {
			kinds = append(kinds, fmt.Sprintf("%s=%d", k, n))
		}
	}
	if len(kinds) > 0 {
		fmt.Fprintf(&b, "\nEvents:     %s", strings.Join(kinds, " "))
	}
	if s.Diagnostics > 0 {
		fmt.Fprintf(&b, "\nWarnings:   %d", s.Diagnostics)
	}
	fmt.Fprintf(&b, "\nDigest:     %s", r.Digest)
	return &output.Section{Title: "Summary", Content: b.String()}
}

// hottestFiles returns open files ordered by summed complexity.
func (r *Report) hottestFiles() []FileSummary {
	var files []FileSummary
	for _, f := range r.Files {
		if f.Open && f.OpenFunctions > 0 {
			files = append(files, f)
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].SumComplexity != files[j].SumComplexity {
			return files[i].SumComplexity > files[j].SumComplexity
		}
		return files[i].ID < files[j].ID
	})
	if n := len(r.TopComplexity); n > 0 && len(files) > n {
		files = files[:n]
	}
	return files
}

// Signals returns the detector events in event order.
func (r *Report) Signals() []history.ChangeEvent {
	var out []history.ChangeEvent
	for _, e := range r.Events {
		if e.Kind != history.Created && e.Kind != history.Retired {
			out = append(out, e)
		}
	}
	return out
}

// signals returns the most recent detector events that fit in a table.
func (r *Report) signals() []history.ChangeEvent {
	out := r.Signals()
	if len(out) > MaxEventRows {
		out = out[len(out)-MaxEventRows:]
	}
	return out
}

func functionTable(title string, fns []FunctionSummary) *output.Table {
	rows := make([][]string, len(fns))
	for i, fn := range fns {
		rows[i] = []string{
			id(fn.ID),
			fn.Name,
			fn.Path,
			strconv.Itoa(fn.First),
			strconv.Itoa(fn.Last),
			strconv.Itoa(fn.Peak),
			strconv.FormatFloat(fn.Growth, 'f', 2, 64),
			strconv.Itoa(fn.Breaches),
		}
	}
	return output.NewTable(title,
		[]string{"ID", "Function", "File", "First", "Last", "Peak", "Growth", "Breaches"},
		rows, nil, fns)
}

func fileTable(files []FileSummary) *output.Table {
	rows := make([][]string, len(files))
	for i, f := range files {
		rows[i] = []string{
			id(f.ID),
			f.Path,
			strconv.Itoa(f.OpenFunctions),
			strconv.Itoa(f.SumComplexity),
			strconv.Itoa(f.MaxComplexity),
			strconv.Itoa(f.Breaches),
		}
	}
	return output.NewTable("Files",
		[]string{"ID", "File", "Functions", "Sum", "Max", "Breaches"},
		rows, nil, files)
}

// EventTable renders change events.
func EventTable(title string, events []history.ChangeEvent, colored bool) *output.Table {
	rows := make([][]string, len(events))
	for i, e := range events {
		kind := e.Kind.String()
		if colored {
			kind = output.KindColor(kind, kind)
		}
		label := e.Path
		if e.Name != "" {
			label = e.Path + ":" + e.Name
		}
		rows[i] = []string{
			short(e.Commit),
			kind,
			e.EntityKind.String() + " " + id(e.Entity),
			label,
			fmt.Sprintf("%d -> %d", e.OldValue, e.NewValue),
		}
	}
	return output.NewTable(title, []string{"Commit", "Event", "Entity", "Where", "Change"}, rows, nil, events)
}

// DiagnosticTable renders diagnostics.
func DiagnosticTable(diags []history.Diagnostic) *output.Table {
	rows := make([][]string, len(diags))
	for i, d := range diags {
		rows[i] = []string{short(d.Commit), d.Kind.String(), d.Path, d.Message}
	}
	return output.NewTable("Warnings", []string{"Commit", "Kind", "Path", "Message"}, rows, nil, diags)
}

func id(v history.EntityID) string {
	return strconv.FormatUint(uint64(v), 10)
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
