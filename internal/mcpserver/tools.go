package mcpserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ayanftw/commit-history/internal/output"
	"github.com/ayanftw/commit-history/internal/service/analysis"
	"github.com/ayanftw/commit-history/pkg/analyzer/report"
	"github.com/ayanftw/commit-history/pkg/config"
	"github.com/ayanftw/commit-history/pkg/history"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	toon "github.com/toon-format/toon-go"
)

// Common input structures for tools

// RangeInput selects the repository and commit range of a history walk.
type RangeInput struct {
	Path        string `json:"path,omitempty" jsonschema:"Repository path. Defaults to the current directory."`
	From        string `json:"from,omitempty" jsonschema:"Exclusive start revision. Commits reachable from it are skipped."`
	To          string `json:"to,omitempty" jsonschema:"Tip revision. Defaults to HEAD."`
	FirstParent bool   `json:"first_parent,omitempty" jsonschema:"Follow only the first parent of merge commits."`
	Format      string `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// HistoryInput adds detector and report options.
type HistoryInput struct {
	RangeInput
	Ceiling    int      `json:"ceiling,omitempty" jsonschema:"Cyclomatic complexity a function must rise above to breach. Default 10."`
	RunLength  int      `json:"run_length,omitempty" jsonschema:"Observations a monotonic run needs before a reversal is reported. Default 3."`
	Top        int      `json:"top,omitempty" jsonschema:"Length of the top-N function lists. Default 10."`
	PathFilter []string `json:"path_filter,omitempty" jsonschema:"Glob patterns (doublestar syntax) restricting the tracked files."`
	Full       bool     `json:"full,omitempty" jsonschema:"Include every file and function summary and all lifecycle events."`
}

// TraceInput names the file to trace.
type TraceInput struct {
	RangeInput
	File     string `json:"file" jsonschema:"Repository-relative path of the file at the tip revision."`
	Function string `json:"function,omitempty" jsonschema:"Restrict the trace to this qualified function name."`
}

// CommitLogInput selects repositories and commits for a commit log.
type CommitLogInput struct {
	Paths   []string `json:"paths,omitempty" jsonschema:"Repository paths. Ignored when root is set."`
	Root    string   `json:"root,omitempty" jsonschema:"Directory whose immediate subdirectories are scanned for repositories."`
	Days    int      `json:"days,omitempty" jsonschema:"Number of days of history to include. Default 7."`
	Authors []string `json:"authors,omitempty" jsonschema:"Keep commits whose author name or email contains one of these."`
	Format  string   `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// DefaultLogDays is the commit log window when none is given.
const DefaultLogDays = 7

// HistoryView is the compact analyze_history result.
type HistoryView struct {
	Repo          string                   `json:"repo" toon:"repo"`
	Summary       report.Summary           `json:"summary" toon:"summary"`
	TopBreaches   []report.FunctionSummary `json:"top_breaches" toon:"top_breaches"`
	TopComplexity []report.FunctionSummary `json:"top_complexity" toon:"top_complexity"`
	TopGrowth     []report.FunctionSummary `json:"top_growth" toon:"top_growth"`
	Signals       []history.ChangeEvent    `json:"signals" toon:"signals"`
	Diagnostics   []history.Diagnostic     `json:"diagnostics,omitempty" toon:"diagnostics,omitempty"`
	Digest        string                   `json:"digest" toon:"digest"`
	Partial       bool                     `json:"partial,omitempty" toon:"partial,omitempty"`
	Files         []report.FileSummary     `json:"files,omitempty" toon:"files,omitempty"`
	Functions     []report.FunctionSummary `json:"functions,omitempty" toon:"functions,omitempty"`
	Events        []history.ChangeEvent    `json:"events,omitempty" toon:"events,omitempty"`
}

// Helper functions

func getPath(input RangeInput) string {
	if input.Path == "" {
		return "."
	}
	return input.Path
}

func getFormat(format string) output.Format {
	switch format {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func formatOutput(data any, format output.Format) (string, error) {
	switch format {
	case output.FormatJSON:
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out), nil
	case output.FormatMarkdown:
		out, err := toon.Marshal(data, toon.WithIndent(2))
		if err != nil {
			return "", err
		}
		return "```\n" + string(out) + "\n```", nil
	default:
		out, err := toon.Marshal(data, toon.WithIndent(2))
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

// configFor copies the server configuration and applies the range input.
func (s *Server) configFor(input RangeInput) *config.Config {
	cfg := *s.config
	if input.From != "" {
		cfg.History.From = input.From
	}
	if input.To != "" {
		cfg.History.To = input.To
	}
	if input.FirstParent {
		cfg.History.FirstParent = true
	}
	return &cfg
}

func (s *Server) service(cfg *config.Config) *analysis.Service {
	return analysis.New(analysis.WithConfig(cfg), analysis.WithLogger(s.logger))
}

// Tool handlers

func (s *Server) handleAnalyzeHistory(ctx context.Context, req *mcp.CallToolRequest, input HistoryInput) (*mcp.CallToolResult, any, error) {
	cfg := s.configFor(input.RangeInput)
	if input.Ceiling > 0 {
		cfg.History.ComplexityCeiling = input.Ceiling
	}
	if input.RunLength > 0 {
		cfg.History.TrendRunLength = input.RunLength
	}
	if input.Top > 0 {
		cfg.Report.Top = input.Top
	}
	if len(input.PathFilter) > 0 {
		cfg.History.PathFilter = input.PathFilter
	}
	if err := cfg.Validate(); err != nil {
		return toolError(err.Error())
	}

	res, err := s.service(cfg).AnalyzeHistory(ctx, getPath(input.RangeInput))
	if res == nil {
		return toolError(err.Error())
	}

	r := res.Report
	view := HistoryView{
		Repo:          res.Repo,
		Summary:       r.Summary,
		TopBreaches:   r.TopBreaches,
		TopComplexity: r.TopComplexity,
		TopGrowth:     r.TopGrowth,
		Signals:       r.Signals(),
		Diagnostics:   r.Diagnostics,
		Digest:        r.Digest,
		Partial:       err != nil,
	}
	if input.Full {
		view.Files = r.Files
		view.Functions = r.Functions
		view.Events = r.Events
	}
	return toolResult(view, getFormat(input.Format))
}

func (s *Server) handleTraceFile(ctx context.Context, req *mcp.CallToolRequest, input TraceInput) (*mcp.CallToolResult, any, error) {
	if input.File == "" {
		return toolError("file is required")
	}
	cfg := s.configFor(input.RangeInput)

	trace, err := s.service(cfg).TraceFile(ctx, getPath(input.RangeInput), input.File, input.Function)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(trace, getFormat(input.Format))
}

func (s *Server) handleCommitLog(ctx context.Context, req *mcp.CallToolRequest, input CommitLogInput) (*mcp.CallToolResult, any, error) {
	paths := input.Paths
	if input.Root != "" {
		var err error
		if paths, err = analysis.DiscoverRepos(input.Root); err != nil {
			return toolError(err.Error())
		}
	}
	if len(paths) == 0 {
		if input.Root != "" {
			return toolError("no repositories found under " + input.Root)
		}
		paths = []string{"."}
	}

	days := input.Days
	if days <= 0 {
		days = DefaultLogDays
	}
	log, skipped, err := s.service(s.config).CommitLog(ctx, paths, analysis.LogOptions{
		Since:   time.Now().AddDate(0, 0, -days),
		Authors: input.Authors,
	})
	if err != nil {
		return toolError(err.Error())
	}

	out := struct {
		Days    []report.Day `json:"days" toon:"days"`
		Skipped []string     `json:"skipped,omitempty" toon:"skipped,omitempty"`
	}{Days: log.Days}
	for _, sk := range skipped {
		out.Skipped = append(out.Skipped, sk.Err.Error())
	}
	return toolResult(out, getFormat(input.Format))
}
