// Package analysis runs history analyses for the CLI and the MCP server.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ayanftw/commit-history/internal/cache"
	"github.com/ayanftw/commit-history/internal/logging"
	"github.com/ayanftw/commit-history/internal/vcs"
	"github.com/ayanftw/commit-history/pkg/analyzer/complexity"
	"github.com/ayanftw/commit-history/pkg/analyzer/extract"
	"github.com/ayanftw/commit-history/pkg/analyzer/report"
	"github.com/ayanftw/commit-history/pkg/analyzer/timeline"
	"github.com/ayanftw/commit-history/pkg/analyzer/trend"
	"github.com/ayanftw/commit-history/pkg/config"
	"github.com/ayanftw/commit-history/pkg/history"
	"github.com/sirupsen/logrus"
)

// Service orchestrates history analysis operations.
type Service struct {
	config   *config.Config
	logger   *logrus.Logger
	analyzer extract.Analyzer
	onStart  func(total int)
	onCommit func(*history.Commit)
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithLogger sets the logger that receives walk diagnostics.
func WithLogger(l *logrus.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithAnalyzer replaces the tree-sitter complexity analyzer.
func WithAnalyzer(a extract.Analyzer) Option {
	return func(s *Service) {
		s.analyzer = a
	}
}

// WithProgress registers walk callbacks: start receives the number of
// commits to walk, tick runs after each applied commit.
func WithProgress(start func(total int), tick func(*history.Commit)) Option {
	return func(s *Service) {
		s.onStart = start
		s.onCommit = tick
	}
}

// New creates a new analysis service.
func New(opts ...Option) *Service {
	s := &Service{
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.config == nil {
		s.config = config.LoadOrDefault()
	}
	if s.analyzer == nil {
		s.analyzer = complexity.New(complexity.WithMaxFileSize(int64(s.config.Analysis.MaxFileSize)))
	}
	return s
}

// Result is a finished, or cancelled, history analysis.
type Result struct {
	Repo     string
	Timeline *timeline.Timeline
	Report   *report.Report
}

// AnalyzeHistory walks the configured commit range of the repository at
// path and reports on it. On cancellation it returns the report for the
// commits applied so far together with the context error.
func (s *Service) AnalyzeHistory(ctx context.Context, path string) (*Result, error) {
	cfg := s.config

	reader, err := vcs.Open(path)
	if err != nil {
		return nil, err
	}
	it, err := reader.Commits(ctx, vcs.LogOptions{
		From:        cfg.History.From,
		To:          cfg.History.To,
		FirstParent: cfg.History.FirstParent,
		Filter:      cfg.Tracks,
	})
	if err != nil {
		return nil, err
	}

	memo, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.Enabled)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	ex := extract.New(s.analyzer,
		extract.WithCache(memo),
		extract.WithWorkers(cfg.Analysis.Workers),
	)

	engineOpts := []timeline.Option{
		timeline.WithLogger(s.logger),
		timeline.WithPathFilter(cfg.Tracks),
		timeline.WithRenameOptions(cfg.RenameOptions()),
		timeline.WithCrossFileMoves(cfg.Resolver.CrossFileMoves),
		timeline.WithBestEffort(cfg.History.BestEffort),
	}
	if s.onCommit != nil {
		engineOpts = append(engineOpts, timeline.WithProgress(s.onCommit))
	}
	if s.onStart != nil {
		s.onStart(it.Len())
	}

	tl, err := timeline.NewEngine(ex, engineOpts...).Run(ctx, it)
	if tl == nil {
		return nil, err
	}

	stats := memo.GetStats()
	s.logger.WithFields(logrus.Fields{
		"repo":         path,
		"cache_hits":   stats.Hits,
		"cache_misses": stats.Misses,
	}).Debug("extraction cache")

	return &Result{
		Repo:     repoName(path),
		Timeline: tl,
		Report:   report.Build(tl, trend.DetectAll(cfg.TrendConfig(), tl), cfg.Report.Top),
	}, err
}

// TraceFile analyzes the repository at path and returns the history of one
// file, optionally narrowed to one function.
func (s *Service) TraceFile(ctx context.Context, path, file, function string) (*report.Trace, error) {
	res, err := s.AnalyzeHistory(ctx, path)
	if err != nil {
		return nil, err
	}
	return report.TraceFile(res.Report, res.Timeline, filepath.ToSlash(file), function)
}

// LogOptions selects the commits of a commit log.
type LogOptions struct {
	Since   time.Time
	Authors []string
	// Location groups commits by day in this zone. Nil uses time.Local.
	Location *time.Location
}

// SkippedRepo is a repository the commit log could not read.
type SkippedRepo struct {
	Path string
	Err  error
}

// CommitLog groups the commits of several repositories by day. Unreadable
// repositories are skipped and reported.
func (s *Service) CommitLog(ctx context.Context, paths []string, opts LogOptions) (*report.CommitLog, []SkippedRepo, error) {
	var repos []report.RepoCommits
	var skipped []SkippedRepo
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, skipped, err
		}
		reader, err := vcs.Open(p)
		if err == nil {
			var it *vcs.Iterator
			it, err = reader.Commits(ctx, vcs.LogOptions{Since: opts.Since, Authors: opts.Authors})
			if err == nil {
				repos = append(repos, report.RepoCommits{Repo: repoName(p), Commits: it.Headers()})
				continue
			}
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, skipped, err
		}
		s.logger.WithField("repo", p).WithError(err).Warn("skipping repository")
		skipped = append(skipped, SkippedRepo{Path: p, Err: err})
	}
	return report.NewCommitLog(repos, opts.Location), skipped, nil
}

// DiscoverRepos returns the directories directly under root that contain a
// .git entry, sorted by path.
func DiscoverRepos(root string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(root, "*", ".git"))
	if err != nil {
		return nil, err
	}
	repos := make([]string, len(matches))
	for i, m := range matches {
		repos[i] = filepath.Dir(m)
	}
	return repos, nil
}

func repoName(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Base(path)
	}
	return filepath.Base(abs)
}
