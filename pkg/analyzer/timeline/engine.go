package timeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayanftw/commit-history/internal/logging"
	"github.com/ayanftw/commit-history/pkg/analyzer/extract"
	"github.com/ayanftw/commit-history/pkg/analyzer/rename"
	"github.com/ayanftw/commit-history/pkg/history"
	"github.com/sirupsen/logrus"
)

// Engine drives a commit stream through extraction, file and function
// identity resolution and the builder. Commits are processed strictly in
// order; only extraction within a commit runs in parallel.
type Engine struct {
	extractor  *extract.Extractor
	logger     *logrus.Logger
	filter     func(path string) bool
	renameOpts rename.Options
	crossFile  bool
	bestEffort bool
	onCommit   func(*history.Commit)
}

// Option is a functional option for configuring Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logrus.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithPathFilter restricts tracking to paths for which fn returns true.
func WithPathFilter(fn func(path string) bool) Option {
	return func(e *Engine) {
		e.filter = fn
	}
}

// WithRenameOptions sets the implicit move heuristic.
func WithRenameOptions(opts rename.Options) Option {
	return func(e *Engine) {
		e.renameOpts = opts
	}
}

// WithCrossFileMoves enables or disables moving function entities between
// files within a commit.
func WithCrossFileMoves(enabled bool) Option {
	return func(e *Engine) {
		e.crossFile = enabled
	}
}

// WithBestEffort keeps the partial timeline when the repository reader
// fails.
func WithBestEffort(enabled bool) Option {
	return func(e *Engine) {
		e.bestEffort = enabled
	}
}

// WithProgress registers a callback invoked after each applied commit.
func WithProgress(fn func(*history.Commit)) Option {
	return func(e *Engine) {
		e.onCommit = fn
	}
}

// NewEngine creates an engine around extractor.
func NewEngine(extractor *extract.Extractor, opts ...Option) *Engine {
	e := &Engine{
		extractor:  extractor,
		logger:     logging.Discard(),
		renameOpts: rename.DefaultOptions(),
		crossFile:  true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run walks src and returns the resulting timeline. Cancellation is
// checked between commits: on cancellation the timeline of every fully
// applied commit is returned together with the context error. An ordering
// violation returns no timeline. A repository read failure returns no
// timeline unless best effort is enabled.
func (e *Engine) Run(ctx context.Context, src history.Source) (*Timeline, error) {
	b := NewBuilder(e.renameOpts, e.crossFile)

	err := src.ForEach(ctx, func(c *history.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return e.step(ctx, b, c)
	})

	switch {
	case err == nil:
		e.logger.WithField("commits", b.Len()).Info("history walk complete")
		return b.Snapshot(), nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e.logger.WithField("commits", b.Len()).WithError(err).Warn("history walk stopped")
		return b.Snapshot(), err
	case errors.Is(err, history.ErrOrderingViolation):
		e.logger.WithError(err).Error("history walk aborted")
		return nil, err
	}

	if !errors.Is(err, history.ErrRepositoryRead) {
		err = &history.RepositoryReadError{Err: err}
	}
	e.logger.WithField("commits", b.Len()).WithError(err).Error("history walk aborted")
	if e.bestEffort {
		return b.Snapshot(), err
	}
	return nil, err
}

func (e *Engine) step(ctx context.Context, b *Builder, c *history.Commit) error {
	if err := b.Check(c); err != nil {
		return err
	}

	changes, err := e.prepare(c)
	if err != nil {
		return &history.RepositoryReadError{Commit: c.Hash, Err: err}
	}

	ex, failed, err := e.extract(ctx, b, c, changes)
	if err != nil {
		return err
	}
	changes = dropUnobserved(b, changes, failed)

	seen := len(b.diags)
	if err := b.Apply(c, changes, ex); err != nil {
		return err
	}
	for _, d := range b.diags[seen:] {
		entry := e.logger.WithFields(logrus.Fields{"commit": c.ShortHash(), "kind": d.Kind.String()})
		if d.Path != "" {
			entry = entry.WithField("path", d.Path)
		}
		if d.Err != nil {
			entry = entry.WithError(d.Err)
		}
		entry.Warn(d.Message)
	}

	e.logger.WithFields(logrus.Fields{
		"commit":  c.ShortHash(),
		"ordinal": b.Len(),
		"changes": len(changes),
	}).Debug("commit applied")
	if e.onCommit != nil {
		e.onCommit(c)
	}
	return nil
}

// prepare drops changes to untracked paths. A rename or copy with only one
// trackable side degrades to the addition or deletion of that side.
func (e *Engine) prepare(c *history.Commit) ([]history.FileChange, error) {
	out := make([]history.FileChange, 0, len(c.Changes))
	for _, ch := range c.Changes {
		if err := ch.Validate(); err != nil {
			return nil, fmt.Errorf("invalid change: %w", err)
		}
		oldOK := ch.OldPath != "" && e.tracks(ch.OldPath)
		newOK := ch.NewPath != "" && e.tracks(ch.NewPath)

		switch ch.Kind {
		case history.Added, history.Modified:
			if newOK {
				out = append(out, ch)
			}
		case history.Deleted:
			if oldOK {
				out = append(out, ch)
			}
		case history.Renamed, history.Copied:
			switch {
			case oldOK && newOK:
				out = append(out, ch)
			case newOK:
				out = append(out, history.FileChange{Kind: history.Added, NewPath: ch.NewPath, After: ch.After})
			case oldOK && ch.Kind == history.Renamed:
				out = append(out, history.FileChange{Kind: history.Deleted, OldPath: ch.OldPath, Before: ch.Before})
			}
		}
	}
	return out, nil
}

func (e *Engine) tracks(path string) bool {
	if e.filter != nil && !e.filter(path) {
		return false
	}
	return e.extractor.Supports(path)
}

// extract analyzes the post-image of every surviving file and the
// pre-image of every deleted file still tracked, for move detection.
// The returned set holds the new paths whose post-image could not be
// analyzed.
func (e *Engine) extract(ctx context.Context, b *Builder, c *history.Commit, changes []history.FileChange) (Extraction, map[string]bool, error) {
	ex := Extraction{
		After:  make(map[string]*extract.FileVersion),
		Before: make(map[string]*extract.FileVersion),
	}

	var reqs []extract.Request
	var pre []bool
	for _, ch := range changes {
		if ch.Kind == history.Deleted {
			if ch.Before != nil && b.Tracks(ch.OldPath) {
				reqs = append(reqs, extract.Request{Path: ch.OldPath, Content: ch.Before})
				pre = append(pre, true)
			}
			continue
		}
		reqs = append(reqs, extract.Request{Path: ch.NewPath, Content: ch.After})
		pre = append(pre, false)
	}

	results := e.extractor.ExtractAll(ctx, reqs)
	if err := ctx.Err(); err != nil {
		return ex, nil, err
	}

	failed := make(map[string]bool)
	for i, r := range results {
		if r.Err == nil {
			if pre[i] {
				ex.Before[r.Path] = r.Version
			} else {
				ex.After[r.Path] = r.Version
			}
			continue
		}
		if !pre[i] {
			failed[r.Path] = true
		}

		var analysisErr *history.AnalysisError
		switch {
		case errors.As(r.Err, &analysisErr):
			ex.Diagnostics = append(ex.Diagnostics, history.Diagnostic{
				Kind:    history.AnalysisFailure,
				Commit:  c.Hash,
				Path:    r.Path,
				Message: analysisErr.Err.Error(),
				Err:     r.Err,
			})
		case errors.Is(r.Err, history.ErrUnsupportedLanguage):
			ex.Diagnostics = append(ex.Diagnostics, history.Diagnostic{
				Kind:    history.UnsupportedFile,
				Commit:  c.Hash,
				Path:    r.Path,
				Message: "analyzer rejected file",
				Err:     r.Err,
			})
		case errors.Is(r.Err, history.ErrRepositoryRead):
			return ex, nil, &history.RepositoryReadError{Commit: c.Hash, Err: r.Err}
		default:
			return ex, nil, r.Err
		}
	}
	return ex, failed, nil
}

// dropUnobserved removes changes that would open an entity at a path whose
// post-image failed analysis. Changes to entities already tracked stay, so
// their prior timeline carries on unchanged.
func dropUnobserved(b *Builder, changes []history.FileChange, failed map[string]bool) []history.FileChange {
	if len(failed) == 0 {
		return changes
	}
	out := changes[:0:0]
	for _, ch := range changes {
		if ch.Kind != history.Deleted && failed[ch.NewPath] && !b.Tracks(ch.NewPath) {
			if ch.Kind != history.Renamed || !b.Tracks(ch.OldPath) {
				continue
			}
		}
		out = append(out, ch)
	}
	return out
}
