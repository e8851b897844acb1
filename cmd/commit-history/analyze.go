package main

import (
	"os"

	"github.com/ayanftw/commit-history/internal/progress"
	"github.com/ayanftw/commit-history/internal/service/analysis"
	"github.com/ayanftw/commit-history/pkg/config"
	"github.com/ayanftw/commit-history/pkg/history"
	"github.com/urfave/cli/v2"
)

func analyzeCmd() *cli.Command {
	flags := append(rangeFlags(),
		&cli.IntFlag{
			Name:  "ceiling",
			Usage: "Cyclomatic complexity a function must rise above to breach (default from config)",
		},
		&cli.IntFlag{
			Name:  "run-length",
			Usage: "Observations a monotonic run needs before a reversal counts (default from config)",
		},
		&cli.IntFlag{
			Name:  "top",
			Usage: "Length of the top-N function lists (default from config)",
		},
		&cli.StringSliceFlag{
			Name:    "path-filter",
			Aliases: []string{"p"},
			Usage:   "Track only files matching these globs (repeatable)",
		},
		&cli.BoolFlag{
			Name:  "best-effort",
			Usage: "Report the commits applied so far when the repository cannot be read",
		},
		&cli.BoolFlag{
			Name:  "no-progress",
			Usage: "Hide the progress bar",
		},
	)
	return &cli.Command{
		Name:      "analyze",
		Aliases:   []string{"a"},
		Usage:     "Replay history and report complexity trends",
		ArgsUsage: "[repo]",
		Flags:     flags,
		Action:    runAnalyzeCmd,
	}
}

func runAnalyzeCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	applyRangeFlags(c, cfg)
	if c.IsSet("ceiling") {
		cfg.History.ComplexityCeiling = c.Int("ceiling")
	}
	if c.IsSet("run-length") {
		cfg.History.TrendRunLength = c.Int("run-length")
	}
	if c.IsSet("top") {
		cfg.Report.Top = c.Int("top")
	}
	if c.IsSet("path-filter") {
		cfg.History.PathFilter = c.StringSlice("path-filter")
	}
	if c.IsSet("best-effort") {
		cfg.History.BestEffort = c.Bool("best-effort")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signalContext(c)
	defer stop()

	svc, tracker := newService(c, cfg, "Replaying history")
	res, err := svc.AnalyzeHistory(ctx, getPaths(c)[0])
	tracker.finish(err)
	if res == nil {
		return err
	}
	if err != nil {
		warn("Partial result after %d commits: %v", res.Report.Summary.Commits, err)
	}

	formatter, ferr := newFormatter(c, cfg)
	if ferr != nil {
		return ferr
	}
	defer formatter.Close()

	if ferr := formatter.Output(res.Report); ferr != nil {
		return ferr
	}
	return err
}

// walkProgress shows a progress bar once the commit count is known.
type walkProgress struct {
	label   string
	tracker *progress.Tracker
}

func (p *walkProgress) start(total int) {
	p.tracker = progress.NewTracker(os.Stderr, p.label, total)
}

func (p *walkProgress) tick(c *history.Commit) {
	p.tracker.Commit(c)
}

func (p *walkProgress) finish(err error) {
	if p == nil || p.tracker == nil {
		return
	}
	if err != nil {
		p.tracker.FinishError(err)
		return
	}
	p.tracker.FinishSuccess()
}

// newService creates the analysis service with a logger on stderr and,
// unless --no-progress is set, a progress bar.
func newService(c *cli.Context, cfg *config.Config, label string) (*analysis.Service, *walkProgress) {
	opts := []analysis.Option{
		analysis.WithConfig(cfg),
		analysis.WithLogger(newLogger(cfg)),
	}
	if c.Bool("no-progress") {
		return analysis.New(opts...), nil
	}
	p := &walkProgress{label: label}
	opts = append(opts, analysis.WithProgress(p.start, p.tick))
	return analysis.New(opts...), p
}
