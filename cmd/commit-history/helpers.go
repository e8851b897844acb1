package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ayanftw/commit-history/internal/logging"
	"github.com/ayanftw/commit-history/internal/output"
	"github.com/ayanftw/commit-history/pkg/config"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// getPaths returns paths from positional args, defaulting to ["."]
func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"."}
}

// validateDays validates the --days flag and returns an error if invalid.
func validateDays(days int) error {
	if days <= 0 {
		return fmt.Errorf("--days must be a positive integer (got %d)", days)
	}
	return nil
}

// loadConfig loads the config file named by --config, or the first one
// found in the working directory, and applies the global flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var opts []config.LoadOption
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	result, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, err
	}

	cfg := result.Config
	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}
	if c.Bool("verbose") {
		cfg.Output.Verbose = true
	}
	if c.Bool("no-color") {
		cfg.Output.Color = false
	}
	if f := c.String("format"); f != "" {
		cfg.Output.Format = f
	}
	return cfg, nil
}

// applyRangeFlags copies the commit range flags of a command into cfg.
func applyRangeFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("from") {
		cfg.History.From = c.String("from")
	}
	if c.IsSet("to") {
		cfg.History.To = c.String("to")
	}
	if c.IsSet("first-parent") {
		cfg.History.FirstParent = c.Bool("first-parent")
	}
}

func rangeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "from",
			Usage: "Exclusive start revision; it and its ancestors are skipped",
		},
		&cli.StringFlag{
			Name:  "to",
			Usage: "Tip revision (default HEAD)",
		},
		&cli.BoolFlag{
			Name:  "first-parent",
			Usage: "Follow only the first parent of merge commits",
		},
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	return logging.New(os.Stderr, cfg.Output.Verbose, cfg.Output.Color)
}

func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	return output.NewFormatter(output.ParseFormat(cfg.Output.Format), c.String("output"), cfg.Output.Color)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func warn(format string, args ...any) {
	fmt.Fprintln(os.Stderr, color.YellowString(format, args...))
}
