package main

import (
	"fmt"
	"time"

	"github.com/ayanftw/commit-history/internal/service/analysis"
	"github.com/urfave/cli/v2"
)

func logCmd() *cli.Command {
	return &cli.Command{
		Name:      "log",
		Usage:     "List recent commits across repositories, grouped by day",
		ArgsUsage: "[repo...]",
		Description: `Lists commits of one or more repositories, oldest first, grouped by
author date and repository. With --root every directory directly below
root that contains a .git entry is included. Repositories that cannot be
read are reported and skipped.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "root",
				Usage: "Scan the immediate subdirectories of this directory for repositories",
			},
			&cli.IntFlag{
				Name:    "days",
				Aliases: []string{"d"},
				Value:   7,
				Usage:   "Number of days to include",
			},
			&cli.TimestampFlag{
				Name:   "since",
				Layout: time.DateOnly,
				Usage:  "Include commits from this date on (overrides --days)",
			},
			&cli.StringSliceFlag{
				Name:    "author",
				Aliases: []string{"a"},
				Usage:   "Keep commits whose author name or email contains this (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "utc",
				Usage: "Group by UTC days instead of local days",
			},
		},
		Action: runLogCmd,
	}
}

func runLogCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	paths := getPaths(c)
	if root := c.String("root"); root != "" {
		if paths, err = analysis.DiscoverRepos(root); err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no repositories found under %s", root)
		}
	}

	opts := analysis.LogOptions{Authors: c.StringSlice("author")}
	if c.Bool("utc") {
		opts.Location = time.UTC
	}
	if since := c.Timestamp("since"); since != nil {
		opts.Since = *since
	} else {
		days := c.Int("days")
		if err := validateDays(days); err != nil {
			return err
		}
		opts.Since = time.Now().AddDate(0, 0, -days)
	}

	ctx, stop := signalContext(c)
	defer stop()

	svc := analysis.New(analysis.WithConfig(cfg), analysis.WithLogger(newLogger(cfg)))
	log, skipped, err := svc.CommitLog(ctx, paths, opts)
	if err != nil {
		return err
	}
	for _, s := range skipped {
		warn("Skipped %s: %v", s.Path, s.Err)
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(log)
}
