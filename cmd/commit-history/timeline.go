package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func timelineCmd() *cli.Command {
	flags := append(rangeFlags(),
		&cli.StringFlag{
			Name:    "repo",
			Aliases: []string{"r"},
			Value:   ".",
			Usage:   "Repository path",
		},
		&cli.StringFlag{
			Name:    "function",
			Aliases: []string{"F"},
			Usage:   "Restrict the timeline to this qualified function name",
		},
		&cli.BoolFlag{
			Name:  "no-progress",
			Usage: "Hide the progress bar",
		},
	)
	return &cli.Command{
		Name:      "timeline",
		Aliases:   []string{"tl"},
		Usage:     "Show the complexity history of one file across renames",
		ArgsUsage: "<file>",
		Flags:     flags,
		Action:    runTimelineCmd,
	}
}

func runTimelineCmd(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("timeline takes exactly one file argument")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	applyRangeFlags(c, cfg)

	ctx, stop := signalContext(c)
	defer stop()

	svc, tracker := newService(c, cfg, "Tracing")
	trace, err := svc.TraceFile(ctx, c.String("repo"), c.Args().First(), c.String("function"))
	tracker.finish(err)
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(trace)
}
