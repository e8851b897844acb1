package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "commit-history",
		Usage:    "Complexity history of files and functions across git commits",
		Version:  version,
		Metadata: make(map[string]interface{}),
		Description: `commit-history replays a repository's commits in order, measures the
cyclomatic complexity of every function in every changed file, and keeps
a stable identity for files and functions across renames and moves.

On top of the timeline it reports threshold breaches, trend reversals
and outlier changes, and summarizes growth per function and per file.

Supports: Go, Rust, Python, TypeScript, JavaScript, Java, C, C++, Ruby, PHP`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"COMMIT_HISTORY_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, markdown, toon, yaml, csv (default from config)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable the extraction cache",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose output",
			},
			&cli.StringFlag{
				Name:  "pprof",
				Usage: "Enable pprof profiling and write to specified prefix (creates <prefix>.cpu.pprof and <prefix>.mem.pprof)",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("no-color") {
				color.NoColor = true
			}
			if pprofPrefix := c.String("pprof"); pprofPrefix != "" {
				cpuFile, err := os.Create(pprofPrefix + ".cpu.pprof")
				if err != nil {
					return fmt.Errorf("failed to create CPU profile: %w", err)
				}
				if err := pprof.StartCPUProfile(cpuFile); err != nil {
					cpuFile.Close()
					return fmt.Errorf("failed to start CPU profile: %w", err)
				}
				c.App.Metadata["pprofCPU"] = cpuFile
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if pprofPrefix := c.String("pprof"); pprofPrefix != "" {
				pprof.StopCPUProfile()
				if cpuFile, ok := c.App.Metadata["pprofCPU"].(*os.File); ok {
					cpuFile.Close()
					color.Green("CPU profile written to %s.cpu.pprof", pprofPrefix)
				}

				memFile, err := os.Create(pprofPrefix + ".mem.pprof")
				if err != nil {
					return fmt.Errorf("failed to create memory profile: %w", err)
				}
				defer memFile.Close()

				runtime.GC()
				if err := pprof.WriteHeapProfile(memFile); err != nil {
					return fmt.Errorf("failed to write memory profile: %w", err)
				}
				color.Green("Memory profile written to %s.mem.pprof", pprofPrefix)
			}
			return nil
		},
		Commands: []*cli.Command{
			analyzeCmd(),
			timelineCmd(),
			logCmd(),
			initCmd(),
			configCmd(),
			cacheCmd(),
			mcpCmd(),
		},
	}
}
