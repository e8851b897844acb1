package main

import (
	"fmt"

	"github.com/ayanftw/commit-history/internal/cache"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Extraction cache commands",
		Subcommands: []*cli.Command{
			{
				Name:  "clear",
				Usage: "Remove all cached analyzer results",
				Description: `Deletes the on-disk cache directory configured by cache.dir.

Examples:
  commit-history cache clear
  commit-history -c commit-history.toml cache clear`,
				Action: runCacheClearCmd,
			},
		},
	}
}

func runCacheClearCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Cache.Dir == "" {
		color.Yellow("No cache directory configured; nothing to clear.")
		return nil
	}

	memo, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, true)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	if err := memo.Clear(); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	color.Green("Cleared %s", cfg.Cache.Dir)
	return nil
}
