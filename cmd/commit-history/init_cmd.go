package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ayanftw/commit-history/pkg/config"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize a new configuration file",
		Description: `Creates a new commit-history.toml configuration file in the current
directory with sensible defaults. Use --output to specify a different location.

Examples:
  commit-history init                                   # Creates commit-history.toml
  commit-history init -o .commit-history/config.toml    # Creates config in .commit-history
  commit-history init --force                           # Overwrite existing config file`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "commit-history.toml",
				Usage:   "Output file path",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite existing config file",
			},
		},
		Action: runInitCmd,
	}
}

func runInitCmd(c *cli.Context) error {
	outputPath := c.String("output")

	if _, err := os.Stat(outputPath); err == nil && !c.Bool("force") {
		return fmt.Errorf("config file %q already exists (use --force to overwrite)", outputPath)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", dir, err)
		}
	}

	content, err := generateDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.WriteFile(outputPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	color.Green("Created %s", outputPath)
	fmt.Println("Edit this file to customize the history analysis.")
	return nil
}

func generateDefaultConfig() (string, error) {
	content, err := config.DefaultConfig().MarshalTOML()
	if err != nil {
		return "", fmt.Errorf("failed to marshal config to TOML: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("# commit-history configuration\n")
	buf.WriteString("# Documentation: https://github.com/ayanftw/commit-history\n\n")
	buf.Write(content)

	return buf.String(), nil
}
