package main

import (
	"fmt"

	"github.com/ayanftw/commit-history/pkg/config"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Subcommands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "Validate a configuration file",
				Description: `Validates a configuration file against the schema and checks value ranges.

Examples:
  commit-history config validate                          # Validates default config locations
  commit-history -c commit-history.toml config validate   # Validates specific file`,
				Action: runConfigValidateCmd,
			},
			{
				Name:  "show",
				Usage: "Show the effective configuration",
				Description: `Shows the configuration from defaults and the config file as TOML.

Examples:
  commit-history config show                          # Show effective config
  commit-history -c commit-history.toml config show   # Show config from specific file`,
				Action: runConfigShowCmd,
			},
		},
	}
}

func loadResult(c *cli.Context) (*config.LoadResult, error) {
	var opts []config.LoadOption
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	return config.LoadConfig(opts...)
}

func runConfigValidateCmd(c *cli.Context) error {
	result, err := loadResult(c)
	if err != nil {
		color.Red("Configuration validation failed:")
		fmt.Printf("  - %s\n", err)
		return err
	}

	if result.Source != "" {
		color.Green("Configuration valid: %s", result.Source)
	} else {
		color.Yellow("No config file found. Default configuration is valid.")
	}
	return nil
}

func runConfigShowCmd(c *cli.Context) error {
	result, err := loadResult(c)
	if err != nil {
		return err
	}

	if result.Source != "" {
		fmt.Printf("# Configuration from: %s\n\n", result.Source)
	} else {
		fmt.Println("# Default configuration (no config file found)")
	}

	content, err := result.Config.MarshalTOML()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Print(string(content))

	return nil
}
