package mcpserver

import (
	"encoding/json"
)

// Manifest represents the MCP server manifest (server.json) format.
// Uses schema version 2025-10-17.
type Manifest struct {
	Schema      string      `json:"$schema"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Version     string      `json:"version"`
	Repository  *Repository `json:"repository,omitempty"`
	Packages    []Package   `json:"packages,omitempty"`
}

// Repository contains source repository information.
type Repository struct {
	URL    string `json:"url"`
	Source string `json:"source"`
	ID     string `json:"id,omitempty"`
}

// Package describes how to install/run the MCP server.
type Package struct {
	RegistryType         string                `json:"registryType"`
	Identifier           string                `json:"identifier"`
	PackageArguments     []Argument            `json:"packageArguments,omitempty"`
	EnvironmentVariables []EnvironmentVariable `json:"environmentVariables,omitempty"`
	Transport            Transport             `json:"transport"`
}

// EnvironmentVariable is a variable the server reads at startup.
type EnvironmentVariable struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsRequired  bool   `json:"isRequired"`
}

// Argument represents a command-line argument.
type Argument struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// Transport describes the communication method.
type Transport struct {
	Type string `json:"type"`
}

// GenerateManifest creates the MCP server manifest JSON.
func GenerateManifest(version string) ([]byte, error) {
	if version == "" {
		version = "0.0.0"
	}

	manifest := Manifest{
		Schema:      "https://static.modelcontextprotocol.io/schemas/2025-10-17/server.schema.json",
		Name:        "io.github.ayanftw/commit-history",
		Description: "Complexity history of files and functions across git commits, with breach, trend and outlier detection",
		Version:     version,
		Repository: &Repository{
			URL:    "https://github.com/ayanftw/commit-history",
			Source: "github",
		},
		Packages: []Package{
			{
				RegistryType: "oci",
				Identifier:   "ghcr.io/ayanftw/commit-history:" + version,
				PackageArguments: []Argument{
					{Type: "positional", Value: "mcp"},
				},
				EnvironmentVariables: []EnvironmentVariable{
					{
						Name:        "COMMIT_HISTORY_CONFIG",
						Description: "Path to a TOML, YAML or JSON configuration file",
					},
				},
				Transport: Transport{
					Type: "stdio",
				},
			},
		},
	}

	return json.MarshalIndent(manifest, "", "  ")
}
