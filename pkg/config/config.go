package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ayanftw/commit-history/pkg/analyzer/rename"
	"github.com/ayanftw/commit-history/pkg/analyzer/trend"
	"github.com/bmatcuk/doublestar/v4"
	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	gotoml "github.com/pelletier/go-toml"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrInvalidConfig marks configuration documents that fail validation.
var ErrInvalidConfig = errors.New("invalid configuration")

//go:embed schema.json
var schemaJSON []byte

// Config holds all configuration options for commit-history.
type Config struct {
	// History walk and trend thresholds
	History HistoryConfig `koanf:"history" toml:"history"`

	// File rename and function move heuristics
	Resolver ResolverConfig `koanf:"resolver" toml:"resolver"`

	// Outlier detection
	Detector DetectorConfig `koanf:"detector" toml:"detector"`

	// Analyzer settings
	Analysis AnalysisConfig `koanf:"analysis" toml:"analysis"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`

	// Cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Report settings
	Report ReportConfig `koanf:"report" toml:"report"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`
}

// HistoryConfig controls which commits are walked and when trends fire.
type HistoryConfig struct {
	ComplexityCeiling int      `koanf:"complexity_ceiling" toml:"complexity_ceiling"`
	TrendRunLength    int      `koanf:"trend_run_length" toml:"trend_run_length"`
	From              string   `koanf:"from" toml:"from"`
	To                string   `koanf:"to" toml:"to"`
	FirstParent       bool     `koanf:"first_parent" toml:"first_parent"`
	BestEffort        bool     `koanf:"best_effort" toml:"best_effort"`
	PathFilter        []string `koanf:"path_filter" toml:"path_filter"` // doublestar globs, empty = all
}

// ResolverConfig tunes implicit move detection.
type ResolverConfig struct {
	MinNameOverlap    float64 `koanf:"min_name_overlap" toml:"min_name_overlap"`
	RequireEqualLines bool    `koanf:"require_equal_lines" toml:"require_equal_lines"`
	CrossFileMoves    bool    `koanf:"cross_file_moves" toml:"cross_file_moves"`
}

// DetectorConfig tunes outlier detection.
type DetectorConfig struct {
	OutlierZScore     float64 `koanf:"outlier_zscore" toml:"outlier_zscore"` // 0 disables
	OutlierWindow     int     `koanf:"outlier_window" toml:"outlier_window"`
	OutlierMinSamples int     `koanf:"outlier_min_samples" toml:"outlier_min_samples"`
}

// AnalysisConfig controls the complexity analyzer.
type AnalysisConfig struct {
	Workers     int `koanf:"workers" toml:"workers"`             // 0 = 2x NumCPU
	MaxFileSize int `koanf:"max_file_size" toml:"max_file_size"` // bytes, 0 = unlimited
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns   []string `koanf:"patterns" toml:"patterns"`
	Extensions []string `koanf:"extensions" toml:"extensions"`
	Dirs       []string `koanf:"dirs" toml:"dirs"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"` // empty keeps entries in memory
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// ReportConfig controls report size.
type ReportConfig struct {
	Top int `koanf:"top" toml:"top"`
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format" toml:"format"` // text, json, markdown, toon, yaml, csv
	Color   bool   `koanf:"color" toml:"color"`
	Verbose bool   `koanf:"verbose" toml:"verbose"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		History: HistoryConfig{
			ComplexityCeiling: 10,
			TrendRunLength:    3,
			PathFilter:        []string{},
		},
		Resolver: ResolverConfig{
			MinNameOverlap:    0.5,
			RequireEqualLines: true,
			CrossFileMoves:    true,
		},
		Detector: DetectorConfig{
			OutlierZScore:     3.0,
			OutlierWindow:     10,
			OutlierMinSamples: 5,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"*.min.js",
				"*.pb.go",
				"*_generated.go",
			},
			Extensions: []string{
				".lock",
				".sum",
			},
			Dirs: []string{
				"vendor",
				"node_modules",
				"dist",
				"build",
				"__pycache__",
			},
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     24,
		},
		Report: ReportConfig{
			Top: 10,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
	}
}

// Load loads configuration from a file, validating it against the
// configuration schema.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = kjson.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := validateSchema(k.Raw()); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// configNames are searched in order in each of searchDirs.
var (
	configNames = []string{
		"commit-history.toml",
		"commit-history.yaml",
		"commit-history.yml",
		"commit-history.json",
		".commit-history.toml",
		".commit-history.yaml",
		".commit-history.yml",
		".commit-history.json",
	}
	searchDirs = []string{".", ".commit-history"}
)

// LoadResult is a loaded configuration and the file it came from.
type LoadResult struct {
	Config *Config
	Source string // empty when defaults were used
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

type loadOptions struct {
	path string
	root string
}

// WithPath loads exactly this file instead of searching.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// WithRoot searches relative to dir instead of the working directory.
func WithRoot(dir string) LoadOption {
	return func(o *loadOptions) {
		o.root = dir
	}
}

// LoadConfig loads an explicit file or the first config file found in the
// standard locations. Finding no file is not an error.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	o := loadOptions{root: "."}
	for _, opt := range opts {
		opt(&o)
	}

	if o.path != "" {
		cfg, err := Load(o.path)
		if err != nil {
			return nil, err
		}
		return &LoadResult{Config: cfg, Source: o.path}, nil
	}

	for _, dir := range searchDirs {
		for _, name := range configNames {
			p := filepath.Join(o.root, dir, name)
			if _, err := os.Stat(p); err != nil {
				continue
			}
			cfg, err := Load(p)
			if err != nil {
				return nil, err
			}
			return &LoadResult{Config: cfg, Source: p}, nil
		}
	}
	return &LoadResult{Config: DefaultConfig()}, nil
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	res, err := LoadConfig()
	if err != nil {
		return DefaultConfig()
	}
	return res.Config
}

// Validate checks semantic ranges the schema cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.History.TrendRunLength < 2 {
		errs = append(errs, fmt.Errorf("history.trend_run_length must be at least 2, got %d", c.History.TrendRunLength))
	}
	if c.History.ComplexityCeiling < 0 {
		errs = append(errs, fmt.Errorf("history.complexity_ceiling must not be negative, got %d", c.History.ComplexityCeiling))
	}
	for _, p := range c.History.PathFilter {
		if !doublestar.ValidatePattern(p) {
			errs = append(errs, fmt.Errorf("history.path_filter: bad pattern %q", p))
		}
	}
	for _, p := range c.Exclude.Patterns {
		if !doublestar.ValidatePattern(p) {
			errs = append(errs, fmt.Errorf("exclude.patterns: bad pattern %q", p))
		}
	}
	if o := c.Resolver.MinNameOverlap; o <= 0 || o > 1 {
		errs = append(errs, fmt.Errorf("resolver.min_name_overlap must be in (0, 1], got %g", o))
	}
	if c.Detector.OutlierZScore < 0 {
		errs = append(errs, fmt.Errorf("detector.outlier_zscore must not be negative, got %g", c.Detector.OutlierZScore))
	}
	if c.Detector.OutlierZScore > 0 && c.Detector.OutlierWindow < c.Detector.OutlierMinSamples {
		errs = append(errs, fmt.Errorf("detector.outlier_window (%d) is smaller than outlier_min_samples (%d)",
			c.Detector.OutlierWindow, c.Detector.OutlierMinSamples))
	}
	if c.Analysis.Workers < 0 || c.Analysis.MaxFileSize < 0 || c.Report.Top < 0 || c.Cache.TTL < 0 {
		errs = append(errs, errors.New("analysis.workers, analysis.max_file_size, report.top and cache.ttl must not be negative"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// ShouldExclude checks if a slash-separated repository path should be
// excluded from analysis.
func (c *Config) ShouldExclude(p string) bool {
	// Check directory exclusions
	dirs := strings.Split(path.Dir(p), "/")
	for _, dir := range c.Exclude.Dirs {
		for _, seg := range dirs {
			if seg == dir {
				return true
			}
		}
	}

	// Check extension exclusions
	ext := path.Ext(p)
	for _, excludeExt := range c.Exclude.Extensions {
		if ext == excludeExt {
			return true
		}
	}

	// Check pattern exclusions against the base name, or the full path
	// when the pattern names directories
	base := path.Base(p)
	for _, pattern := range c.Exclude.Patterns {
		target := base
		if strings.Contains(pattern, "/") {
			target = p
		}
		if matched, _ := doublestar.Match(pattern, target); matched {
			return true
		}
	}
	return false
}

// Tracks reports whether a path passes both path_filter and the exclusions.
func (c *Config) Tracks(p string) bool {
	if c.ShouldExclude(p) {
		return false
	}
	if len(c.History.PathFilter) == 0 {
		return true
	}
	for _, pattern := range c.History.PathFilter {
		if matched, _ := doublestar.Match(pattern, p); matched {
			return true
		}
	}
	return false
}

// RenameOptions returns the file move heuristic.
func (c *Config) RenameOptions() rename.Options {
	return rename.Options{
		MinNameOverlap:    c.Resolver.MinNameOverlap,
		RequireEqualLines: c.Resolver.RequireEqualLines,
	}
}

// TrendConfig returns the detector thresholds.
func (c *Config) TrendConfig() trend.Config {
	return trend.Config{
		Ceiling:           c.History.ComplexityCeiling,
		RunLength:         c.History.TrendRunLength,
		OutlierZ:          c.Detector.OutlierZScore,
		OutlierWindow:     c.Detector.OutlierWindow,
		OutlierMinSamples: c.Detector.OutlierMinSamples,
	}
}

// MarshalTOML renders the config as a TOML document.
func (c *Config) MarshalTOML() ([]byte, error) {
	content, err := gotoml.Marshal(*c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to TOML: %w", err)
	}
	return content, nil
}

func validateSchema(raw map[string]any) error {
	compiler := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return err
	}
	if err := compiler.AddResource("schema.json", doc); err != nil {
		return err
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return err
	}

	// Round-trip through JSON so numbers from every parser look alike.
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return schema.Validate(inst)
}
