package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}

	if cfg.History.ComplexityCeiling != 10 {
		t.Errorf("History.ComplexityCeiling = %d, want 10", cfg.History.ComplexityCeiling)
	}
	if cfg.History.TrendRunLength != 3 {
		t.Errorf("History.TrendRunLength = %d, want 3", cfg.History.TrendRunLength)
	}
	if cfg.Resolver.MinNameOverlap != 0.5 {
		t.Errorf("Resolver.MinNameOverlap = %f, want 0.5", cfg.Resolver.MinNameOverlap)
	}
	if !cfg.Resolver.RequireEqualLines || !cfg.Resolver.CrossFileMoves {
		t.Error("Resolver flags should be true by default")
	}
	if cfg.Detector.OutlierZScore != 3.0 {
		t.Errorf("Detector.OutlierZScore = %f, want 3.0", cfg.Detector.OutlierZScore)
	}
	if !cfg.Cache.Enabled || cfg.Cache.Dir != "" {
		t.Error("Cache should be enabled and memory-only by default")
	}
	if cfg.Output.Format != "text" {
		t.Errorf("Output.Format = %s, want text", cfg.Output.Format)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() error: %v", err)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "commit-history.toml", `
[history]
complexity_ceiling = 15
trend_run_length = 4
first_parent = true
path_filter = ["src/**/*.go"]

[resolver]
min_name_overlap = 0.75
cross_file_moves = false

[exclude]
dirs = ["vendor", "custom_exclude"]
patterns = ["*_generated.go"]

[cache]
enabled = false

[output]
format = "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.History.ComplexityCeiling != 15 {
		t.Errorf("History.ComplexityCeiling = %d, want 15", cfg.History.ComplexityCeiling)
	}
	if cfg.History.TrendRunLength != 4 {
		t.Errorf("History.TrendRunLength = %d, want 4", cfg.History.TrendRunLength)
	}
	if !cfg.History.FirstParent {
		t.Error("History.FirstParent should be true")
	}
	if len(cfg.History.PathFilter) != 1 || cfg.History.PathFilter[0] != "src/**/*.go" {
		t.Errorf("History.PathFilter = %v", cfg.History.PathFilter)
	}
	if cfg.Resolver.MinNameOverlap != 0.75 {
		t.Errorf("Resolver.MinNameOverlap = %f, want 0.75", cfg.Resolver.MinNameOverlap)
	}
	if cfg.Resolver.CrossFileMoves {
		t.Error("Resolver.CrossFileMoves should be false")
	}
	if !cfg.Resolver.RequireEqualLines {
		t.Error("Resolver.RequireEqualLines should keep its default")
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled should be false")
	}
	if cfg.Output.Format != "json" {
		t.Errorf("Output.Format = %s, want json", cfg.Output.Format)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "commit-history.yaml", `
history:
  complexity_ceiling: 20

detector:
  outlier_zscore: 2.5
  outlier_window: 8

output:
  format: markdown
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.History.ComplexityCeiling != 20 {
		t.Errorf("History.ComplexityCeiling = %d, want 20", cfg.History.ComplexityCeiling)
	}
	if cfg.Detector.OutlierZScore != 2.5 {
		t.Errorf("Detector.OutlierZScore = %f, want 2.5", cfg.Detector.OutlierZScore)
	}
	if cfg.Detector.OutlierWindow != 8 {
		t.Errorf("Detector.OutlierWindow = %d, want 8", cfg.Detector.OutlierWindow)
	}
	if cfg.Output.Format != "markdown" {
		t.Errorf("Output.Format = %s, want markdown", cfg.Output.Format)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "commit-history.json", `{
  "history": {
    "complexity_ceiling": 25,
    "best_effort": true
  },
  "analysis": {
    "workers": 4
  },
  "report": {
    "top": 3
  }
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.History.ComplexityCeiling != 25 {
		t.Errorf("History.ComplexityCeiling = %d, want 25", cfg.History.ComplexityCeiling)
	}
	if !cfg.History.BestEffort {
		t.Error("History.BestEffort should be true")
	}
	if cfg.Analysis.Workers != 4 {
		t.Errorf("Analysis.Workers = %d, want 4", cfg.Analysis.Workers)
	}
	if cfg.Report.Top != 3 {
		t.Errorf("Report.Top = %d, want 3", cfg.Report.Top)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/commit-history.toml")
	if err == nil {
		t.Error("Load() should return error for non-existent file")
	}
}

func TestLoadInvalidFile(t *testing.T) {
	path := writeConfig(t, "commit-history.toml", `[history
invalid toml`)

	_, err := Load(path)
	if err == nil {
		t.Error("Load() should return error for invalid config")
	}
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown section", "[thresholds]\ncyclomatic_complexity = 10\n"},
		{"unknown key", "[history]\nceiling = 10\n"},
		{"wrong type", "[history]\ncomplexity_ceiling = \"ten\"\n"},
		{"run length too short", "[history]\ntrend_run_length = 1\n"},
		{"overlap out of range", "[resolver]\nmin_name_overlap = 1.5\n"},
		{"unknown format", "[output]\nformat = \"xml\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "commit-history.toml", tt.content))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"run length", func(c *Config) { c.History.TrendRunLength = 1 }, "trend_run_length"},
		{"bad glob", func(c *Config) { c.History.PathFilter = []string{"src/[a"} }, "path_filter"},
		{"overlap", func(c *Config) { c.Resolver.MinNameOverlap = 0 }, "min_name_overlap"},
		{"window", func(c *Config) { c.Detector.OutlierWindow = 3 }, "outlier_window"},
		{"negative", func(c *Config) { c.Report.Top = -1 }, "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() error = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %q, want mention of %q", err, tt.want)
			}
		})
	}

	cfg := DefaultConfig()
	cfg.Detector.OutlierZScore = 0
	cfg.Detector.OutlierWindow = 1
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled outlier detection should skip window checks: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	root := t.TempDir()

	res, err := LoadConfig(WithRoot(root))
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if res.Source != "" {
		t.Errorf("Source = %q, want empty for defaults", res.Source)
	}

	dir := filepath.Join(root, ".commit-history")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "commit-history.toml")
	if err := os.WriteFile(want, []byte("[report]\ntop = 7\n"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err = LoadConfig(WithRoot(root))
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if res.Source != want {
		t.Errorf("Source = %q, want %q", res.Source, want)
	}
	if res.Config.Report.Top != 7 {
		t.Errorf("Report.Top = %d, want 7", res.Config.Report.Top)
	}

	explicit := writeConfig(t, "custom.toml", "[report]\ntop = 2\n")
	res, err = LoadConfig(WithRoot(root), WithPath(explicit))
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if res.Config.Report.Top != 2 || res.Source != explicit {
		t.Errorf("WithPath should win: got top=%d source=%q", res.Config.Report.Top, res.Source)
	}
}

func TestLoadOrDefault(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	cfg := LoadOrDefault()
	if cfg.History.ComplexityCeiling != 10 {
		t.Errorf("LoadOrDefault() returned non-default ceiling: %d", cfg.History.ComplexityCeiling)
	}

	if err := os.WriteFile("commit-history.toml", []byte("[history]\ncomplexity_ceiling = 99\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg = LoadOrDefault()
	if cfg.History.ComplexityCeiling != 99 {
		t.Errorf("LoadOrDefault() should load from file, got ceiling=%d", cfg.History.ComplexityCeiling)
	}
}

func TestShouldExclude(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Exclude.Patterns = append(cfg.Exclude.Patterns, "testdata/**")
	cfg.Exclude.Dirs = append(cfg.Exclude.Dirs, "custom_exclude")

	tests := []struct {
		path string
		want bool
	}{
		// Excluded directories
		{"vendor/pkg/file.go", true},
		{"src/vendor/pkg/file.go", true},
		{"node_modules/pkg/file.js", true},
		{"custom_exclude/file.go", true},

		// Excluded patterns
		{"app.min.js", true},
		{"api/service.pb.go", true},
		{"model_generated.go", true},
		{"testdata/a/b.go", true},

		// Excluded extensions
		{"go.sum", true},
		{"package.lock", true},

		// Not excluded
		{"main.go", false},
		{"pkg/util/helper.go", false},
		{"pkg/vendor_utils.go", false},
		{"src/testdata.go", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := cfg.ShouldExclude(tt.path)
			if got != tt.want {
				t.Errorf("ShouldExclude(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestTracks(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.Tracks("anything/at/all.go") {
		t.Error("empty path_filter should track everything not excluded")
	}

	cfg.History.PathFilter = []string{"pkg/**/*.go", "cmd/*.go"}
	tests := []struct {
		path string
		want bool
	}{
		{"pkg/a/b/c.go", true},
		{"pkg/c.go", true},
		{"cmd/main.go", true},
		{"cmd/tool/main.go", false},
		{"internal/x.go", false},
		{"pkg/vendor/x.go", false},
	}
	for _, tt := range tests {
		if got := cfg.Tracks(tt.path); got != tt.want {
			t.Errorf("Tracks(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestDerivedOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.History.ComplexityCeiling = 12
	cfg.Resolver.MinNameOverlap = 0.8

	tc := cfg.TrendConfig()
	if tc.Ceiling != 12 || tc.RunLength != 3 || tc.OutlierZ != 3.0 || tc.OutlierWindow != 10 || tc.OutlierMinSamples != 5 {
		t.Errorf("TrendConfig() = %+v", tc)
	}
	ro := cfg.RenameOptions()
	if ro.MinNameOverlap != 0.8 || !ro.RequireEqualLines {
		t.Errorf("RenameOptions() = %+v", ro)
	}
}

func TestMarshalTOMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.History.PathFilter = []string{"src/**"}

	content, err := cfg.MarshalTOML()
	if err != nil {
		t.Fatalf("MarshalTOML() error: %v", err)
	}
	if !strings.Contains(string(content), "complexity_ceiling = 10") {
		t.Errorf("MarshalTOML() output missing history keys:\n%s", content)
	}

	loaded, err := Load(writeConfig(t, "commit-history.toml", string(content)))
	if err != nil {
		t.Fatalf("Load() of generated config error: %v", err)
	}
	if loaded.History.PathFilter[0] != "src/**" || loaded.Report.Top != cfg.Report.Top {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}
