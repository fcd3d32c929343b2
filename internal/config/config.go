// Package config handles configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/spetr/grounded-context-mcp/pkg/types"
)

// Config represents the complete configuration.
type Config struct {
	Scan    ScanConfig    `mapstructure:"scan" yaml:"scan"`
	VCS     VCSConfig     `mapstructure:"vcs" yaml:"vcs"`
	Limits  LimitsConfig  `mapstructure:"limits" yaml:"limits"`
	Scoring ScoringConfig `mapstructure:"scoring" yaml:"scoring"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	MCP     MCPConfig     `mapstructure:"mcp" yaml:"mcp"`
}

// ScanConfig controls which files a corpus scan yields.
type ScanConfig struct {
	IgnoreDirs     []string `mapstructure:"ignore_dirs" yaml:"ignore_dirs"`         // path segments never descended into
	TextExtensions []string `mapstructure:"text_extensions" yaml:"text_extensions"` // allow-list used when no globs are given
	MaxFileSize    int64    `mapstructure:"max_file_size" yaml:"max_file_size"`     // bytes, 0 = unlimited
}

// VCSConfig controls the git probe.
type VCSConfig struct {
	Binary  string        `mapstructure:"binary" yaml:"binary"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"` // per command
}

// LimitsConfig contains output bounds.
type LimitsConfig struct {
	PreviewChars    int `mapstructure:"preview_chars" yaml:"preview_chars"`         // recommend_context preview
	SnippetChars    int `mapstructure:"snippet_chars" yaml:"snippet_chars"`         // search_repo snippet
	StatusLines     int `mapstructure:"status_lines" yaml:"status_lines"`           // raw porcelain lines kept
	FileList        int `mapstructure:"file_list" yaml:"file_list"`                 // changed / last-commit file lists
	DefaultMaxChars int `mapstructure:"default_max_chars" yaml:"default_max_chars"` // grounded context budget
}

// ScoringConfig holds the heuristic tuning constants.
type ScoringConfig struct {
	PathMatch       float64 `mapstructure:"path_match" yaml:"path_match"`
	PerOccurrence   float64 `mapstructure:"per_occurrence" yaml:"per_occurrence"`
	OccurrenceCap   float64 `mapstructure:"occurrence_cap" yaml:"occurrence_cap"`
	DefinitionBonus float64 `mapstructure:"definition_bonus" yaml:"definition_bonus"`
	DebugBoost      float64 `mapstructure:"debug_boost" yaml:"debug_boost"`
	DirtyBoost      float64 `mapstructure:"dirty_boost" yaml:"dirty_boost"`
	ValidateBoost   float64 `mapstructure:"validate_boost" yaml:"validate_boost"`
	ImplementBoost  float64 `mapstructure:"implement_boost" yaml:"implement_boost"`
	ConfidenceFloor float64 `mapstructure:"confidence_floor" yaml:"confidence_floor"`
	ConfidenceCeil  float64 `mapstructure:"confidence_ceil" yaml:"confidence_ceil"`
	ConfidenceEmpty float64 `mapstructure:"confidence_empty" yaml:"confidence_empty"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// MCPConfig contains MCP server identity.
type MCPConfig struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Version string `mapstructure:"version" yaml:"version"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			IgnoreDirs: []string{
				".git", ".hg", ".svn",
				".venv", "venv", "__pycache__", ".pytest_cache", ".mypy_cache", "*.egg-info",
				"node_modules", "vendor",
				"dist", "build", "target",
			},
			TextExtensions: []string{
				".py", ".md", ".txt", ".toml", ".yaml", ".yml", ".json",
				".js", ".ts", ".tsx", ".html", ".css",
				".cpp", ".c", ".h", ".hpp", ".go", ".rs",
			},
			MaxFileSize: 2 << 20,
		},
		VCS: VCSConfig{
			Binary:  "git",
			Timeout: 2 * time.Second,
		},
		Limits: LimitsConfig{
			PreviewChars:    400,
			SnippetChars:    800,
			StatusLines:     50,
			FileList:        200,
			DefaultMaxChars: 6000,
		},
		Scoring: ScoringConfig{
			PathMatch:       3.0,
			PerOccurrence:   0.5,
			OccurrenceCap:   5.0,
			DefinitionBonus: 0.25,
			DebugBoost:      0.75,
			DirtyBoost:      0.25,
			ValidateBoost:   0.75,
			ImplementBoost:  0.5,
			ConfidenceFloor: 0.35,
			ConfidenceCeil:  0.95,
			ConfidenceEmpty: 0.25,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		MCP: MCPConfig{
			Name:    "grounded-coding-context",
			Version: "0.1.0",
		},
	}
}

// ConfigDir returns the path to the .grounded-context directory.
func ConfigDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".grounded-context")
}

// ConfigPath returns the path to config.yaml.
func ConfigPath(projectRoot string) string {
	return filepath.Join(ConfigDir(projectRoot), "config.yaml")
}

// Load loads configuration from file, falling back to defaults.
// Environment variables prefixed with GROUNDED_ override file values
// (e.g. GROUNDED_VCS_TIMEOUT=5s).
func Load(projectRoot string) (*Config, []string, error) {
	return LoadFile(ConfigPath(projectRoot))
}

// LoadFile loads configuration from an explicit path.
func LoadFile(configPath string) (*Config, []string, error) {
	cfg := DefaultConfig()
	warnings := []string{}

	v := viper.New()
	v.SetEnvPrefix("GROUNDED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDefaults(v, cfg)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		warnings = append(warnings, "No config file found, using defaults")
	} else {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults for missing values
	def := DefaultConfig()
	if len(cfg.Scan.TextExtensions) == 0 {
		cfg.Scan.TextExtensions = def.Scan.TextExtensions
		warnings = append(warnings, "Empty scan.text_extensions, using defaults")
	}
	if cfg.VCS.Binary == "" {
		cfg.VCS.Binary = def.VCS.Binary
	}
	if cfg.VCS.Timeout <= 0 {
		cfg.VCS.Timeout = def.VCS.Timeout
	}
	if cfg.Limits.DefaultMaxChars <= 0 {
		cfg.Limits.DefaultMaxChars = def.Limits.DefaultMaxChars
	}
	if cfg.MCP.Name == "" {
		cfg.MCP.Name = def.MCP.Name
	}

	return cfg, warnings, nil
}

// bindDefaults registers every key with viper so AutomaticEnv can see it.
func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("scan.ignore_dirs", cfg.Scan.IgnoreDirs)
	v.SetDefault("scan.text_extensions", cfg.Scan.TextExtensions)
	v.SetDefault("scan.max_file_size", cfg.Scan.MaxFileSize)
	v.SetDefault("vcs.binary", cfg.VCS.Binary)
	v.SetDefault("vcs.timeout", cfg.VCS.Timeout)
	v.SetDefault("limits.preview_chars", cfg.Limits.PreviewChars)
	v.SetDefault("limits.snippet_chars", cfg.Limits.SnippetChars)
	v.SetDefault("limits.status_lines", cfg.Limits.StatusLines)
	v.SetDefault("limits.file_list", cfg.Limits.FileList)
	v.SetDefault("limits.default_max_chars", cfg.Limits.DefaultMaxChars)
	v.SetDefault("scoring.path_match", cfg.Scoring.PathMatch)
	v.SetDefault("scoring.per_occurrence", cfg.Scoring.PerOccurrence)
	v.SetDefault("scoring.occurrence_cap", cfg.Scoring.OccurrenceCap)
	v.SetDefault("scoring.definition_bonus", cfg.Scoring.DefinitionBonus)
	v.SetDefault("scoring.debug_boost", cfg.Scoring.DebugBoost)
	v.SetDefault("scoring.dirty_boost", cfg.Scoring.DirtyBoost)
	v.SetDefault("scoring.validate_boost", cfg.Scoring.ValidateBoost)
	v.SetDefault("scoring.implement_boost", cfg.Scoring.ImplementBoost)
	v.SetDefault("scoring.confidence_floor", cfg.Scoring.ConfidenceFloor)
	v.SetDefault("scoring.confidence_ceil", cfg.Scoring.ConfidenceCeil)
	v.SetDefault("scoring.confidence_empty", cfg.Scoring.ConfidenceEmpty)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("mcp.name", cfg.MCP.Name)
	v.SetDefault("mcp.version", cfg.MCP.Version)
}

// Save saves configuration to file.
func Save(projectRoot string, cfg *Config) error {
	configDir := ConfigDir(projectRoot)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(ConfigPath(projectRoot))
	v.SetConfigType("yaml")

	v.Set("scan", cfg.Scan)
	v.Set("vcs", cfg.VCS)
	v.Set("limits", cfg.Limits)
	v.Set("scoring", cfg.Scoring)
	v.Set("logging", cfg.Logging)
	v.Set("mcp", cfg.MCP)

	return v.WriteConfig()
}

// Validate validates the configuration.
func Validate(cfg *Config) []error {
	var errs []error

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Errorf("%w: logging level %q", types.ErrInvalidConfig, cfg.Logging.Level))
	}

	validFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, fmt.Errorf("%w: logging format %q", types.ErrInvalidConfig, cfg.Logging.Format))
	}

	if cfg.VCS.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: vcs timeout must be positive", types.ErrInvalidConfig))
	}

	for _, ext := range cfg.Scan.TextExtensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("%w: text extension %q must start with '.'", types.ErrInvalidConfig, ext))
		}
	}

	limits := map[string]int{
		"preview_chars":     cfg.Limits.PreviewChars,
		"snippet_chars":     cfg.Limits.SnippetChars,
		"status_lines":      cfg.Limits.StatusLines,
		"file_list":         cfg.Limits.FileList,
		"default_max_chars": cfg.Limits.DefaultMaxChars,
	}
	for name, val := range limits {
		if val <= 0 {
			errs = append(errs, fmt.Errorf("%w: limits.%s must be positive", types.ErrInvalidConfig, name))
		}
	}

	s := cfg.Scoring
	if s.ConfidenceFloor > s.ConfidenceCeil {
		errs = append(errs, fmt.Errorf("%w: confidence_floor %.2f exceeds confidence_ceil %.2f", types.ErrInvalidConfig, s.ConfidenceFloor, s.ConfidenceCeil))
	}
	for name, w := range map[string]float64{
		"path_match": s.PathMatch, "per_occurrence": s.PerOccurrence, "occurrence_cap": s.OccurrenceCap,
		"definition_bonus": s.DefinitionBonus, "debug_boost": s.DebugBoost, "dirty_boost": s.DirtyBoost,
		"validate_boost": s.ValidateBoost, "implement_boost": s.ImplementBoost,
	} {
		if w < 0 {
			errs = append(errs, fmt.Errorf("%w: scoring.%s must not be negative", types.ErrInvalidConfig, name))
		}
	}

	return errs
}

// Check returns all Validate errors joined, or nil for a valid config.
func Check(cfg *Config) error {
	return errors.Join(Validate(cfg)...)
}

// Copy creates a deep copy of the config.
func (c *Config) Copy() *Config {
	cp := *c
	cp.Scan.IgnoreDirs = append([]string(nil), c.Scan.IgnoreDirs...)
	cp.Scan.TextExtensions = append([]string(nil), c.Scan.TextExtensions...)
	return &cp
}
