// Package config provides the Config struct and loader for .clinsight.yaml
// project-level configuration files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default values for configuration. These are the single source of truth —
// New() references them and no other code should duplicate them.
const (
	DefaultDatabasePath = "clinsight.db"

	DefaultReasoningEndpoint = "http://localhost:8090"
	DefaultReasoningTimeout  = 120

	DefaultRetryMaxTries  = 3
	DefaultRetryBaseDelay = 2

	DefaultStageTimeout = 300
	DefaultRunBudget    = 900

	DefaultMaxPriorSessions = 5
	DefaultTrendWindowDays  = 90

	DefaultServerPort = 3000
)

// DatabaseConfig holds storage settings.
type DatabaseConfig struct {
	Path string `yaml:"path,omitempty"`
}

// ReasoningConfig holds settings for the inference backend.
type ReasoningConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"`
	Timeout  int    `yaml:"timeout,omitempty"`
	Local    *bool  `yaml:"local,omitempty"`
}

// RetryConfig holds per-stage retry settings. Delays are in seconds;
// MaxTries counts total attempts, not re-attempts.
type RetryConfig struct {
	MaxTries  int `yaml:"max_tries,omitempty"`
	BaseDelay int `yaml:"base_delay,omitempty"`
}

// PipelineConfig holds pipeline execution budgets, in seconds.
type PipelineConfig struct {
	StageTimeout int `yaml:"stage_timeout,omitempty"`
	RunBudget    int `yaml:"run_budget,omitempty"`
}

// HistoryConfig holds patient-history assembly bounds.
type HistoryConfig struct {
	MaxPriorSessions int `yaml:"max_prior_sessions,omitempty"`
	TrendWindowDays  int `yaml:"trend_window_days,omitempty"`
}

// ServerConfig holds status API server settings.
type ServerConfig struct {
	Port int `yaml:"port,omitempty"`
}

// Config is the top-level configuration loaded from .clinsight.yaml.
type Config struct {
	Database  DatabaseConfig  `yaml:"database,omitempty"`
	Reasoning ReasoningConfig `yaml:"reasoning,omitempty"`
	Retry     RetryConfig     `yaml:"retry,omitempty"`
	Pipeline  PipelineConfig  `yaml:"pipeline,omitempty"`
	History   HistoryConfig   `yaml:"history,omitempty"`
	Server    ServerConfig    `yaml:"server,omitempty"`
}

// New returns a Config with all hard-coded defaults populated.
func New() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: DefaultDatabasePath,
		},
		Reasoning: ReasoningConfig{
			Endpoint: DefaultReasoningEndpoint,
			Timeout:  DefaultReasoningTimeout,
			Local:    boolPtr(false),
		},
		Retry: RetryConfig{
			MaxTries:  DefaultRetryMaxTries,
			BaseDelay: DefaultRetryBaseDelay,
		},
		Pipeline: PipelineConfig{
			StageTimeout: DefaultStageTimeout,
			RunBudget:    DefaultRunBudget,
		},
		History: HistoryConfig{
			MaxPriorSessions: DefaultMaxPriorSessions,
			TrendWindowDays:  DefaultTrendWindowDays,
		},
		Server: ServerConfig{
			Port: DefaultServerPort,
		},
	}
}

// Load finds .clinsight.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*Config, error) {
	cfg := New()

	data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // no file found → return defaults
		}
		return nil, fmt.Errorf("loading .clinsight.yaml: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing .clinsight.yaml: %w", err)
	}

	mergeConfig(cfg, &fileCfg)
	return cfg, nil
}

// findConfigFile walks up from dir looking for .clinsight.yaml (max 10
// levels). Returns os.ErrNotExist if no config file is found. Propagates
// real I/O errors (e.g. permission denied) instead of silently swallowing
// them.
func findConfigFile(dir string) ([]byte, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, ".clinsight.yaml")
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *Config) {
	if src.Database.Path != "" {
		dst.Database.Path = src.Database.Path
	}

	if src.Reasoning.Endpoint != "" {
		dst.Reasoning.Endpoint = src.Reasoning.Endpoint
	}
	if src.Reasoning.Timeout != 0 {
		dst.Reasoning.Timeout = src.Reasoning.Timeout
	}
	if src.Reasoning.Local != nil {
		dst.Reasoning.Local = src.Reasoning.Local
	}

	if src.Retry.MaxTries != 0 {
		dst.Retry.MaxTries = src.Retry.MaxTries
	}
	if src.Retry.BaseDelay != 0 {
		dst.Retry.BaseDelay = src.Retry.BaseDelay
	}

	if src.Pipeline.StageTimeout != 0 {
		dst.Pipeline.StageTimeout = src.Pipeline.StageTimeout
	}
	if src.Pipeline.RunBudget != 0 {
		dst.Pipeline.RunBudget = src.Pipeline.RunBudget
	}

	if src.History.MaxPriorSessions != 0 {
		dst.History.MaxPriorSessions = src.History.MaxPriorSessions
	}
	if src.History.TrendWindowDays != 0 {
		dst.History.TrendWindowDays = src.History.TrendWindowDays
	}

	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}
}

func boolPtr(b bool) *bool { return &b }
