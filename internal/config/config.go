// Package config holds mnemos configuration: TOML file, environment
// overrides, and conversion into the per-subsystem config types.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mnemos-io/mnemos/internal/graph"
	"github.com/mnemos-io/mnemos/internal/lifecycle"
	"github.com/mnemos-io/mnemos/internal/recovery"
)

// Config holds all mnemos configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Graph     GraphConfig     `toml:"graph"`
	Retry     RetryConfig     `toml:"retry"`
	Lifecycle LifecycleConfig `toml:"lifecycle"`
	Recovery  RecoveryConfig  `toml:"recovery"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type GraphConfig struct {
	URI      string `toml:"uri"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

type RetryConfig struct {
	MaxAttempts    int `toml:"max_attempts"`
	BaseDelayMS    int `toml:"base_delay_ms"`
	MaxDelayMS     int `toml:"max_delay_ms"`
	AttemptTimeout int `toml:"attempt_timeout_seconds"`
}

type LifecycleConfig struct {
	DecayRate              float64 `toml:"decay_rate"`
	LowImportanceThreshold float64 `toml:"low_importance_threshold"`
	MinImportanceThreshold float64 `toml:"min_importance_threshold"`
	MaxMemoryAgeDays       int     `toml:"max_memory_age_days"`
	CleanupBatchSize       int     `toml:"cleanup_batch_size"`
	SimilarityThreshold    float64 `toml:"similarity_threshold"`
	ConsolidationBatchSize int     `toml:"consolidation_batch_size"`
	MaintenanceMinutes     int     `toml:"maintenance_minutes"`
}

type RecoveryConfig struct {
	AutoFixMaxIssues    int `toml:"auto_fix_max_issues"`
	BackupRetentionDays int `toml:"backup_retention_days"`
	HistoryLimit        int `toml:"history_limit"`
	BatchSize           int `toml:"batch_size"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37740,
		},
		Graph: GraphConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
	}
}

// Load reads a TOML config file over the defaults and applies environment
// overrides. A missing file is not an error; the defaults stand.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return cfg, fmt.Errorf("load config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv layers environment variables over the file values. The store
// credentials follow the driver's conventional names so deployments can
// share them with other tooling.
func (c *Config) applyEnv() {
	if v := os.Getenv("NEO4J_URI"); v != "" {
		c.Graph.URI = v
	}
	if v := os.Getenv("NEO4J_USERNAME"); v != "" {
		c.Graph.Username = v
	}
	if v := os.Getenv("NEO4J_PASSWORD"); v != "" {
		c.Graph.Password = v
	}
	if v := os.Getenv("NEO4J_DATABASE"); v != "" {
		c.Graph.Database = v
	}
	if v := os.Getenv("MNEMOS_BIND"); v != "" {
		c.Server.Bind = v
	}
	if v := os.Getenv("MNEMOS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Server.Port = n
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Graph.URI == "" {
		return fmt.Errorf("graph uri is required")
	}
	return c.LifecycleConfig().Validate()
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// RetryConfig converts the file values into the retry wrapper's config.
// Unset fields fall back to the wrapper's defaults.
func (c *Config) RetryConfig() graph.RetryConfig {
	return graph.RetryConfig{
		MaxAttempts:    c.Retry.MaxAttempts,
		BaseDelay:      time.Duration(c.Retry.BaseDelayMS) * time.Millisecond,
		MaxDelay:       time.Duration(c.Retry.MaxDelayMS) * time.Millisecond,
		AttemptTimeout: time.Duration(c.Retry.AttemptTimeout) * time.Second,
	}
}

// LifecycleConfig converts the file values into the lifecycle policy,
// keeping the defaults for anything unset.
func (c *Config) LifecycleConfig() lifecycle.Config {
	out := lifecycle.DefaultConfig()
	if c.Lifecycle.DecayRate > 0 {
		out.DecayRate = c.Lifecycle.DecayRate
	}
	if c.Lifecycle.LowImportanceThreshold > 0 {
		out.LowImportanceThreshold = c.Lifecycle.LowImportanceThreshold
	}
	if c.Lifecycle.MinImportanceThreshold > 0 {
		out.MinImportanceThreshold = c.Lifecycle.MinImportanceThreshold
	}
	if c.Lifecycle.MaxMemoryAgeDays > 0 {
		out.MaxMemoryAgeDays = c.Lifecycle.MaxMemoryAgeDays
	}
	if c.Lifecycle.CleanupBatchSize > 0 {
		out.CleanupBatchSize = c.Lifecycle.CleanupBatchSize
	}
	if c.Lifecycle.SimilarityThreshold > 0 {
		out.SimilarityThreshold = c.Lifecycle.SimilarityThreshold
	}
	if c.Lifecycle.ConsolidationBatchSize > 0 {
		out.ConsolidationBatchSize = c.Lifecycle.ConsolidationBatchSize
	}
	if c.Lifecycle.MaintenanceMinutes > 0 {
		out.MaintenanceInterval = time.Duration(c.Lifecycle.MaintenanceMinutes) * time.Minute
	}
	return out
}

// RecoveryConfig converts the file values into the recovery config. Zeroes
// are filled by the recovery package's own defaults.
func (c *Config) RecoveryConfig() recovery.Config {
	return recovery.Config{
		AutoFixMaxIssues:    c.Recovery.AutoFixMaxIssues,
		BackupRetentionDays: c.Recovery.BackupRetentionDays,
		HistoryLimit:        c.Recovery.HistoryLimit,
		BatchSize:           c.Recovery.BatchSize,
	}
}
