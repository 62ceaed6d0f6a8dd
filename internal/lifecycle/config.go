package lifecycle

import (
	"fmt"
	"time"
)

// Config holds the tunable lifecycle parameters. All fields are validated at
// the boundary; out-of-range overrides are rejected, not clamped.
type Config struct {
	DecayRate          float64 `json:"decay_rate"`
	ConsciousnessBoost float64 `json:"consciousness_boost"`
	RecentAccessBoost  float64 `json:"recent_access_boost"`

	LowImportanceThreshold float64 `json:"low_importance_threshold"`
	MinImportanceThreshold float64 `json:"min_importance_threshold"`
	MaxMemoryAgeDays       int     `json:"max_memory_age_days"`
	CleanupBatchSize       int     `json:"cleanup_batch_size"`

	SimilarityThreshold    float64       `json:"similarity_threshold"`
	ConsolidationBatchSize int           `json:"consolidation_batch_size"`
	ConsolidationInterval  time.Duration `json:"consolidation_interval"`
	ConsolidationMinAge    time.Duration `json:"consolidation_min_age"`

	MaintenanceInterval time.Duration `json:"maintenance_interval"`
	ErrorBackoff        time.Duration `json:"error_backoff"`
}

// DefaultConfig returns the standard lifecycle policy.
func DefaultConfig() Config {
	return Config{
		DecayRate:          0.95,
		ConsciousnessBoost: 1.5,
		RecentAccessBoost:  1.2,

		LowImportanceThreshold: 0.2,
		MinImportanceThreshold: 0.1,
		MaxMemoryAgeDays:       365,
		CleanupBatchSize:       1000,

		SimilarityThreshold:    0.85,
		ConsolidationBatchSize: 100,
		ConsolidationInterval:  168 * time.Hour,
		ConsolidationMinAge:    24 * time.Hour,

		MaintenanceInterval: time.Hour,
		ErrorBackoff:        5 * time.Minute,
	}
}

// Validate checks that every parameter is in range.
func (c Config) Validate() error {
	if c.DecayRate <= 0 || c.DecayRate > 1 {
		return fmt.Errorf("decay_rate %v out of (0,1]", c.DecayRate)
	}
	if c.LowImportanceThreshold < 0 || c.LowImportanceThreshold > 1 {
		return fmt.Errorf("low_importance_threshold %v out of [0,1]", c.LowImportanceThreshold)
	}
	if c.MinImportanceThreshold < 0 || c.MinImportanceThreshold > c.LowImportanceThreshold {
		return fmt.Errorf("min_importance_threshold %v out of [0,%v]", c.MinImportanceThreshold, c.LowImportanceThreshold)
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold %v out of (0,1]", c.SimilarityThreshold)
	}
	if c.MaxMemoryAgeDays <= 0 {
		return fmt.Errorf("max_memory_age_days %d must be positive", c.MaxMemoryAgeDays)
	}
	if c.CleanupBatchSize <= 0 || c.ConsolidationBatchSize <= 0 {
		return fmt.Errorf("batch sizes must be positive")
	}
	if c.MaintenanceInterval <= 0 {
		return fmt.Errorf("maintenance_interval must be positive")
	}
	return nil
}

// Apply merges runtime overrides into the config, rejecting unknown keys and
// out-of-range values. This is the setter surface exposed to the API layer.
func (c *Config) Apply(overrides map[string]any) error {
	next := *c
	for key, val := range overrides {
		switch key {
		case "decay_rate":
			f, ok := toFloat(val)
			if !ok {
				return fmt.Errorf("%s: not a number", key)
			}
			next.DecayRate = f
		case "low_importance_threshold":
			f, ok := toFloat(val)
			if !ok {
				return fmt.Errorf("%s: not a number", key)
			}
			next.LowImportanceThreshold = f
		case "min_importance_threshold":
			f, ok := toFloat(val)
			if !ok {
				return fmt.Errorf("%s: not a number", key)
			}
			next.MinImportanceThreshold = f
		case "similarity_threshold":
			f, ok := toFloat(val)
			if !ok {
				return fmt.Errorf("%s: not a number", key)
			}
			next.SimilarityThreshold = f
		case "max_memory_age_days":
			n, ok := toInt(val)
			if !ok {
				return fmt.Errorf("%s: not an integer", key)
			}
			next.MaxMemoryAgeDays = n
		case "cleanup_batch_size":
			n, ok := toInt(val)
			if !ok {
				return fmt.Errorf("%s: not an integer", key)
			}
			next.CleanupBatchSize = n
		case "consolidation_batch_size":
			n, ok := toInt(val)
			if !ok {
				return fmt.Errorf("%s: not an integer", key)
			}
			next.ConsolidationBatchSize = n
		default:
			return fmt.Errorf("unknown config key %q", key)
		}
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}
