// Package recovery implements the data-integrity side of the memory store:
// validation scans, auto-repair, and backup/restore against shadow records.
// Operations run synchronously on the caller's goroutine and are audited in
// a bounded in-memory history.
package recovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mnemos-io/mnemos/internal/graph"
	"github.com/mnemos-io/mnemos/internal/store"
)

// Config bounds recovery work. Zero values are replaced by defaults.
type Config struct {
	// AutoFixMaxIssues caps how many issues one repair run will fix.
	AutoFixMaxIssues int
	// BackupRetentionDays is how long shadow backup records are kept.
	BackupRetentionDays int
	// HistoryLimit bounds the in-memory operation history.
	HistoryLimit int
	// BatchSize is the validation scan page size.
	BatchSize int
}

// DefaultConfig returns the recovery defaults.
func DefaultConfig() Config {
	return Config{
		AutoFixMaxIssues:    50,
		BackupRetentionDays: 30,
		HistoryLimit:        100,
		BatchSize:           100,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.AutoFixMaxIssues <= 0 {
		c.AutoFixMaxIssues = d.AutoFixMaxIssues
	}
	if c.BackupRetentionDays <= 0 {
		c.BackupRetentionDays = d.BackupRetentionDays
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = d.HistoryLimit
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
}

// Apply merges runtime overrides into the config, rejecting unknown keys and
// non-positive values. HistoryLimit is fixed at construction.
func (c *Config) Apply(overrides map[string]any) error {
	next := *c
	targets := map[string]*int{
		"auto_fix_max_issues":   &next.AutoFixMaxIssues,
		"backup_retention_days": &next.BackupRetentionDays,
		"validation_batch_size": &next.BatchSize,
	}
	for key, val := range overrides {
		target, ok := targets[key]
		if !ok {
			return fmt.Errorf("unknown config key %q", key)
		}
		n, ok := toCount(val)
		if !ok {
			return fmt.Errorf("%s: not a positive integer", key)
		}
		*target = n
	}
	*c = next
	return nil
}

// toCount coerces a JSON number to a positive integer.
func toCount(v any) (int, bool) {
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int64:
		n = int(x)
	case float64:
		if x != float64(int(x)) {
			return 0, false
		}
		n = int(x)
	default:
		return 0, false
	}
	return n, n > 0
}

// Store is the slice of the persistence layer the recovery engines need.
// *store.Store satisfies it.
type Store interface {
	MemoryPage(ctx context.Context, f store.PageFilter) ([]graph.Record, error)
	RepairMemory(ctx context.Context, id string, fields map[string]any) error
	BackupMemories(ctx context.Context, name string, at time.Time, userID string, types []string) (int, error)
	PruneBackups(ctx context.Context, olderThan time.Time) (int, error)
	BackupRecords(ctx context.Context, name string, memoryIDs []string) ([]graph.Record, error)
	RestoreMemory(ctx context.Context, id string, props map[string]any) error
	MemoryExists(ctx context.Context, id string) (bool, error)
}

// Service runs validation, repair, backup, and restore.
type Service struct {
	store Store
	hist  *history
	now   func() time.Time

	mu  sync.Mutex
	cfg Config
}

// New builds a recovery service over the given store.
func New(st Store, cfg Config) *Service {
	cfg.applyDefaults()
	return &Service{
		store: st,
		cfg:   cfg,
		hist:  newHistory(cfg.HistoryLimit),
		now:   time.Now,
	}
}

// Operations returns the audit history, most recent first.
func (s *Service) Operations() []RecoveryOperation {
	return s.hist.snapshot()
}

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// UpdateConfig applies validated runtime overrides to the recovery bounds.
func (s *Service) UpdateConfig(overrides map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Apply(overrides)
}

// RecoveryStatus summarizes the recovery subsystem for the admin surface.
type RecoveryStatus struct {
	ActiveOperations    int `json:"active_operations"`
	HistorySize         int `json:"history_size"`
	AutoFixMaxIssues    int `json:"auto_fix_max_issues"`
	BackupRetentionDays int `json:"backup_retention_days"`
	BatchSize           int `json:"batch_size"`
}

// Status reports current recovery state and configuration.
func (s *Service) Status() RecoveryStatus {
	cfg := s.config()
	return RecoveryStatus{
		ActiveOperations:    s.hist.activeCount(),
		HistorySize:         s.hist.size(),
		AutoFixMaxIssues:    cfg.AutoFixMaxIssues,
		BackupRetentionDays: cfg.BackupRetentionDays,
		BatchSize:           cfg.BatchSize,
	}
}
