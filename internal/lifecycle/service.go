// Package lifecycle keeps the memory graph healthy over time: importance
// decay, two-tier archival/deletion, similarity-based consolidation, and
// derived-score optimization, driven by a single background scheduler.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/mnemos-io/mnemos/internal/memory"
	"github.com/mnemos-io/mnemos/internal/store"
)

// Store is the repository surface the lifecycle engines need.
type Store interface {
	DecayCandidates(ctx context.Context) ([]memory.Memory, error)
	ApplyImportanceUpdates(ctx context.Context, updates []store.ImportanceUpdate, now time.Time) error

	LowImportanceCandidates(ctx context.Context, below float64, limit int) ([]memory.Memory, error)
	ArchiveMemories(ctx context.Context, ids []string, now time.Time) (int, error)
	DeleteMemories(ctx context.Context, ids []string) (int, error)

	ConsolidationCandidates(ctx context.Context, olderThan time.Time, limit int) ([]memory.Memory, error)
	MemoriesByUser(ctx context.Context, userID string, limit int) ([]memory.Memory, error)
	MergeMemory(ctx context.Context, merge store.Merge, now time.Time) error

	AccessStats(ctx context.Context) ([]store.AccessStat, error)
	ApplyFrequencyUpdates(ctx context.Context, updates []store.FrequencyUpdate) error
	StaleImportanceStats(ctx context.Context, before time.Time) ([]store.AccessStat, error)
	RecomputeImportance(ctx context.Context, updates []store.ImportanceUpdate, now time.Time) error
	EnsureIndexes(ctx context.Context) error
}

// State is the scheduler's lifecycle state.
type State int

const (
	Stopped State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// Service runs the lifecycle engines against a store. Construct once at
// process start and share by reference; Close stops the scheduler.
type Service struct {
	store Store
	now   func() time.Time

	mu     sync.Mutex
	cfg    Config
	state  State
	cancel context.CancelFunc
	done   chan struct{}

	lastCleanup       time.Time
	lastConsolidation time.Time
	lastOptimization  time.Time
}

// New creates a lifecycle service with the given policy.
func New(st Store, cfg Config) *Service {
	return &Service{
		store: st,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Config returns a snapshot of the current policy.
func (s *Service) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// UpdateConfig applies validated runtime overrides to the policy.
func (s *Service) UpdateConfig(overrides map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Apply(overrides)
}

// Status describes the scheduler and its last phase runs.
type Status struct {
	Active                bool      `json:"active"`
	LastCleanupTime       time.Time `json:"last_cleanup_time"`
	LastConsolidationTime time.Time `json:"last_consolidation_time"`
	LastOptimizationTime  time.Time `json:"last_optimization_time"`
	Config                Config    `json:"config"`
}

// Status returns the current lifecycle status.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Active:                s.state == Running,
		LastCleanupTime:       s.lastCleanup,
		LastConsolidationTime: s.lastConsolidation,
		LastOptimizationTime:  s.lastOptimization,
		Config:                s.cfg,
	}
}
