package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/mnemos-io/mnemos/internal/memory"
	"github.com/mnemos-io/mnemos/internal/store"
)

// OptimizationResult summarizes one optimization pass.
type OptimizationResult struct {
	FrequenciesRefreshed int `json:"frequencies_refreshed"`
	ImportanceRecomputed int `json:"importance_recomputed"`
	IndexesEnsured       bool `json:"indexes_ensured"`
}

// importanceStaleAfter is how old a lastImportanceUpdate may be before the
// optimization pass recomputes the score.
const importanceStaleAfter = 24 * time.Hour

// Optimize refreshes derived statistics: access frequency from access counts
// and age, importance for memories with stale scores, and the store indexes
// the maintenance queries rely on.
func (s *Service) Optimize(ctx context.Context) (OptimizationResult, error) {
	now := s.now()
	var result OptimizationResult

	stats, err := s.store.AccessStats(ctx)
	if err != nil {
		return result, fmt.Errorf("fetch access stats: %w", err)
	}

	var freqUpdates []store.FrequencyUpdate
	for _, st := range stats {
		freq := accessFrequency(st, now)
		if freq == st.AccessFrequency {
			continue
		}
		freqUpdates = append(freqUpdates, store.FrequencyUpdate{MemoryID: st.MemoryID, Frequency: freq})
	}
	if err := s.store.ApplyFrequencyUpdates(ctx, freqUpdates); err != nil {
		return result, fmt.Errorf("write frequency batch: %w", err)
	}
	result.FrequenciesRefreshed = len(freqUpdates)

	stale, err := s.store.StaleImportanceStats(ctx, now.Add(-importanceStaleAfter))
	if err != nil {
		return result, fmt.Errorf("fetch stale importance stats: %w", err)
	}

	var impUpdates []store.ImportanceUpdate
	for _, st := range stale {
		score := recomputedImportance(st, now)
		impUpdates = append(impUpdates, store.ImportanceUpdate{MemoryID: st.MemoryID, Importance: score})
	}
	if err := s.store.RecomputeImportance(ctx, impUpdates, now); err != nil {
		return result, fmt.Errorf("write importance batch: %w", err)
	}
	result.ImportanceRecomputed = len(impUpdates)

	if err := s.store.EnsureIndexes(ctx); err != nil {
		return result, fmt.Errorf("ensure indexes: %w", err)
	}
	result.IndexesEnsured = true

	s.mu.Lock()
	s.lastOptimization = now
	s.mu.Unlock()

	return result, nil
}

// accessFrequency derives accesses per day of lifetime, with a one-day floor
// so young memories are not over-weighted.
func accessFrequency(st store.AccessStat, now time.Time) float64 {
	if st.CreatedAt.IsZero() || st.AccessCount == 0 {
		return 0
	}
	ageDays := now.Sub(st.CreatedAt).Hours() / 24
	if ageDays < 1 {
		ageDays = 1
	}
	return float64(st.AccessCount) / ageDays
}

// recomputedImportance blends significance, consciousness weight, and
// normalized access frequency.
func recomputedImportance(st store.AccessStat, now time.Time) float64 {
	freqNorm := accessFrequency(st, now) / 10
	if freqNorm > 1 {
		freqNorm = 1
	}
	score := 0.4*st.SignificanceScore + 0.3*st.ConsciousnessLevel + 0.3*freqNorm
	return memory.Clamp01(score)
}
