package lifecycle

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mnemos-io/mnemos/internal/memory"
	"github.com/mnemos-io/mnemos/internal/store"
)

// DecayResult summarizes one importance-decay pass.
type DecayResult struct {
	MemoriesProcessed int     `json:"memories_processed"`
	MemoriesUpdated   int     `json:"memories_updated"`
	AverageDecay      float64 `json:"average_decay"`
}

// consciousnessThreshold gates the consciousness boost in the decay formula.
const consciousnessThreshold = 0.7

// recentAccessWindow is how recently a memory must have been accessed to
// earn the recent-access boost.
const recentAccessWindow = 7 * 24 * time.Hour

// ApplyImportanceDecay recomputes every memory's importance from age, access
// pattern, and consciousness weight, then writes the changed scores in a
// single batch. Store errors abort the run and propagate.
func (s *Service) ApplyImportanceDecay(ctx context.Context) (DecayResult, error) {
	cfg := s.Config()
	now := s.now()

	candidates, err := s.store.DecayCandidates(ctx)
	if err != nil {
		return DecayResult{}, fmt.Errorf("fetch decay candidates: %w", err)
	}

	var result DecayResult
	var updates []store.ImportanceUpdate
	var totalDecay float64

	for i := range candidates {
		m := &candidates[i]
		result.MemoriesProcessed++

		decayed := decayedImportance(m, cfg, now)
		if decayed == m.ImportanceScore {
			continue
		}

		updates = append(updates, store.ImportanceUpdate{MemoryID: m.ID, Importance: decayed})
		totalDecay += m.ImportanceScore - decayed
	}

	if len(updates) > 0 {
		if err := s.store.ApplyImportanceUpdates(ctx, updates, now); err != nil {
			return DecayResult{}, fmt.Errorf("write decay batch: %w", err)
		}
	}

	result.MemoriesUpdated = len(updates)
	if result.MemoriesUpdated > 0 {
		result.AverageDecay = totalDecay / float64(result.MemoriesUpdated)
	}
	return result, nil
}

// decayedImportance applies the decay formula:
//
//	decayed = importance * decayRate^ageDays
//
// boosted by access count (capped at 1.5x), consciousness level above 0.7,
// and access within the last 7 days; the result is clamped to [0,1]. A
// memory with no age leaves its score unchanged.
func decayedImportance(m *memory.Memory, cfg Config, now time.Time) float64 {
	ageDays := m.AgeDays(now)
	if ageDays < 0 {
		return m.ImportanceScore
	}

	rate := m.EffectiveDecayRate(cfg.DecayRate)
	decayed := m.ImportanceScore * math.Pow(rate, float64(ageDays))

	if m.AccessCount > 0 {
		boost := 1 + float64(m.AccessCount)*0.1
		if boost > 1.5 {
			boost = 1.5
		}
		decayed *= boost
	}
	if m.ConsciousnessLevel > consciousnessThreshold {
		decayed *= cfg.ConsciousnessBoost
	}
	if !m.LastAccessed.IsZero() && now.Sub(m.LastAccessed) <= recentAccessWindow {
		decayed *= cfg.RecentAccessBoost
	}

	return memory.Clamp01(decayed)
}
