package lifecycle

import (
	"context"
	"fmt"
	"log"
)

// CleanupStats summarizes one cleanup pass.
type CleanupStats struct {
	TotalProcessed        int     `json:"total_processed"`
	Archived              int     `json:"archived"`
	Deleted               int     `json:"deleted"`
	StorageFreedMB        float64 `json:"storage_freed_mb"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
}

// CleanupLowImportanceMemories partitions low-importance memories into
// archive and delete tiers. Archival is the default outcome; deletion is
// reserved for memories that are catastrophically unimportant or both
// unimportant and old. Consciousness reflections are excluded at the query.
func (s *Service) CleanupLowImportanceMemories(ctx context.Context) (CleanupStats, error) {
	cfg := s.Config()
	now := s.now()
	start := now

	candidates, err := s.store.LowImportanceCandidates(ctx, cfg.LowImportanceThreshold, cfg.CleanupBatchSize)
	if err != nil {
		return CleanupStats{}, fmt.Errorf("fetch cleanup candidates: %w", err)
	}

	var toDelete, toArchive []string
	var freedBytes int
	for i := range candidates {
		m := &candidates[i]
		if m.ImportanceScore < cfg.MinImportanceThreshold || m.AgeDays(now) > cfg.MaxMemoryAgeDays {
			toDelete = append(toDelete, m.ID)
			freedBytes += len(m.Content)
		} else {
			toArchive = append(toArchive, m.ID)
		}
	}

	stats := CleanupStats{TotalProcessed: len(candidates)}

	if len(toArchive) > 0 {
		n, err := s.store.ArchiveMemories(ctx, toArchive, now)
		if err != nil {
			return stats, fmt.Errorf("archive batch: %w", err)
		}
		stats.Archived = n
	}
	if len(toDelete) > 0 {
		n, err := s.store.DeleteMemories(ctx, toDelete)
		if err != nil {
			return stats, fmt.Errorf("delete batch: %w", err)
		}
		stats.Deleted = n
	}

	stats.StorageFreedMB = float64(freedBytes) / (1024 * 1024)
	stats.ProcessingTimeSeconds = s.now().Sub(start).Seconds()

	s.mu.Lock()
	s.lastCleanup = now
	s.mu.Unlock()

	if stats.Archived > 0 || stats.Deleted > 0 {
		log.Printf("cleanup: archived %d, deleted %d of %d candidates",
			stats.Archived, stats.Deleted, stats.TotalProcessed)
	}
	return stats, nil
}
