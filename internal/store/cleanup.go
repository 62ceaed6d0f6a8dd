package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mnemos-io/mnemos/internal/memory"
)

// LowImportanceCandidates returns non-archived memories below the given
// importance threshold, least important first. Consciousness reflections are
// never eligible for importance-based eviction and are excluded here.
func (s *Store) LowImportanceCandidates(ctx context.Context, below float64, limit int) ([]memory.Memory, error) {
	records, err := s.client.Query(ctx, `
		MATCH (m:Memory)
		WHERE coalesce(m.importanceScore, 0) < $below
		  AND coalesce(m.archived, false) = false
		  AND m.memoryType <> $exempt
		RETURN `+memoryFields+`
		ORDER BY m.importanceScore ASC
		LIMIT $limit`,
		map[string]any{
			"below":  below,
			"exempt": string(memory.TypeConsciousnessReflection),
			"limit":  limit,
		})
	if err != nil {
		return nil, fmt.Errorf("low importance candidates: %w", err)
	}
	return decodeMemories(records), nil
}

// ArchiveMemories soft-deletes the given memories: flagged, timestamped,
// importance zeroed. Returns the number archived.
func (s *Store) ArchiveMemories(ctx context.Context, ids []string, now time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	records, err := s.client.WriteQuery(ctx, `
		UNWIND $ids AS id
		MATCH (m:Memory {memoryId: id})
		SET m.archived = true, m.archivedAt = $now, m.importanceScore = 0.0
		RETURN count(m) AS n`,
		map[string]any{"ids": ids, "now": memory.Millis(now)})
	if err != nil {
		return 0, fmt.Errorf("archive memories: %w", err)
	}
	return singleCount(records, "n")
}

// DeleteMemories hard-deletes the given memories and detaches all of their
// relationships. Irreversible. Returns the number deleted.
func (s *Store) DeleteMemories(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	records, err := s.client.WriteQuery(ctx, `
		UNWIND $ids AS id
		MATCH (m:Memory {memoryId: id})
		DETACH DELETE m
		RETURN count(m) AS n`,
		map[string]any{"ids": ids})
	if err != nil {
		return 0, fmt.Errorf("delete memories: %w", err)
	}
	return singleCount(records, "n")
}
