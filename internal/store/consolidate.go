package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mnemos-io/mnemos/internal/memory"
)

// Merge is the in-place update applied to the surviving memory of a
// consolidation group.
type Merge struct {
	BaseID     string
	Content    string
	Importance float64
	FromCount  int
}

// ConsolidationCandidates returns non-archived interaction memories created
// before the cutoff, embeddings included for similarity comparison.
func (s *Store) ConsolidationCandidates(ctx context.Context, olderThan time.Time, limit int) ([]memory.Memory, error) {
	records, err := s.client.Query(ctx, `
		MATCH (m:Memory)
		WHERE m.memoryType = $type
		  AND coalesce(m.archived, false) = false
		  AND m.createdAt IS NOT NULL AND m.createdAt < $cutoff
		RETURN `+memoryFields+`, m.embedding AS embedding
		ORDER BY m.createdAt ASC
		LIMIT $limit`,
		map[string]any{
			"type":   string(memory.TypeInteraction),
			"cutoff": memory.Millis(olderThan),
			"limit":  limit,
		})
	if err != nil {
		return nil, fmt.Errorf("consolidation candidates: %w", err)
	}
	return decodeMemories(records), nil
}

// MemoriesByUser returns a user's non-archived memories with embeddings,
// newest first, for read-only duplicate detection. An empty userID scans
// across users.
func (s *Store) MemoriesByUser(ctx context.Context, userID string, limit int) ([]memory.Memory, error) {
	records, err := s.client.Query(ctx, `
		MATCH (m:Memory)
		WHERE coalesce(m.archived, false) = false
		  AND ($userId = '' OR m.userId = $userId)
		RETURN `+memoryFields+`, m.embedding AS embedding
		ORDER BY m.createdAt DESC
		LIMIT $limit`,
		map[string]any{"userId": userID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("memories by user: %w", err)
	}
	return decodeMemories(records), nil
}

// MergeMemory updates the consolidation group's base record in place.
func (s *Store) MergeMemory(ctx context.Context, merge Merge, now time.Time) error {
	_, err := s.client.WriteQuery(ctx, `
		MATCH (m:Memory {memoryId: $id})
		SET m.content = $content,
		    m.importanceScore = $importance,
		    m.consolidated = true,
		    m.consolidatedFromCount = $fromCount,
		    m.lastImportanceUpdate = $now`,
		map[string]any{
			"id":         merge.BaseID,
			"content":    merge.Content,
			"importance": merge.Importance,
			"fromCount":  merge.FromCount,
			"now":        memory.Millis(now),
		})
	if err != nil {
		return fmt.Errorf("merge memory %s: %w", merge.BaseID, err)
	}
	return nil
}
