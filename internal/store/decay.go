package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mnemos-io/mnemos/internal/memory"
)

// ImportanceUpdate is one memory's new importance score, applied in a batch.
type ImportanceUpdate struct {
	MemoryID   string
	Importance float64
}

// DecayCandidates returns every non-archived memory that has a createdAt
// timestamp, the population the decay pass operates on.
func (s *Store) DecayCandidates(ctx context.Context) ([]memory.Memory, error) {
	records, err := s.client.Query(ctx, `
		MATCH (m:Memory)
		WHERE m.createdAt IS NOT NULL AND coalesce(m.archived, false) = false
		RETURN `+memoryFields, nil)
	if err != nil {
		return nil, fmt.Errorf("decay candidates: %w", err)
	}
	return decodeMemories(records), nil
}

// ApplyImportanceUpdates writes a batch of new importance scores in one
// statement so the store applies them atomically.
func (s *Store) ApplyImportanceUpdates(ctx context.Context, updates []ImportanceUpdate, now time.Time) error {
	if len(updates) == 0 {
		return nil
	}

	batch := make([]map[string]any, len(updates))
	for i, u := range updates {
		batch[i] = map[string]any{"id": u.MemoryID, "importance": u.Importance}
	}

	_, err := s.client.WriteQuery(ctx, `
		UNWIND $updates AS u
		MATCH (m:Memory {memoryId: u.id})
		SET m.importanceScore = u.importance, m.lastDecayUpdate = $now`,
		map[string]any{"updates": batch, "now": memory.Millis(now)})
	if err != nil {
		return fmt.Errorf("apply importance updates: %w", err)
	}
	return nil
}
