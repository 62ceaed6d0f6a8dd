package store

import (
	"context"
	"fmt"

	"github.com/mnemos-io/mnemos/internal/graph"
)

// PageFilter selects memories for a validation scan. Zero values mean "all".
type PageFilter struct {
	MemoryIDs []string
	UserID    string
	Skip      int
	Limit     int
}

// MemoryPage returns one page of raw memory property maps. Validation works
// on the raw values so type anomalies survive the trip; decoding to typed
// fields happens only after repair.
func (s *Store) MemoryPage(ctx context.Context, f PageFilter) ([]graph.Record, error) {
	ids := normalizeIDs(f.MemoryIDs)
	records, err := s.client.Query(ctx, `
		MATCH (m:Memory)
		WHERE (size($ids) = 0 OR m.memoryId IN $ids)
		  AND ($userId = '' OR m.userId = $userId)
		RETURN properties(m) AS props
		ORDER BY m.memoryId
		SKIP $skip LIMIT $limit`,
		map[string]any{
			"ids":    ids,
			"userId": f.UserID,
			"skip":   f.Skip,
			"limit":  f.Limit,
		})
	if err != nil {
		return nil, fmt.Errorf("memory page: %w", err)
	}

	pages := make([]graph.Record, 0, len(records))
	for _, rec := range records {
		props, ok := rec["props"].(map[string]any)
		if !ok {
			continue
		}
		pages = append(pages, graph.Record(props))
	}
	return pages, nil
}

// RepairMemory applies a set of field fixes to one memory in a single write.
func (s *Store) RepairMemory(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	_, err := s.client.WriteQuery(ctx, `
		MATCH (m:Memory {memoryId: $id})
		SET m += $fields`,
		map[string]any{"id": id, "fields": fields})
	if err != nil {
		return fmt.Errorf("repair memory %s: %w", id, err)
	}
	return nil
}

// normalizeIDs replaces nil ID slices with empty ones so Cypher size()
// checks behave.
func normalizeIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
