package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mnemos-io/mnemos/internal/graph"
	"github.com/mnemos-io/mnemos/internal/memory"
)

// BackupMemories copies matching memories' full field sets into shadow
// :MemoryBackup nodes tagged with the backup name and timestamp. Returns the
// number of shadow records created.
func (s *Store) BackupMemories(ctx context.Context, name string, at time.Time, userID string, types []string) (int, error) {
	records, err := s.client.WriteQuery(ctx, `
		MATCH (m:Memory)
		WHERE ($userId = '' OR m.userId = $userId)
		  AND (size($types) = 0 OR m.memoryType IN $types)
		CREATE (b:MemoryBackup)
		SET b = properties(m),
		    b.backupName = $name,
		    b.backupTimestamp = $at,
		    b.originalMemoryId = m.memoryId
		RETURN count(b) AS n`,
		map[string]any{
			"userId": userID,
			"types":  normalizeIDs(types),
			"name":   name,
			"at":     memory.Millis(at),
		})
	if err != nil {
		return 0, fmt.Errorf("backup memories: %w", err)
	}
	return singleCount(records, "n")
}

// PruneBackups deletes shadow records older than the cutoff. Returns the
// number removed.
func (s *Store) PruneBackups(ctx context.Context, olderThan time.Time) (int, error) {
	records, err := s.client.WriteQuery(ctx, `
		MATCH (b:MemoryBackup)
		WHERE b.backupTimestamp < $cutoff
		DETACH DELETE b
		RETURN count(b) AS n`,
		map[string]any{"cutoff": memory.Millis(olderThan)})
	if err != nil {
		return 0, fmt.Errorf("prune backups: %w", err)
	}
	return singleCount(records, "n")
}

// BackupRecords returns the raw property maps of a backup's shadow records,
// optionally narrowed to specific original memory IDs.
func (s *Store) BackupRecords(ctx context.Context, name string, memoryIDs []string) ([]graph.Record, error) {
	records, err := s.client.Query(ctx, `
		MATCH (b:MemoryBackup {backupName: $name})
		WHERE size($ids) = 0 OR b.originalMemoryId IN $ids
		RETURN properties(b) AS props`,
		map[string]any{"name": name, "ids": normalizeIDs(memoryIDs)})
	if err != nil {
		return nil, fmt.Errorf("backup records: %w", err)
	}

	out := make([]graph.Record, 0, len(records))
	for _, rec := range records {
		props, ok := rec["props"].(map[string]any)
		if !ok {
			continue
		}
		out = append(out, graph.Record(props))
	}
	return out, nil
}

// RestoreMemory upserts a real Memory node from a backup's field set.
func (s *Store) RestoreMemory(ctx context.Context, id string, props map[string]any) error {
	_, err := s.client.WriteQuery(ctx, `
		MERGE (m:Memory {memoryId: $id})
		SET m = $props, m.memoryId = $id`,
		map[string]any{"id": id, "props": props})
	if err != nil {
		return fmt.Errorf("restore memory %s: %w", id, err)
	}
	return nil
}
