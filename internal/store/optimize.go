package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mnemos-io/mnemos/internal/graph"
	"github.com/mnemos-io/mnemos/internal/memory"
)

// AccessStat is the slice of a memory needed to recompute derived scores.
type AccessStat struct {
	MemoryID           string
	AccessCount        int
	AccessFrequency    float64
	ConsciousnessLevel float64
	SignificanceScore  float64
	ImportanceScore    float64
	CreatedAt          time.Time
}

// FrequencyUpdate carries a recomputed access frequency.
type FrequencyUpdate struct {
	MemoryID  string
	Frequency float64
}

const accessStatFields = `m.memoryId AS memoryId, m.accessCount AS accessCount,
	m.accessFrequency AS accessFrequency,
	m.consciousnessLevel AS consciousnessLevel,
	m.significanceScore AS significanceScore,
	m.importanceScore AS importanceScore,
	m.createdAt AS createdAt`

func decodeAccessStats(records []graph.Record) []AccessStat {
	stats := make([]AccessStat, 0, len(records))
	for _, rec := range records {
		id, ok := memory.AsString(rec["memoryId"])
		if !ok || id == "" {
			continue
		}
		var st AccessStat
		st.MemoryID = id
		st.AccessCount, _ = memory.AsInt(rec["accessCount"])
		st.AccessFrequency, _ = memory.AsFloat(rec["accessFrequency"])
		st.ConsciousnessLevel, _ = memory.AsFloat(rec["consciousnessLevel"])
		st.SignificanceScore, _ = memory.AsFloat(rec["significanceScore"])
		st.ImportanceScore, _ = memory.AsFloat(rec["importanceScore"])
		st.CreatedAt, _ = memory.AsTime(rec["createdAt"])
		stats = append(stats, st)
	}
	return stats
}

// AccessStats returns the scoring fields for all non-archived memories.
func (s *Store) AccessStats(ctx context.Context) ([]AccessStat, error) {
	records, err := s.client.Query(ctx, `
		MATCH (m:Memory)
		WHERE coalesce(m.archived, false) = false AND m.createdAt IS NOT NULL
		RETURN `+accessStatFields, nil)
	if err != nil {
		return nil, fmt.Errorf("access stats: %w", err)
	}
	return decodeAccessStats(records), nil
}

// ApplyFrequencyUpdates writes recomputed access frequencies in one batch.
func (s *Store) ApplyFrequencyUpdates(ctx context.Context, updates []FrequencyUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	batch := make([]map[string]any, len(updates))
	for i, u := range updates {
		batch[i] = map[string]any{"id": u.MemoryID, "frequency": u.Frequency}
	}
	_, err := s.client.WriteQuery(ctx, `
		UNWIND $updates AS u
		MATCH (m:Memory {memoryId: u.id})
		SET m.accessFrequency = u.frequency`,
		map[string]any{"updates": batch})
	if err != nil {
		return fmt.Errorf("apply frequency updates: %w", err)
	}
	return nil
}

// StaleImportanceStats returns scoring fields for memories whose importance
// has not been recomputed since the cutoff.
func (s *Store) StaleImportanceStats(ctx context.Context, before time.Time) ([]AccessStat, error) {
	records, err := s.client.Query(ctx, `
		MATCH (m:Memory)
		WHERE coalesce(m.archived, false) = false AND m.createdAt IS NOT NULL
		  AND (m.lastImportanceUpdate IS NULL OR m.lastImportanceUpdate < $before)
		RETURN `+accessStatFields,
		map[string]any{"before": memory.Millis(before)})
	if err != nil {
		return nil, fmt.Errorf("stale importance stats: %w", err)
	}
	return decodeAccessStats(records), nil
}

// RecomputeImportance writes recomputed importance scores with a fresh
// lastImportanceUpdate stamp.
func (s *Store) RecomputeImportance(ctx context.Context, updates []ImportanceUpdate, now time.Time) error {
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
		SET m.importanceScore = u.importance, m.lastImportanceUpdate = $now`,
		map[string]any{"updates": batch, "now": memory.Millis(now)})
	if err != nil {
		return fmt.Errorf("recompute importance: %w", err)
	}
	return nil
}

// indexStatements are idempotent; the store ignores already-existing indexes.
var indexStatements = []string{
	`CREATE INDEX memory_id IF NOT EXISTS FOR (m:Memory) ON (m.memoryId)`,
	`CREATE INDEX memory_user IF NOT EXISTS FOR (m:Memory) ON (m.userId)`,
	`CREATE INDEX memory_importance IF NOT EXISTS FOR (m:Memory) ON (m.importanceScore)`,
	`CREATE INDEX memory_type IF NOT EXISTS FOR (m:Memory) ON (m.memoryType)`,
	`CREATE INDEX backup_name IF NOT EXISTS FOR (b:MemoryBackup) ON (b.backupName)`,
}

// EnsureIndexes creates the store indexes the maintenance queries rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for _, stmt := range indexStatements {
		if _, err := s.client.WriteQuery(ctx, stmt, nil); err != nil {
			return fmt.Errorf("ensure index: %w", err)
		}
	}
	return nil
}
