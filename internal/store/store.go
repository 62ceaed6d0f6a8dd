// Package store is the typed repository over the graph client. Every Cypher
// statement in the system is built here with named parameters; callers work
// with decoded memory.Memory values or raw property maps, never statements.
package store

import (
	"context"
	"fmt"
	"log"

	"github.com/mnemos-io/mnemos/internal/graph"
	"github.com/mnemos-io/mnemos/internal/memory"
)

// Store executes memory queries against the graph client.
type Store struct {
	client graph.Client
}

// New creates a Store over the given client. Production wiring passes a
// *graph.Retrier so every statement gets the retry policy.
func New(client graph.Client) *Store {
	return &Store{client: client}
}

// decodeMemories converts flat records into Memory values, skipping records
// that cannot be decoded rather than failing the batch.
func decodeMemories(records []graph.Record) []memory.Memory {
	out := make([]memory.Memory, 0, len(records))
	for _, rec := range records {
		m, err := memory.FromRecord(rec)
		if err != nil {
			log.Printf("store: skipping undecodable record: %v", err)
			continue
		}
		out = append(out, *m)
	}
	return out
}

// memoryFields is the flat projection used by candidate queries. Embeddings
// are included only where similarity work needs them.
const memoryFields = `m.memoryId AS memoryId, m.content AS content, m.memoryType AS memoryType,
	m.userId AS userId, m.agentName AS agentName, m.emotionalState AS emotionalState,
	m.importanceScore AS importanceScore, m.consciousnessLevel AS consciousnessLevel,
	m.significanceScore AS significanceScore, m.accessCount AS accessCount,
	m.accessFrequency AS accessFrequency, m.decayRate AS decayRate,
	m.archived AS archived, m.consolidated AS consolidated,
	m.createdAt AS createdAt, m.lastAccessed AS lastAccessed,
	m.lastDecayUpdate AS lastDecayUpdate, m.lastImportanceUpdate AS lastImportanceUpdate`

// CountMemories returns the number of Memory nodes in the store.
func (s *Store) CountMemories(ctx context.Context) (int, error) {
	records, err := s.client.Query(ctx, `MATCH (m:Memory) RETURN count(m) AS n`, nil)
	if err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return singleCount(records, "n")
}

// MemoryExists reports whether a memory with the given ID is present.
func (s *Store) MemoryExists(ctx context.Context, id string) (bool, error) {
	records, err := s.client.Query(ctx,
		`MATCH (m:Memory {memoryId: $id}) RETURN count(m) AS n`,
		map[string]any{"id": id})
	if err != nil {
		return false, fmt.Errorf("memory exists: %w", err)
	}
	n, err := singleCount(records, "n")
	return n > 0, err
}

func singleCount(records []graph.Record, key string) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	n, ok := memory.AsInt(records[0][key])
	if !ok {
		return 0, fmt.Errorf("count result %q is not numeric", key)
	}
	return n, nil
}
