package lifecycle

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mnemos-io/mnemos/internal/memory"
	"github.com/mnemos-io/mnemos/internal/store"
)

// fakeStore is an in-memory Store for engine tests. The mutex keeps it safe
// under the scheduler's background goroutine.
type fakeStore struct {
	mu       sync.Mutex
	memories map[string]*memory.Memory
	order    []string

	decayWrites    int
	frequencyStats map[string]float64
	archivedIDs    []string
	deletedIDs     []string
	mergeCalls     []store.Merge
	indexesEnsured bool

	candidatesErr error
	writeErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		memories:       make(map[string]*memory.Memory),
		frequencyStats: make(map[string]float64),
	}
}

func (f *fakeStore) add(m memory.Memory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := m
	f.memories[m.ID] = &clone
	f.order = append(f.order, m.ID)
}

func (f *fakeStore) live() []*memory.Memory {
	var out []*memory.Memory
	for _, id := range f.order {
		if m, ok := f.memories[id]; ok {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeStore) decayWriteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.decayWrites
}

func (f *fakeStore) ensured() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.indexesEnsured
}

func (f *fakeStore) DecayCandidates(ctx context.Context) ([]memory.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.candidatesErr != nil {
		return nil, f.candidatesErr
	}
	var out []memory.Memory
	for _, m := range f.live() {
		if !m.CreatedAt.IsZero() && !m.Archived {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) ApplyImportanceUpdates(ctx context.Context, updates []store.ImportanceUpdate, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.decayWrites++
	for _, u := range updates {
		if m, ok := f.memories[u.MemoryID]; ok {
			m.ImportanceScore = u.Importance
			m.LastDecayUpdate = now
		}
	}
	return nil
}

func (f *fakeStore) LowImportanceCandidates(ctx context.Context, below float64, limit int) ([]memory.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.candidatesErr != nil {
		return nil, f.candidatesErr
	}
	var out []memory.Memory
	for _, m := range f.live() {
		if m.Archived || m.Type == memory.TypeConsciousnessReflection {
			continue
		}
		if m.ImportanceScore < below {
			out = append(out, *m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ImportanceScore < out[j].ImportanceScore })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ArchiveMemories(ctx context.Context, ids []string, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	n := 0
	for _, id := range ids {
		if m, ok := f.memories[id]; ok {
			m.Archived = true
			m.ImportanceScore = 0
			f.archivedIDs = append(f.archivedIDs, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteMemories(ctx context.Context, ids []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	n := 0
	for _, id := range ids {
		if _, ok := f.memories[id]; ok {
			delete(f.memories, id)
			f.deletedIDs = append(f.deletedIDs, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ConsolidationCandidates(ctx context.Context, olderThan time.Time, limit int) ([]memory.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.candidatesErr != nil {
		return nil, f.candidatesErr
	}
	var out []memory.Memory
	for _, m := range f.live() {
		if m.Type != memory.TypeInteraction || m.Archived {
			continue
		}
		if m.CreatedAt.IsZero() || !m.CreatedAt.Before(olderThan) {
			continue
		}
		out = append(out, *m)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) MemoriesByUser(ctx context.Context, userID string, limit int) ([]memory.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []memory.Memory
	for _, m := range f.live() {
		if m.Archived {
			continue
		}
		if userID != "" && m.UserID != userID {
			continue
		}
		out = append(out, *m)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) MergeMemory(ctx context.Context, merge store.Merge, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.mergeCalls = append(f.mergeCalls, merge)
	if m, ok := f.memories[merge.BaseID]; ok {
		m.Content = merge.Content
		m.ImportanceScore = merge.Importance
		m.Consolidated = true
		m.ConsolidatedFromCount = merge.FromCount
	}
	return nil
}

func (f *fakeStore) AccessStats(ctx context.Context) ([]store.AccessStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.AccessStat
	for _, m := range f.live() {
		if m.Archived || m.CreatedAt.IsZero() {
			continue
		}
		out = append(out, store.AccessStat{
			MemoryID:           m.ID,
			AccessCount:        m.AccessCount,
			AccessFrequency:    m.AccessFrequency,
			ConsciousnessLevel: m.ConsciousnessLevel,
			SignificanceScore:  m.SignificanceScore,
			ImportanceScore:    m.ImportanceScore,
			CreatedAt:          m.CreatedAt,
		})
	}
	return out, nil
}

func (f *fakeStore) ApplyFrequencyUpdates(ctx context.Context, updates []store.FrequencyUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range updates {
		f.frequencyStats[u.MemoryID] = u.Frequency
		if m, ok := f.memories[u.MemoryID]; ok {
			m.AccessFrequency = u.Frequency
		}
	}
	return nil
}

func (f *fakeStore) StaleImportanceStats(ctx context.Context, before time.Time) ([]store.AccessStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.AccessStat
	for _, m := range f.live() {
		if m.Archived || m.CreatedAt.IsZero() {
			continue
		}
		if !m.LastImportanceUpdate.IsZero() && !m.LastImportanceUpdate.Before(before) {
			continue
		}
		out = append(out, store.AccessStat{
			MemoryID:           m.ID,
			AccessCount:        m.AccessCount,
			AccessFrequency:    m.AccessFrequency,
			ConsciousnessLevel: m.ConsciousnessLevel,
			SignificanceScore:  m.SignificanceScore,
			ImportanceScore:    m.ImportanceScore,
			CreatedAt:          m.CreatedAt,
		})
	}
	return out, nil
}

func (f *fakeStore) RecomputeImportance(ctx context.Context, updates []store.ImportanceUpdate, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range updates {
		if m, ok := f.memories[u.MemoryID]; ok {
			m.ImportanceScore = u.Importance
			m.LastImportanceUpdate = now
		}
	}
	return nil
}

func (f *fakeStore) EnsureIndexes(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexesEnsured = true
	return nil
}

// newTestService wires a Service to a fake store with a fixed clock.
func newTestService(fake *fakeStore, at time.Time) *Service {
	s := New(fake, DefaultConfig())
	s.now = func() time.Time { return at }
	return s
}
