// Package memory defines the typed Memory entity and the decoding step that
// turns raw store records into typed fields at the client boundary.
package memory

import (
	"fmt"
	"time"
)

// Type classifies a memory record.
type Type string

const (
	TypeInteraction             Type = "interaction"
	TypeReflection              Type = "reflection"
	TypeInsight                 Type = "insight"
	TypeConceptLearning         Type = "concept_learning"
	TypeConsciousnessReflection Type = "consciousness_reflection"
	TypeEvolution               Type = "evolution"
)

// DefaultType is the canonical fallback when a record carries an unknown type.
const DefaultType = TypeInteraction

var validTypes = map[Type]bool{
	TypeInteraction:             true,
	TypeReflection:              true,
	TypeInsight:                 true,
	TypeConceptLearning:         true,
	TypeConsciousnessReflection: true,
	TypeEvolution:               true,
}

// Valid reports whether t is a known memory type.
func (t Type) Valid() bool { return validTypes[t] }

// DefaultDecayRate is the per-day importance decay factor applied to
// memories that carry none of their own.
const DefaultDecayRate = 0.95

// Memory is the unit of persisted knowledge. Timestamps are stored in the
// graph as epoch milliseconds; zero time means the field is absent.
type Memory struct {
	ID        string
	Content   string
	Type      Type
	Embedding []float64

	UserID         string
	AgentName      string
	EmotionalState string

	ImportanceScore    float64
	ConsciousnessLevel float64
	SignificanceScore  float64
	AccessCount        int
	AccessFrequency    float64
	DecayRate          float64

	Archived              bool
	Consolidated          bool
	ConsolidatedFromCount int

	CreatedAt            time.Time
	LastAccessed         time.Time
	LastDecayUpdate      time.Time
	LastImportanceUpdate time.Time
	LastRepair           time.Time
	RestoredFromBackup   string
	RestoredAt           time.Time
}

// AgeDays returns the whole days elapsed since the memory was created, or
// -1 if CreatedAt is absent.
func (m *Memory) AgeDays(now time.Time) int {
	if m.CreatedAt.IsZero() {
		return -1
	}
	return int(now.Sub(m.CreatedAt).Hours() / 24)
}

// EffectiveDecayRate returns the memory's decay rate when it is in (0,1],
// otherwise the given fallback, otherwise DefaultDecayRate.
func (m *Memory) EffectiveDecayRate(fallback float64) float64 {
	if m.DecayRate > 0 && m.DecayRate <= 1 {
		return m.DecayRate
	}
	if fallback > 0 && fallback <= 1 {
		return fallback
	}
	return DefaultDecayRate
}

// FromRecord decodes a raw store record into a Memory. Decoding is lenient
// about numeric and timestamp representations; only a missing memoryId is
// fatal, so that malformed records can still be surfaced to validation.
func FromRecord(rec map[string]any) (*Memory, error) {
	id, ok := AsString(rec["memoryId"])
	if !ok || id == "" {
		return nil, fmt.Errorf("record has no memoryId")
	}

	m := &Memory{ID: id}
	m.Content, _ = AsString(rec["content"])
	if s, ok := AsString(rec["memoryType"]); ok {
		m.Type = Type(s)
	}
	m.Embedding, _ = AsFloatSlice(rec["embedding"])
	m.UserID, _ = AsString(rec["userId"])
	m.AgentName, _ = AsString(rec["agentName"])
	m.EmotionalState, _ = AsString(rec["emotionalState"])

	m.ImportanceScore, _ = AsFloat(rec["importanceScore"])
	m.ConsciousnessLevel, _ = AsFloat(rec["consciousnessLevel"])
	m.SignificanceScore, _ = AsFloat(rec["significanceScore"])
	m.AccessCount, _ = AsInt(rec["accessCount"])
	m.AccessFrequency, _ = AsFloat(rec["accessFrequency"])
	m.DecayRate, _ = AsFloat(rec["decayRate"])

	m.Archived, _ = rec["archived"].(bool)
	m.Consolidated, _ = rec["consolidated"].(bool)
	m.ConsolidatedFromCount, _ = AsInt(rec["consolidatedFromCount"])

	m.CreatedAt, _ = AsTime(rec["createdAt"])
	m.LastAccessed, _ = AsTime(rec["lastAccessed"])
	m.LastDecayUpdate, _ = AsTime(rec["lastDecayUpdate"])
	m.LastImportanceUpdate, _ = AsTime(rec["lastImportanceUpdate"])
	m.LastRepair, _ = AsTime(rec["lastRepair"])
	m.RestoredFromBackup, _ = AsString(rec["restoredFromBackup"])
	m.RestoredAt, _ = AsTime(rec["restoredAt"])

	return m, nil
}

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
