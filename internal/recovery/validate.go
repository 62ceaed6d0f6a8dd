package recovery

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mnemos-io/mnemos/internal/graph"
	"github.com/mnemos-io/mnemos/internal/memory"
	"github.com/mnemos-io/mnemos/internal/store"
)

// Severity ranks how badly an issue degrades a memory record.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IssueType names the class of problem a validation scan found.
type IssueType string

const (
	IssueMissingField     IssueType = "missing_field"
	IssueInvalidValue     IssueType = "invalid_value"
	IssueTimestampAnomaly IssueType = "timestamp_anomaly"
	IssueInvalidEmbedding IssueType = "invalid_embedding"
	IssueCorruptedData    IssueType = "corrupted_data"
)

// ValidationIssue is one problem found in one memory record. Issues live only
// for the duration of a validation run; they are never persisted. SuggestedFix
// carries the exact value the repair engine would write for the field.
type ValidationIssue struct {
	Type         IssueType `json:"issue_type"`
	MemoryID     string    `json:"memory_id"`
	Field        string    `json:"field_name,omitempty"`
	Description  string    `json:"description"`
	Severity     Severity  `json:"severity"`
	AutoFixable  bool      `json:"auto_fixable"`
	SuggestedFix any       `json:"suggested_fix,omitempty"`
}

// requiredFields is the set every memory must carry, in scan order.
var requiredFields = []string{
	"memoryId",
	"content",
	"memoryType",
	"userId",
	"agentName",
	"consciousnessLevel",
	"emotionalState",
	"importanceScore",
	"createdAt",
}

const (
	defaultImportance    = 0.7
	defaultConsciousness = 0.5

	// A createdAt this far ahead of the wall clock is treated as an anomaly
	// rather than clock skew.
	futureTolerance = time.Hour
)

// ValidateMemoryData scans memories page by page and returns every issue
// found. An empty memoryIDs slice and empty userID scan the whole store. A
// bad record never aborts the scan; a store failure does.
func (s *Service) ValidateMemoryData(ctx context.Context, memoryIDs []string, userID string) ([]ValidationIssue, error) {
	now := s.now()
	batch := s.config().BatchSize
	issues := []ValidationIssue{}

	for skip := 0; ; skip += batch {
		page, err := s.store.MemoryPage(ctx, store.PageFilter{
			MemoryIDs: memoryIDs,
			UserID:    userID,
			Skip:      skip,
			Limit:     batch,
		})
		if err != nil {
			return nil, &graph.ValidationError{Reason: "memory scan", Err: err}
		}
		for _, rec := range page {
			issues = append(issues, checkRecord(rec, now)...)
		}
		if len(page) < batch {
			break
		}
	}

	log.Printf("recovery: validation scanned user=%q ids=%d issues=%d", userID, len(memoryIDs), len(issues))
	return issues, nil
}

// checkRecord runs every rule against one raw record. A panic while checking
// (a record malformed beyond what the rules anticipate) is converted into a
// single corrupted-data issue so the scan can continue.
func checkRecord(rec graph.Record, now time.Time) (issues []ValidationIssue) {
	id, _ := memory.AsString(rec["memoryId"])

	defer func() {
		if r := recover(); r != nil {
			issues = append(issues, ValidationIssue{
				Type:        IssueCorruptedData,
				MemoryID:    id,
				Description: fmt.Sprintf("record could not be checked: %v", r),
				Severity:    SeverityHigh,
			})
		}
	}()

	issues = append(issues, checkRequiredFields(rec, id)...)
	issues = append(issues, checkValues(rec, id)...)
	issues = append(issues, checkTimestamps(rec, id, now)...)
	issues = append(issues, checkEmbedding(rec, id)...)
	issues = append(issues, checkContent(rec, id)...)
	return issues
}

func checkRequiredFields(rec graph.Record, id string) []ValidationIssue {
	var issues []ValidationIssue
	for _, field := range requiredFields {
		if v, ok := rec[field]; ok && v != nil {
			continue
		}
		issue := ValidationIssue{
			Type:        IssueMissingField,
			MemoryID:    id,
			Field:       field,
			Description: fmt.Sprintf("required field %s is missing", field),
			Severity:    SeverityHigh,
		}
		// Only the numeric scores have a safe default to write back.
		switch field {
		case "importanceScore":
			issue.AutoFixable = true
			issue.SuggestedFix = defaultImportance
		case "consciousnessLevel":
			issue.AutoFixable = true
			issue.SuggestedFix = defaultConsciousness
		}
		issues = append(issues, issue)
	}
	return issues
}

func checkValues(rec graph.Record, id string) []ValidationIssue {
	var issues []ValidationIssue

	if v, ok := rec["memoryType"]; ok && v != nil {
		s, isString := memory.AsString(v)
		if !isString || !memory.Type(s).Valid() {
			issues = append(issues, ValidationIssue{
				Type:         IssueInvalidValue,
				MemoryID:     id,
				Field:        "memoryType",
				Description:  fmt.Sprintf("memory type %v is not recognized", v),
				Severity:     SeverityMedium,
				AutoFixable:  true,
				SuggestedFix: string(memory.DefaultType),
			})
		}
	}

	issues = append(issues, checkScore(rec, id, "importanceScore", defaultImportance)...)
	issues = append(issues, checkScore(rec, id, "consciousnessLevel", defaultConsciousness)...)
	return issues
}

// checkScore validates a [0,1] numeric field. Out-of-range values are fixed
// by clamping; non-numeric values fall back to the field's default.
func checkScore(rec graph.Record, id, field string, fallback float64) []ValidationIssue {
	v, ok := rec[field]
	if !ok || v == nil {
		return nil
	}
	f, numeric := memory.AsFloat(v)
	if numeric && f >= 0 && f <= 1 {
		return nil
	}
	fix := fallback
	desc := fmt.Sprintf("%s %v is not numeric", field, v)
	if numeric {
		fix = memory.Clamp01(f)
		desc = fmt.Sprintf("%s %v is outside [0,1]", field, f)
	}
	return []ValidationIssue{{
		Type:         IssueInvalidValue,
		MemoryID:     id,
		Field:        field,
		Description:  desc,
		Severity:     SeverityMedium,
		AutoFixable:  true,
		SuggestedFix: fix,
	}}
}

func checkTimestamps(rec graph.Record, id string, now time.Time) []ValidationIssue {
	v, ok := rec["createdAt"]
	if !ok || v == nil {
		return nil
	}
	t, parsed := memory.AsTime(v)
	if !parsed {
		return []ValidationIssue{{
			Type:         IssueCorruptedData,
			MemoryID:     id,
			Field:        "createdAt",
			Description:  fmt.Sprintf("createdAt %v cannot be parsed", v),
			Severity:     SeverityHigh,
			AutoFixable:  true,
			SuggestedFix: memory.Millis(now),
		}}
	}
	if t.After(now.Add(futureTolerance)) {
		return []ValidationIssue{{
			Type:         IssueTimestampAnomaly,
			MemoryID:     id,
			Field:        "createdAt",
			Description:  fmt.Sprintf("createdAt %s is in the future", t.UTC().Format(time.RFC3339)),
			Severity:     SeverityLow,
			AutoFixable:  true,
			SuggestedFix: memory.Millis(now),
		}}
	}
	return nil
}

// checkEmbedding flags vectors that cannot be used for similarity. There is
// no auto-fix: regenerating an embedding needs the embedding service.
func checkEmbedding(rec graph.Record, id string) []ValidationIssue {
	v, ok := rec["embedding"]
	if !ok || v == nil {
		return nil
	}
	vec, isVec := memory.AsFloatSlice(v)
	if isVec && len(vec) > 0 {
		return nil
	}
	return []ValidationIssue{{
		Type:        IssueInvalidEmbedding,
		MemoryID:    id,
		Field:       "embedding",
		Description: "embedding is empty or not a numeric vector",
		Severity:    SeverityMedium,
	}}
}

func checkContent(rec graph.Record, id string) []ValidationIssue {
	v, ok := rec["content"]
	if !ok || v == nil {
		return nil
	}
	s, isString := memory.AsString(v)
	if isString && strings.TrimSpace(s) != "" {
		return nil
	}
	return []ValidationIssue{{
		Type:        IssueCorruptedData,
		MemoryID:    id,
		Field:       "content",
		Description: "content is empty; memory is flagged for manual removal",
		Severity:    SeverityCritical,
	}}
}
