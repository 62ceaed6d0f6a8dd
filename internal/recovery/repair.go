package recovery

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mnemos-io/mnemos/internal/graph"
	"github.com/mnemos-io/mnemos/internal/memory"
)

// RepairResult reports the outcome of one repair run.
type RepairResult struct {
	Status      Status            `json:"status"`
	FixedIssues []ValidationIssue `json:"fixed_issues"`
	Failed      int               `json:"failed_memories"`
}

// RepairMemoryIssues applies the suggested fixes from a validation run. Only
// auto-fixable issues are acted on, capped at the configured maximum; all
// fixes for one memory are combined into a single write together with a
// lastRepair stamp. A write failure for one memory does not stop the others
// unless the store connection itself is gone.
func (s *Service) RepairMemoryIssues(ctx context.Context, issues []ValidationIssue, autoFixOnly bool) (RepairResult, error) {
	now := s.now()
	op := s.hist.begin("repair", now)

	candidates := fixableIssues(issues, s.config().AutoFixMaxIssues)
	if len(candidates) == 0 {
		s.hist.finish(op, StatusNotNeeded, s.now(), nil)
		if !autoFixOnly && len(issues) > 0 {
			log.Printf("recovery: %d issue(s) require manual intervention, none auto-fixable", len(issues))
		}
		return RepairResult{Status: StatusNotNeeded, FixedIssues: []ValidationIssue{}}, nil
	}

	byMemory, order := groupByMemory(candidates)

	result := RepairResult{FixedIssues: []ValidationIssue{}}
	var repaired []string
	for _, id := range order {
		fields := map[string]any{"lastRepair": memory.Millis(now)}
		for _, issue := range byMemory[id] {
			if issue.Field != "" && issue.SuggestedFix != nil {
				fields[issue.Field] = issue.SuggestedFix
			}
		}
		if err := s.store.RepairMemory(ctx, id, fields); err != nil {
			var connErr *graph.ConnectionError
			if errors.As(err, &connErr) {
				s.hist.finish(op, StatusFailed, s.now(), func(o *RecoveryOperation) {
					o.ErrorMessage = err.Error()
					o.IssuesFound = issues
				})
				return RepairResult{Status: StatusFailed, FixedIssues: result.FixedIssues}, err
			}
			log.Printf("recovery: repair of memory %s failed: %v", id, err)
			result.Failed++
			continue
		}
		repaired = append(repaired, id)
		result.FixedIssues = append(result.FixedIssues, byMemory[id]...)
	}

	switch {
	case result.Failed == 0:
		result.Status = StatusSuccess
	case len(repaired) > 0:
		result.Status = StatusPartial
	default:
		result.Status = StatusFailed
	}

	s.hist.finish(op, result.Status, s.now(), func(o *RecoveryOperation) {
		o.AffectedMemories = append(o.AffectedMemories, repaired...)
		o.IssuesFound = issues
		o.IssuesFixed = result.FixedIssues
		if result.Failed > 0 {
			o.ErrorMessage = fmt.Sprintf("%d memory repair(s) failed", result.Failed)
		}
	})

	log.Printf("recovery: repair %s, fixed %d issue(s) across %d memories, %d failed",
		result.Status, len(result.FixedIssues), len(repaired), result.Failed)
	return result, nil
}

// fixableIssues filters to issues that carry an applicable fix, capped at max.
func fixableIssues(issues []ValidationIssue, max int) []ValidationIssue {
	var out []ValidationIssue
	for _, issue := range issues {
		if !issue.AutoFixable || issue.MemoryID == "" {
			continue
		}
		out = append(out, issue)
		if len(out) == max {
			break
		}
	}
	return out
}

// groupByMemory buckets issues per memory ID, preserving first-seen order.
func groupByMemory(issues []ValidationIssue) (map[string][]ValidationIssue, []string) {
	byMemory := make(map[string][]ValidationIssue)
	var order []string
	for _, issue := range issues {
		if _, seen := byMemory[issue.MemoryID]; !seen {
			order = append(order, issue.MemoryID)
		}
		byMemory[issue.MemoryID] = append(byMemory[issue.MemoryID], issue)
	}
	return byMemory, order
}
