package lifecycle

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/mnemos-io/mnemos/internal/memory"
	"github.com/mnemos-io/mnemos/internal/store"
)

// ConsolidationDetail records one merge group.
type ConsolidationDetail struct {
	BaseID        string   `json:"base_id"`
	MergedIDs     []string `json:"merged_ids"`
	GroupSize     int      `json:"group_size"`
	NewImportance float64  `json:"new_importance"`
}

// ConsolidationResult summarizes one consolidation run.
type ConsolidationResult struct {
	Skipped                 bool                  `json:"skipped"`
	ConsolidationsPerformed int                   `json:"consolidations_performed"`
	MemoriesProcessed       int                   `json:"memories_processed"`
	Details                 []ConsolidationDetail `json:"details,omitempty"`
}

// DuplicatePair is a read-only report of two near-duplicate memories.
type DuplicatePair struct {
	MemoryID1  string  `json:"memory_id_1"`
	MemoryID2  string  `json:"memory_id_2"`
	Similarity float64 `json:"similarity"`
}

// ConsolidateSimilarMemories merges near-duplicate interaction memories.
// Runs at most once per consolidation interval; within each user's batch,
// pairs at or above the similarity threshold are grouped transitively, the
// most important (then most recent) member survives with the merged content,
// and the rest are hard-deleted.
func (s *Service) ConsolidateSimilarMemories(ctx context.Context) (ConsolidationResult, error) {
	cfg := s.Config()
	now := s.now()

	s.mu.Lock()
	due := s.lastConsolidation.IsZero() || now.Sub(s.lastConsolidation) >= cfg.ConsolidationInterval
	s.mu.Unlock()
	if !due {
		return ConsolidationResult{Skipped: true}, nil
	}

	candidates, err := s.store.ConsolidationCandidates(ctx, now.Add(-cfg.ConsolidationMinAge), cfg.ConsolidationBatchSize)
	if err != nil {
		return ConsolidationResult{}, fmt.Errorf("fetch consolidation candidates: %w", err)
	}

	result := ConsolidationResult{MemoriesProcessed: len(candidates)}

	// Group by user; input order is preserved so equal-similarity ties
	// resolve deterministically.
	byUser := make(map[string][]memory.Memory)
	var userOrder []string
	for _, m := range candidates {
		if _, seen := byUser[m.UserID]; !seen {
			userOrder = append(userOrder, m.UserID)
		}
		byUser[m.UserID] = append(byUser[m.UserID], m)
	}

	for _, userID := range userOrder {
		group := byUser[userID]
		details, err := s.consolidateUserGroup(ctx, group, cfg.SimilarityThreshold, now)
		if err != nil {
			return result, fmt.Errorf("consolidate user %s: %w", userID, err)
		}
		result.Details = append(result.Details, details...)
		result.ConsolidationsPerformed += len(details)
	}

	s.mu.Lock()
	s.lastConsolidation = now
	s.mu.Unlock()

	if result.ConsolidationsPerformed > 0 {
		log.Printf("consolidate: performed %d merges across %d memories",
			result.ConsolidationsPerformed, result.MemoriesProcessed)
	}
	return result, nil
}

// consolidateUserGroup clusters one user's memories and applies each merge.
// A memory joins at most one group per run via the processed set.
func (s *Service) consolidateUserGroup(ctx context.Context, memories []memory.Memory, threshold float64, now time.Time) ([]ConsolidationDetail, error) {
	processed := make(map[string]bool)
	var details []ConsolidationDetail

	for i := range memories {
		if processed[memories[i].ID] {
			continue
		}

		cluster := []int{i}
		processed[memories[i].ID] = true

		// Transitive closure: a~b and b~c pulls c into {a,b}.
		for grew := true; grew; {
			grew = false
			for j := range memories {
				if processed[memories[j].ID] {
					continue
				}
				for _, idx := range cluster {
					if pairSimilarity(&memories[idx], &memories[j]) >= threshold {
						cluster = append(cluster, j)
						processed[memories[j].ID] = true
						grew = true
						break
					}
				}
			}
		}

		if len(cluster) <= 1 {
			continue
		}

		detail, err := s.mergeCluster(ctx, memories, cluster, now)
		if err != nil {
			return details, err
		}
		details = append(details, detail)
	}
	return details, nil
}

// mergeCluster picks the group's base record, merges content and importance
// into it, and deletes the other members.
func (s *Service) mergeCluster(ctx context.Context, memories []memory.Memory, cluster []int, now time.Time) (ConsolidationDetail, error) {
	group := make([]*memory.Memory, len(cluster))
	for i, idx := range cluster {
		group[i] = &memories[idx]
	}

	// Most important, then most recent, survives. Stable to preserve input
	// order among exact ties.
	sort.SliceStable(group, func(i, j int) bool {
		if group[i].ImportanceScore != group[j].ImportanceScore {
			return group[i].ImportanceScore > group[j].ImportanceScore
		}
		return group[i].CreatedAt.After(group[j].CreatedAt)
	})

	base := group[0]
	mergedContent := base.Content
	var mergedIDs []string
	var importanceSum float64

	for _, m := range group {
		importanceSum += m.ImportanceScore
		if m.ID == base.ID {
			continue
		}
		mergedIDs = append(mergedIDs, m.ID)
		if !strings.Contains(mergedContent, m.Content) {
			mergedContent += "\n[Related: " + m.Content + "]"
		}
	}
	meanImportance := importanceSum / float64(len(group))

	merge := store.Merge{
		BaseID:     base.ID,
		Content:    mergedContent,
		Importance: meanImportance,
		FromCount:  len(group),
	}
	if err := s.store.MergeMemory(ctx, merge, now); err != nil {
		return ConsolidationDetail{}, fmt.Errorf("merge base %s: %w", base.ID, err)
	}
	if _, err := s.store.DeleteMemories(ctx, mergedIDs); err != nil {
		return ConsolidationDetail{}, fmt.Errorf("delete merged members of %s: %w", base.ID, err)
	}

	return ConsolidationDetail{
		BaseID:        base.ID,
		MergedIDs:     mergedIDs,
		GroupSize:     len(group),
		NewImportance: meanImportance,
	}, nil
}

// DetectDuplicateMemories reports near-duplicate pairs at or above the
// threshold without mutating anything.
func (s *Service) DetectDuplicateMemories(ctx context.Context, userID string, threshold float64) ([]DuplicatePair, error) {
	if threshold <= 0 {
		threshold = 0.95
	}
	cfg := s.Config()

	memories, err := s.store.MemoriesByUser(ctx, userID, cfg.ConsolidationBatchSize)
	if err != nil {
		return nil, fmt.Errorf("fetch duplicate candidates: %w", err)
	}

	var pairs []DuplicatePair
	for i := range memories {
		for j := i + 1; j < len(memories); j++ {
			if memories[i].UserID != memories[j].UserID {
				continue
			}
			sim := pairSimilarity(&memories[i], &memories[j])
			if sim >= threshold {
				pairs = append(pairs, DuplicatePair{
					MemoryID1:  memories[i].ID,
					MemoryID2:  memories[j].ID,
					Similarity: sim,
				})
			}
		}
	}
	return pairs, nil
}
