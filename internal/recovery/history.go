package recovery

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the terminal (or in-flight) state of a recovery operation.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSuccess    Status = "success"
	StatusPartial    Status = "partial"
	StatusFailed     Status = "failed"
	StatusNotNeeded  Status = "not_needed"
)

// RecoveryOperation is the audit record of one repair, backup, or restore
// run. Created when the operation starts, finalized when it completes.
type RecoveryOperation struct {
	ID               string            `json:"operation_id"`
	Type             string            `json:"operation_type"`
	Status           Status            `json:"status"`
	StartTime        time.Time         `json:"start_time"`
	EndTime          time.Time         `json:"end_time,omitzero"`
	AffectedMemories []string          `json:"affected_memories"`
	IssuesFound      []ValidationIssue `json:"issues_found,omitempty"`
	IssuesFixed      []ValidationIssue `json:"issues_fixed,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty"`
}

// history keeps the most recent operations, oldest evicted first. All access
// goes through its methods; operations endpoint reads race with in-flight
// runs otherwise.
type history struct {
	mu    sync.Mutex
	limit int
	ops   []*RecoveryOperation
}

func newHistory(limit int) *history {
	return &history{limit: limit}
}

// begin records a new in-progress operation and returns it.
func (h *history) begin(opType string, start time.Time) *RecoveryOperation {
	op := &RecoveryOperation{
		ID:               uuid.NewString(),
		Type:             opType,
		Status:           StatusInProgress,
		StartTime:        start,
		AffectedMemories: []string{},
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ops = append(h.ops, op)
	if len(h.ops) > h.limit {
		h.ops = h.ops[len(h.ops)-h.limit:]
	}
	return op
}

// finish finalizes an operation. mutate runs under the history lock so the
// caller can fill result fields without racing readers.
func (h *history) finish(op *RecoveryOperation, status Status, end time.Time, mutate func(*RecoveryOperation)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	op.Status = status
	op.EndTime = end
	if mutate != nil {
		mutate(op)
	}
}

// snapshot returns copies of the recorded operations, most recent first.
func (h *history) snapshot() []RecoveryOperation {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]RecoveryOperation, 0, len(h.ops))
	for i := len(h.ops) - 1; i >= 0; i-- {
		out = append(out, *h.ops[i])
	}
	return out
}

func (h *history) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ops)
}

func (h *history) activeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, op := range h.ops {
		if op.Status == StatusInProgress {
			n++
		}
	}
	return n
}
