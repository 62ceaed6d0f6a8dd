package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ConnectionError is returned after the retry wrapper has exhausted its
// attempts against the store. It always wraps the last underlying failure.
type ConnectionError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// CorruptionError reports data-level inconsistency found during repair or
// restore. Not retried.
type CorruptionError struct {
	MemoryID string
	Reason   string
	Err      error
}

func (e *CorruptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupted memory %s: %s: %v", e.MemoryID, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupted memory %s: %s", e.MemoryID, e.Reason)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// ValidationError reports a failure of a validation scan itself, as opposed
// to issues found in the data. Not retried.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation failed: %s: %v", e.Reason, e.Err)
	}
	return "validation failed: " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ResourceError reports a backup/restore capacity or store-resource failure.
// Not retried.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s: resource failure: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// transientKeywords classifies store failures that are worth retrying.
// Message heuristics, matched case-insensitively.
var transientKeywords = []string{
	"connection",
	"timeout",
	"network",
	"unavailable",
	"refused",
	"reset",
	"broken pipe",
}

// IsTransient reports whether err looks like a failure that may succeed on
// retry. Context cancellation is never transient; a deadline on a single
// attempt is.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range transientKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
