package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// ErrAlreadyRunning is returned by Start when the scheduler is active.
var ErrAlreadyRunning = errors.New("lifecycle scheduler already running")

// MaintenanceResult collects the outcome of one maintenance cycle. A nil
// phase result means the phase did not run (gated or aborted by an earlier
// phase's failure being tolerated).
type MaintenanceResult struct {
	Decay         *DecayResult         `json:"decay,omitempty"`
	Cleanup       *CleanupStats        `json:"cleanup,omitempty"`
	Consolidation *ConsolidationResult `json:"consolidation,omitempty"`
	Optimization  *OptimizationResult  `json:"optimization,omitempty"`
	Errors        []string             `json:"errors,omitempty"`
}

// RunDailyMaintenance runs Decay, Cleanup, (weekly) Consolidation, and
// Optimization in order. Each phase's error is recorded and the remaining
// phases still run; phases are independently idempotent on re-run.
func (s *Service) RunDailyMaintenance(ctx context.Context) MaintenanceResult {
	var result MaintenanceResult

	if decay, err := s.ApplyImportanceDecay(ctx); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("decay: %v", err))
		log.Printf("maintenance: decay failed: %v", err)
	} else {
		result.Decay = &decay
	}

	if cleanup, err := s.CleanupLowImportanceMemories(ctx); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("cleanup: %v", err))
		log.Printf("maintenance: cleanup failed: %v", err)
	} else {
		result.Cleanup = &cleanup
	}

	if consolidation, err := s.ConsolidateSimilarMemories(ctx); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("consolidation: %v", err))
		log.Printf("maintenance: consolidation failed: %v", err)
	} else {
		result.Consolidation = &consolidation
	}

	if optimization, err := s.Optimize(ctx); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("optimization: %v", err))
		log.Printf("maintenance: optimization failed: %v", err)
	} else {
		result.Optimization = &optimization
	}

	return result
}

// Start spawns the background maintenance loop. Stopped -> Running; returns
// ErrAlreadyRunning otherwise.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Stopped {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = Running

	go s.loop(ctx, s.done)
	log.Printf("lifecycle: scheduler started (interval %s)", s.cfg.MaintenanceInterval)
	return nil
}

// Stop cancels the loop's wait and blocks until any in-flight maintenance
// cycle finishes. Safe to call when already stopped.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return
	}
	s.state = Stopping
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.state = Stopped
	s.mu.Unlock()
	log.Printf("lifecycle: scheduler stopped")
}

// Close stops the scheduler. Implements the explicit-shutdown half of the
// service's constructor/Close lifecycle.
func (s *Service) Close() error {
	s.Stop()
	return nil
}

func (s *Service) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	// First cycle runs at startup, then on the interval. The stop cancel
	// only interrupts the wait between cycles; a running cycle keeps an
	// uncancellable context so Stop never aborts a store write mid-phase.
	for {
		result := s.RunDailyMaintenance(context.WithoutCancel(ctx))

		wait := s.Config().MaintenanceInterval
		if len(result.Errors) > 0 {
			wait = s.Config().ErrorBackoff
			log.Printf("lifecycle: cycle had %d errors, backing off %s", len(result.Errors), wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
