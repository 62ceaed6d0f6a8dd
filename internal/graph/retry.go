package graph

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// RetryConfig controls the backoff behavior of a Retrier.
type RetryConfig struct {
	MaxAttempts    int           `json:"max_attempts"`
	BaseDelay      time.Duration `json:"base_delay"`
	MaxDelay       time.Duration `json:"max_delay"`
	AttemptTimeout time.Duration `json:"attempt_timeout"`
}

// DefaultRetryConfig returns the standard store retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    5,
		BaseDelay:      1 * time.Second,
		MaxDelay:       30 * time.Second,
		AttemptTimeout: 30 * time.Second,
	}
}

// Retrier wraps a Client with bounded exponential backoff. Transient
// failures (see IsTransient) are retried up to MaxAttempts with each attempt
// bounded by AttemptTimeout; non-transient failures surface immediately.
// Exhaustion returns a *ConnectionError wrapping the last failure.
type Retrier struct {
	inner Client

	mu  sync.Mutex
	cfg RetryConfig
}

// NewRetrier wraps client with the given retry policy. Zero-valued config
// fields fall back to the defaults.
func NewRetrier(client Client, cfg RetryConfig) *Retrier {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = def.AttemptTimeout
	}
	return &Retrier{inner: client, cfg: cfg}
}

// Config returns a snapshot of the retry policy.
func (r *Retrier) Config() RetryConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// SetConfig replaces the retry policy at runtime. In-flight calls finish
// under the policy they started with.
func (r *Retrier) SetConfig(cfg RetryConfig) error {
	if cfg.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts %d must be positive", cfg.MaxAttempts)
	}
	if cfg.BaseDelay <= 0 || cfg.MaxDelay < cfg.BaseDelay {
		return fmt.Errorf("delays out of order: base %s, max %s", cfg.BaseDelay, cfg.MaxDelay)
	}
	if cfg.AttemptTimeout <= 0 {
		return fmt.Errorf("attempt timeout %s must be positive", cfg.AttemptTimeout)
	}
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
	return nil
}

func (r *Retrier) Query(ctx context.Context, stmt string, params map[string]any) ([]Record, error) {
	return r.do(ctx, "query", func(ctx context.Context) ([]Record, error) {
		return r.inner.Query(ctx, stmt, params)
	})
}

func (r *Retrier) WriteQuery(ctx context.Context, stmt string, params map[string]any) ([]Record, error) {
	return r.do(ctx, "write query", func(ctx context.Context) ([]Record, error) {
		return r.inner.WriteQuery(ctx, stmt, params)
	})
}

func (r *Retrier) Close(ctx context.Context) error {
	return r.inner.Close(ctx)
}

func (r *Retrier) do(ctx context.Context, op string, fn func(context.Context) ([]Record, error)) ([]Record, error) {
	cfg := r.Config()
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.AttemptTimeout)
		records, err := fn(attemptCtx)
		cancel()
		if err == nil {
			return records, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return nil, fmt.Errorf("%s failed (non-transient): %w", op, err)
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := cfg.backoff(attempt)
		log.Printf("retry: %s attempt %d/%d failed (%v), retrying in %s",
			op, attempt+1, cfg.MaxAttempts, err, delay)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s cancelled after %d attempts: %w", op, attempt+1, ctx.Err())
		case <-time.After(delay):
		}
	}

	log.Printf("retry: %s exhausted %d attempts: %v", op, cfg.MaxAttempts, lastErr)
	return nil, &ConnectionError{Op: op, Attempts: cfg.MaxAttempts, Err: lastErr}
}

// backoff returns min(BaseDelay * 2^attempt, MaxDelay).
func (c RetryConfig) backoff(attempt int) time.Duration {
	delay := c.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}
