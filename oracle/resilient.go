package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CircuitState is the current posture of a Resilient oracle wrapper.
type CircuitState string

const (
	StateClosed   CircuitState = "closed"
	StateOpen     CircuitState = "open"
	StateHalfOpen CircuitState = "half_open"
)

// ResilientConfig tunes the circuit breaker and retry behavior wrapping an
// Oracle. Oracle calls must stay strictly sequential (spec §5), so unlike
// the teacher's breaker this never needs to guard concurrent callers —
// only repeated calls over time.
type ResilientConfig struct {
	FailureThreshold int
	FailureWindow    time.Duration
	RecoveryTimeout  time.Duration

	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultResilientConfig mirrors the teacher's conservative external-process
// posture: few failures tolerated, short recovery window.
func DefaultResilientConfig() *ResilientConfig {
	return &ResilientConfig{
		FailureThreshold: 3,
		FailureWindow:    1 * time.Minute,
		RecoveryTimeout:  30 * time.Second,
		MaxAttempts:      3,
		InitialDelay:     500 * time.Millisecond,
		MaxDelay:         10 * time.Second,
		BackoffFactor:    2.0,
	}
}

// Resilient wraps an Oracle with a circuit breaker and bounded retry. Once
// the breaker opens, Detects fails fast with ErrCircuitOpen until the
// recovery timeout elapses.
type Resilient struct {
	inner  Oracle
	config *ResilientConfig

	mu          sync.Mutex
	state       CircuitState
	failures    []time.Time
	lastFailure time.Time
}

// ErrCircuitOpen is returned when the breaker is rejecting calls.
type ErrCircuitOpen struct{ Since time.Time }

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("oracle: circuit open since %s", e.Since.Format(time.RFC3339))
}

// NewResilient wraps inner with circuit-breaker and retry behavior. A nil
// config uses DefaultResilientConfig.
func NewResilient(inner Oracle, config *ResilientConfig) *Resilient {
	if config == nil {
		config = DefaultResilientConfig()
	}
	return &Resilient{inner: inner, config: config, state: StateClosed}
}

func (r *Resilient) Detects(ctx context.Context, data []byte, filename string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var lastErr error
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if !r.allowCall() {
			return false, &ErrCircuitOpen{Since: r.lastFailure}
		}

		detected, err := r.inner.Detects(ctx, data, filename)
		if err == nil {
			r.recordSuccess()
			return detected, nil
		}

		lastErr = err
		r.recordFailure()

		if attempt == r.config.MaxAttempts {
			break
		}
		if err := sleepBackoff(ctx, r.config, attempt); err != nil {
			return false, err
		}
	}
	return false, fmt.Errorf("oracle: exhausted %d attempts: %w", r.config.MaxAttempts, lastErr)
}

func (r *Resilient) Health(ctx context.Context) error {
	return r.inner.Health(ctx)
}

func (r *Resilient) allowCall() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(r.lastFailure) >= r.config.RecoveryTimeout {
			r.state = StateHalfOpen
			return true
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

func (r *Resilient) recordSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = nil
	r.state = StateClosed
}

func (r *Resilient) recordFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.lastFailure = now
	r.failures = append(r.failures, now)

	cutoff := now.Add(-r.config.FailureWindow)
	kept := r.failures[:0]
	for _, f := range r.failures {
		if f.After(cutoff) {
			kept = append(kept, f)
		}
	}
	r.failures = kept

	if len(r.failures) >= r.config.FailureThreshold {
		r.state = StateOpen
	}
}

func sleepBackoff(ctx context.Context, cfg *ResilientConfig, attempt int) error {
	delay := cfg.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
			break
		}
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
