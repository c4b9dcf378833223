package oracle

import (
	"context"
	"errors"
	"testing"
	"time"
)

type flakyOracle struct {
	failuresLeft int
	detected     bool
	calls        int
}

func (f *flakyOracle) Detects(ctx context.Context, data []byte, filename string) (bool, error) {
	f.calls++
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return false, errors.New("transient failure")
	}
	return f.detected, nil
}

func (f *flakyOracle) Health(ctx context.Context) error { return nil }

func TestResilientRetriesTransientFailures(t *testing.T) {
	inner := &flakyOracle{failuresLeft: 2, detected: true}
	r := NewResilient(inner, &ResilientConfig{
		FailureThreshold: 10,
		FailureWindow:    time.Minute,
		RecoveryTimeout:  time.Millisecond,
		MaxAttempts:      3,
		InitialDelay:     time.Millisecond,
		MaxDelay:         5 * time.Millisecond,
		BackoffFactor:    2,
	})

	detected, err := r.Detects(context.Background(), []byte("data"), "f.bin")
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if !detected {
		t.Fatal("expected detected=true")
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", inner.calls)
	}
}

func TestResilientOpensCircuitAfterThreshold(t *testing.T) {
	inner := &flakyOracle{failuresLeft: 1000}
	r := NewResilient(inner, &ResilientConfig{
		FailureThreshold: 2,
		FailureWindow:    time.Minute,
		RecoveryTimeout:  time.Hour,
		MaxAttempts:      1,
		InitialDelay:     time.Millisecond,
		MaxDelay:         time.Millisecond,
		BackoffFactor:    1,
	})

	for i := 0; i < 2; i++ {
		if _, err := r.Detects(context.Background(), []byte("d"), "f"); err == nil {
			t.Fatal("expected failure from flaky oracle")
		}
	}

	_, err := r.Detects(context.Background(), []byte("d"), "f")
	var openErr *ErrCircuitOpen
	if !errors.As(err, &openErr) {
		t.Fatalf("expected circuit-open error, got %v", err)
	}
}

func TestCountingOracleTracksCalls(t *testing.T) {
	inner := NewPattern([]byte("X"))
	c := NewCounting(inner)
	for i := 0; i < 5; i++ {
		c.Detects(context.Background(), []byte("X"), "f")
	}
	if c.Calls() != 5 {
		t.Fatalf("expected 5 calls, got %d", c.Calls())
	}
}
