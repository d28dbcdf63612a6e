package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sells-group/allergen-risk/internal/config"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, time.Minute)
	transient := NewTransientError(errors.New("down"), 503)

	for i := 0; i < 3; i++ {
		if err := cb.allow(); err != nil {
			t.Fatalf("attempt %d rejected: %v", i, err)
		}
		cb.record(transient)
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}
	if err := cb.allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Minute)
	for i := 0; i < 5; i++ {
		cb.record(errors.New("not found"))
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("test", 1, 10*time.Second)
	cb.now = func() time.Time { return now }

	cb.record(NewTransientError(errors.New("down"), 503))
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	now = now.Add(11 * time.Second)
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half-open, got %s", cb.State())
	}
	if err := cb.allow(); err != nil {
		t.Fatalf("half-open trial call rejected: %v", err)
	}
	cb.record(nil)
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed, got %s", cb.State())
	}
}

func TestCall_StopsWhenOpen(t *testing.T) {
	p := NewPolicy("test", config.RetryConfig{
		MaxAttempts:      5,
		InitialBackoffMs: 1,
		MaxBackoffMs:     2,
		FailureThreshold: 2,
		ResetTimeoutSecs: 60,
	})

	var calls int
	_, err := Call(context.Background(), p, func(_ context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("down"), 503)
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 upstream calls, got %d", calls)
	}
}

func TestCall_NilPolicy(t *testing.T) {
	got, err := Call(context.Background(), nil, func(_ context.Context) (string, error) {
		return "direct", nil
	})
	if err != nil || got != "direct" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestCircuitState_String(t *testing.T) {
	if CircuitHalfOpen.String() != "half-open" || CircuitState(9).String() != "unknown" {
		t.Error("unexpected state names")
	}
}
