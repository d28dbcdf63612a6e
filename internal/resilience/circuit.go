// Package resilience wraps calls to upstream services (OpenFoodFacts, OCR
// providers) with retries and a circuit breaker.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/allergen-risk/internal/config"
)

// CircuitState is the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling upstream while the circuit is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreaker opens after FailureThreshold consecutive failures and lets a
// single trial call through once ResetTimeout has elapsed.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	resetTimeout     time.Duration

	mu          sync.Mutex
	state       CircuitState
	failures    int
	lastFailure time.Time

	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker for the named service.
func NewCircuitBreaker(name string, failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.now().Sub(cb.lastFailure) >= cb.resetTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != CircuitOpen {
		return nil
	}
	if cb.now().Sub(cb.lastFailure) >= cb.resetTimeout {
		cb.setState(CircuitHalfOpen)
		return nil
	}
	return ErrCircuitOpen
}

// record counts only transient failures; a 404 is an answer, not an outage.
func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil || !IsTransient(err) {
		cb.failures = 0
		if cb.state == CircuitHalfOpen {
			cb.setState(CircuitClosed)
		}
		return
	}

	cb.failures++
	cb.lastFailure = cb.now()
	if cb.state == CircuitHalfOpen || cb.failures >= cb.failureThreshold {
		cb.setState(CircuitOpen)
	}
}

func (cb *CircuitBreaker) setState(to CircuitState) {
	if cb.state == to {
		return
	}
	zap.L().Info("circuit state change",
		zap.String("service", cb.name),
		zap.Stringer("from", cb.state),
		zap.Stringer("to", to),
	)
	cb.state = to
}

// Policy combines retries and a circuit breaker for one upstream service.
type Policy struct {
	Retry   RetryConfig
	Breaker *CircuitBreaker
}

// NewPolicy builds a policy for service from the retry config section.
func NewPolicy(service string, cfg config.RetryConfig) *Policy {
	retry := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialBackoffMs > 0 {
		retry.InitialBackoff = time.Duration(cfg.InitialBackoffMs) * time.Millisecond
	}
	if cfg.MaxBackoffMs > 0 {
		retry.MaxBackoff = time.Duration(cfg.MaxBackoffMs) * time.Millisecond
	}
	if cfg.Multiplier > 0 {
		retry.Multiplier = cfg.Multiplier
	}
	retry.OnRetry = RetryLogger(service, "fetch")

	return &Policy{
		Retry:   retry,
		Breaker: NewCircuitBreaker(service, cfg.FailureThreshold, time.Duration(cfg.ResetTimeoutSecs)*time.Second),
	}
}

// Call runs fn under p. Each attempt passes through the breaker, so an open
// circuit stops the retry loop immediately.
func Call[T any](ctx context.Context, p *Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	if p == nil {
		return fn(ctx)
	}
	return DoVal(ctx, p.Retry, func(ctx context.Context) (T, error) {
		var zero T
		if p.Breaker != nil {
			if err := p.Breaker.allow(); err != nil {
				return zero, err
			}
		}
		val, err := fn(ctx)
		if p.Breaker != nil {
			p.Breaker.record(err)
		}
		return val, err
	})
}
