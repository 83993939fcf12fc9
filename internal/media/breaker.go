package media

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stwalsh4118/duet/internal/logger"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	// StateClosed indicates the circuit is closed (normal operation)
	StateClosed CircuitState = iota
	// StateOpen indicates the circuit is open (blocking probes)
	StateOpen
	// StateHalfOpen indicates the circuit lets one probe through to test recovery
	StateHalfOpen
)

// String returns the string representation of CircuitState
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen indicates probing is suspended after repeated prober failures
var ErrCircuitOpen = errors.New("probe circuit breaker is open")

// CircuitBreaker counts consecutive failures and blocks calls once a threshold is reached
type CircuitBreaker struct {
	failureThreshold int
	resetTimeout     time.Duration
	state            CircuitState
	failures         int
	lastFailureTime  time.Time
	mu               sync.Mutex
}

// NewCircuitBreaker creates a new circuit breaker with the given threshold and reset timeout
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            StateClosed,
	}
}

// Allow reports whether a call may proceed, moving Open to HalfOpen once the reset timeout passed
func (cb *CircuitBreaker) Allow() bool {
	return cb.GetState() != StateOpen
}

// RecordSuccess records a successful operation
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.state = StateClosed
}

// RecordFailure records a failed operation
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailureTime = time.Now()

	if cb.state == StateHalfOpen || cb.failures >= cb.failureThreshold {
		cb.state = StateOpen
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.lastFailureTime) >= cb.resetTimeout {
		cb.state = StateHalfOpen
		cb.failures = 0
	}

	return cb.state
}

// GetFailures returns the current failure count
func (cb *CircuitBreaker) GetFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// GuardedProber wraps a prober with a circuit breaker. Only failures of the
// probing machinery itself (missing binary, timeouts) trip the breaker; a
// single unreachable source must not suspend probing for every other track.
type GuardedProber struct {
	next    Prober
	breaker *CircuitBreaker
}

// NewGuardedProber creates a guarded prober
func NewGuardedProber(next Prober, failureThreshold int, resetTimeout time.Duration) *GuardedProber {
	return &GuardedProber{
		next:    next,
		breaker: NewCircuitBreaker(failureThreshold, resetTimeout),
	}
}

// Breaker exposes the underlying breaker for health reporting
func (g *GuardedProber) Breaker() *CircuitBreaker {
	return g.breaker
}

// Probe runs the wrapped prober unless the breaker is open
func (g *GuardedProber) Probe(ctx context.Context, source string) (*Metadata, error) {
	if !g.breaker.Allow() {
		return nil, ErrCircuitOpen
	}

	metadata, err := g.next.Probe(ctx, source)
	switch {
	case err == nil:
		g.breaker.RecordSuccess()
	case isProberFailure(err):
		g.breaker.RecordFailure()
		if g.breaker.GetState() == StateOpen {
			logger.Log.Warn().
				Err(err).
				Int("failures", g.breaker.GetFailures()).
				Msg("Probe circuit breaker opened")
		}
	}
	return metadata, err
}

func isProberFailure(err error) bool {
	return errors.Is(err, ErrFFprobeNotFound) || errors.Is(err, ErrTimeout)
}
