package gateway

import (
	"sync"
	"time"

	"github.com/coreledger/platform/internal/common"
)

// breakerState is the circuit breaker's three-state machine: closed (calls
// pass through), open (calls fail fast), half-open (one probe call is let
// through to decide whether to close again).
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// CircuitBreaker implements spec §7's propagation policy for
// DependencyUnavailable: "threshold 5 failures / 30s reset window / 60s
// monitoring window". No third-party circuit-breaker library appears
// anywhere in the example pack (confirmed by grepping every go.mod under
// _examples for gobreaker/circuitbreaker/hystrix) — this is a deliberate
// stdlib-only component, not an oversight, since no example gave it a home.
//
// "30s reset window" is read as the sliding window over which failures are
// counted toward the open threshold; "60s monitoring window" is the cooldown
// an open breaker waits before allowing a half-open probe.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	resetWindow      time.Duration
	cooldown         time.Duration

	state       breakerState
	failures    []time.Time
	openedAt    time.Time
}

// NewCircuitBreaker builds a breaker with spec §7's literal defaults.
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: 5,
		resetWindow:      30 * time.Second,
		cooldown:         60 * time.Second,
	}
}

// Call invokes fn, guarded by the breaker. An open breaker short-circuits
// with DependencyUnavailable without invoking fn at all.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.allow() {
		return common.NewDependencyUnavailable("circuit breaker open for this dependency")
	}

	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	switch cb.state {
	case breakerOpen:
		if now.Sub(cb.openedAt) >= cb.cooldown {
			cb.state = breakerHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()

	if err == nil {
		cb.state = breakerClosed
		cb.failures = nil
		return
	}

	if !common.IsDependencyUnavailable(err) && !common.IsTransientConflict(err) {
		if cb.state == breakerHalfOpen {
			cb.trip(now)
		}
		return
	}

	cb.failures = append(cb.failures, now)
	cb.pruneLocked(now)

	if len(cb.failures) >= cb.failureThreshold || cb.state == breakerHalfOpen {
		cb.trip(now)
	}
}

func (cb *CircuitBreaker) trip(now time.Time) {
	cb.state = breakerOpen
	cb.openedAt = now
	cb.failures = nil
}

func (cb *CircuitBreaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-cb.resetWindow)
	kept := cb.failures[:0]
	for _, f := range cb.failures {
		if f.After(cutoff) {
			kept = append(kept, f)
		}
	}
	cb.failures = kept
}

// State reports the breaker's current state for tests and health checks.
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}
