// Package resilience keeps the extractor available when model backends
// misbehave.
//
// [CircuitBreaker] stops calling a backend after repeated failures and tries
// it again after a cool-down. [FallbackGroup] tries several backends of the
// same kind in order, each behind its own breaker. [LLMFallback] applies that
// to [llm.Provider].
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling through while a breaker is
// open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// has elapsed.
	StateOpen

	// StateHalfOpen lets a limited number of trial calls through. Enough
	// successes close the breaker; any failure re-opens it.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero values select the
// defaults.
type CircuitBreakerConfig struct {
	// Name labels log lines and state change notifications.
	Name string

	// MaxFailures is the number of consecutive failures that opens a closed
	// breaker. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before probing.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of successful trials needed to close the
	// breaker. Default: 3.
	HalfOpenMax int

	// OnStateChange, if set, is called after every transition with the
	// breaker name and the new state. It runs with the breaker's lock held
	// and must not call back into the breaker.
	OnStateChange func(name string, to State)
}

// CircuitBreaker is a three-state breaker.
//
// Errors caused by the caller cancelling its own context are passed through
// but do not count as backend failures. Deadline expiry does count: a
// backend that is too slow is unhealthy.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	trialsStarted int
	trialsPassed  int
}

// NewCircuitBreaker returns a closed breaker for cfg.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// Name returns the configured breaker name.
func (cb *CircuitBreaker) Name() string { return cb.cfg.Name }

// Execute calls fn unless the breaker rejects the call, and records the
// outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	trial, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch {
	case err == nil:
		cb.onSuccess(trial)
	case errors.Is(err, context.Canceled):
		if trial {
			cb.trialsStarted--
		}
	default:
		cb.onFailure(trial)
	}
	return err
}

// admit decides whether a call may proceed. trial reports whether it counts
// against the half-open budget.
func (cb *CircuitBreaker) admit() (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.openedAt) < cb.cfg.ResetTimeout {
			return false, ErrCircuitOpen
		}
		cb.trialsStarted, cb.trialsPassed = 0, 0
		cb.transition(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.trialsStarted >= cb.cfg.HalfOpenMax {
			return false, ErrCircuitOpen
		}
		cb.trialsStarted++
		return true, nil
	}
	return false, nil
}

// onFailure must be called with cb.mu held.
func (cb *CircuitBreaker) onFailure(trial bool) {
	cb.openedAt = time.Now()
	if trial {
		cb.failures = cb.cfg.MaxFailures
		cb.transition(StateOpen)
		return
	}
	cb.failures++
	if cb.failures >= cb.cfg.MaxFailures && cb.state != StateOpen {
		cb.transition(StateOpen)
	}
}

// onSuccess must be called with cb.mu held.
func (cb *CircuitBreaker) onSuccess(trial bool) {
	if !trial {
		cb.failures = 0
		return
	}
	if cb.state != StateHalfOpen {
		return
	}
	cb.trialsPassed++
	if cb.trialsPassed >= cb.cfg.HalfOpenMax {
		cb.failures, cb.trialsStarted, cb.trialsPassed = 0, 0, 0
		cb.transition(StateClosed)
	}
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	cb.state = to
	switch to {
	case StateOpen:
		slog.Warn("circuit breaker opened", "name", cb.cfg.Name, "consecutive_failures", cb.failures)
	default:
		slog.Info("circuit breaker state changed", "name", cb.cfg.Name, "state", to.String())
	}
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, to)
	}
}

// State returns the current state. An open breaker whose reset timeout has
// elapsed reports [StateHalfOpen]; the transition itself happens on the next
// call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures, cb.trialsStarted, cb.trialsPassed = 0, 0, 0
	cb.transition(StateClosed)
}
