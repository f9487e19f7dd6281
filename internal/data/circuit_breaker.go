// Package data provides circuit breaker implementation for database operations.
// Implements circuit breaker pattern for database call resilience and graceful degradation.
package data

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitBreakerState represents the current state of the circuit breaker
type CircuitBreakerState int

const (
	// CircuitClosed means the circuit is closed and calls are passing through
	CircuitClosed CircuitBreakerState = iota
	// CircuitOpen means the circuit is open and calls are being rejected
	CircuitOpen
	// CircuitHalfOpen means the circuit is allowing limited calls to test recovery
	CircuitHalfOpen
)

// String returns string representation of circuit breaker state
func (s CircuitBreakerState) String() string {
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

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening the circuit
	FailureThreshold int
	// RecoveryTimeout is the time to wait before transitioning to half-open
	RecoveryTimeout time.Duration
	// SuccessThreshold is the number of successes needed in half-open to close
	SuccessThreshold int
	// Timeout is the maximum time to wait for an operation
	Timeout time.Duration
	// IsSuccessful classifies an error returned by the protected call. Errors
	// it accepts are returned to the caller but do not count as failures.
	// A nil IsSuccessful counts every non-nil error.
	IsSuccessful func(err error) bool
}

// DefaultCircuitBreakerConfig returns a sensible default configuration
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,                // Open after 5 failures
		RecoveryTimeout:  30 * time.Second, // Wait 30s before trying again
		SuccessThreshold: 3,                // Need 3 successes to close
		Timeout:          5 * time.Second,  // 5s timeout for operations
		IsSuccessful: func(err error) bool {
			return errors.Is(err, ErrRecordNotFound) || errors.Is(err, ErrInvalidIdentifier)
		},
	}
}

// CircuitBreaker implements the circuit breaker pattern for database operations
type CircuitBreaker struct {
	config        CircuitBreakerConfig
	state         CircuitBreakerState
	failures      int
	successes     int
	lastFailTime  time.Time
	mu            sync.RWMutex
	healthChecker func(ctx context.Context) error
	now           func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		config: config,
		state:  CircuitClosed,
		now:    time.Now,
	}
}

// SetHealthChecker sets the probe run before a recovering circuit lets traffic through
func (cb *CircuitBreaker) SetHealthChecker(healthCheck func(ctx context.Context) error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.healthChecker = healthCheck
}

// Call executes the given function with circuit breaker protection
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if cb.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cb.config.Timeout)
		defer cancel()
	}

	switch cb.getState() {
	case CircuitClosed:
		return cb.callClosed(ctx, fn)
	case CircuitOpen:
		return cb.callOpen(ctx, fn)
	case CircuitHalfOpen:
		return cb.callHalfOpen(ctx, fn)
	default:
		return nil, errors.New("unknown circuit breaker state")
	}
}

// callClosed handles calls when circuit is closed
func (cb *CircuitBreaker) callClosed(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	result, err := fn(ctx)

	if cb.failed(err) {
		cb.recordFailure()
		return nil, err
	}

	cb.recordSuccess()
	return result, err
}

// callOpen rejects calls until the recovery timeout has elapsed, then probes
// the backend and lets the call through in half-open state.
func (cb *CircuitBreaker) callOpen(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	cb.mu.RLock()
	shouldTryRecovery := cb.now().Sub(cb.lastFailTime) >= cb.config.RecoveryTimeout
	healthChecker := cb.healthChecker
	cb.mu.RUnlock()

	if !shouldTryRecovery {
		return nil, ErrCircuitBreakerOpen
	}

	if healthChecker != nil {
		if err := healthChecker(ctx); err != nil {
			cb.recordFailure()
			return nil, ErrCircuitBreakerOpen
		}
	}

	cb.transitionToHalfOpen()
	return cb.callHalfOpen(ctx, fn)
}

// callHalfOpen handles calls when circuit is half-open
func (cb *CircuitBreaker) callHalfOpen(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	result, err := fn(ctx)

	if cb.failed(err) {
		cb.mu.Lock()
		cb.state = CircuitOpen
		cb.successes = 0
		cb.lastFailTime = cb.now()
		cb.mu.Unlock()
		return nil, err
	}

	cb.recordSuccess()

	// Check if we have enough successes to close the circuit
	cb.mu.RLock()
	successes := cb.successes
	threshold := cb.config.SuccessThreshold
	cb.mu.RUnlock()

	if successes >= threshold {
		cb.transitionToClosed()
	}

	return result, err
}

func (cb *CircuitBreaker) failed(err error) bool {
	if err == nil {
		return false
	}
	if cb.config.IsSuccessful != nil && cb.config.IsSuccessful(err) {
		return false
	}
	return true
}

// recordFailure increments failure count and transitions to open if threshold reached
func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.successes = 0
	cb.lastFailTime = cb.now()

	if cb.failures >= cb.config.FailureThreshold {
		cb.state = CircuitOpen
	}
}

// recordSuccess increments success count and resets failure count
func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.successes++
	cb.failures = 0
}

// transitionToHalfOpen changes state to half-open
func (cb *CircuitBreaker) transitionToHalfOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitHalfOpen
	cb.successes = 0
}

// transitionToClosed changes state to closed
func (cb *CircuitBreaker) transitionToClosed() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitClosed
	cb.failures = 0
	cb.successes = 0
}

// getState returns the current circuit breaker state
func (cb *CircuitBreaker) getState() CircuitBreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// GetStats returns current circuit breaker statistics
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return CircuitBreakerStats{
		State:        cb.state,
		Failures:     cb.failures,
		Successes:    cb.successes,
		LastFailTime: cb.lastFailTime,
	}
}

// CircuitBreakerStats provides statistics about the circuit breaker
type CircuitBreakerStats struct {
	State        CircuitBreakerState `json:"state"`
	Failures     int                 `json:"failures"`
	Successes    int                 `json:"successes"`
	LastFailTime time.Time           `json:"last_fail_time,omitempty"`
}

// ErrCircuitBreakerOpen is returned while the circuit rejects calls.
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
