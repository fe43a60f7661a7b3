// Package circuit_breaker guards calls to the external compute collaborator.
package circuit_breaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/ports"
)

var (
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	ErrTooManyRequests    = errors.New("too many requests when circuit breaker is half-open")
)

type circuitBreaker struct {
	name   string
	config domain.CircuitBreakerConfig
	now    func() time.Time
	logger *slog.Logger

	mu                 sync.Mutex
	state              ports.CircuitBreakerState
	failureCount       int64
	successCount       int64
	consecutiveSuccess int64
	consecutiveFailure int64
	requestsRejected   int64
	lastStateChange    time.Time
	nextRetry          time.Time
	halfOpenInFlight   int
	halfOpenEpoch      uint64
}

// NewCircuitBreaker opens after FailureThreshold consecutive failures, stays
// open for Timeout, then lets MaxRequests trial calls through at a time and
// closes again after SuccessThreshold consecutive successes.
func NewCircuitBreaker(name string, config domain.CircuitBreakerConfig, logger *slog.Logger) ports.CircuitBreaker {
	return newCircuitBreaker(name, config, time.Now, logger)
}

func newCircuitBreaker(name string, config domain.CircuitBreakerConfig, now func() time.Time, logger *slog.Logger) *circuitBreaker {
	if logger == nil {
		logger = slog.Default()
	}

	defaults := domain.DefaultComputeConfig().CircuitBreaker
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = defaults.SuccessThreshold
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxRequests <= 0 {
		config.MaxRequests = defaults.MaxRequests
	}

	return &circuitBreaker{
		name:            name,
		config:          config,
		now:             now,
		logger:          logger.With("component", "circuit-breaker", "name", name),
		state:           ports.StateClosed,
		lastStateChange: now(),
	}
}

// Call runs fn unless the breaker is open. Cancellation of ctx by the caller
// is not held against the collaborator.
func (cb *circuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	epoch, halfOpen, err := cb.allowRequest()
	if err != nil {
		cb.logger.Debug("request rejected", "error", err)
		return err
	}

	err = fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if halfOpen && epoch == cb.halfOpenEpoch && cb.halfOpenInFlight > 0 {
		cb.halfOpenInFlight--
	}
	switch {
	case err == nil:
		cb.onSuccess()
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
	default:
		cb.onFailure()
	}
	return err
}

// allowRequest reports whether the call counts against the half-open limit
// and the half-open period it was admitted in. Calls admitted in an earlier
// period do not release a slot of the current one.
func (cb *circuitBreaker) allowRequest() (uint64, bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == ports.StateOpen && !cb.now().Before(cb.nextRetry) {
		cb.setState(ports.StateHalfOpen)
	}

	switch cb.state {
	case ports.StateClosed:
		return 0, false, nil
	case ports.StateHalfOpen:
		if cb.halfOpenInFlight < cb.config.MaxRequests {
			cb.halfOpenInFlight++
			return cb.halfOpenEpoch, true, nil
		}
		cb.requestsRejected++
		return 0, false, ErrTooManyRequests
	default:
		cb.requestsRejected++
		return 0, false, ErrCircuitBreakerOpen
	}
}

func (cb *circuitBreaker) onSuccess() {
	cb.successCount++
	cb.consecutiveSuccess++
	cb.consecutiveFailure = 0

	if cb.state == ports.StateHalfOpen && cb.consecutiveSuccess >= int64(cb.config.SuccessThreshold) {
		cb.setState(ports.StateClosed)
	}
}

func (cb *circuitBreaker) onFailure() {
	cb.failureCount++
	cb.consecutiveFailure++
	cb.consecutiveSuccess = 0

	switch cb.state {
	case ports.StateClosed:
		if cb.consecutiveFailure >= int64(cb.config.FailureThreshold) {
			cb.setState(ports.StateOpen)
		}
	case ports.StateHalfOpen:
		cb.setState(ports.StateOpen)
	}
}

func (cb *circuitBreaker) setState(newState ports.CircuitBreakerState) {
	oldState := cb.state
	if oldState == newState {
		return
	}

	cb.logger.Info("circuit breaker state change",
		"from", oldState.String(),
		"to", newState.String(),
		"consecutive_failures", cb.consecutiveFailure,
		"consecutive_successes", cb.consecutiveSuccess)

	cb.state = newState
	cb.lastStateChange = cb.now()

	switch newState {
	case ports.StateOpen:
		cb.nextRetry = cb.now().Add(cb.config.Timeout)
		cb.consecutiveSuccess = 0
	case ports.StateHalfOpen:
		cb.halfOpenEpoch++
		cb.halfOpenInFlight = 0
		cb.consecutiveFailure = 0
	case ports.StateClosed:
		cb.nextRetry = time.Time{}
		cb.consecutiveFailure = 0
	}
}

func (cb *circuitBreaker) State() ports.CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *circuitBreaker) Metrics() ports.CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return ports.CircuitBreakerMetrics{
		State:              cb.state,
		FailureCount:       cb.failureCount,
		SuccessCount:       cb.successCount,
		ConsecutiveSuccess: cb.consecutiveSuccess,
		ConsecutiveFailure: cb.consecutiveFailure,
		RequestsRejected:   cb.requestsRejected,
		LastStateChange:    cb.lastStateChange,
	}
}

func (cb *circuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.logger.Info("circuit breaker reset")
	cb.failureCount = 0
	cb.successCount = 0
	cb.consecutiveSuccess = 0
	cb.consecutiveFailure = 0
	cb.requestsRejected = 0
	cb.halfOpenInFlight = 0
	cb.halfOpenEpoch++
	cb.setState(ports.StateClosed)
}
