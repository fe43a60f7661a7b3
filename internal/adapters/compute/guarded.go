package compute

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/eleven-am/playbook/internal/adapters/circuit_breaker"
	"github.com/eleven-am/playbook/internal/adapters/rate_limiter"
	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/ports"
)

// Guarded protects a remote compute port with a per-call timeout, a per
// routine rate limit and a circuit breaker.
type Guarded struct {
	next    ports.ComputePort
	breaker ports.CircuitBreaker
	limiter ports.RateLimiter
	timeout time.Duration
	logger  *slog.Logger
}

func NewGuarded(next ports.ComputePort, config domain.ComputeConfig, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Guarded{
		next:    next,
		timeout: config.Timeout,
		logger:  logger.With("component", "compute", "mode", string(config.Mode)),
	}
	if config.CircuitBreaker.Enabled {
		g.breaker = circuit_breaker.NewCircuitBreaker("compute", config.CircuitBreaker, logger)
	}
	if config.RateLimit.Enabled {
		g.limiter = rate_limiter.NewRateLimiter(config.RateLimit, logger)
	}
	return g
}

// Breaker exposes the circuit breaker, or nil when it is disabled.
func (g *Guarded) Breaker() ports.CircuitBreaker {
	return g.breaker
}

func (g *Guarded) Compute(ctx context.Context, req ports.ComputeRequest, notify func(ports.Notification)) (json.RawMessage, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx, req.Routine); err != nil {
			g.logger.Warn("compute call rate limited", "routine", req.Routine, "error", err)
			return nil, err
		}
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if g.breaker == nil {
		return g.next.Compute(ctx, req, notify)
	}

	// A worker that answers with an error is healthy; only transport
	// failures count against the breaker.
	var result json.RawMessage
	var remote *RemoteError
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		result, err = g.next.Compute(ctx, req, notify)
		if errors.As(err, &remote) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if remote != nil {
		return nil, remote
	}
	return result, nil
}
