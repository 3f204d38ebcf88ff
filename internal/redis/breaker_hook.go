package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/skyconnfig/qdq/internal/metrics"
)

// ErrBreakerOpen is returned while the Redis circuit breaker rejects traffic.
var ErrBreakerOpen = errors.New("redis circuit breaker open")

// BreakerHook implements redis.Hook to add circuit breaker protection to
// all Redis operations. When Redis degrades, commands fail fast instead of
// stacking up timeouts behind a dead connection pool.
//
// The hooks pattern (rather than wrapping the client) covers every command
// of every consumer automatically and composes with MetricsHook.
type BreakerHook struct {
	cb *gobreaker.TwoStepCircuitBreaker
}

var _ goredis.Hook = (*BreakerHook)(nil)

// NewBreakerHook creates a breaker that trips at a 60% failure rate over at
// least 5 requests, stays open for 30s and closes again after one probe
// succeeds in half-open.
func NewBreakerHook() *BreakerHook {
	cb := gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRate >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed",
				"component", name,
				"from", from.String(),
				"to", to.String(),
			)
			metrics.CircuitBreakerStateChanges.WithLabelValues(name, to.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
	return &BreakerHook{cb: cb}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// DialHook wraps connection establishment with the circuit breaker.
func (h *BreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		done, err := h.cb.Allow()
		if err != nil {
			return nil, fmt.Errorf("circuit breaker dial rejected: %w", ErrBreakerOpen)
		}
		conn, err := next(ctx, network, addr)
		done(err == nil)
		if err != nil {
			return nil, fmt.Errorf("circuit breaker dial failed: %w", err)
		}
		return conn, nil
	}
}

// ProcessHook wraps command execution with the circuit breaker.
func (h *BreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		done, err := h.cb.Allow()
		if err != nil {
			return fmt.Errorf("%s: %w", cmd.Name(), ErrBreakerOpen)
		}

		err = next(ctx, cmd)
		// redis.Nil is a valid "not found" reply, not an outage signal.
		done(err == nil || errors.Is(err, goredis.Nil))
		return err
	}
}

// ProcessPipelineHook wraps pipeline execution with the circuit breaker.
func (h *BreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		done, err := h.cb.Allow()
		if err != nil {
			return fmt.Errorf("pipeline: %w", ErrBreakerOpen)
		}

		err = next(ctx, cmds)
		done(err == nil)
		return err
	}
}

// State returns the current breaker state (for testing/monitoring).
func (h *BreakerHook) State() gobreaker.State {
	return h.cb.State()
}
