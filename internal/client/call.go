// Package client wraps the loan engine's collaborators behind circuit
// breakers, per-call timeouts and bounded retries. The saga orchestrator
// only ever talks to collaborators through this package.
package client

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/lendcore/loan-engine/internal/breaker"
	"github.com/lendcore/loan-engine/internal/logger"
	customError "github.com/lendcore/loan-engine/pkg/errors"
)

const (
	defaultCallTimeout = 2 * time.Second
	defaultMaxAttempts = 3
	defaultBackoffBase = 100 * time.Millisecond
)

// Caller runs collaborator calls under one breaker with a per-attempt
// timeout and exponential backoff between attempts. Business-rule
// rejections and an open breaker are never retried.
type Caller struct {
	breaker     *breaker.Breaker
	timeout     time.Duration
	maxAttempts int
	backoffBase time.Duration
}

func NewCaller(b *breaker.Breaker, timeout time.Duration, maxAttempts int, backoffBase time.Duration) *Caller {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if backoffBase <= 0 {
		backoffBase = defaultBackoffBase
	}
	return &Caller{
		breaker:     b,
		timeout:     timeout,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
	}
}

func (c *Caller) Call(ctx context.Context, op string, fn func(context.Context) error) error {
	var err error
	backoff := c.backoffBase

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err = c.breaker.Execute(ctx, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			return fn(callCtx)
		})
		if err == nil {
			return nil
		}
		if customError.IsBusiness(err) || errors.Is(err, customError.ErrCircuitOpen) {
			return err
		}

		if attempt < c.maxAttempts {
			logger.Get().Warn("collaborator call failed, retrying",
				zap.String("breaker", c.breaker.Name()),
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Error(err))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	return err
}
