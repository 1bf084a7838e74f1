package adapter

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// retryAttempts is the number of tries for retryable calls: the first and one retry.
const retryAttempts = 2

// CallObserver receives the outcome of every processor call.
type CallObserver func(op, outcome string)

// ResilientProcessor decorates a PaymentProcessor with a per-call timeout and
// a single backoff retry on transient failures. Capture is never retried.
type ResilientProcessor struct {
	inner    PaymentProcessor
	timeout  time.Duration
	interval time.Duration
	observe  CallObserver
	logger   *zap.Logger
}

// NewResilientProcessor wraps inner. A zero timeout disables the deadline.
func NewResilientProcessor(inner PaymentProcessor, timeout time.Duration, logger *zap.Logger) *ResilientProcessor {
	return &ResilientProcessor{
		inner:    inner,
		timeout:  timeout,
		interval: 200 * time.Millisecond,
		observe:  func(string, string) {},
		logger:   logger,
	}
}

// WithObserver installs a call observer, typically a metrics counter.
func (p *ResilientProcessor) WithObserver(observe CallObserver) *ResilientProcessor {
	p.observe = observe
	return p
}

// WithRetryInterval overrides the initial backoff interval.
func (p *ResilientProcessor) WithRetryInterval(d time.Duration) *ResilientProcessor {
	p.interval = d
	return p
}

// CreateAuthorization is retried once; the idempotency key makes the retry safe.
func (p *ResilientProcessor) CreateAuthorization(ctx context.Context, req AuthorizationRequest) (AuthorizationHandle, error) {
	var handle AuthorizationHandle
	err := p.retry(ctx, "create", func(callCtx context.Context) error {
		var err error
		handle, err = p.inner.CreateAuthorization(callCtx, req)
		return err
	})
	return handle, err
}

// ConfirmAuthorization is a read and is retried once.
func (p *ResilientProcessor) ConfirmAuthorization(ctx context.Context, authorizationID string) (AuthorizationStatus, error) {
	var status AuthorizationStatus
	err := p.retry(ctx, "confirm", func(callCtx context.Context) error {
		var err error
		status, err = p.inner.ConfirmAuthorization(callCtx, authorizationID)
		return err
	})
	return status, err
}

// Capture is attempted exactly once.
func (p *ResilientProcessor) Capture(ctx context.Context, authorizationID, idempotencyKey string) (CaptureResult, error) {
	callCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	result, err := p.inner.Capture(callCtx, authorizationID, idempotencyKey)
	if err != nil && callCtx.Err() != nil && ctx.Err() == nil {
		err = &TransientError{Op: "capture", Err: err}
	}
	p.observe("capture", outcome(err))
	return result, err
}

func (p *ResilientProcessor) retry(ctx context.Context, op string, call func(context.Context) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.interval
	b := backoff.WithContext(backoff.WithMaxRetries(policy, retryAttempts-1), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		callCtx, cancel := p.withTimeout(ctx)
		defer cancel()

		err := call(callCtx)
		if err != nil && callCtx.Err() != nil && ctx.Err() == nil {
			err = &TransientError{Op: op, Err: err}
		}
		p.observe(op, outcome(err))
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		p.logger.Warn("transient processor failure",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return err
	}, b)
}

func (p *ResilientProcessor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsTransient(err):
		return "transient"
	default:
		return "error"
	}
}
