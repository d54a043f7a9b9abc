package upstream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Caller performs a single completion attempt. *Client implements it;
// tests substitute fakes.
type Caller interface {
	Complete(ctx context.Context, req *Request) (string, error)
}

// PoolConfig bounds the concurrency and retry budget of upstream calls.
type PoolConfig struct {
	MaxConcurrent  int
	MaxAttempts    int
	AttemptTimeout time.Duration
	BackoffBase    time.Duration
}

// DefaultPoolConfig returns the shipped defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConcurrent:  5,
		MaxAttempts:    3,
		AttemptTimeout: 120 * time.Second,
		BackoffBase:    400 * time.Millisecond,
	}
}

func (c PoolConfig) withDefaults() PoolConfig {
	d := DefaultPoolConfig()
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = d.AttemptTimeout
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = d.BackoffBase
	}
	return c
}

// Pool dispatches completion calls with a concurrency cap. Calls beyond
// the cap queue and are granted slots in submission order. Each call
// retries transient failures with exponential backoff, racing every
// attempt against the per-attempt timeout.
type Pool struct {
	caller Caller
	cfg    PoolConfig
	logger *zap.Logger

	mu      sync.Mutex
	active  int
	waiters []chan struct{}
}

// NewPool wraps a caller with queueing and retry policy.
func NewPool(caller Caller, cfg PoolConfig, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{caller: caller, cfg: cfg.withDefaults(), logger: logger}
}

// Complete runs one completion call through the pool.
func (p *Pool) Complete(ctx context.Context, req *Request) (string, error) {
	// Surface request construction problems before consuming a slot or
	// the attempt budget.
	if _, err := buildChatRequest(req); err != nil {
		return "", err
	}

	if err := p.acquire(ctx); err != nil {
		return "", err
	}
	defer p.release()

	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		text, err := p.attempt(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !retryable(err) {
			return "", err
		}
		if attempt < p.cfg.MaxAttempts {
			backoff := p.cfg.BackoffBase * (1 << (attempt - 1))
			p.logger.Warn("upstream attempt failed, backing off",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			if err := sleepContext(ctx, backoff); err != nil {
				return "", err
			}
		}
	}

	return "", &ExhaustedError{Attempts: p.cfg.MaxAttempts, Last: lastErr}
}

// QueueDepth reports how many calls are waiting for a slot.
func (p *Pool) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}

// Active reports how many calls hold a slot.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *Pool) attempt(ctx context.Context, req *Request) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.AttemptTimeout)
	defer cancel()

	text, err := p.caller.Complete(attemptCtx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoContent
	}
	return text, nil
}

func (p *Pool) acquire(ctx context.Context) error {
	p.mu.Lock()
	if p.active < p.cfg.MaxConcurrent {
		p.active++
		p.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	p.waiters = append(p.waiters, ready)
	p.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		p.mu.Lock()
		for i, waiter := range p.waiters {
			if waiter == ready {
				p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
				p.mu.Unlock()
				return ctx.Err()
			}
		}
		p.mu.Unlock()
		// A slot was granted concurrently with cancellation; hand it on.
		p.release()
		return ctx.Err()
	}
}

// release hands the slot to the oldest waiter, or frees it when the
// queue is empty. Granting to a waiter keeps the active count flat: the
// slot transfers.
func (p *Pool) release() {
	p.mu.Lock()
	if len(p.waiters) > 0 {
		ready := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		close(ready)
		return
	}
	if p.active > 0 {
		p.active--
	}
	p.mu.Unlock()
}

// retryable classifies a failed attempt. Provider statuses decide for
// themselves; malformed shapes and empty content are treated as
// transiently inconsistent upstream state; everything else is assumed
// to be a network-level failure and retried.
func retryable(err error) bool {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Retryable()
	}
	var merr *MalformedError
	if errors.As(err, &merr) {
		return true
	}
	if errors.Is(err, ErrNoContent) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
