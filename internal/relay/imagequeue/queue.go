// Package imagequeue runs image-analysis jobs in a fixed-capacity
// worker pool. Jobs queue in submission order, retry with exponential
// backoff against a per-attempt timeout, and settle exactly once.
package imagequeue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Processor performs one image-analysis attempt, normally an upstream
// completion call carrying the image payload.
type Processor func(ctx context.Context, job Job) (string, error)

// Submission failures.
var (
	ErrDuplicateJob = errors.New("an identical image job is already in flight")
	ErrShuttingDown = errors.New("image queue is shutting down")
)

// Config bounds the worker pool.
type Config struct {
	Capacity       int
	MaxAttempts    int
	AttemptTimeout time.Duration
	BackoffBase    time.Duration
	StaleAge       time.Duration
	ShutdownGrace  time.Duration
}

// DefaultConfig returns the shipped defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:       3,
		MaxAttempts:    2,
		AttemptTimeout: 180 * time.Second,
		BackoffBase:    time.Second,
		StaleAge:       5 * time.Minute,
		ShutdownGrace:  30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = d.Capacity
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
	if c.StaleAge <= 0 {
		c.StaleAge = d.StaleAge
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = d.ShutdownGrace
	}
	return c
}

type queued struct {
	job    Job
	id     string
	result chan Result
}

type tracked struct {
	job       Job
	startedAt time.Time
}

// Queue is the bounded image pipeline.
type Queue struct {
	process Processor
	cfg     Config
	logger  *zap.Logger

	mu          sync.Mutex
	cond        *sync.Cond
	pending     []*queued
	running     map[string]*tracked
	activeCount int
	closed      bool

	processed int64
	succeeded int64
	failed    int64
	avgTiming time.Duration

	workers sync.WaitGroup
}

// New starts a queue with Capacity workers.
func New(process Processor, cfg Config, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &Queue{
		process: process,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		running: make(map[string]*tracked),
	}
	q.cond = sync.NewCond(&q.mu)

	q.workers.Add(q.cfg.Capacity)
	for i := 0; i < q.cfg.Capacity; i++ {
		go q.worker()
	}
	return q
}

// Submit enqueues a job and returns a channel that receives its settled
// result. Duplicate in-flight identities are rejected, not queued.
func (q *Queue) Submit(job Job) (<-chan Result, error) {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	id := job.identity()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if _, exists := q.running[id]; exists {
		q.mu.Unlock()
		return nil, ErrDuplicateJob
	}

	item := &queued{job: job, id: id, result: make(chan Result, 1)}
	q.running[id] = &tracked{job: job, startedAt: job.SubmittedAt}
	q.activeCount++
	q.pending = append(q.pending, item)
	q.cond.Signal()
	q.mu.Unlock()

	return item.result, nil
}

// HasActiveJob reports whether the user has a queued or running job.
// Linear in the number of active jobs, which the capacity keeps small.
func (q *Queue) HasActiveJob(userID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, tr := range q.running {
		if tr.job.UserID == userID {
			return true
		}
	}
	return false
}

// SweepStale evicts bookkeeping for jobs older than the configured
// stale age and returns how many were dropped. The underlying call is
// not cancelled: if it settles later its late result is discarded by
// the settlement path.
func (q *Queue) SweepStale() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	evicted := 0
	for id, tr := range q.running {
		if now.Sub(tr.startedAt) > q.cfg.StaleAge {
			delete(q.running, id)
			if q.activeCount > 0 {
				q.activeCount--
			}
			evicted++
			q.logger.Warn("evicted stale image job",
				zap.Int64("user_id", tr.job.UserID),
				zap.Duration("age", now.Sub(tr.startedAt)))
		}
	}
	return evicted
}

// Stats snapshots the queue's bookkeeping.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Active:        q.activeCount,
		Queued:        len(q.pending),
		Processed:     q.processed,
		Succeeded:     q.succeeded,
		Failed:        q.failed,
		AverageTiming: q.avgTiming,
	}
}

// Close stops accepting submissions, waits up to the shutdown grace for
// outstanding jobs to settle, then force-clears all tracking state.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	orphaned := q.pending
	q.pending = nil
	q.cond.Broadcast()
	q.mu.Unlock()

	for _, item := range orphaned {
		q.settle(item, Result{Err: ErrShuttingDown})
	}

	done := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(q.cfg.ShutdownGrace):
		q.logger.Warn("image queue shutdown grace expired",
			zap.Duration("grace", q.cfg.ShutdownGrace))
	}

	q.mu.Lock()
	q.running = make(map[string]*tracked)
	q.activeCount = 0
	q.mu.Unlock()
}

func (q *Queue) worker() {
	defer q.workers.Done()
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		item := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.run(item)
	}
}

// run executes a job's full attempt budget and settles it.
func (q *Queue) run(item *queued) {
	start := time.Now()

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= q.cfg.MaxAttempts; attempt++ {
		attempts = attempt
		text, err := q.attempt(item.job)
		if err == nil {
			q.settle(item, Result{Text: text, Attempts: attempts, Elapsed: time.Since(start)})
			return
		}
		lastErr = err
		if attempt < q.cfg.MaxAttempts {
			time.Sleep(q.cfg.BackoffBase * (1 << (attempt - 1)))
		}
	}

	q.settle(item, Result{
		Err:      fmt.Errorf("image job failed after %d attempts: %w", attempts, lastErr),
		Attempts: attempts,
		Elapsed:  time.Since(start),
	})
}

func (q *Queue) attempt(job Job) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.AttemptTimeout)
	defer cancel()
	return q.process(ctx, job)
}

// settle updates the registry and counters exactly once and delivers
// the result. A job evicted by SweepStale has no registry entry left;
// its late result only feeds the aggregate counters.
func (q *Queue) settle(item *queued, res Result) {
	q.mu.Lock()
	if _, ok := q.running[item.id]; ok {
		delete(q.running, item.id)
		if q.activeCount > 0 {
			q.activeCount--
		}
	}
	q.processed++
	if res.Err == nil {
		q.succeeded++
	} else {
		q.failed++
	}
	q.avgTiming += (res.Elapsed - q.avgTiming) / time.Duration(q.processed)
	q.mu.Unlock()

	item.result <- res
}
