package upstream

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chatrelay/chatrelay/internal/relay/content"
)

// fakeCaller scripts per-call outcomes and tracks concurrency.
type fakeCaller struct {
	mu        sync.Mutex
	calls     int
	inFlight  int32
	maxSeen   int32
	replies   func(call int) (string, error)
	block     chan struct{}
	dispatchs []string
}

func (f *fakeCaller) Complete(ctx context.Context, req *Request) (string, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	if len(req.Messages) > 0 && len(req.Messages[0].Content) > 0 {
		f.dispatchs = append(f.dispatchs, req.Messages[0].Content[0].Text)
	}
	f.mu.Unlock()

	current := atomic.AddInt32(&f.inFlight, 1)
	for {
		max := atomic.LoadInt32(&f.maxSeen)
		if current <= max || atomic.CompareAndSwapInt32(&f.maxSeen, max, current) {
			break
		}
	}
	defer atomic.AddInt32(&f.inFlight, -1)

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if f.replies != nil {
		return f.replies(call)
	}
	return "ok", nil
}

func (f *fakeCaller) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func userRequest(text string) *Request {
	return &Request{Model: "m", Messages: []content.Message{content.Text(content.RoleUser, text)}}
}

func fastConfig(maxConcurrent int) PoolConfig {
	return PoolConfig{
		MaxConcurrent:  maxConcurrent,
		MaxAttempts:    3,
		AttemptTimeout: time.Second,
		BackoffBase:    time.Millisecond,
	}
}

func TestPoolRetriesTransientFailures(t *testing.T) {
	caller := &fakeCaller{replies: func(call int) (string, error) {
		if call < 3 {
			return "", &ProviderError{StatusCode: http.StatusServiceUnavailable, Message: "busy"}
		}
		return "recovered", nil
	}}

	pool := NewPool(caller, fastConfig(2), nil)
	text, err := pool.Complete(context.Background(), userRequest("hi"))
	require.NoError(t, err)
	require.Equal(t, "recovered", text)
	require.Equal(t, 3, caller.callCount())
}

func TestPoolFailsFastOnRejectedStatus(t *testing.T) {
	caller := &fakeCaller{replies: func(call int) (string, error) {
		return "", &ProviderError{StatusCode: http.StatusBadRequest, Message: "bad payload"}
	}}

	pool := NewPool(caller, fastConfig(2), nil)
	_, err := pool.Complete(context.Background(), userRequest("hi"))
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, http.StatusBadRequest, perr.StatusCode)
	require.Equal(t, 1, caller.callCount(), "4xx other than 429 must not consume further attempts")
}

func TestPoolExhaustsAttemptBudget(t *testing.T) {
	caller := &fakeCaller{replies: func(call int) (string, error) {
		return "", &ProviderError{StatusCode: http.StatusTooManyRequests, Message: "slow down"}
	}}

	pool := NewPool(caller, fastConfig(2), nil)
	_, err := pool.Complete(context.Background(), userRequest("hi"))
	require.Error(t, err)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 3, exhausted.Attempts)
	require.Contains(t, exhausted.Error(), "slow down")
	require.Equal(t, 3, caller.callCount())
}

func TestPoolRetriesEmptyContent(t *testing.T) {
	caller := &fakeCaller{replies: func(call int) (string, error) {
		if call == 1 {
			return "   \n ", nil
		}
		return "substance", nil
	}}

	pool := NewPool(caller, fastConfig(2), nil)
	text, err := pool.Complete(context.Background(), userRequest("hi"))
	require.NoError(t, err)
	require.Equal(t, "substance", text)
	require.Equal(t, 2, caller.callCount())
}

func TestPoolRetriesMalformedResponses(t *testing.T) {
	caller := &fakeCaller{replies: func(call int) (string, error) {
		if call == 1 {
			return "", &MalformedError{Reason: "response has no choices"}
		}
		return "fine now", nil
	}}

	pool := NewPool(caller, fastConfig(2), nil)
	text, err := pool.Complete(context.Background(), userRequest("hi"))
	require.NoError(t, err)
	require.Equal(t, "fine now", text)
}

func TestPoolCapsConcurrency(t *testing.T) {
	caller := &fakeCaller{block: make(chan struct{})}
	pool := NewPool(caller, fastConfig(2), nil)

	var wg sync.WaitGroup
	results := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = pool.Complete(context.Background(), userRequest("call"))
		}(i)
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&caller.inFlight) == 2 && pool.QueueDepth() == 3
	}, time.Second, 5*time.Millisecond)

	close(caller.block)
	wg.Wait()

	for _, err := range results {
		require.NoError(t, err)
	}
	require.Equal(t, int32(2), atomic.LoadInt32(&caller.maxSeen))
	require.Equal(t, 5, caller.callCount())
	require.Equal(t, 0, pool.Active())
}

func TestPoolDispatchesQueueInSubmissionOrder(t *testing.T) {
	caller := &fakeCaller{block: make(chan struct{})}
	pool := NewPool(caller, fastConfig(1), nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = pool.Complete(context.Background(), userRequest("first"))
	}()
	require.Eventually(t, func() bool { return pool.Active() == 1 }, time.Second, time.Millisecond)

	// Queue three more one at a time so submission order is known.
	for _, name := range []string{"second", "third", "fourth"} {
		name := name
		depth := pool.QueueDepth()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = pool.Complete(context.Background(), userRequest(name))
		}()
		require.Eventually(t, func() bool { return pool.QueueDepth() == depth+1 }, time.Second, time.Millisecond)
	}

	close(caller.block)
	wg.Wait()

	require.Equal(t, []string{"first", "second", "third", "fourth"}, caller.dispatchs)
}

func TestPoolQueuedCallHonorsCancellation(t *testing.T) {
	caller := &fakeCaller{block: make(chan struct{})}
	pool := NewPool(caller, fastConfig(1), nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = pool.Complete(context.Background(), userRequest("holder"))
	}()
	require.Eventually(t, func() bool { return pool.Active() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := pool.Complete(ctx, userRequest("queued"))
		errCh <- err
	}()
	require.Eventually(t, func() bool { return pool.QueueDepth() == 1 }, time.Second, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
	require.Equal(t, 0, pool.QueueDepth())

	close(caller.block)
	wg.Wait()
}
