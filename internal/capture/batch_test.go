package capture

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProcessor struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(req Request, attempt int) (*Result, error)
}

func newStubProcessor(fn func(req Request, attempt int) (*Result, error)) *stubProcessor {
	return &stubProcessor{calls: map[string]int{}, fn: fn}
}

func (s *stubProcessor) Process(_ context.Context, req Request) (*Result, error) {
	s.mu.Lock()
	attempt := s.calls[req.ID]
	s.calls[req.ID] = attempt + 1
	s.mu.Unlock()
	return s.fn(req, attempt)
}

func okResult(id string) *Result {
	return &Result{ID: id, Image: []byte{1}, CapturedAt: time.Now()}
}

func makeRequests(n int) []Request {
	reqs := make([]Request, n)
	for i := range reqs {
		reqs[i] = Request{ID: fmt.Sprintf("r%d", i), URL: "https://example.com", TargetText: "hi"}
	}
	return reqs
}

func noSleep(opts BatchOptions) BatchOptions {
	opts.sleep = func(time.Duration) {}
	return opts
}

func TestRunBatchAlignsResultsWithRequests(t *testing.T) {
	reqs := makeRequests(7)
	proc := newStubProcessor(func(req Request, _ int) (*Result, error) {
		return okResult(req.ID), nil
	})

	results := RunBatch(context.Background(), proc, reqs, noSleep(BatchOptions{BatchSize: 3}))

	require.Len(t, results, len(reqs))
	for i, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, reqs[i].ID, res.ID)
		assert.True(t, res.OK())
	}
}

func TestRunBatchBackoffDoubles(t *testing.T) {
	var mu sync.Mutex
	var slept []time.Duration

	proc := newStubProcessor(func(req Request, _ int) (*Result, error) {
		return failed(req.ID, FailureNavigation, "timeout"), nil
	})

	opts := BatchOptions{
		BatchSize:  1,
		MaxRetries: 2,
		RetryDelay: time.Second,
		sleep: func(d time.Duration) {
			mu.Lock()
			slept = append(slept, d)
			mu.Unlock()
		},
	}
	results := RunBatch(context.Background(), proc, makeRequests(1), opts)

	require.Len(t, results, 1)
	assert.Equal(t, FailureNavigation, results[0].Failure)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept)
}

func TestRunBatchSucceedsOnThirdAttemptAfterBackoff(t *testing.T) {
	var mu sync.Mutex
	var slept []time.Duration

	proc := newStubProcessor(func(req Request, attempt int) (*Result, error) {
		if attempt < 2 {
			return failed(req.ID, FailureNavigation, "timeout"), nil
		}
		return okResult(req.ID), nil
	})

	opts := BatchOptions{
		MaxRetries: 2,
		RetryDelay: time.Second,
		sleep: func(d time.Duration) {
			mu.Lock()
			slept = append(slept, d)
			mu.Unlock()
		},
	}
	results := RunBatch(context.Background(), proc, makeRequests(1), opts)

	require.Len(t, results, 1)
	assert.True(t, results[0].OK())
	assert.Equal(t, 3, proc.calls["r0"])
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept)
}

func TestRunBatchRecoversAfterRetry(t *testing.T) {
	proc := newStubProcessor(func(req Request, attempt int) (*Result, error) {
		if attempt == 0 {
			return failed(req.ID, FailureSessionCrashed, "browser gone"), nil
		}
		return okResult(req.ID), nil
	})

	results := RunBatch(context.Background(), proc, makeRequests(1), noSleep(BatchOptions{MaxRetries: 2}))

	require.Len(t, results, 1)
	assert.True(t, results[0].OK())
	assert.Equal(t, 2, proc.calls["r0"])
}

func TestRunBatchExhaustedRetriesKeepsLastFailure(t *testing.T) {
	proc := newStubProcessor(func(req Request, _ int) (*Result, error) {
		return failed(req.ID, FailureTextNotFound, "nothing matched"), nil
	})

	results := RunBatch(context.Background(), proc, makeRequests(1), noSleep(BatchOptions{MaxRetries: 2}))

	require.Len(t, results, 1)
	assert.Equal(t, FailureTextNotFound, results[0].Failure)
	assert.Equal(t, 3, proc.calls["r0"])
}

func TestRunBatchPanicBecomesFaultResult(t *testing.T) {
	proc := newStubProcessor(func(req Request, _ int) (*Result, error) {
		if req.ID == "r1" {
			panic("boom")
		}
		return okResult(req.ID), nil
	})

	opts := noSleep(BatchOptions{BatchSize: 2, ShouldRetry: func(*Result) bool { return false }})
	results := RunBatch(context.Background(), proc, makeRequests(3), opts)

	require.Len(t, results, 3)
	assert.True(t, results[0].OK())
	assert.Equal(t, FailureFault, results[1].Failure)
	assert.Contains(t, results[1].FailureDetail, "boom")
	assert.True(t, results[2].OK())
}

func TestRunBatchProcessorErrorBecomesFault(t *testing.T) {
	proc := newStubProcessor(func(req Request, _ int) (*Result, error) {
		return nil, fmt.Errorf("wiring broke")
	})

	opts := noSleep(BatchOptions{ShouldRetry: func(*Result) bool { return false }})
	results := RunBatch(context.Background(), proc, makeRequests(1), opts)

	require.Len(t, results, 1)
	assert.Equal(t, FailureFault, results[0].Failure)
	assert.Contains(t, results[0].FailureDetail, "wiring broke")
}

func TestRunBatchProgressReportsEveryTerminalItem(t *testing.T) {
	var mu sync.Mutex
	var seen []int

	proc := newStubProcessor(func(req Request, _ int) (*Result, error) {
		return okResult(req.ID), nil
	})
	opts := noSleep(BatchOptions{
		BatchSize: 2,
		OnProgress: func(done, total int, _ Request) {
			mu.Lock()
			seen = append(seen, done)
			mu.Unlock()
			assert.Equal(t, 5, total)
		},
	})
	RunBatch(context.Background(), proc, makeRequests(5), opts)

	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, seen)
}

func TestRunBatchDefaultShouldRetrySkipsSuccess(t *testing.T) {
	proc := newStubProcessor(func(req Request, _ int) (*Result, error) {
		return okResult(req.ID), nil
	})

	RunBatch(context.Background(), proc, makeRequests(1), noSleep(BatchOptions{MaxRetries: 3}))

	assert.Equal(t, 1, proc.calls["r0"])
}
