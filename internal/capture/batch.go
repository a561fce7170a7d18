package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Processor is anything that can turn one Request into one Result. The
// Orchestrator satisfies it; tests substitute their own.
type Processor interface {
	Process(ctx context.Context, req Request) (*Result, error)
}

// BatchOptions tunes the batch coordinator.
type BatchOptions struct {
	// BatchSize is how many captures run concurrently per window. Default 3.
	BatchSize int

	// DelayBetweenBatches is the pause after each window. Default 2s.
	DelayBetweenBatches time.Duration

	// DelayWithinBatch staggers the launch of workers inside a window.
	// Default 500ms.
	DelayWithinBatch time.Duration

	// MaxRetries is how many times a failed capture is re-run. Default 2.
	MaxRetries int

	// RetryDelay is the base backoff; attempt n waits RetryDelay * 2^n.
	// Default 1s.
	RetryDelay time.Duration

	// ShouldRetry decides whether a result warrants another attempt. The
	// default retries any result that is present and not OK.
	ShouldRetry func(*Result) bool

	// OnProgress is called once per request when it reaches a terminal
	// result.
	OnProgress func(done, total int, item Request)

	Logger *log.Logger

	// sleep is swapped out by tests.
	sleep func(time.Duration)
}

func (o *BatchOptions) defaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 3
	}
	if o.DelayBetweenBatches <= 0 {
		o.DelayBetweenBatches = 2 * time.Second
	}
	if o.DelayWithinBatch <= 0 {
		o.DelayWithinBatch = 500 * time.Millisecond
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = 2
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
	if o.ShouldRetry == nil {
		o.ShouldRetry = func(r *Result) bool { return r != nil && !r.OK() }
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.sleep == nil {
		o.sleep = time.Sleep
	}
}

// RunBatch processes the requests in fixed concurrent windows and returns one
// Result per request, positionally aligned with the input. Every request gets
// a Result; nothing short of a canceled context stops the batch.
func RunBatch(ctx context.Context, proc Processor, requests []Request, opts BatchOptions) []*Result {
	opts.defaults()

	results := make([]*Result, len(requests))
	var done int
	var doneMu sync.Mutex

	reportDone := func(i int) {
		doneMu.Lock()
		done++
		n := done
		doneMu.Unlock()
		if opts.OnProgress != nil {
			opts.OnProgress(n, len(requests), requests[i])
		}
	}

	for start := 0; start < len(requests); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(requests) {
			end = len(requests)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			if i > start {
				opts.sleep(opts.DelayWithinBatch)
			}
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = runOne(ctx, proc, requests[i], opts)
				reportDone(i)
			}(i)
		}
		wg.Wait()

		if end < len(requests) {
			opts.sleep(opts.DelayBetweenBatches)
		}
	}

	return results
}

// runOne drives a single request through its retry loop. A panic in the
// processor becomes a fault Result instead of taking down the batch.
func runOne(ctx context.Context, proc Processor, req Request, opts BatchOptions) *Result {
	var last *Result
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			opts.sleep(opts.RetryDelay * (1 << (attempt - 1)))
			opts.Logger.Info("batch: retrying capture", "id", req.ID, "attempt", attempt)
		}

		res := safeProcess(ctx, proc, req)
		last = res
		if ctx.Err() != nil {
			return res
		}
		if !opts.ShouldRetry(res) {
			return res
		}
	}
	opts.Logger.Warn("batch: retries exhausted", "id", req.ID, "failure", last.Failure)
	return last
}

func safeProcess(ctx context.Context, proc Processor, req Request) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failed(req.ID, FailureFault, fmt.Sprintf("panic: %v", r))
		}
	}()

	res, err := proc.Process(ctx, req)
	if err != nil {
		return failed(req.ID, FailureFault, err.Error())
	}
	if res == nil {
		return failed(req.ID, FailureFault, "processor returned no result")
	}
	return res
}
