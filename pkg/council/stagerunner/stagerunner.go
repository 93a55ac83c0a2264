// Package stagerunner fans a batch of model calls out concurrently, with
// per-task deadlines, bounded retry on transient failure, and deterministic,
// input-order results.
//
// The concurrency-limiting shape (WaitGroup + buffered-channel semaphore) is
// grounded on ai-notetaking-be's internal/service/location_service.go
// getCitiesDomestic path, generalized from a shared-slice-plus-mutex
// accumulator to indexed writes into a preallocated results slice, since
// task index is known up front here and order must be preserved exactly.
//
// Retry uses github.com/cenkalti/backoff/v5 for attempt bookkeeping and
// permanent-error short-circuiting; the actual backoff delay is computed by
// a full-jitter BackOff implementation matching spec §4.6's
// min(cap, base*2^(attempt-1)) formula.
package stagerunner

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"ai-notetaking-be/pkg/council"
	"ai-notetaking-be/pkg/council/cerr"
)

// Task is one unit of work dispatched by RunAll. Run must honor ctx's
// cancellation and should treat deadline as the point past which it must
// give up and return a KindModelTimeout error.
type Task struct {
	Run func(ctx context.Context, deadline time.Time) (string, error)
}

// Result is one task's outcome. Exactly one of Text or Err is meaningful;
// Canceled is set when the cancellation token tripped before the task's
// slot was ever attempted or completed.
type Result struct {
	Text     string
	Err      error
	Canceled bool
}

// RunAll dispatches every task concurrently, retrying Transient and Timeout
// failures per policy, and returns results in the same order as tasks.
// Partial success is the normal outcome: RunAll itself never returns an
// error. ctx cancellation trips the shared cancellation token: in-flight
// tasks are asked to abort, and every task that had not completed is
// marked Canceled.
func RunAll(ctx context.Context, tasks []Task, perTaskTimeout time.Duration, policy council.RetryPolicy, maxConcurrent int) []Result {
	results := make([]Result, len(tasks))
	if len(tasks) == 0 {
		return results
	}
	if maxConcurrent <= 0 {
		maxConcurrent = len(tasks)
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrent)

	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task Task) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = Result{Canceled: true, Err: cerr.New(cerr.KindCanceled, "canceled before dispatch")}
				return
			}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				results[i] = Result{Canceled: true, Err: cerr.New(cerr.KindCanceled, "canceled before dispatch")}
				return
			}

			results[i] = runWithRetry(ctx, task, perTaskTimeout, policy)
		}(i, task)
	}

	wg.Wait()
	return results
}

func runWithRetry(ctx context.Context, task Task, perTaskTimeout time.Duration, policy council.RetryPolicy) Result {
	maxTries := policy.MaxAttempts
	if maxTries <= 0 {
		maxTries = 1
	}

	jitter := &fullJitterBackOff{base: policy.BackoffBase, cap: policy.BackoffCap}

	operation := func() (string, error) {
		deadline := time.Now().Add(perTaskTimeout)
		text, err := task.Run(ctx, deadline)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", backoff.Permanent(cerr.Wrap(cerr.KindCanceled, "canceled mid-task", err))
		}
		if !cerr.Retryable(cerr.KindOf(err)) {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	text, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(jitter),
		backoff.WithMaxTries(uint(maxTries)),
	)
	if err != nil {
		return Result{Err: unwrapPermanent(err), Canceled: ctx.Err() != nil}
	}
	return Result{Text: text}
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Unwrap()
	}
	return err
}

// fullJitterBackOff implements backoff.BackOff with spec §4.6's formula:
// delay = random(0, min(cap, base * 2^(attempt-1))).
type fullJitterBackOff struct {
	base    time.Duration
	cap     time.Duration
	attempt int
}

func (b *fullJitterBackOff) NextBackOff() time.Duration {
	b.attempt++
	upper := b.base << (b.attempt - 1)
	if b.cap > 0 && upper > b.cap {
		upper = b.cap
	}
	if upper <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(upper)))
}

func (b *fullJitterBackOff) Reset() {
	b.attempt = 0
}
