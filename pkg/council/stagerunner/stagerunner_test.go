package stagerunner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"ai-notetaking-be/pkg/council"
	"ai-notetaking-be/pkg/council/cerr"
)

func TestRunAllPreservesOrderWithMixedOutcomes(t *testing.T) {
	tasks := []Task{
		{Run: func(ctx context.Context, deadline time.Time) (string, error) { return "first", nil }},
		{Run: func(ctx context.Context, deadline time.Time) (string, error) {
			return "", cerr.New(cerr.KindModelPermanent, "bad model")
		}},
		{Run: func(ctx context.Context, deadline time.Time) (string, error) { return "third", nil }},
	}

	results := RunAll(context.Background(), tasks, time.Second, council.RetryPolicy{MaxAttempts: 1}, 4)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Text != "first" || results[0].Err != nil {
		t.Fatalf("unexpected result[0]: %+v", results[0])
	}
	if results[1].Err == nil {
		t.Fatalf("expected result[1] to carry the permanent error")
	}
	if results[2].Text != "third" {
		t.Fatalf("unexpected result[2]: %+v", results[2])
	}
}

func TestRunAllRetriesTransientErrors(t *testing.T) {
	var attempts atomic.Int32
	tasks := []Task{
		{Run: func(ctx context.Context, deadline time.Time) (string, error) {
			n := attempts.Add(1)
			if n < 3 {
				return "", cerr.New(cerr.KindModelTransient, "flaky upstream")
			}
			return "recovered", nil
		}},
	}

	results := RunAll(context.Background(), tasks, time.Second,
		council.RetryPolicy{MaxAttempts: 5, BackoffBase: time.Millisecond, BackoffCap: 5 * time.Millisecond}, 1)

	if results[0].Err != nil {
		t.Fatalf("expected eventual success, got err=%v", results[0].Err)
	}
	if results[0].Text != "recovered" {
		t.Fatalf("unexpected text: %q", results[0].Text)
	}
	if attempts.Load() != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts.Load())
	}
}

func TestRunAllDoesNotRetryPermanentErrors(t *testing.T) {
	var attempts atomic.Int32
	tasks := []Task{
		{Run: func(ctx context.Context, deadline time.Time) (string, error) {
			attempts.Add(1)
			return "", cerr.New(cerr.KindModelPermanent, "nope")
		}},
	}

	results := RunAll(context.Background(), tasks, time.Second,
		council.RetryPolicy{MaxAttempts: 5, BackoffBase: time.Millisecond, BackoffCap: 5 * time.Millisecond}, 1)

	if results[0].Err == nil {
		t.Fatalf("expected permanent error to surface")
	}
	if attempts.Load() != 1 {
		t.Fatalf("expected exactly 1 attempt for a permanent error, got %d", attempts.Load())
	}
}

func TestRunAllRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tasks := []Task{
		{Run: func(ctx context.Context, deadline time.Time) (string, error) { return "should not run", nil }},
	}

	results := RunAll(ctx, tasks, time.Second, council.RetryPolicy{MaxAttempts: 1}, 1)

	if !results[0].Canceled {
		t.Fatalf("expected canceled result, got %+v", results[0])
	}
}

func TestRunAllEmptyTaskList(t *testing.T) {
	results := RunAll(context.Background(), nil, time.Second, council.RetryPolicy{MaxAttempts: 1}, 1)

	if len(results) != 0 {
		t.Fatalf("expected empty results, got %v", results)
	}
}
