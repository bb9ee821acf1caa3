package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func instant(calls *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*calls = append(*calls, d)
		return nil
	}
}

func TestDoStopsAtFirstSuccess(t *testing.T) {
	var slept []time.Duration
	policy := Policy{Attempts: 3, Delay: 5 * time.Second, Sleep: instant(&slept)}
	calls := 0
	err := policy.Do(context.Background(), func(_ context.Context, attempt int) error {
		calls++
		if attempt < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != 5*time.Second {
		t.Fatalf("expected one 5s pause, got %v", slept)
	}
}

func TestDoSurfacesLastError(t *testing.T) {
	var slept []time.Duration
	var retried []int
	last := errors.New("third")
	policy := Policy{
		Attempts: 3,
		Delay:    time.Second,
		Sleep:    instant(&slept),
		OnRetry:  func(attempt int, _ error) { retried = append(retried, attempt) },
	}
	err := policy.Do(context.Background(), func(_ context.Context, attempt int) error {
		if attempt == 3 {
			return last
		}
		return errors.New("earlier")
	})
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 3 || !errors.Is(err, last) {
		t.Fatalf("unexpected exhaustion %+v", exhausted)
	}
	if len(slept) != 2 || len(retried) != 2 || retried[1] != 2 {
		t.Fatalf("expected two pauses between three attempts, slept=%v retried=%v", slept, retried)
	}
}

func TestDoHonoursStop(t *testing.T) {
	calls := 0
	fatal := errors.New("fatal")
	err := Policy{Attempts: 5}.Do(context.Background(), func(context.Context, int) error {
		calls++
		return Stop(fatal)
	})
	if !errors.Is(err, fatal) || calls != 1 {
		t.Fatalf("expected single call returning fatal, got calls=%d err=%v", calls, err)
	}
}

func TestDoStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	policy := Policy{Attempts: 3, Delay: time.Hour}
	err := policy.Do(ctx, func(context.Context, int) error {
		calls++
		cancel()
		return errors.New("boom")
	})
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Attempts != 1 {
		t.Fatalf("expected exhaustion after one attempt, got %v", err)
	}
}

func TestZeroAttemptsStillRunsOnce(t *testing.T) {
	calls := 0
	_ = Policy{}.Do(context.Background(), func(context.Context, int) error {
		calls++
		return nil
	})
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}
