package pkg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, 3, time.Millisecond)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d; want 3", calls)
	}
}

func TestRetry_GivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	failure := errors.New("still down")
	err := Retry(context.Background(), func() error {
		calls++
		return failure
	}, 2, time.Millisecond)
	if !errors.Is(err, failure) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d; want 3 (1 attempt + 2 retries)", calls)
	}
}

func TestRetry_PermanentErrorStopsImmediately(t *testing.T) {
	calls := 0
	failure := errors.New("bad credentials")
	err := Retry(context.Background(), func() error {
		calls++
		return backoff.Permanent(failure)
	}, 5, time.Millisecond)
	if !errors.Is(err, failure) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d; want 1", calls)
	}
}

func TestRetry_StopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, func() error {
		calls++
		cancel()
		return errors.New("fail")
	}, 10, time.Millisecond)
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
	if calls != 1 {
		t.Fatalf("calls = %d; want 1", calls)
	}
}
