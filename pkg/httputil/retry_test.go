package httputil

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func TestPolicyDo_ZeroValueSingleAttempt(t *testing.T) {
	calls := 0
	err := Policy{}.Do(context.Background(), func() error {
		calls++
		return Retryable(errTransient)
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("Do() error = %v, want %v", err, errTransient)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPolicyDo_RetriesRetryable(t *testing.T) {
	calls := 0
	var retried []int
	p := Policy{
		Attempts: 3,
		Delay:    time.Millisecond,
		OnRetry:  func(attempt int, err error) { retried = append(retried, attempt) },
	}
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return Retryable(errTransient)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", retried)
	}
}

func TestPolicyDo_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("not found")
	calls := 0
	err := Policy{Attempts: 5, Delay: time.Millisecond}.Do(context.Background(), func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("Do() error = %v, want %v", err, permanent)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPolicyDo_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Policy{Attempts: 3, Delay: time.Hour}.Do(ctx, func() error {
		return Retryable(errTransient)
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}
	err := Retryable(errTransient)
	if !IsRetryable(err) {
		t.Error("IsRetryable should return true for wrapped error")
	}
	if err.Error() != errTransient.Error() {
		t.Errorf("Error() = %q, want %q", err.Error(), errTransient.Error())
	}
	if IsRetryable(errTransient) {
		t.Error("IsRetryable should return false for unwrapped error")
	}
}
