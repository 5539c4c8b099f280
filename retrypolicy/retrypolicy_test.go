package retrypolicy

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("boom")

func TestDoSucceedsOnFirstAttempt(t *testing.T) {
	p := Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 10 * time.Millisecond, Multiplier: 2}
	calls := 0
	err := p.Do(context.Background(), func(attempt int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := Policy{MaxAttempts: 5, InitialInterval: time.Millisecond, MaxInterval: 10 * time.Millisecond, Multiplier: 2}
	calls := 0
	err := p.Do(context.Background(), func(attempt int) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoExhaustsMaxAttemptsExactlyOnce(t *testing.T) {
	p := Policy{MaxAttempts: 1, InitialInterval: time.Millisecond, MaxInterval: 10 * time.Millisecond, Multiplier: 2}
	calls := 0
	err := p.Do(context.Background(), func(attempt int) error {
		calls++
		return errTransient
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrMaxAttempts) {
		t.Fatalf("got %v, want wrapped ErrMaxAttempts", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want exactly 1", calls)
	}
}

func TestDoExhaustsMaxAttemptsAfterRetries(t *testing.T) {
	p := Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 10 * time.Millisecond, Multiplier: 2}
	calls := 0
	err := p.Do(context.Background(), func(attempt int) error {
		calls++
		return errTransient
	})
	if !errors.Is(err, ErrMaxAttempts) {
		t.Fatalf("got %v, want wrapped ErrMaxAttempts", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	p := Policy{MaxAttempts: 100, InitialInterval: 50 * time.Millisecond, MaxInterval: time.Second, Multiplier: 2}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := p.Do(ctx, func(attempt int) error {
		calls++
		if calls == 1 {
			cancel()
		}
		return errTransient
	})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
}
