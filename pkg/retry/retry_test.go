package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "isicfetch/pkg/errors"
)

func retryableErr() error {
	return &errs.Error{Type: errs.ErrorTypeServerError, Message: "server error", Code: 503}
}

func permanentErr() error {
	return &errs.Error{Type: errs.ErrorTypeNotFound, Message: "gone", Code: 404}
}

func testConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return nil
	}, testConfig(3))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		if calls < 3 {
			return retryableErr()
		}
		return nil
	}, testConfig(5))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return retryableErr()
	}, testConfig(3))

	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}

	var apiErr *errs.Error
	if !errors.As(err, &apiErr) {
		t.Errorf("final error does not wrap the last failure: %v", err)
	}
}

func TestDoPermanentErrorNotRetried(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return permanentErr()
	}, testConfig(5))

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("permanent error retried: %d calls", calls)
	}
}

func TestDoContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := &Config{
		MaxAttempts: 0, // unlimited
		Backoff:     &ConstantBackoff{Delay: time.Hour},
		RetryIf:     DefaultRetryIf,
		Context:     ctx,
	}

	done := make(chan error, 1)
	go func() {
		done <- Do(func() error { return retryableErr() }, cfg)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	result, err := DoWithResult(func() (string, error) {
		calls++
		if calls < 2 {
			return "", retryableErr()
		}
		return "payload", nil
	}, testConfig(3))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "payload" {
		t.Errorf("result = %q, want %q", result, "payload")
	}
}

func TestDoOnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := testConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	}

	Do(func() error { return retryableErr() }, cfg)

	if len(attempts) != 2 {
		t.Errorf("expected 2 retry callbacks, got %d", len(attempts))
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"retryable api error", retryableErr(), true},
		{"permanent api error", permanentErr(), false},
		{"rate limit", &errs.Error{Type: errs.ErrorTypeRateLimit}, true},
		{"auth", &errs.Error{Type: errs.ErrorTypeAuth}, false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"unknown error", errors.New("mystery"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryIf(tt.err); got != tt.want {
				t.Errorf("DefaultRetryIf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestExponentialBackoffGrowth(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 2.0,
	}

	if d := eb.NextDelay(1); d != 100*time.Millisecond {
		t.Errorf("attempt 1 delay = %v", d)
	}
	if d := eb.NextDelay(2); d != 200*time.Millisecond {
		t.Errorf("attempt 2 delay = %v", d)
	}
	if d := eb.NextDelay(10); d != time.Second {
		t.Errorf("attempt 10 delay = %v, want capped at 1s", d)
	}
	if d := eb.NextDelay(0); d != 0 {
		t.Errorf("attempt 0 delay = %v, want 0", d)
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.5,
	}

	for i := 0; i < 100; i++ {
		d := eb.NextDelay(1)
		if d < 50*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("jittered delay %v outside [50ms, 150ms]", d)
		}
	}
}

func TestRetrierBuilders(t *testing.T) {
	base := NewRetrier(testConfig(1))
	tweaked := base.WithMaxAttempts(4)

	calls := 0
	tweaked.Do(func() error {
		calls++
		return retryableErr()
	})

	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}

	// Base retrier is unchanged
	calls = 0
	base.Do(func() error {
		calls++
		return retryableErr()
	})
	if calls != 1 {
		t.Errorf("base retrier mutated: %d calls", calls)
	}
}

func TestWaitRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Wait(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if err := Wait(context.Background(), 0); err != nil {
		t.Errorf("zero delay returned error: %v", err)
	}
}
