package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(Config{
		Retry: RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2},
	})

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{
			Retryable:     errors.Is(err, errTemp),
			RecordFailure: true,
		}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{
		Retry: RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2},
	})

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		Retry: RetryPolicy{MaxAttempts: 1, InitialBackoff: time.Millisecond},
		Breaker: BreakerPolicy{
			Enabled:          true,
			MinRequests:      2,
			FailureRatio:     0.5,
			OpenTimeout:      50 * time.Millisecond,
			HalfOpenMaxCalls: 1,
		},
	})

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
}

func TestCallReturnsValueAndReportsRetries(t *testing.T) {
	var retried []int
	exec := NewExecutorWithHooks(Config{
		Retry:   RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		Breaker: BreakerPolicy{Enabled: true},
	}, Hooks{OnRetry: func(_ string, attempt int) { retried = append(retried, attempt) }})

	errTemp := errors.New("temporary")
	attempts := 0
	got, err := Call(context.Background(), exec, "ollama.extract", func(context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errTemp
		}
		return "ok", nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{Retryable: errors.Is(err, errTemp), RecordFailure: true}
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != "ok" {
		t.Fatalf("expected ok, got %q", got)
	}
	if len(retried) != 1 || retried[0] != 1 {
		t.Fatalf("expected one retry hook call, got %v", retried)
	}
}

func TestCallWithNilExecutorRunsOnce(t *testing.T) {
	attempts := 0
	_, err := Call(context.Background(), nil, "op", func(context.Context) (int, error) {
		attempts++
		return 0, errors.New("boom")
	}, nil)
	if err == nil || attempts != 1 {
		t.Fatalf("expected single failing attempt, got attempts=%d err=%v", attempts, err)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	policy := RetryPolicy{
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     25 * time.Millisecond,
		Multiplier:     2,
	}.withDefaults(DefaultConfig().Retry)
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond, 25 * time.Millisecond}
	for i, w := range want {
		if got := policy.backoff(i + 1); got != w {
			t.Fatalf("backoff(%d) = %s, want %s", i+1, got, w)
		}
	}
}

func TestBreakerPolicyTrips(t *testing.T) {
	policy := BreakerPolicy{MinRequests: 4, FailureRatio: 0.5}
	cases := []struct {
		requests, failures uint32
		want               bool
	}{
		{3, 3, false},
		{4, 1, false},
		{4, 2, true},
		{10, 9, true},
	}
	for _, tc := range cases {
		if got := policy.tripped(tc.requests, tc.failures); got != tc.want {
			t.Fatalf("tripped(%d, %d) = %v, want %v", tc.requests, tc.failures, got, tc.want)
		}
	}
}

func TestZeroConfigTakesDefaults(t *testing.T) {
	got := Config{}.withDefaults()
	def := DefaultConfig()
	if got.Retry != def.Retry {
		t.Fatalf("retry = %+v, want %+v", got.Retry, def.Retry)
	}
	if got.Breaker.Enabled {
		t.Fatalf("zero config must leave the breaker disabled")
	}
	if got.Breaker.MinRequests != def.Breaker.MinRequests {
		t.Fatalf("min requests = %d, want %d", got.Breaker.MinRequests, def.Breaker.MinRequests)
	}
}
