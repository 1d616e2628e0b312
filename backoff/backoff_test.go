package backoff_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/xraph/warden/backoff"
)

func TestConstant_ReturnsFixedDelay(t *testing.T) {
	c := backoff.NewConstant(5 * time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		if got := c.Delay(attempt); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, 5*time.Second)
		}
	}
}

func TestExponential_DoublesEachAttempt(t *testing.T) {
	e := backoff.NewExponential(time.Second, time.Hour)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential_CapsAtMax(t *testing.T) {
	e := backoff.NewExponential(time.Second, 10*time.Second)
	if got := e.Delay(20); got != 10*time.Second {
		t.Errorf("Delay(20) = %v, want %v (capped at Max)", got, 10*time.Second)
	}
}

func TestExponential_LargeAttemptDoesNotOverflow(t *testing.T) {
	tests := []struct {
		name string
		e    *backoff.Exponential
		want time.Duration
	}{
		{"no max", backoff.NewExponential(time.Second, 0), time.Duration(math.MaxInt64)},
		{"with max", backoff.NewExponential(time.Second, time.Minute), time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, attempt := range []int{64, 200, 5000} {
				if got := tt.e.Delay(attempt); got != tt.want {
					t.Errorf("Delay(%d) = %v, want %v", attempt, got, tt.want)
				}
			}
		})
	}

	j := backoff.NewExponentialWithJitter(time.Second, 0)
	for n := 0; n < 50; n++ {
		if got := j.Delay(5000); got < 0 {
			t.Fatalf("jittered Delay(5000) = %v, want non-negative", got)
		}
	}
}

// steps returns its delays in order, then repeats the last one.
type steps []time.Duration

func (s steps) Delay(attempt int) time.Duration { return s[min(attempt, len(s))-1] }

func TestRetry_HugeDelayStopsAtBudget(t *testing.T) {
	mock := clock.NewMock()
	fail := errors.New("store unavailable")

	var attempts []int
	done := make(chan error, 1)
	go func() {
		done <- backoff.Retry(context.Background(), mock, steps{time.Second, time.Duration(math.MaxInt64)}, time.Hour,
			func(_ context.Context, attempt int) error {
				attempts = append(attempts, attempt)
				return fail
			})
	}()

	settle()
	mock.Add(time.Second)

	select {
	case err := <-done:
		if !errors.Is(err, fail) {
			t.Fatalf("expected last error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Retry did not return")
	}
	if len(attempts) != 2 {
		t.Errorf("expected 2 attempts, got %v", attempts)
	}
}

func TestExponentialWithJitter_StaysInRange(t *testing.T) {
	e := backoff.NewExponentialWithJitter(time.Second, 8*time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		upper := backoff.NewExponential(time.Second, 8*time.Second).Delay(attempt)
		for n := 0; n < 50; n++ {
			got := e.Delay(attempt)
			if got < 0 || got > upper {
				t.Fatalf("Delay(%d) = %v, want within [0, %v]", attempt, got, upper)
			}
		}
	}
}

func TestDefaultStrategy_BoundedByHalfInterval(t *testing.T) {
	s := backoff.DefaultStrategy(10 * time.Second)
	for attempt := 1; attempt <= 20; attempt++ {
		if got := s.Delay(attempt); got > 5*time.Second {
			t.Fatalf("Delay(%d) = %v, exceeds half the interval", attempt, got)
		}
	}
}

func TestRetry_SucceedsImmediately(t *testing.T) {
	calls := 0
	err := backoff.Retry(context.Background(), clock.NewMock(), backoff.NewConstant(time.Second), time.Minute,
		func(_ context.Context, _ int) error {
			calls++
			return nil
		})
	if err != nil || calls != 1 {
		t.Fatalf("Retry = %v after %d calls", err, calls)
	}
}

func TestRetry_StopsWhenBudgetSpent(t *testing.T) {
	mock := clock.NewMock()
	fail := errors.New("store unavailable")

	var attempts []int
	done := make(chan error, 1)
	go func() {
		done <- backoff.Retry(context.Background(), mock, backoff.NewConstant(time.Second), 2*time.Second,
			func(_ context.Context, attempt int) error {
				attempts = append(attempts, attempt)
				return fail
			})
	}()

	// Two one-second waits fit in the budget; the third does not.
	for n := 0; n < 2; n++ {
		settle()
		mock.Add(time.Second)
	}

	select {
	case err := <-done:
		if !errors.Is(err, fail) {
			t.Fatalf("expected last error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Retry did not return")
	}
	if len(attempts) != 3 {
		t.Errorf("expected 3 attempts, got %v", attempts)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	mock := clock.NewMock()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- backoff.Retry(ctx, mock, backoff.NewConstant(time.Hour), 24*time.Hour,
			func(_ context.Context, _ int) error { return errors.New("down") })
	}()

	settle()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Retry did not return after cancel")
	}
}

// settle gives the retry goroutine time to arm its timer on the mock clock
// before the test advances it.
func settle() { time.Sleep(10 * time.Millisecond) }
