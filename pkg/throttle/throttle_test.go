package throttle

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/vnykmshr/workdist/internal/testutil"
	wderrors "github.com/vnykmshr/workdist/pkg/common/errors"
)

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (m *mockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *mockClock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		rate    Limit
		burst   int
		wantErr bool
	}{
		{"valid parameters", 10, 5, false},
		{"infinite rate", Inf, 5, false},
		{"zero rate", 0, 5, true},
		{"negative rate", -1, 5, true},
		{"NaN rate", Limit(math.NaN()), 5, true},
		{"zero burst", 10, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(tt.rate, tt.burst)
			if tt.wantErr {
				if !wderrors.IsValidationError(err) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				return
			}
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, b.Burst(), tt.burst)
			testutil.AssertEqual(t, b.Tokens(), float64(tt.burst))
		})
	}
}

func TestEvery(t *testing.T) {
	testutil.AssertEqual(t, Every(100*time.Millisecond), Limit(10))
	testutil.AssertEqual(t, Every(2*time.Second), Limit(0.5))
	if !math.IsInf(float64(Every(0)), 1) {
		t.Error("Every(0) should be Inf")
	}
}

func TestAllow_Refill(t *testing.T) {
	clock := &mockClock{now: time.Unix(0, 0)}
	b, err := NewWithConfig(Config{Rate: 10, Burst: 3, Clock: clock})
	testutil.AssertNoError(t, err)

	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("burst token %d denied", i)
		}
	}
	if b.Allow() {
		t.Fatal("allowed beyond burst")
	}

	clock.Advance(100 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("token not refilled after 100ms at 10/s")
	}

	clock.Advance(time.Hour)
	testutil.AssertEqual(t, b.Tokens(), 3.0)
}

func TestWait_Paces(t *testing.T) {
	b, err := New(100, 1)
	testutil.AssertNoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	start := time.Now()
	for i := 0; i < 4; i++ {
		testutil.AssertNoError(t, b.Wait(ctx))
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("4 waits at 100/s with burst 1 took %v, want >= 25ms", elapsed)
	}
}

func TestWait_Infinite(t *testing.T) {
	b, err := New(Inf, 1)
	testutil.AssertNoError(t, err)

	for i := 0; i < 100; i++ {
		testutil.AssertNoError(t, b.Wait(context.Background()))
	}
}

func TestWait_CancelRefunds(t *testing.T) {
	clock := &mockClock{now: time.Unix(0, 0)}
	b, err := NewWithConfig(Config{Rate: 1, Burst: 1, Clock: clock})
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, b.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Wait(ctx) }()

	testutil.Eventually(t, func() bool { return b.Tokens() < 0 }, time.Second, time.Millisecond)
	cancel()

	if err := <-done; err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	testutil.AssertEqual(t, b.Tokens(), 0.0)
}

func TestWait_DeadlineTooSoon(t *testing.T) {
	b, err := New(1, 1)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, b.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := b.Wait(ctx); err != context.DeadlineExceeded {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("Wait should fail fast when the deadline cannot be met")
	}
}

func TestWait_AlreadyCanceled(t *testing.T) {
	b, err := New(1, 1)
	testutil.AssertNoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Wait(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	testutil.AssertEqual(t, b.Tokens(), 1.0)
}
