package api

import (
	"sync"
	"testing"
	"time"
)

func TestNextTimestampMonotonic(t *testing.T) {
	prev := nextTimestamp()
	for i := 0; i < 1000; i++ {
		next := nextTimestamp()
		if next <= prev {
			t.Fatalf("timestamps not strictly increasing: %d then %d", prev, next)
		}
		prev = next
	}
}

func TestNextTimestampConcurrent(t *testing.T) {
	const goroutines = 8
	const perGoroutine = 200

	var wg sync.WaitGroup
	out := make(chan int64, goroutines*perGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				out <- nextTimestamp()
			}
		}()
	}
	wg.Wait()
	close(out)

	seen := make(map[int64]struct{}, goroutines*perGoroutine)
	for ts := range out {
		if _, dup := seen[ts]; dup {
			t.Fatalf("duplicate timestamp %d", ts)
		}
		seen[ts] = struct{}{}
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_ENV_INT", "42")
	if got := envInt("TEST_ENV_INT", 7); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	if got := envInt("TEST_ENV_INT_MISSING", 7); got != 7 {
		t.Fatalf("expected default, got %d", got)
	}
	t.Setenv("TEST_ENV_INT", "-3")
	if got := envInt("TEST_ENV_INT", 7); got != 7 {
		t.Fatalf("non-positive values fall back to default, got %d", got)
	}

	t.Setenv("TEST_ENV_DUR", "250ms")
	if got := envDur("TEST_ENV_DUR", time.Second); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", got)
	}
	if got := envDur("TEST_ENV_DUR_MISSING", time.Second); got != time.Second {
		t.Fatalf("expected default, got %v", got)
	}
}
