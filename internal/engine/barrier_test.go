package engine

import (
	"sync"
	"testing"
	"time"
)

func TestBarrierWaitBlocksUntilDrained(t *testing.T) {
	b := NewBarrier()
	b.Incr()

	done := make(chan struct{})
	go func() {
		b.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before Decr")
	case <-time.After(20 * time.Millisecond):
	}

	b.Decr()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Decr")
	}
}

func TestBarrierFirstFailureWins(t *testing.T) {
	b := NewBarrier()
	var wg sync.WaitGroup

	codes := []int{0, 5, 7, 0, 3}
	for _, c := range codes {
		c := c
		b.Incr()
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.latchFailure(c)
			b.Decr()
		}()
	}
	wg.Wait()

	result := b.Result()
	if result == 0 {
		t.Fatal("expected a non-zero latched result")
	}

	found := false
	for _, c := range codes {
		if c == result {
			found = true
		}
	}
	if !found {
		t.Fatalf("latched result %d is not among the observed codes %v", result, codes)
	}
}

func TestBarrierWaitResultPrefersNonZero(t *testing.T) {
	b := NewBarrier()
	if got := b.WaitResult(0); got != 0 {
		t.Fatalf("WaitResult(0) on an empty barrier = %d, want 0", got)
	}

	b2 := NewBarrier()
	b2.Incr()
	b2.latchFailure(9)
	b2.Decr()
	if got := b2.WaitResult(0); got != 9 {
		t.Fatalf("WaitResult(0) = %d, want the latched 9", got)
	}

	b3 := NewBarrier()
	if got := b3.WaitResult(4); got != 4 {
		t.Fatalf("WaitResult(4) on a quiet barrier = %d, want 4", got)
	}
}
