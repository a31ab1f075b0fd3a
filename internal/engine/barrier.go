package engine

import (
	"sync"
	"sync/atomic"
)

// Barrier is a counted-completion latch: callers Incr before enqueueing a
// task and Decr when it finishes; Wait blocks until the counter drops back
// to zero. Result latches the first non-zero exit code observed across all
// tasks enqueued under this barrier (first-failure-wins).
type Barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	counter int
	result  atomic.Int32
}

// NewBarrier returns a ready-to-use Barrier with a zero counter.
func NewBarrier() *Barrier {
	b := &Barrier{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Incr marks one more outstanding task under this barrier.
func (b *Barrier) Incr() {
	b.mu.Lock()
	b.counter++
	b.mu.Unlock()
}

// Decr marks one outstanding task as finished, waking any waiter once the
// counter reaches zero.
func (b *Barrier) Decr() {
	b.mu.Lock()
	b.counter--
	done := b.counter == 0
	b.mu.Unlock()
	if done {
		b.cond.Broadcast()
	}
}

// Wait blocks until every task enqueued under this barrier has completed.
func (b *Barrier) Wait() {
	b.mu.Lock()
	for b.counter != 0 {
		b.cond.Wait()
	}
	b.mu.Unlock()
}

// latchFailure stores code into Result the first time a non-zero code is
// observed (store-if-zero CAS; later failures are ignored).
func (b *Barrier) latchFailure(code int) {
	if code == 0 {
		return
	}
	b.result.CompareAndSwap(0, int32(code))
}

// Result returns the first non-zero code latched by any task run under this
// barrier, or 0 if every task succeeded.
func (b *Barrier) Result() int {
	return int(b.result.Load())
}

// WaitResult waits for the barrier to drain and returns whichever of ret
// (the synchronous portion's own result) or the barrier's latched result is
// non-zero, giving non-zero results priority. This is the Go equivalent of
// the original's RuleCounter::wait_result.
func (b *Barrier) WaitResult(ret int) int {
	if ret != 0 {
		// Still wait for quiescence: in-flight tasks must finish before
		// the caller can safely tear down or reuse anything they touch.
		b.Wait()
		return ret
	}
	b.Wait()
	if r := b.Result(); r != 0 {
		return r
	}
	return 0
}
