// Package permits implements the counting semaphore used by the scan
// runner to bound how many files are processed concurrently, and to drain
// the pipeline at shutdown by reclaiming every outstanding permit.
package permits

import "sync"

// Semaphore is a counting semaphore with blocking Acquire and non-blocking
// Release. Unlike a plain buffered channel, Release can add back more
// permits than were ever acquired at once (the scan runner's drain step
// acquires the full capacity in a single call).
type Semaphore struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int
}

// New creates a Semaphore initialized with count permits available.
func New(count int) *Semaphore {
	s := &Semaphore{count: count}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Acquire blocks until n permits (default 1 if n==0) are available, then
// takes them atomically.
func (s *Semaphore) Acquire(n int) {
	if n == 0 {
		n = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.count < n {
		s.cond.Wait()
	}
	s.count -= n
}

// Release returns n permits (default 1 if n==0) and wakes every waiter,
// since a batch release may unblock more than one pending Acquire.
func (s *Semaphore) Release(n int) {
	if n == 0 {
		n = 1
	}
	s.mu.Lock()
	s.count += n
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Count reports the number of permits currently available.
func (s *Semaphore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
