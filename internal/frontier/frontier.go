// Package frontier implements the per-domain work queue and visited tracker
// that drive a crawl. The page-link graph can contain cycles, so traversal is
// an explicit worklist plus a visited set, never recursion.
package frontier

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrExhausted means the queue is drained and no worker still holds a
	// task that could discover more links.
	ErrExhausted = errors.New("frontier exhausted")
	// ErrCapReached means the domain's page cap has been used up.
	ErrCapReached = errors.New("frontier page cap reached")
	// ErrClosed means the frontier was shut down, usually by cancellation.
	ErrClosed = errors.New("frontier closed")
)

// Task is one URL waiting to be fetched. Immutable once created.
type Task struct {
	RawURL        string
	NormalizedURL string
	Domain        string
	Depth         int
	DiscoveredAt  time.Time
}

// Frontier is a FIFO queue of pending tasks with atomic check-then-mark
// deduplication. One Frontier is owned by exactly one site crawler; its
// workers share it concurrently.
//
// Page cap accounting reserves a slot at dequeue and releases it again if
// the page fails, so a cap of k yields exactly k processed pages even when
// several workers dequeue before any of them finishes.
type Frontier struct {
	mu   sync.Mutex
	cond *sync.Cond

	queue   []Task
	visited map[string]struct{}

	pageCap   int // 0 means unlimited
	reserved  int // dequeued, outcome not yet reported
	processed int
	failed    int
	inflight  int
	closed    bool
}

// New creates a Frontier with the given page cap (0 for unlimited).
func New(pageCap int) *Frontier {
	f := &Frontier{
		visited: make(map[string]struct{}),
		pageCap: pageCap,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Enqueue appends a task unless its normalized URL was already seen or the
// page cap leaves no room for it. Marking visited happens here, under the
// same lock as the check, so two workers discovering the same link never
// both enqueue it.
func (f *Frontier) Enqueue(task Task) bool {
	if task.NormalizedURL == "" {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	if f.pageCap > 0 && f.processed >= f.pageCap {
		return false
	}
	if _, seen := f.visited[task.NormalizedURL]; seen {
		return false
	}
	f.visited[task.NormalizedURL] = struct{}{}
	f.queue = append(f.queue, task)
	f.cond.Broadcast()
	return true
}

// Dequeue pops the next task in FIFO order, blocking while the queue is
// empty but other workers are still in flight (they may discover more
// links). It returns ErrExhausted once drained and idle, ErrCapReached once
// the cap is used up, and ErrClosed after Close.
func (f *Frontier) Dequeue() (Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if f.closed {
			return Task{}, ErrClosed
		}
		if f.pageCap > 0 && f.processed >= f.pageCap {
			return Task{}, ErrCapReached
		}
		capLeft := f.pageCap == 0 || f.processed+f.reserved < f.pageCap
		if len(f.queue) > 0 && capLeft {
			task := f.queue[0]
			f.queue = f.queue[1:]
			f.reserved++
			f.inflight++
			return task, nil
		}
		if len(f.queue) == 0 && f.inflight == 0 {
			return Task{}, ErrExhausted
		}
		// Either the queue is empty while peers may still publish work,
		// or every remaining cap slot is reserved. Wait for a change.
		f.cond.Wait()
	}
}

// MarkDone reports the outcome of a dequeued task. A success consumes the
// reserved cap slot; a failure releases it for another URL.
func (f *Frontier) MarkDone(succeeded bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inflight--
	f.reserved--
	if succeeded {
		f.processed++
	} else {
		f.failed++
	}
	f.cond.Broadcast()
}

// Release returns a dequeued task's slot without recording an outcome.
// Workers use it for tasks they abandon unattempted, usually on
// cancellation, so the failed count only covers real attempts.
func (f *Frontier) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inflight--
	f.reserved--
	f.cond.Broadcast()
}

// Seen reports whether a normalized URL has been enqueued at some point.
func (f *Frontier) Seen(normalizedURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[normalizedURL]
	return ok
}

// Close wakes all blocked workers; subsequent Dequeue calls return
// ErrClosed. Used for cooperative cancellation.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.cond.Broadcast()
}

// Stats returns the processed and failed page counts.
func (f *Frontier) Stats() (processed, failed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processed, f.failed
}
