package game

import "container/heap"

// Scheduler runs callbacks after a delay measured in simulation time. It
// replaces per-entity timers: everything that has to happen "later" goes
// through one queue that the engine advances once per tick.
type Scheduler struct {
	now     float64
	seq     uint64
	pending actionHeap
}

type action struct {
	due float64
	seq uint64 // insertion order breaks ties
	fn  func()
}

type actionHeap []action

func (h actionHeap) Len() int { return len(h) }
func (h actionHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].seq < h[j].seq
}
func (h actionHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *actionHeap) Push(x any)   { *h = append(*h, x.(action)) }
func (h *actionHeap) Pop() any {
	old := *h
	n := len(old)
	a := old[n-1]
	old[n-1] = action{}
	*h = old[:n-1]
	return a
}

// NewScheduler returns an empty scheduler at time zero.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// After queues fn to run once delay seconds have been advanced.
func (s *Scheduler) After(delay float64, fn func()) {
	if fn == nil {
		return
	}
	if delay < 0 {
		delay = 0
	}
	s.seq++
	heap.Push(&s.pending, action{due: s.now + delay, seq: s.seq, fn: fn})
}

// Advance moves time forward by dt and runs every due action in due order.
// Actions queued by a running action with zero delay run in the same call.
// Returns how many actions ran.
func (s *Scheduler) Advance(dt float64) int {
	if dt > 0 {
		s.now += dt
	}
	ran := 0
	for s.pending.Len() > 0 && s.pending[0].due <= s.now {
		a := heap.Pop(&s.pending).(action)
		a.fn()
		ran++
	}
	return ran
}

// Pending returns the number of queued actions.
func (s *Scheduler) Pending() int { return s.pending.Len() }

// Now returns the accumulated simulation time.
func (s *Scheduler) Now() float64 { return s.now }

// Clear drops every queued action.
func (s *Scheduler) Clear() {
	s.pending = nil
}
