// Package pool recycles spawned instances per template.
//
// A Manager keeps one FIFO queue of idle instances per template and a
// reverse map from every instance it has seen to the queue it belongs to.
// Instances move between two states only through Acquire and Release:
//
//   - idle: deactivated, sitting in exactly one queue
//   - active: activated, owned by whoever acquired it
//
// The Manager is not safe for concurrent use. The game engine calls it from
// inside its tick, which is already serialized by the engine lock.
package pool

import (
	"log"

	"github.com/eapache/queue"
)

// Host is the engine side of the pool: it knows how to create, toggle and
// destroy instances. The pool never looks inside a template.
type Host[T comparable, I comparable] interface {
	// Instantiate creates a new instance of tmpl, owned by the host container.
	// Called only on the allocation path.
	Instantiate(tmpl T) I
	// SetActive toggles simulation participation of inst.
	SetActive(inst I, active bool)
	// Destroy permanently removes inst. Called only when an untracked
	// instance is released and no default queue exists.
	Destroy(inst I)
}

// ReleaseOutcome says what Release did with an instance.
type ReleaseOutcome uint8

const (
	ReleaseReturned ReleaseOutcome = iota // enqueued into its own queue
	ReleaseDouble                         // already idle, nothing enqueued
	ReleaseAdopted                        // untracked, moved into the default queue
	ReleaseDiscarded                      // untracked, destroyed
)

// String returns a bounded label for metrics.
func (o ReleaseOutcome) String() string {
	switch o {
	case ReleaseReturned:
		return "returned"
	case ReleaseDouble:
		return "double"
	case ReleaseAdopted:
		return "adopted"
	case ReleaseDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Observer receives pool events, typically to feed metrics.
type Observer interface {
	Acquired(pool string, reused bool)
	Released(pool string, outcome ReleaseOutcome)
	// Allocated is called for every instance the host creates, whether
	// during prewarm or on an acquire miss.
	Allocated(pool string, prewarm bool)
}

// Options configures a Manager.
type Options[T comparable] struct {
	Name            string // used in logs and metric labels
	DefaultTemplate T      // optional; zero value means none
	InitialSize     int    // prewarm count for DefaultTemplate
	Observer        Observer
}

// Stats is a point-in-time view of pool activity.
type Stats struct {
	Name           string `json:"name"`
	Templates      int    `json:"templates"`
	Tracked        int    `json:"tracked"`
	Idle           int    `json:"idle"`
	Acquires       uint64 `json:"acquires"`
	Reuses         uint64 `json:"reuses"`
	Allocations    uint64 `json:"allocations"` // every instance created, prewarm included
	Prewarmed      uint64 `json:"prewarmed"`
	Releases       uint64 `json:"releases"`
	DoubleReleases uint64 `json:"doubleReleases"`
	Adoptions      uint64 `json:"adoptions"`
	Discards       uint64 `json:"discards"`
	InvalidInputs  uint64 `json:"invalidInputs"`
}

// idleQueue is a FIFO of idle instances plus a membership set so an
// instance can never be queued twice.
type idleQueue[I comparable] struct {
	items   *queue.Queue
	members map[I]struct{}
}

func newIdleQueue[I comparable]() *idleQueue[I] {
	return &idleQueue[I]{
		items:   queue.New(),
		members: make(map[I]struct{}),
	}
}

func (q *idleQueue[I]) len() int { return q.items.Length() }

func (q *idleQueue[I]) contains(inst I) bool {
	_, ok := q.members[inst]
	return ok
}

func (q *idleQueue[I]) push(inst I) bool {
	if q.contains(inst) {
		return false
	}
	q.members[inst] = struct{}{}
	q.items.Add(inst)
	return true
}

func (q *idleQueue[I]) pop() I {
	inst := q.items.Remove().(I)
	delete(q.members, inst)
	return inst
}

// Manager owns the template→queue and instance→queue registries.
type Manager[T comparable, I comparable] struct {
	name            string
	host            Host[T, I]
	observer        Observer
	defaultTemplate T

	queues map[T]*idleQueue[I] // template -> idle instances
	owner  map[I]*idleQueue[I] // instance -> queue it returns to

	stats Stats
}

// New creates a Manager and prewarms the default template when configured.
func New[T comparable, I comparable](host Host[T, I], opts Options[T]) *Manager[T, I] {
	m := &Manager[T, I]{
		name:            opts.Name,
		host:            host,
		observer:        opts.Observer,
		defaultTemplate: opts.DefaultTemplate,
		queues:          make(map[T]*idleQueue[I]),
		owner:           make(map[I]*idleQueue[I]),
	}
	if m.hasDefault() && opts.InitialSize > 0 {
		m.Prewarm(opts.DefaultTemplate, opts.InitialSize)
	}
	return m
}

// Name returns the pool name.
func (m *Manager[T, I]) Name() string { return m.name }

// DefaultTemplate returns the configured default template (zero if none).
func (m *Manager[T, I]) DefaultTemplate() T { return m.defaultTemplate }

func (m *Manager[T, I]) hasDefault() bool {
	var zero T
	return m.defaultTemplate != zero
}

// queueFor returns the idle queue of tmpl, creating it on first use.
func (m *Manager[T, I]) queueFor(tmpl T) *idleQueue[I] {
	q, ok := m.queues[tmpl]
	if !ok {
		q = newIdleQueue[I]()
		m.queues[tmpl] = q
	}
	return q
}

// Prewarm eagerly creates count idle instances of tmpl.
func (m *Manager[T, I]) Prewarm(tmpl T, count int) {
	var zero T
	if tmpl == zero || count <= 0 {
		return
	}

	q := m.queueFor(tmpl)
	var nilInst I
	for i := 0; i < count; i++ {
		inst := m.host.Instantiate(tmpl)
		if inst == nilInst {
			m.stats.InvalidInputs++
			log.Printf("⚠️ pool %s: host returned no instance during prewarm", m.name)
			return
		}
		m.host.SetActive(inst, false)
		q.push(inst)
		m.owner[inst] = q
		m.stats.Allocations++
		m.stats.Prewarmed++

		if m.observer != nil {
			m.observer.Allocated(m.name, true)
		}
	}
}

// Acquire hands out an active instance of tmpl, reusing the oldest idle
// one when available. A zero template yields (zero, false) and a log line;
// callers treat that as a skipped spawn.
func (m *Manager[T, I]) Acquire(tmpl T) (I, bool) {
	var zeroT T
	var zeroI I
	if tmpl == zeroT {
		m.stats.InvalidInputs++
		log.Printf("⚠️ pool %s: Acquire called without a template", m.name)
		return zeroI, false
	}

	q := m.queueFor(tmpl)

	var inst I
	reused := q.len() > 0
	if reused {
		inst = q.pop()
		m.stats.Reuses++
	} else {
		inst = m.host.Instantiate(tmpl)
		if inst == zeroI {
			m.stats.InvalidInputs++
			log.Printf("⚠️ pool %s: host returned no instance", m.name)
			return zeroI, false
		}
		m.stats.Allocations++
		if m.observer != nil {
			m.observer.Allocated(m.name, false)
		}
	}

	m.host.SetActive(inst, true)
	m.owner[inst] = q
	m.stats.Acquires++

	if m.observer != nil {
		m.observer.Acquired(m.name, reused)
	}
	return inst, true
}

// AcquireDefault acquires from the default template.
func (m *Manager[T, I]) AcquireDefault() (I, bool) {
	return m.Acquire(m.defaultTemplate)
}

// Release deactivates inst and makes it available for reuse. Releasing an
// instance that is already idle only deactivates it again. Instances this
// pool never produced are adopted by the default queue, or destroyed when
// there is none.
func (m *Manager[T, I]) Release(inst I) {
	var zero I
	if inst == zero {
		return
	}

	m.host.SetActive(inst, false)

	var outcome ReleaseOutcome
	if q, ok := m.owner[inst]; ok {
		if q.push(inst) {
			outcome = ReleaseReturned
			m.stats.Releases++
		} else {
			outcome = ReleaseDouble
			m.stats.DoubleReleases++
			log.Printf("⚠️ pool %s: instance released twice, ignoring", m.name)
		}
	} else if defQ, ok := m.queues[m.defaultTemplate]; ok && m.hasDefault() {
		defQ.push(inst)
		m.owner[inst] = defQ
		outcome = ReleaseAdopted
		m.stats.Adoptions++
	} else {
		m.host.Destroy(inst)
		outcome = ReleaseDiscarded
		m.stats.Discards++
	}

	if m.observer != nil {
		m.observer.Released(m.name, outcome)
	}
}

// IdleCount returns the number of idle instances queued for tmpl.
func (m *Manager[T, I]) IdleCount(tmpl T) int {
	if q, ok := m.queues[tmpl]; ok {
		return q.len()
	}
	return 0
}

// IsIdle reports whether inst currently sits in any idle queue.
func (m *Manager[T, I]) IsIdle(inst I) bool {
	q, ok := m.owner[inst]
	return ok && q.contains(inst)
}

// Tracked reports whether the pool has a routing entry for inst.
func (m *Manager[T, I]) Tracked(inst I) bool {
	_, ok := m.owner[inst]
	return ok
}

// HasQueue reports whether a queue exists for tmpl.
func (m *Manager[T, I]) HasQueue(tmpl T) bool {
	_, ok := m.queues[tmpl]
	return ok
}

// Templates returns every template that has a queue, in no particular order.
func (m *Manager[T, I]) Templates() []T {
	out := make([]T, 0, len(m.queues))
	for t := range m.queues {
		out = append(out, t)
	}
	return out
}

// Stats returns a copy of the counters plus current registry sizes.
func (m *Manager[T, I]) Stats() Stats {
	s := m.stats
	s.Name = m.name
	s.Templates = len(m.queues)
	s.Tracked = len(m.owner)
	for _, q := range m.queues {
		s.Idle += q.len()
	}
	return s
}
