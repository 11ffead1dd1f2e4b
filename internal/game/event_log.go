package game

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

const (
	EventBufferSize      = 1024                   // Ring buffer size
	MaxEventsPerSec      = 2000                   // Global rate limit
	MaxEventsPerSource   = 200                    // Per-source rate limit per second
	BatchFlushSize       = 64                     // Events per batch write
	BatchFlushInterval   = 100 * time.Millisecond // How often to flush
	SourceLimiterCleanup = 5 * time.Minute        // Idle time before a source limiter is dropped
)

// EventLog is a bounded, rate limited JSONL writer. Emit never blocks the
// tick: events over the limits or beyond the buffer are counted and dropped.
type EventLog struct {
	buffer    [EventBufferSize]Event
	writeHead uint64 // atomic
	readHead  uint64 // atomic

	globalLimiter  *rate.Limiter
	sourceLimiters sync.Map // map[string]*sourceLimiter

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	file   *os.File
	out    *bufio.Writer
	fileMu sync.Mutex

	droppedCount uint64 // atomic
	totalCount   uint64 // atomic
	writtenCount uint64 // atomic
}

type sourceLimiter struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // unix nano
}

// EventLogStats is a point-in-time view of the log.
type EventLogStats struct {
	Total   uint64 `json:"total"`
	Dropped uint64 `json:"dropped"`
	Written uint64 `json:"written"`
	Pending uint64 `json:"pending"`
	Running bool   `json:"running"`
}

// NewEventLog creates a stopped event log
func NewEventLog() *EventLog {
	return &EventLog{
		globalLimiter: rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		stopChan:      make(chan struct{}),
	}
}

// Start opens filePath for append and starts the writer. An empty path
// keeps events in memory only.
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}

	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		el.file = file
		el.out = bufio.NewWriter(file)
	}

	el.running.Store(true)
	el.writerWg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()

	return nil
}

// Stop flushes pending events and closes the file
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		if !el.running.Load() {
			return
		}
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		el.fileMu.Lock()
		if el.out != nil {
			el.out.Flush()
		}
		if el.file != nil {
			el.file.Close()
		}
		el.fileMu.Unlock()
	})
}

// Emit queues an event. Returns false when the log is stopped or the event
// was rate limited.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}

	if !el.globalLimiter.Allow() {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}
	if event.Source != "" && !el.limiterFor(event.Source).Allow() {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}

	head := atomic.AddUint64(&el.writeHead, 1)
	tail := atomic.LoadUint64(&el.readHead)

	// Full: overwrite the oldest slot
	if head-tail >= EventBufferSize {
		atomic.AddUint64(&el.readHead, 1)
		atomic.AddUint64(&el.droppedCount, 1)
	}

	event.Sequence = head
	el.buffer[head%EventBufferSize] = event

	atomic.AddUint64(&el.totalCount, 1)
	return true
}

// EmitSimple builds and emits an event
func (el *EventLog) EmitSimple(eventType EventType, tickNum uint64, source string, payload interface{}) bool {
	if !el.running.Load() {
		return false
	}
	return el.Emit(NewEvent(eventType, tickNum, source, payload))
}

func (el *EventLog) limiterFor(source string) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := el.sourceLimiters.Load(source); ok {
		sl := v.(*sourceLimiter)
		sl.lastUsed.Store(now)
		return sl.limiter
	}

	sl := &sourceLimiter{limiter: rate.NewLimiter(MaxEventsPerSource, MaxEventsPerSource/10)}
	sl.lastUsed.Store(now)
	actual, _ := el.sourceLimiters.LoadOrStore(source, sl)
	return actual.(*sourceLimiter).limiter
}

func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)
	for {
		select {
		case <-el.stopChan:
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}
		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

func (el *EventLog) cleanupLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(SourceLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-SourceLimiterCleanup).UnixNano()
			el.sourceLimiters.Range(func(key, value any) bool {
				if value.(*sourceLimiter).lastUsed.Load() < cutoff {
					el.sourceLimiters.Delete(key)
				}
				return true
			})
		}
	}
}

func (el *EventLog) collectBatch(batch []Event) []Event {
	head := atomic.LoadUint64(&el.writeHead)
	tail := atomic.LoadUint64(&el.readHead)

	for i := tail + 1; i <= head && len(batch) < BatchFlushSize; i++ {
		batch = append(batch, el.buffer[i%EventBufferSize])
	}
	if len(batch) > 0 {
		atomic.AddUint64(&el.readHead, uint64(len(batch)))
	}
	return batch
}

// flushBatch appends events as newline delimited JSON
func (el *EventLog) flushBatch(batch []Event) {
	el.fileMu.Lock()
	defer el.fileMu.Unlock()

	if el.out == nil {
		atomic.AddUint64(&el.writtenCount, uint64(len(batch)))
		return
	}

	for _, event := range batch {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		el.out.Write(data)
		el.out.WriteByte('\n')
		atomic.AddUint64(&el.writtenCount, 1)
	}
	el.out.Flush()
}

// Stats returns counters for monitoring
func (el *EventLog) Stats() EventLogStats {
	head := atomic.LoadUint64(&el.writeHead)
	tail := atomic.LoadUint64(&el.readHead)

	return EventLogStats{
		Total:   atomic.LoadUint64(&el.totalCount),
		Dropped: atomic.LoadUint64(&el.droppedCount),
		Written: atomic.LoadUint64(&el.writtenCount),
		Pending: head - tail,
		Running: el.running.Load(),
	}
}
