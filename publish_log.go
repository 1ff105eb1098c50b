package match

import (
	"context"
	"sync"
)

// PublishLog is an interface for publishing order book logs (trades, opens, cancels).
//
// IMPORTANT: Implementations must either:
//  1. Process logs synchronously before returning, OR
//  2. Clone the BookLog data before returning
//
// The caller recycles BookLog objects to a sync.Pool after Publish returns,
// so any asynchronous processing must work with cloned data.
type PublishLog interface {
	Publish(...*BookLog)
}

// MemoryPublishLog stores logs in memory, useful for testing.
type MemoryPublishLog struct {
	mu   sync.RWMutex
	logs []*BookLog
}

// NewMemoryPublishLog creates a new MemoryPublishLog.
func NewMemoryPublishLog() *MemoryPublishLog {
	return &MemoryPublishLog{
		logs: make([]*BookLog, 0),
	}
}

// Publish appends copies of the logs to the in-memory slice.
func (m *MemoryPublishLog) Publish(logs ...*BookLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, log := range logs {
		cpy := new(BookLog)
		*cpy = *log
		m.logs = append(m.logs, cpy)
	}
}

// Count returns the number of logs stored.
func (m *MemoryPublishLog) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.logs)
}

// Get returns the log at the specified index.
func (m *MemoryPublishLog) Get(index int) *BookLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.logs[index]
}

// Logs returns a copy of all logs stored.
func (m *MemoryPublishLog) Logs() []*BookLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	logs := make([]*BookLog, len(m.logs))
	copy(logs, m.logs)
	return logs
}

// DiscardPublishLog discards all logs, useful for benchmarking.
type DiscardPublishLog struct {
}

// NewDiscardPublishLog creates a new DiscardPublishLog.
func NewDiscardPublishLog() *DiscardPublishLog {
	return &DiscardPublishLog{}
}

// Publish does nothing.
func (p *DiscardPublishLog) Publish(logs ...*BookLog) {

}

// AsyncPublishLog moves log delivery off the matching goroutine.
// Logs are copied into a RingBuffer and handed to handler on its consumer goroutine.
type AsyncPublishLog struct {
	ring *RingBuffer[BookLog]
}

// NewAsyncPublishLog creates an AsyncPublishLog. size must be a power of two.
func NewAsyncPublishLog(size int64, handler EventHandler[BookLog]) (*AsyncPublishLog, error) {
	ring, err := NewRingBuffer[BookLog](size, handler)
	if err != nil {
		return nil, err
	}
	return &AsyncPublishLog{ring: ring}, nil
}

// Start runs the consumer goroutine.
func (p *AsyncPublishLog) Start() {
	go p.ring.Run()
}

// Publish copies the logs into the ring, blocking while it is full.
func (p *AsyncPublishLog) Publish(logs ...*BookLog) {
	for _, log := range logs {
		if !p.ring.Publish(*log) {
			logger.Warn("book log dropped after shutdown", "seq_id", log.SequenceID, "type", log.Type)
		}
	}
}

// Pending returns the number of logs not yet handled.
func (p *AsyncPublishLog) Pending() int64 {
	return p.ring.Pending()
}

// Shutdown stops intake and waits until every published log is handled.
// Shut the engine down first so no log is published concurrently.
func (p *AsyncPublishLog) Shutdown(ctx context.Context) error {
	return p.ring.Shutdown(ctx)
}
