package http

import (
	"log/slog"
	"sync"

	"github.com/aretw0/rxstore/internal/logging"
)

// streamBuffer is the number of states queued per SSE client before new ones
// are dropped.
const streamBuffer = 16

// StreamManager fans encoded states out to the connected SSE clients.
// It remembers the last broadcast message so a new client starts from it.
type StreamManager struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[chan []byte]struct{}
	latest      []byte
	closed      bool
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		logger:      logger,
		subscribers: make(map[chan []byte]struct{}),
	}
}

// Subscribe registers a client. The last broadcast message, if any, is the
// first one on the returned channel, and every later broadcast follows it
// exactly once. The channel is closed when the manager is closed or the
// cancel func is called.
func (sm *StreamManager) Subscribe() (<-chan []byte, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan []byte, streamBuffer)
	if sm.closed {
		close(ch)
		return ch, func() {}
	}
	if sm.latest != nil {
		ch <- sm.latest
	}
	sm.subscribers[ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

// Broadcast records msg as the latest message and sends it to every client
// without blocking.
func (sm *StreamManager) Broadcast(msg []byte) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.closed {
		return
	}
	sm.latest = msg

	for ch := range sm.subscribers {
		select {
		case ch <- msg:
		default:
			// Slow client
			sm.logger.Warn("SSE: Client buffer full, dropping state", "payload_size", len(msg))
		}
	}
}

// Count returns the number of connected clients.
func (sm *StreamManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

// Close disconnects every client and refuses new ones.
func (sm *StreamManager) Close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.closed {
		return
	}
	sm.closed = true
	for ch := range sm.subscribers {
		delete(sm.subscribers, ch)
		close(ch)
	}
}
