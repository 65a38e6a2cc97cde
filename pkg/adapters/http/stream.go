package http

import "sync"

// Message is one event on the SSE stream.
type Message struct {
	Event      string
	WorkItemID int
	Data       string
}

type subscriber struct {
	ch     chan Message
	filter int // 0 = all work items
}

// StreamManager fans engine events out to active SSE connections.
type StreamManager struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// NewStreamManager creates an empty stream manager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subs: make(map[*subscriber]struct{}),
	}
}

// Subscribe registers a listener, optionally filtered to one work item id
// (0 means all). The returned cancel func must be called to release the
// subscription.
func (sm *StreamManager) Subscribe(filter int) (<-chan Message, func()) {
	sub := &subscriber{
		ch:     make(chan Message, 10),
		filter: filter,
	}

	sm.mu.Lock()
	sm.subs[sub] = struct{}{}
	sm.mu.Unlock()

	return sub.ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subs[sub]; ok {
			delete(sm.subs, sub)
			close(sub.ch)
		}
	}
}

// Broadcast delivers a message to every matching subscriber. Slow clients
// with full buffers are skipped rather than blocking the engine.
func (sm *StreamManager) Broadcast(msg Message) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for sub := range sm.subs {
		if sub.filter != 0 && sub.filter != msg.WorkItemID {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			// Drop message if the channel is full (slow client).
		}
	}
}
