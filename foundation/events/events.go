// Package events fans state notifications out to websocket subscribers.
package events

import (
	"fmt"
	"sync"
)

// messageBuffer is the number of events held for a receiver that is not
// ready. Events sent to a full channel are dropped.
const messageBuffer = 100

// Events holds one buffered channel per subscriber id.
type Events struct {
	m  map[string]chan string
	mu sync.RWMutex
}

// New constructs an empty set of subscribers.
func New() *Events {
	return &Events{
		m: make(map[string]chan string),
	}
}

// Shutdown closes every subscriber channel, ending their websocket loops.
func (e *Events) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, ch := range e.m {
		delete(e.m, id)
		close(ch)
	}
}

// Acquire returns the channel for the subscriber id, creating it on first use.
func (e *Events) Acquire(id string) chan string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch, exists := e.m[id]
	if exists {
		return ch
	}

	e.m[id] = make(chan string, messageBuffer)
	return e.m[id]
}

// Release closes the subscriber's channel and forgets the id.
func (e *Events) Release(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch, exists := e.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(e.m, id)
	close(ch)
	return nil
}

// Count returns the number of registered receivers.
func (e *Events) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.m)
}

// Send offers the message to every subscriber without blocking.
func (e *Events) Send(s string) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, ch := range e.m {
		select {
		case ch <- s:
		default:
		}
	}
}
