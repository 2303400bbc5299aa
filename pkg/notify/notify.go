// Package notify fans out change events to presentation listeners
package notify

import "sync"

// Topic names the piece of state that changed
type Topic string

const (
	TopicStored       Topic = "stored"
	TopicCurrentLeft  Topic = "current-left"
	TopicCurrentRight Topic = "current-right"
	TopicSession      Topic = "session"
)

// Event is one change notification. ID identifies the session for TopicSession.
type Event struct {
	Topic Topic
	ID    string
}

// Notifier delivers events to subscribers. The zero value is ready to use.
// Listeners run on the notifying goroutine and must not block.
type Notifier struct {
	mu        sync.RWMutex
	next      int
	listeners map[int]func(Event)
}

// Subscribe registers fn and returns a function removing it
func (n *Notifier) Subscribe(fn func(Event)) (cancel func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.listeners == nil {
		n.listeners = make(map[int]func(Event))
	}
	id := n.next
	n.next++
	n.listeners[id] = fn

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners, id)
	}
}

// Chan subscribes a buffered channel. Events are dropped while the buffer is full.
func (n *Notifier) Chan(size int) (<-chan Event, func()) {
	ch := make(chan Event, size)
	cancel := n.Subscribe(func(e Event) {
		select {
		case ch <- e:
		default:
		}
	})
	return ch, cancel
}

// Notify calls every listener with e
func (n *Notifier) Notify(e Event) {
	n.mu.RLock()
	fns := make([]func(Event), 0, len(n.listeners))
	for _, fn := range n.listeners {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}
