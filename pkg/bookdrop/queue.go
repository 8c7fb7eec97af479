package bookdrop

import "sync"

// EventKind classifies a filesystem notification from the drop folder.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventModified EventKind = "modified"
	EventDeleted  EventKind = "deleted"
)

// Event is one drop-folder notification. Events are comparable so the queue
// can deduplicate them.
type Event struct {
	Path string
	Kind EventKind
}

// Queue is a bounded FIFO of drop-folder events with duplicate suppression:
// enqueueing an event equal to one already pending is a no-op. It is built
// for one consumer goroutine, which keeps event handling strictly ordered.
type Queue struct {
	mu     sync.Mutex
	ch     chan Event
	seen   map[Event]struct{}
	closed bool
}

// NewQueue returns a queue that holds at most size pending events.
func NewQueue(size int) *Queue {
	return &Queue{
		ch:   make(chan Event, size),
		seen: make(map[Event]struct{}, size),
	}
}

// Enqueue adds ev unless an equal event is already pending, the queue is
// full, or the queue is closed. It reports whether the event was accepted.
func (q *Queue) Enqueue(ev Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if _, dup := q.seen[ev]; dup {
		return false
	}

	select {
	case q.ch <- ev:
		q.seen[ev] = struct{}{}
		return true
	default:
		return false
	}
}

// Dequeue blocks until an event is available or the queue is closed. The
// second return value is false once the queue is closed and drained.
func (q *Queue) Dequeue() (Event, bool) {
	ev, ok := <-q.ch
	if !ok {
		return Event{}, false
	}

	q.mu.Lock()
	delete(q.seen, ev)
	q.mu.Unlock()

	return ev, true
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops intake. Already-pending events can still be dequeued.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
