package bookdrop

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueOrder(t *testing.T) {
	t.Parallel()

	q := NewQueue(10)
	events := []Event{
		{Path: "/drop/a.epub", Kind: EventCreated},
		{Path: "/drop/b.epub", Kind: EventCreated},
		{Path: "/drop/a.epub", Kind: EventDeleted},
	}
	for _, ev := range events {
		assert.True(t, q.Enqueue(ev))
	}
	q.Close()

	var got []Event
	for {
		ev, ok := q.Dequeue()
		if !ok {
			break
		}
		got = append(got, ev)
	}
	assert.Equal(t, events, got)
}

func TestQueueDedupsPendingEvents(t *testing.T) {
	t.Parallel()

	q := NewQueue(10)
	ev := Event{Path: "/drop/a.epub", Kind: EventModified}

	assert.True(t, q.Enqueue(ev))
	// Identical event while the first is still pending: no-op.
	assert.False(t, q.Enqueue(ev))
	assert.Equal(t, 1, q.Len())

	// Same path, different kind is a distinct event.
	assert.True(t, q.Enqueue(Event{Path: "/drop/a.epub", Kind: EventDeleted}))
	assert.Equal(t, 2, q.Len())

	// Once dequeued, the same event may be enqueued again.
	got, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, ev, got)
	assert.True(t, q.Enqueue(ev))
}

func TestQueueBounded(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	assert.True(t, q.Enqueue(Event{Path: "/drop/a.epub", Kind: EventCreated}))
	assert.True(t, q.Enqueue(Event{Path: "/drop/b.epub", Kind: EventCreated}))
	// Full: the event is dropped, not blocked on.
	assert.False(t, q.Enqueue(Event{Path: "/drop/c.epub", Kind: EventCreated}))
	assert.Equal(t, 2, q.Len())
}

func TestQueueEnqueueAfterClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	q.Close()
	assert.False(t, q.Enqueue(Event{Path: "/drop/a.epub", Kind: EventCreated}))

	_, ok := q.Dequeue()
	assert.False(t, ok)
}

func TestQueueSingleConsumerSeesEverything(t *testing.T) {
	t.Parallel()

	q := NewQueue(100)

	var wg sync.WaitGroup
	var received []Event
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			ev, ok := q.Dequeue()
			if !ok {
				return
			}
			received = append(received, ev)
		}
	}()

	for i := 0; i < 50; i++ {
		require.True(t, q.Enqueue(Event{Path: string(rune('a'+i%26)) + "/file", Kind: EventKind([]EventKind{EventCreated, EventModified, EventDeleted}[i%3])}))
	}
	q.Close()
	wg.Wait()

	assert.Len(t, received, 50)
}
