package game

import (
	"sync"

	"github.com/jacobtread/Quizler/internal/msg"
)

// EventQueue is the per-session outbound queue of server events. It is
// an unbounded FIFO: producers (the game, under its own lock) never
// block, and the consuming session drains events in arrival order.
// Events sent after Close are silently discarded.
type EventQueue struct {
	mu     sync.Mutex
	events []*msg.ServerEvent
	signal chan struct{}
	closed bool
}

// NewEventQueue creates an empty open queue
func NewEventQueue() *EventQueue {
	return &EventQueue{
		signal: make(chan struct{}, 1),
	}
}

// Send delivers a single owned event
func (q *EventQueue) Send(event msg.ServerEvent) {
	q.push(&event)
}

// SendShared delivers an event shared by pointer across many queues.
// Shared events are broadcast fan-outs and must not be mutated.
func (q *EventQueue) SendShared(event *msg.ServerEvent) {
	q.push(event)
}

func (q *EventQueue) push(event *msg.ServerEvent) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.events = append(q.events, event)
	q.mu.Unlock()

	// Wake the consumer without blocking if a wakeup is already pending
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Poll removes and returns the oldest queued event, reporting false
// when the queue is empty
func (q *EventQueue) Poll() (*msg.ServerEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil, false
	}
	event := q.events[0]
	q.events[0] = nil
	q.events = q.events[1:]
	return event, true
}

// Signal is the channel the consumer selects on to learn that events
// may be queued. A single receipt can cover multiple events so the
// consumer should drain with Poll until empty.
func (q *EventQueue) Signal() <-chan struct{} {
	return q.signal
}

// Close discards any queued events and causes future sends to be
// dropped. Safe to call more than once.
func (q *EventQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.events = nil
	q.mu.Unlock()
}
