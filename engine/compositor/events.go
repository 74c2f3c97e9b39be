package compositor

import "sync"

// Event is an invalidation pushed by the input layer and applied at the start of the next frame.
// The set of events is closed.
type Event interface {
	event()
}

// SurfaceResized requests that the surface and every pass be rebuilt for a new size.
type SurfaceResized struct {
	Width, Height uint32
}

// ShaderReloadRequested requests a reload of the named shader files and of every program including them.
// No paths reloads every loaded program.
type ShaderReloadRequested struct {
	Paths []string
}

func (SurfaceResized) event()        {}
func (ShaderReloadRequested) event() {}

// Queue is a mutex-guarded FIFO of pending events. Each event is consumed by exactly one Drain.
type Queue struct {
	mu     sync.Mutex
	events []Event
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends e to the queue.
func (q *Queue) Push(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, e)
}

// Drain returns the pending events in push order and clears the queue.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	events := q.events
	q.events = nil
	return events
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
