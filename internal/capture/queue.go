package capture

import (
	"sync"

	"vigil/internal/frame"
)

// FrameQueue is a bounded thread-safe FIFO shared between the capture loop
// and the orchestrator. Push never blocks: when the queue is full the new
// frame is dropped, never an old one. Pop never blocks: it returns false
// when empty. Staleness is preferred over stalling either side.
type FrameQueue struct {
	mu       sync.Mutex
	frames   []*frame.Frame
	capacity int
	dropped  uint64
}

// NewFrameQueue creates a queue with the given capacity.
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &FrameQueue{
		frames:   make([]*frame.Frame, 0, capacity),
		capacity: capacity,
	}
}

// Push appends f if there is room. Returns false if the frame was dropped.
func (q *FrameQueue) Push(f *frame.Frame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) >= q.capacity {
		q.dropped++
		return false
	}
	q.frames = append(q.frames, f)
	return true
}

// Pop removes and returns the oldest frame, or (nil, false) if empty.
func (q *FrameQueue) Pop() (*frame.Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) == 0 {
		return nil, false
	}
	f := q.frames[0]
	q.frames = q.frames[1:]
	return f, true
}

// Len returns the current queue depth.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Dropped returns how many frames were discarded on push.
func (q *FrameQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
