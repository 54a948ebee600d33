package pipeline

import (
	"sync"
)

// FrameBuffer is a bounded, latest-wins handoff point between the capture
// worker and the processing worker. Push never blocks the producer: when the
// buffer is full the oldest pending frame is evicted so the consumer always
// sees the most recent frames. This deliberately trades completeness for
// bounded end-to-end latency when the detector is slower than the camera.
//
// The buffer is a fixed-capacity ring guarded by a mutex and condition
// variable rather than a general-purpose concurrent queue, keeping the drop
// policy auditable.
type FrameBuffer struct {
	mu      sync.Mutex
	cond    *sync.Cond
	frames  []*Frame
	head    int
	count   int
	dropped uint64
	closed  bool
}

// NewFrameBuffer creates a buffer holding at most capacity frames.
// Capacity below 1 is clamped to 1.
func NewFrameBuffer(capacity int) *FrameBuffer {
	if capacity < 1 {
		capacity = 1
	}
	b := &FrameBuffer{
		frames: make([]*Frame, capacity),
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Push offers a frame to the consumer. It never blocks and never reports an
// error to the producer; if the buffer is full the oldest frame is discarded
// and the dropped counter incremented.
func (b *FrameBuffer) Push(frame *Frame) {
	if frame == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	if b.count == len(b.frames) {
		// Evict the oldest pending frame (latest-wins).
		b.frames[b.head] = nil
		b.head = (b.head + 1) % len(b.frames)
		b.count--
		b.dropped++
	}

	tail := (b.head + b.count) % len(b.frames)
	b.frames[tail] = frame
	b.count++
	b.cond.Signal()
}

// Take blocks until a frame is available or the buffer is closed. The second
// return value is false once the buffer is closed and drained.
func (b *FrameBuffer) Take() (*Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}

	if b.count == 0 {
		return nil, false
	}

	frame := b.frames[b.head]
	b.frames[b.head] = nil
	b.head = (b.head + 1) % len(b.frames)
	b.count--
	return frame, true
}

// Close discards pending frames and unblocks all waiting takers. In-flight
// frames are dropped rather than processed to completion.
func (b *FrameBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for i := range b.frames {
		b.frames[i] = nil
	}
	b.count = 0
	b.cond.Broadcast()
}

// Dropped returns the number of frames evicted since creation.
func (b *FrameBuffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Len returns the number of frames currently buffered.
func (b *FrameBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
