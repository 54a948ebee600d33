package pipeline

import (
	"sync"
	"time"
)

// PublishedFrame is one aggregated history entry: the tracked detections of a
// single processed frame. Entries are append-only and never mutated after
// publish.
type PublishedFrame struct {
	FrameSeq   uint64             `json:"frame_seq"`
	Timestamp  time.Time          `json:"timestamp"`
	Detections []TrackedDetection `json:"detections"`
}

// Aggregator is the thread-safe sink for tracked-detection results. It keeps
// the latest published set for display consumers and a bounded rolling
// history for export. Readers always observe a consistent snapshot; no
// partial or torn reads.
type Aggregator struct {
	mu           sync.RWMutex
	latest       PublishedFrame
	hasLatest    bool
	history      []PublishedFrame
	historyLimit int
}

// NewAggregator creates an aggregator retaining at most historyLimit frames
// of rolling history. A limit below 1 is clamped to 1.
func NewAggregator(historyLimit int) *Aggregator {
	if historyLimit < 1 {
		historyLimit = 1
	}
	return &Aggregator{
		history:      make([]PublishedFrame, 0, historyLimit),
		historyLimit: historyLimit,
	}
}

// Publish records the tracked detections of one processed frame. Called once
// per frame by the processing worker. The detections slice is copied; the
// caller keeps ownership of its argument.
func (a *Aggregator) Publish(frameSeq uint64, ts time.Time, detections []TrackedDetection) {
	entry := PublishedFrame{
		FrameSeq:   frameSeq,
		Timestamp:  ts,
		Detections: append([]TrackedDetection(nil), detections...),
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.latest = entry
	a.hasLatest = true

	if len(a.history) == a.historyLimit {
		copy(a.history, a.history[1:])
		a.history = a.history[:a.historyLimit-1]
	}
	a.history = append(a.history, entry)
}

// Snapshot returns the latest published frame sequence and its tracked
// detections. The returned slice is a copy and safe to retain.
func (a *Aggregator) Snapshot() (uint64, []TrackedDetection) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.hasLatest {
		return 0, []TrackedDetection{}
	}
	return a.latest.FrameSeq, append([]TrackedDetection(nil), a.latest.Detections...)
}

// History returns a copy of the rolling history, oldest first.
func (a *Aggregator) History() []PublishedFrame {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]PublishedFrame, len(a.history))
	copy(out, a.history)
	return out
}

// HistoryLen returns the number of retained history entries.
func (a *Aggregator) HistoryLen() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.history)
}

// Clear drops the snapshot and history. Used when a new run starts.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hasLatest = false
	a.latest = PublishedFrame{}
	a.history = a.history[:0]
}
