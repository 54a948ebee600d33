// Package track maintains stable identities for detected objects across
// frames. Association is greedy highest-IoU-first over class-compatible
// pairs, with deterministic tie-breaking, so the same detection sequence
// always produces the same track assignments.
package track

import (
	"fmt"
	"sort"
	"sync"

	"hazlabel/internal/pipeline"
)

// State is the lifecycle state of a track
type State uint8

const (
	// Tentative tracks have matched fewer than the confirmation count of
	// consecutive frames and are not exposed externally.
	Tentative State = iota
	// Confirmed tracks are exposed in results.
	Confirmed
	// Lost tracks missed their last frame and are retained with their
	// last-known position for the grace period.
	Lost
)

func (s State) String() string {
	switch s {
	case Tentative:
		return "tentative"
	case Confirmed:
		return "confirmed"
	case Lost:
		return "lost"
	}
	return "unknown"
}

// Track is a persistent identity for one detected object. Owned exclusively
// by the tracker; external readers only ever see immutable TrackedDetection
// copies.
type Track struct {
	ID              int64
	State           State
	Class           string
	Box             pipeline.BBox
	Confidence      float32
	Age             int // frames matched over the track's lifetime
	Hits            int // consecutive matches
	TimeSinceUpdate int // frames since the last match
	History         int // frames since birth
}

// IoUTracker implements pipeline.Tracker with greedy IoU association.
type IoUTracker struct {
	mu      sync.Mutex
	nextID  int64
	tracks  []*Track // birth order, ascending ID
	lastSeq uint64
	started bool
}

// NewIoUTracker creates an empty tracker. Track IDs start at 1 and are never
// reused, including across Reset.
func NewIoUTracker() *IoUTracker {
	return &IoUTracker{nextID: 1}
}

type candidate struct {
	trackIdx int
	detIdx   int
	iou      float32
}

// Process runs one association cycle. Detections must all belong to the
// given frame; the frame sequence must be strictly greater than the previous
// call's.
func (t *IoUTracker) Process(frame *pipeline.Frame, detections []pipeline.Detection, cfg pipeline.Config) ([]pipeline.TrackedDetection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started && frame.Seq <= t.lastSeq {
		return nil, fmt.Errorf("frame %d not after %d: out-of-order input", frame.Seq, t.lastSeq)
	}
	t.started = true
	t.lastSeq = frame.Seq

	if !cfg.TrackingEnabled {
		// Bypass: surface every detection as an ephemeral identity valid for
		// this frame only. Existing tracks are discarded so no pre-toggle ID
		// can leak into results.
		t.tracks = t.tracks[:0]
		out := make([]pipeline.TrackedDetection, 0, len(detections))
		for _, d := range detections {
			out = append(out, pipeline.TrackedDetection{
				TrackID:    t.allocID(),
				Class:      d.Class,
				Confidence: d.Confidence,
				Box:        d.Box,
				FrameSeq:   frame.Seq,
				Timestamp:  frame.Timestamp,
			})
		}
		return out, nil
	}

	for _, tr := range t.tracks {
		tr.History++
	}

	// Pairwise IoU between every live track and every class-compatible
	// detection at or above the threshold.
	candidates := make([]candidate, 0, len(t.tracks)*len(detections))
	for ti, tr := range t.tracks {
		for di, d := range detections {
			if tr.Class != d.Class {
				continue
			}
			iou := tr.Box.IoU(d.Box)
			if iou >= cfg.IoUThreshold {
				candidates = append(candidates, candidate{trackIdx: ti, detIdx: di, iou: iou})
			}
		}
	}

	// Greedy highest-IoU-first assignment, one-to-one. Ties break on higher
	// detection confidence, then lower track ID, then detection order, so
	// the outcome never depends on unordered iteration.
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.iou != b.iou {
			return a.iou > b.iou
		}
		ca, cb := detections[a.detIdx].Confidence, detections[b.detIdx].Confidence
		if ca != cb {
			return ca > cb
		}
		if t.tracks[a.trackIdx].ID != t.tracks[b.trackIdx].ID {
			return t.tracks[a.trackIdx].ID < t.tracks[b.trackIdx].ID
		}
		return a.detIdx < b.detIdx
	})

	trackMatched := make([]bool, len(t.tracks))
	detMatched := make([]bool, len(detections))
	for _, c := range candidates {
		if trackMatched[c.trackIdx] || detMatched[c.detIdx] {
			continue
		}
		trackMatched[c.trackIdx] = true
		detMatched[c.detIdx] = true

		tr := t.tracks[c.trackIdx]
		d := detections[c.detIdx]
		tr.Box = d.Box
		tr.Confidence = d.Confidence
		tr.Age++
		tr.Hits++
		tr.TimeSinceUpdate = 0
		switch tr.State {
		case Tentative:
			if tr.Hits >= cfg.ConfirmationFrames {
				tr.State = Confirmed
			}
		case Lost:
			// Re-acquired within the grace period.
			tr.State = Confirmed
		}
	}

	// Unmatched detections start new tentative tracks, in detection order.
	for di, d := range detections {
		if detMatched[di] {
			continue
		}
		tr := &Track{
			ID:         t.allocID(),
			State:      Tentative,
			Class:      d.Class,
			Box:        d.Box,
			Confidence: d.Confidence,
			Age:        1,
			Hits:       1,
			History:    1,
		}
		if tr.Hits >= cfg.ConfirmationFrames {
			tr.State = Confirmed
		}
		t.tracks = append(t.tracks, tr)
		trackMatched = append(trackMatched, true)
	}

	// Unmatched tracks age out: a tentative track dies on its first miss
	// (confirmation requires consecutive matches), a confirmed track goes
	// lost immediately and is deleted once the grace period is exceeded.
	kept := t.tracks[:0]
	for ti, tr := range t.tracks {
		if trackMatched[ti] {
			kept = append(kept, tr)
			continue
		}
		tr.Hits = 0
		tr.TimeSinceUpdate++
		switch tr.State {
		case Tentative:
			continue // dropped
		case Confirmed:
			tr.State = Lost
		}
		if tr.TimeSinceUpdate > cfg.LostGraceFrames {
			continue // deleted
		}
		kept = append(kept, tr)
	}
	t.tracks = kept

	// Only confirmed tracks matched this frame are exposed.
	out := make([]pipeline.TrackedDetection, 0, len(detections))
	for _, tr := range t.tracks {
		if tr.State != Confirmed || tr.TimeSinceUpdate != 0 {
			continue
		}
		out = append(out, pipeline.TrackedDetection{
			TrackID:    tr.ID,
			Class:      tr.Class,
			Confidence: tr.Confidence,
			Box:        tr.Box,
			FrameSeq:   frame.Seq,
			Timestamp:  frame.Timestamp,
		})
	}
	return out, nil
}

// ActiveTracks returns the number of live tracks.
func (t *IoUTracker) ActiveTracks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tracks)
}

// Tracks returns a copy of the current track set, for diagnostics.
func (t *IoUTracker) Tracks() []Track {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Track, len(t.tracks))
	for i, tr := range t.tracks {
		out[i] = *tr
	}
	return out
}

// Reset clears all track state for a new run. The ID counter is not reset.
func (t *IoUTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracks = nil
	t.lastSeq = 0
	t.started = false
}

func (t *IoUTracker) allocID() int64 {
	id := t.nextID
	t.nextID++
	return id
}

var _ pipeline.Tracker = (*IoUTracker)(nil)
