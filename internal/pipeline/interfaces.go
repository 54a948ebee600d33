package pipeline

import (
	"context"
)

// FrameSource wraps a video input (camera, file, or network stream) and
// produces a sequence of timestamped frames.
type FrameSource interface {
	// Open prepares the source for reading. It returns an error when the
	// underlying device or stream cannot be opened.
	Open(ctx context.Context) error

	// ReadFrame blocks until the next frame is available. It returns io.EOF
	// when the stream ends and a non-EOF error on transient I/O failure.
	// Frames carry strictly increasing sequence numbers.
	ReadFrame(ctx context.Context) (*Frame, error)

	// Close releases the source. Safe to call concurrently with ReadFrame;
	// it unblocks a pending read.
	Close() error
}

// Detector is the capability contract for a detection backend: given an
// image, return detections. The pipeline never depends on which concrete
// backend is in use.
type Detector interface {
	// Name returns the detector identifier (e.g., "yolo-http")
	Name() string

	// IsHealthy returns true if the detector is operational
	IsHealthy() bool

	// Detect runs detection on a frame. Confidence filtering and overlap
	// suppression use the supplied thresholds. Returns an empty slice, never
	// nil, when nothing qualifies.
	Detect(ctx context.Context, frame *Frame, confThreshold, iouThreshold float32) ([]Detection, error)

	// Close releases detector resources
	Close() error
}

// InferenceTimer is implemented by detectors that report how long the most
// recent backend call took.
type InferenceTimer interface {
	LastInferenceMs() float32
}

// Tracker associates per-frame detections with persistent track identities.
type Tracker interface {
	// Process consumes the detections of one frame and returns the tracked
	// detections exposed for that frame. Frame sequence numbers must be
	// strictly increasing across calls.
	Process(frame *Frame, detections []Detection, cfg Config) ([]TrackedDetection, error)

	// ActiveTracks returns the number of live (tentative, confirmed or lost)
	// tracks.
	ActiveTracks() int

	// Reset clears all track state. Track IDs keep increasing; they are
	// never reused within a pipeline run.
	Reset()
}

// ResultHandler receives the result of each processed frame.
type ResultHandler func(result *FrameResult)
