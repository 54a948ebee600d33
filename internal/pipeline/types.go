package pipeline

import (
	"fmt"
	"time"
)

// State is the pipeline lifecycle state
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateStopping State = "stopping"
)

// Frame represents a captured video frame
type Frame struct {
	Seq       uint64    // Frame sequence number, strictly increasing per source
	Timestamp time.Time // Capture timestamp
	Data      []byte    // JPEG frame data
	Width     int       // Frame width (if known)
	Height    int       // Frame height (if known)
}

// BBox represents a bounding box in pixel coordinates
type BBox struct {
	X1 float32 `json:"x1"` // Left
	Y1 float32 `json:"y1"` // Top
	X2 float32 `json:"x2"` // Right
	Y2 float32 `json:"y2"` // Bottom
}

// Width returns the box width in pixels.
func (b BBox) Width() float32 { return b.X2 - b.X1 }

// Height returns the box height in pixels.
func (b BBox) Height() float32 { return b.Y2 - b.Y1 }

// Area returns the box area in square pixels.
func (b BBox) Area() float32 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// IoU returns the intersection-over-union overlap ratio between two boxes.
func (b BBox) IoU(o BBox) float32 {
	ix1 := max32(b.X1, o.X1)
	iy1 := max32(b.Y1, o.Y1)
	ix2 := min32(b.X2, o.X2)
	iy2 := min32(b.Y2, o.Y2)
	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}
	inter := (ix2 - ix1) * (iy2 - iy1)
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

// Detection represents a single raw detection produced by the detector backend
type Detection struct {
	Class      string  `json:"class"`      // Class label (e.g., "GHS02")
	ClassID    int     `json:"class_id"`   // Numeric class identifier
	Confidence float32 `json:"confidence"` // Detection confidence [0-1]
	Box        BBox    `json:"bbox"`       // Bounding box
	FrameSeq   uint64  `json:"frame_seq"`  // Source frame sequence number
}

// TrackedDetection is the export unit: a detection bound to a track identity.
// Immutable once emitted.
type TrackedDetection struct {
	TrackID    int64     `json:"track_id"`
	Class      string    `json:"class"`
	Confidence float32   `json:"confidence"`
	Box        BBox      `json:"bbox"`
	FrameSeq   uint64    `json:"frame_seq"`
	Timestamp  time.Time `json:"timestamp"`
}

// FrameResult carries the outcome of one processed frame through the event
// bus. Frame data is only valid for the duration of delivery; consumers that
// need it longer must copy.
type FrameResult struct {
	Frame       *Frame
	Detections  []TrackedDetection
	InferenceMs float32
}

// Config holds the runtime pipeline configuration. A worker reads one
// consistent snapshot per frame cycle; updates apply to the next cycle.
type Config struct {
	ConfidenceThreshold float32 `json:"confidence_threshold"` // [0,1]
	IoUThreshold        float32 `json:"iou_threshold"`        // [0,1]
	TrackingEnabled     bool    `json:"tracking_enabled"`
	MaxQueueDepth       int     `json:"max_queue_depth"`     // >= 1, applied on next Start
	ConfirmationFrames  int     `json:"confirmation_frames"` // >= 1
	LostGraceFrames     int     `json:"lost_grace_frames"`   // >= 0
}

// DefaultConfig returns the default pipeline configuration. The thresholds
// match the defaults the hazard-label model is tuned for.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.25,
		IoUThreshold:        0.45,
		TrackingEnabled:     true,
		MaxQueueDepth:       1,
		ConfirmationFrames:  2,
		LostGraceFrames:     5,
	}
}

// Validate checks that all configuration values are in range.
func (c Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence_threshold %v not in [0,1]", ErrConfigValidation, c.ConfidenceThreshold)
	}
	if c.IoUThreshold < 0 || c.IoUThreshold > 1 {
		return fmt.Errorf("%w: iou_threshold %v not in [0,1]", ErrConfigValidation, c.IoUThreshold)
	}
	if c.MaxQueueDepth < 1 {
		return fmt.Errorf("%w: max_queue_depth %d < 1", ErrConfigValidation, c.MaxQueueDepth)
	}
	if c.ConfirmationFrames < 1 {
		return fmt.Errorf("%w: confirmation_frames %d < 1", ErrConfigValidation, c.ConfirmationFrames)
	}
	if c.LostGraceFrames < 0 {
		return fmt.Errorf("%w: lost_grace_frames %d < 0", ErrConfigValidation, c.LostGraceFrames)
	}
	return nil
}

// Stats contains pipeline performance counters
type Stats struct {
	State           State   `json:"state"`
	FramesCaptured  uint64  `json:"frames_captured"`
	FramesProcessed uint64  `json:"frames_processed"`
	FramesDropped   uint64  `json:"frames_dropped"`
	DetectionErrors uint64  `json:"detection_errors"`
	ActiveTracks    int     `json:"active_tracks"`
	AvgInferenceMs  float32 `json:"avg_inference_ms"`
	FPS             float32 `json:"fps"`
	LastFrameSeq    uint64  `json:"last_frame_seq"`
	ConfigVersion   uint64  `json:"config_version"`
}
