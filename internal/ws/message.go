package ws

import (
	"time"

	"hazlabel/internal/pipeline"
)

// DetectionMessage represents a per-frame tracked detection broadcast
type DetectionMessage struct {
	Type        string          `json:"type"` // "detection"
	FrameSeq    uint64          `json:"frame_seq"`
	Timestamp   time.Time       `json:"timestamp"`
	FrameWidth  int             `json:"frame_width"`
	FrameHeight int             `json:"frame_height"`
	Objects     []TrackedObject `json:"objects"`
	InferenceMs float32         `json:"inference_ms,omitempty"`
}

// TrackedObject represents a single tracked detection
type TrackedObject struct {
	TrackID    int64     `json:"track_id"`
	Class      string    `json:"class"`
	Confidence float32   `json:"confidence"`
	BBox       []float32 `json:"bbox"` // [x1, y1, x2, y2] in pixels
}

// StateMessage represents a pipeline state change broadcast
type StateMessage struct {
	Type      string    `json:"type"` // "state"
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDetectionMessage builds a broadcast message from a frame result
func NewDetectionMessage(result *pipeline.FrameResult) *DetectionMessage {
	msg := &DetectionMessage{
		Type:        "detection",
		FrameSeq:    result.Frame.Seq,
		Timestamp:   result.Frame.Timestamp,
		FrameWidth:  result.Frame.Width,
		FrameHeight: result.Frame.Height,
		Objects:     make([]TrackedObject, 0, len(result.Detections)),
		InferenceMs: result.InferenceMs,
	}
	for _, d := range result.Detections {
		msg.Objects = append(msg.Objects, TrackedObject{
			TrackID:    d.TrackID,
			Class:      d.Class,
			Confidence: d.Confidence,
			BBox:       []float32{d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2},
		})
	}
	return msg
}

// NewStateMessage builds a pipeline state broadcast
func NewStateMessage(state pipeline.State) *StateMessage {
	return &StateMessage{
		Type:      "state",
		State:     string(state),
		Timestamp: time.Now(),
	}
}
