package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hazlabel/internal/pipeline"
)

func TestNewDetectionMessage(t *testing.T) {
	ts := time.Now()
	result := &pipeline.FrameResult{
		Frame: &pipeline.Frame{Seq: 7, Timestamp: ts, Width: 1280, Height: 720},
		Detections: []pipeline.TrackedDetection{
			{
				TrackID:    3,
				Class:      "GHS02",
				Confidence: 0.91,
				Box:        pipeline.BBox{X1: 10, Y1: 20, X2: 60, Y2: 80},
				FrameSeq:   7,
			},
		},
		InferenceMs: 12.5,
	}

	msg := NewDetectionMessage(result)

	assert.Equal(t, "detection", msg.Type)
	assert.Equal(t, uint64(7), msg.FrameSeq)
	assert.Equal(t, ts, msg.Timestamp)
	assert.Equal(t, 1280, msg.FrameWidth)
	assert.Equal(t, float32(12.5), msg.InferenceMs)

	require.Len(t, msg.Objects, 1)
	assert.Equal(t, int64(3), msg.Objects[0].TrackID)
	assert.Equal(t, []float32{10, 20, 60, 80}, msg.Objects[0].BBox)
}

func TestNewDetectionMessageEmpty(t *testing.T) {
	result := &pipeline.FrameResult{Frame: &pipeline.Frame{Seq: 1}}
	msg := NewDetectionMessage(result)
	assert.NotNil(t, msg.Objects)
	assert.Empty(t, msg.Objects)
}

func TestNewStateMessage(t *testing.T) {
	msg := NewStateMessage(pipeline.StateRunning)
	assert.Equal(t, "state", msg.Type)
	assert.Equal(t, "running", msg.State)
}
