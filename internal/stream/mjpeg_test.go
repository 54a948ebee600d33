package stream

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hazlabel/internal/pipeline"
)

func TestMJPEGStreamAttachDeliversFrames(t *testing.T) {
	s := NewMJPEGStream()
	bus := pipeline.NewEventBus()
	unsubscribe := s.Attach(bus)
	defer unsubscribe()

	frame := []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}
	bus.Publish(&pipeline.FrameResult{Frame: &pipeline.Frame{Seq: 1, Data: frame}})

	// Annotation happens off the publishing goroutine; the frame arrives
	// shortly after Publish returns.
	require.Eventually(t, func() bool {
		return s.CurrentFrame() != nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, frame, s.CurrentFrame())
}

func TestMJPEGStreamAttachIgnoresEmptyFrames(t *testing.T) {
	s := NewMJPEGStream()
	bus := pipeline.NewEventBus()
	unsubscribe := s.Attach(bus)
	defer unsubscribe()

	bus.Publish(&pipeline.FrameResult{Frame: &pipeline.Frame{Seq: 1}})
	bus.Publish(&pipeline.FrameResult{})

	time.Sleep(50 * time.Millisecond)
	assert.Nil(t, s.CurrentFrame())
}

func TestSnapshotHandler(t *testing.T) {
	s := NewMJPEGStream()
	h := NewSnapshotHandler(s)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/stream/snapshot", nil))
	assert.Equal(t, 503, rec.Code)

	frame := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	s.publish(frame)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/stream/snapshot", nil))
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, frame, rec.Body.Bytes())
}
