package detection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hazlabel/internal/pipeline"
)

func testFrame() *pipeline.Frame {
	return &pipeline.Frame{
		Seq:       42,
		Timestamp: time.Now(),
		Data:      []byte{0xFF, 0xD8, 0x00, 0xFF, 0xD9},
	}
}

func TestHTTPDetectorDetect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/detect", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1 << 20))

		assert.Equal(t, "0.25", r.FormValue("conf_threshold"))
		assert.Equal(t, "0.45", r.FormValue("iou_threshold"))

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		file.Close()

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"detections": [
				{"class": "GHS02", "class_id": 1, "confidence": 0.91, "bbox": [10, 10, 60, 60]},
				{"class": "GHS05", "class_id": 4, "confidence": 0.12, "bbox": [5, 5, 20, 20]}
			],
			"count": 2,
			"inference_time_ms": 17.5,
			"device": "cuda:0"
		}`))
	}))
	defer srv.Close()

	d := NewHTTPDetector(srv.URL, nil)
	dets, err := d.Detect(context.Background(), testFrame(), 0.25, 0.45)
	require.NoError(t, err)

	// Below-threshold detections from the backend are filtered client-side.
	require.Len(t, dets, 1)
	assert.Equal(t, "GHS02", dets[0].Class)
	assert.Equal(t, float32(0.91), dets[0].Confidence)
	assert.Equal(t, pipeline.BBox{X1: 10, Y1: 10, X2: 60, Y2: 60}, dets[0].Box)
	assert.Equal(t, uint64(42), dets[0].FrameSeq)

	assert.Equal(t, float32(17.5), d.LastInferenceMs())
}

func TestHTTPDetectorEmptyResultIsNotNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"detections": [], "count": 0, "inference_time_ms": 3.2}`))
	}))
	defer srv.Close()

	d := NewHTTPDetector(srv.URL, nil)
	dets, err := d.Detect(context.Background(), testFrame(), 0.25, 0.45)
	require.NoError(t, err)
	assert.NotNil(t, dets)
	assert.Empty(t, dets)
}

func TestHTTPDetectorBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := NewHTTPDetector(srv.URL, nil)
	_, err := d.Detect(context.Background(), testFrame(), 0.25, 0.45)
	assert.Error(t, err)
}

func TestHTTPDetectorUnreachableBackend(t *testing.T) {
	d := NewHTTPDetector("http://127.0.0.1:1", nil)
	_, err := d.Detect(context.Background(), testFrame(), 0.25, 0.45)
	assert.Error(t, err)
	assert.False(t, d.IsHealthy())
}

func TestHTTPDetectorHealthEndpoint(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		if healthy {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	d := NewHTTPDetector(srv.URL, nil)
	assert.True(t, d.IsHealthy())

	healthy = false
	assert.False(t, d.IsHealthy())
}
