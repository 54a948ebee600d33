// Package detection provides pipeline.Detector implementations speaking to
// external inference backends.
package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync"
	"time"

	"hazlabel/internal/pipeline"
)

// rawDetection is one entry in the backend's JSON response
type rawDetection struct {
	Class      string    `json:"class"`
	ClassID    int       `json:"class_id"`
	Confidence float32   `json:"confidence"`
	BBox       []float32 `json:"bbox"` // [x1, y1, x2, y2]
}

// detectResponse is the backend's JSON response envelope
type detectResponse struct {
	Detections      []rawDetection `json:"detections"`
	Count           int            `json:"count"`
	InferenceTimeMs float32        `json:"inference_time_ms"`
	Device          string         `json:"device"`
}

// HTTPDetector calls a YOLO inference sidecar over HTTP. The sidecar applies
// confidence filtering and NMS overlap suppression with the thresholds sent
// alongside each frame, so the pipeline's per-cycle config snapshot reaches
// the backend unchanged.
type HTTPDetector struct {
	endpoint string
	client   *http.Client
	health   HealthChecker

	mu              sync.Mutex
	lastInferenceMs float32
}

// NewHTTPDetector creates a detector client for the given endpoint. health
// may be nil, in which case the detector falls back to the backend's
// /health HTTP endpoint.
func NewHTTPDetector(endpoint string, health HealthChecker) *HTTPDetector {
	return &HTTPDetector{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		health: health,
	}
}

func (d *HTTPDetector) Name() string { return "yolo-http" }

// IsHealthy reports whether the backend is reachable and has a model loaded.
func (d *HTTPDetector) IsHealthy() bool {
	if d.health != nil {
		return d.health.Healthy()
	}

	resp, err := d.client.Get(d.endpoint + "/health")
	if err != nil {
		log.Printf("[Detector] Health check failed: %v", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Detect posts one frame to the backend and maps the response to pipeline
// detections. Returns an empty slice, never nil, when nothing qualifies.
func (d *HTTPDetector) Detect(ctx context.Context, frame *pipeline.Frame, confThreshold, iouThreshold float32) ([]pipeline.Detection, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	fw, err := w.CreatePart(h)
	if err != nil {
		return nil, err
	}
	fw.Write(frame.Data)

	w.WriteField("conf_threshold", fmt.Sprintf("%.2f", confThreshold))
	w.WriteField("iou_threshold", fmt.Sprintf("%.2f", iouThreshold))
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"/detect", &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detection request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("detection failed: %s", string(body))
	}

	var result detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode detection response: %w", err)
	}

	d.mu.Lock()
	d.lastInferenceMs = result.InferenceTimeMs
	d.mu.Unlock()

	detections := make([]pipeline.Detection, 0, len(result.Detections))
	for _, raw := range result.Detections {
		if raw.Confidence < confThreshold {
			continue
		}
		var box pipeline.BBox
		if len(raw.BBox) >= 4 {
			box = pipeline.BBox{X1: raw.BBox[0], Y1: raw.BBox[1], X2: raw.BBox[2], Y2: raw.BBox[3]}
		}
		detections = append(detections, pipeline.Detection{
			Class:      raw.Class,
			ClassID:    raw.ClassID,
			Confidence: raw.Confidence,
			Box:        box,
			FrameSeq:   frame.Seq,
		})
	}
	return detections, nil
}

// LastInferenceMs returns the backend-reported duration of the most recent
// inference call.
func (d *HTTPDetector) LastInferenceMs() float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastInferenceMs
}

// Close releases detector resources. The HTTP client needs no teardown; the
// health checker owns a connection.
func (d *HTTPDetector) Close() error {
	if d.health != nil {
		return d.health.Close()
	}
	return nil
}

var _ pipeline.Detector = (*HTTPDetector)(nil)
var _ pipeline.InferenceTimer = (*HTTPDetector)(nil)
