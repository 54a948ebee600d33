// Package stream serves an MJPEG preview of the pipeline with detection
// overlays drawn on each frame.
package stream

import (
	"fmt"
	"log"
	"net/http"
	"sync"

	"hazlabel/internal/pipeline"
)

// MJPEGStream broadcasts annotated pipeline frames to HTTP clients using
// multipart/x-mixed-replace.
type MJPEGStream struct {
	clients   map[chan []byte]bool
	clientsMu sync.RWMutex

	currentFrame []byte
	frameMu      sync.RWMutex
}

// NewMJPEGStream creates a stream with no clients.
func NewMJPEGStream() *MJPEGStream {
	return &MJPEGStream{
		clients: make(map[chan []byte]bool),
	}
}

// Attach subscribes the stream to pipeline results. Annotation runs on a
// dedicated goroutine so the JPEG decode/draw/encode never executes on the
// processing worker; frames the consumer cannot keep up with are skipped.
// Returns an unsubscribe function.
func (s *MJPEGStream) Attach(bus *pipeline.EventBus) func() {
	results, unsubscribe := bus.SubscribeChannel(4)
	go func() {
		for result := range results {
			if result.Frame == nil || len(result.Frame.Data) == 0 {
				continue
			}
			s.publish(Annotate(result.Frame.Data, result.Detections))
		}
	}()
	return unsubscribe
}

// publish stores the frame for snapshots and fans it out to clients. Slow
// clients skip frames rather than stalling the pipeline.
func (s *MJPEGStream) publish(frame []byte) {
	s.frameMu.Lock()
	s.currentFrame = frame
	s.frameMu.Unlock()

	s.clientsMu.RLock()
	for ch := range s.clients {
		select {
		case ch <- frame:
		default:
		}
	}
	s.clientsMu.RUnlock()
}

// CurrentFrame returns the latest annotated frame, or nil before the first
// result.
func (s *MJPEGStream) CurrentFrame() []byte {
	s.frameMu.RLock()
	defer s.frameMu.RUnlock()
	return s.currentFrame
}

// ClientCount returns the number of connected preview clients.
func (s *MJPEGStream) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// ServeHTTP serves the MJPEG stream to a client.
func (s *MJPEGStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	clientCh := make(chan []byte, 5)
	s.clientsMu.Lock()
	s.clients[clientCh] = true
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, clientCh)
		s.clientsMu.Unlock()
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	log.Printf("[MJPEGStream] Client connected from %s", r.RemoteAddr)

	for {
		select {
		case <-r.Context().Done():
			log.Printf("[MJPEGStream] Client disconnected")
			return
		case frame, ok := <-clientCh:
			if !ok {
				return
			}

			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(frame))
			w.Write(frame)
			fmt.Fprintf(w, "\r\n")
			flusher.Flush()
		}
	}
}

// SnapshotHandler serves a single JPEG of the latest annotated frame.
type SnapshotHandler struct {
	stream *MJPEGStream
}

// NewSnapshotHandler creates a snapshot handler backed by stream.
func NewSnapshotHandler(stream *MJPEGStream) *SnapshotHandler {
	return &SnapshotHandler{stream: stream}
}

// ServeHTTP serves a single JPEG snapshot.
func (h *SnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	frame := h.stream.CurrentFrame()
	if frame == nil {
		http.Error(w, "No frame available", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(frame)))
	w.Write(frame)
}
