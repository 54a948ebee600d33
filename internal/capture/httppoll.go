package capture

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"hazlabel/internal/pipeline"
)

// HTTPStillSource polls an HTTP endpoint that serves single JPEG images
// (e.g. an IP camera snapshot URL). Each poll yields one frame.
type HTTPStillSource struct {
	url      string
	interval time.Duration
	client   *http.Client

	mu       sync.Mutex
	ticker   *time.Ticker
	open     bool
	done     chan struct{}
	frameSeq atomic.Uint64
}

// IsStillURL reports whether a device descriptor looks like an HTTP
// still-image endpoint rather than a stream.
func IsStillURL(device string) bool {
	return (strings.HasPrefix(device, "http://") || strings.HasPrefix(device, "https://")) &&
		(strings.Contains(device, ".jpg") || strings.Contains(device, ".jpeg") || strings.Contains(device, "image"))
}

// NewHTTPStillSource creates a polling source. fps controls the poll rate,
// capped at 10 polls per second to stay friendly to snapshot endpoints.
func NewHTTPStillSource(url string, fps int) *HTTPStillSource {
	if fps <= 0 {
		fps = 10
	}
	interval := time.Second / time.Duration(fps)
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	return &HTTPStillSource{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Open verifies the endpoint answers before the pipeline starts.
func (s *HTTPStillSource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return fmt.Errorf("source %s already open", s.url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", s.url, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe %s: status %d", s.url, resp.StatusCode)
	}

	s.ticker = time.NewTicker(s.interval)
	s.done = make(chan struct{})
	s.open = true
	log.Printf("[Capture] Polling %s every %s", s.url, s.interval)
	return nil
}

// ReadFrame waits for the next poll tick and fetches one image. Transient
// fetch errors are returned to the caller; io.EOF only after Close.
func (s *HTTPStillSource) ReadFrame(ctx context.Context) (*pipeline.Frame, error) {
	s.mu.Lock()
	ticker := s.ticker
	done := s.done
	open := s.open
	s.mu.Unlock()

	if !open {
		return nil, ErrNotOpen
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
		return nil, io.EOF
	case <-ticker.C:
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch frame: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}

	return &pipeline.Frame{
		Seq:       s.frameSeq.Add(1),
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}

// Close stops polling and unblocks a pending ReadFrame.
func (s *HTTPStillSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}
	s.open = false
	s.ticker.Stop()
	close(s.done)
	return nil
}

var _ pipeline.FrameSource = (*HTTPStillSource)(nil)
