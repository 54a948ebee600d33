// Package capture provides pipeline.FrameSource implementations for cameras,
// files and network streams.
package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"hazlabel/internal/pipeline"
)

// ErrNotOpen is returned by ReadFrame before Open or after Close.
var ErrNotOpen = errors.New("frame source not open")

// FFmpegSource captures frames by decoding a source into an MJPEG
// image2pipe stream with FFmpeg. The device string selects the input:
// rtsp:// and http(s):// URLs stream directly, anything else is treated as a
// V4L2 device path (e.g. /dev/video0).
type FFmpegSource struct {
	device string
	fps    int
	width  int
	height int

	mu       sync.Mutex
	cmd      *exec.Cmd
	stdout   io.ReadCloser
	buf      []byte
	chunk    []byte
	frameSeq atomic.Uint64
	open     bool
}

// NewFFmpegSource creates a source for the given device descriptor.
func NewFFmpegSource(device string, fps, width, height int) *FFmpegSource {
	if fps <= 0 {
		fps = 30
	}
	return &FFmpegSource{
		device: device,
		fps:    fps,
		width:  width,
		height: height,
		chunk:  make([]byte, 8192),
	}
}

// Open starts the FFmpeg process. Failure to start is an open failure: the
// pipeline stays stopped.
func (s *FFmpegSource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return fmt.Errorf("source %s already open", s.device)
	}

	cmd := exec.Command("ffmpeg", s.args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	// Consume stderr silently
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
		}
	}()

	s.cmd = cmd
	s.stdout = stdout
	s.buf = make([]byte, 0, 1024*1024)
	s.open = true

	log.Printf("[Capture] Opened %s (fps: %d)", s.device, s.fps)
	return nil
}

func (s *FFmpegSource) args() []string {
	switch {
	case strings.HasPrefix(s.device, "rtsp://"):
		return []string{
			"-rtsp_transport", "tcp",
			"-i", s.device,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-r", fmt.Sprintf("%d", s.fps),
			"-q:v", "5",
			"-",
		}
	case strings.HasPrefix(s.device, "http://"), strings.HasPrefix(s.device, "https://"):
		return []string{
			"-i", s.device,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-r", fmt.Sprintf("%d", s.fps),
			"-q:v", "5",
			"-",
		}
	default:
		// V4L2 device (USB camera)
		return []string{
			"-f", "v4l2",
			"-video_size", fmt.Sprintf("%dx%d", s.width, s.height),
			"-framerate", fmt.Sprintf("%d", s.fps),
			"-i", s.device,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-q:v", "5",
			"-",
		}
	}
}

// ReadFrame blocks until the next complete JPEG frame arrives on the pipe.
// Returns io.EOF when FFmpeg exits or the source is closed.
func (s *FFmpegSource) ReadFrame(ctx context.Context) (*pipeline.Frame, error) {
	s.mu.Lock()
	stdout := s.stdout
	open := s.open
	s.mu.Unlock()

	if !open || stdout == nil {
		return nil, ErrNotOpen
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if data := ExtractJPEGFrame(&s.buf); data != nil {
			return s.newFrame(data), nil
		}

		n, err := stdout.Read(s.chunk)
		if n > 0 {
			s.buf = append(s.buf, s.chunk[:n]...)
			continue
		}
		if err != nil {
			if errors.Is(err, io.ErrClosedPipe) || strings.Contains(err.Error(), "file already closed") {
				return nil, io.EOF
			}
			return nil, err
		}
	}
}

func (s *FFmpegSource) newFrame(data []byte) *pipeline.Frame {
	return &pipeline.Frame{
		Seq:       s.frameSeq.Add(1),
		Timestamp: time.Now(),
		Data:      data,
		Width:     s.width,
		Height:    s.height,
	}
}

// Close kills the FFmpeg process, unblocking any pending ReadFrame.
func (s *FFmpegSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}
	s.open = false

	if s.stdout != nil {
		s.stdout.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
		// Reap the process; the exit error is expected after a kill.
		go s.cmd.Wait()
	}
	s.cmd = nil
	s.stdout = nil

	log.Printf("[Capture] Closed %s", s.device)
	return nil
}

var _ pipeline.FrameSource = (*FFmpegSource)(nil)
