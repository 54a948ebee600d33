package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

type configSnapshot struct {
	Config
	Version uint64
}

// Controller owns the pipeline workers and wires them together: one frame
// acquisition worker feeding the FrameBuffer, one detect+track worker
// draining it. Results are published to the Aggregator and fanned out on the
// EventBus. Configuration changes apply atomically to the next frame cycle;
// they never abort an in-progress inference call.
type Controller struct {
	source     FrameSource
	detector   Detector
	tracker    Tracker
	aggregator *Aggregator
	bus        *EventBus

	cfg        atomic.Pointer[configSnapshot]
	cfgVersion atomic.Uint64

	// opMu serializes Start and Stop so a Stop issued while Start is still
	// opening the source waits for the startup to finish instead of
	// returning with workers about to launch.
	opMu sync.Mutex

	mu     sync.Mutex // guards state transitions and worker handles
	state  State
	buffer *FrameBuffer
	cancel context.CancelFunc
	wg     sync.WaitGroup

	framesCaptured  atomic.Uint64
	framesProcessed atomic.Uint64
	detectionErrors atomic.Uint64
	lastSeq         atomic.Uint64
	droppedTotal    atomic.Uint64 // final buffer drop count, kept across Stop

	statsMu        sync.Mutex
	avgInferenceMs float32
	startedAt      time.Time
}

// NewController creates a pipeline controller. The aggregator and bus are
// owned by the controller but exposed for read access by consumers.
func NewController(source FrameSource, detector Detector, tracker Tracker, cfg Config, historyLimit int) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		source:     source,
		detector:   detector,
		tracker:    tracker,
		aggregator: NewAggregator(historyLimit),
		bus:        NewEventBus(),
		state:      StateStopped,
	}
	c.cfg.Store(&configSnapshot{Config: cfg, Version: c.cfgVersion.Add(1)})
	return c, nil
}

// Aggregator returns the result sink for snapshot/history readers.
func (c *Controller) Aggregator() *Aggregator { return c.aggregator }

// Bus returns the event bus for result subscribers.
func (c *Controller) Bus() *EventBus { return c.bus }

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Config returns the current configuration snapshot.
func (c *Controller) Config() Config {
	return c.cfg.Load().Config
}

// UpdateConfig validates and applies a new configuration. The change is
// observed by the processing worker at the start of its next frame cycle, so
// a single frame never sees mixed old/new values. On validation failure the
// prior configuration is retained. A changed MaxQueueDepth takes effect on
// the next Start.
func (c *Controller) UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg.Store(&configSnapshot{Config: cfg, Version: c.cfgVersion.Add(1)})
	log.Printf("[Pipeline] Config updated (conf=%.2f iou=%.2f tracking=%v)",
		cfg.ConfidenceThreshold, cfg.IoUThreshold, cfg.TrackingEnabled)
	return nil
}

// SetDetector swaps the detection backend. Only allowed while the pipeline
// is paused or stopped.
func (c *Controller) SetDetector(d Detector) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStopped && c.state != StatePaused {
		return fmt.Errorf("detector swap requires paused or stopped pipeline, state is %s", c.state)
	}
	c.detector = d
	return nil
}

// Start opens the frame source and launches the workers. It fails with
// ErrOpenFailure (wrapped) when the source cannot be opened, leaving the
// pipeline stopped.
func (c *Controller) Start(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.state != StateStopped {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.state = StateStarting
	c.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)

	if err := c.source.Open(runCtx); err != nil {
		cancel()
		c.mu.Lock()
		c.state = StateStopped
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrOpenFailure, err)
	}

	cfg := c.cfg.Load()
	buffer := NewFrameBuffer(cfg.MaxQueueDepth)

	c.mu.Lock()
	c.buffer = buffer
	c.cancel = cancel
	c.tracker.Reset()
	c.aggregator.Clear()
	c.framesCaptured.Store(0)
	c.framesProcessed.Store(0)
	c.detectionErrors.Store(0)
	c.lastSeq.Store(0)
	c.droppedTotal.Store(0)

	c.wg.Add(2)
	go c.captureLoop(runCtx, buffer)
	go c.processLoop(runCtx, buffer)
	c.state = StateRunning
	c.mu.Unlock()

	c.statsMu.Lock()
	c.startedAt = time.Now()
	c.statsMu.Unlock()

	log.Printf("[Pipeline] Started (queue depth %d)", cfg.MaxQueueDepth)
	return nil
}

// Stop halts the pipeline. Safe to call from any state; it returns once all
// worker activity has ceased, including a Start that was still opening the
// source when Stop was called. In-flight frames are discarded.
func (c *Controller) Stop() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.state == StateStopped {
		c.mu.Unlock()
		return nil
	}
	c.state = StateStopping
	cancel := c.cancel
	buffer := c.buffer
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if buffer != nil {
		buffer.Close()
	}
	// Closing the source unblocks a pending ReadFrame.
	if err := c.source.Close(); err != nil {
		log.Printf("[Pipeline] Source close error: %v", err)
	}

	c.wg.Wait()

	if buffer != nil {
		c.droppedTotal.Store(buffer.Dropped())
	}

	c.mu.Lock()
	c.state = StateStopped
	c.buffer = nil
	c.cancel = nil
	c.mu.Unlock()

	log.Printf("[Pipeline] Stopped")
	return nil
}

// Pause suspends processing. The capture worker keeps running and the
// processing worker drains and discards frames while paused, so Resume picks
// up from the live stream.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return ErrNotRunning
	}
	c.state = StatePaused
	log.Printf("[Pipeline] Paused")
	return nil
}

// Resume continues processing after a pause.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePaused {
		return ErrNotRunning
	}
	c.state = StateRunning
	log.Printf("[Pipeline] Resumed")
	return nil
}

// Stats returns a copy of the pipeline counters.
func (c *Controller) Stats() Stats {
	c.statsMu.Lock()
	avg := c.avgInferenceMs
	startedAt := c.startedAt
	c.statsMu.Unlock()

	processed := c.framesProcessed.Load()
	var fps float32
	if !startedAt.IsZero() && processed > 0 {
		if elapsed := time.Since(startedAt).Seconds(); elapsed > 0 {
			fps = float32(float64(processed) / elapsed)
		}
	}

	c.mu.Lock()
	state := c.state
	dropped := c.droppedTotal.Load()
	if c.buffer != nil {
		dropped = c.buffer.Dropped()
	}
	c.mu.Unlock()

	return Stats{
		State:           state,
		FramesCaptured:  c.framesCaptured.Load(),
		FramesProcessed: processed,
		FramesDropped:   dropped,
		DetectionErrors: c.detectionErrors.Load(),
		ActiveTracks:    c.tracker.ActiveTracks(),
		AvgInferenceMs:  avg,
		FPS:             fps,
		LastFrameSeq:    c.lastSeq.Load(),
		ConfigVersion:   c.cfg.Load().Version,
	}
}

// captureLoop reads frames from the source and pushes them into the buffer.
// It is the only worker blocking on device I/O.
func (c *Controller) captureLoop(ctx context.Context, buffer *FrameBuffer) {
	defer c.wg.Done()

	for {
		frame, err := c.source.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				log.Printf("[Pipeline] End of stream")
			} else {
				log.Printf("[Pipeline] Frame read failed: %v", err)
			}
			// Source exhaustion terminates the run; detach so Stop can join
			// this worker.
			go func() {
				if stopErr := c.Stop(); stopErr != nil {
					log.Printf("[Pipeline] Stop after stream end failed: %v", stopErr)
				}
			}()
			return
		}
		if frame == nil {
			continue
		}

		c.framesCaptured.Add(1)
		buffer.Push(frame)
	}
}

// processLoop drains the buffer, runs detection and association, and
// publishes results. Frames are processed in strictly increasing sequence
// order; dropped frames leave gaps that consumers must tolerate.
func (c *Controller) processLoop(ctx context.Context, buffer *FrameBuffer) {
	defer c.wg.Done()

	for {
		frame, ok := buffer.Take()
		if !ok {
			return
		}
		if ctx.Err() != nil {
			return
		}

		c.mu.Lock()
		paused := c.state == StatePaused
		detector := c.detector
		c.mu.Unlock()
		if paused {
			continue
		}

		// One consistent config snapshot per frame cycle.
		cfg := c.cfg.Load().Config

		detections, inferenceMs, err := c.detect(ctx, detector, frame, cfg)
		if err != nil {
			// A backend failure is non-fatal: log and treat as a
			// zero-detection frame.
			c.detectionErrors.Add(1)
			log.Printf("[Pipeline] Detection failed for frame %d: %v", frame.Seq, err)
			detections = nil
		}

		tracked, err := c.tracker.Process(frame, detections, cfg)
		if err != nil {
			log.Printf("[Pipeline] Tracker rejected frame %d: %v", frame.Seq, err)
			continue
		}

		c.framesProcessed.Add(1)
		c.lastSeq.Store(frame.Seq)
		c.updateInference(inferenceMs)

		c.aggregator.Publish(frame.Seq, frame.Timestamp, tracked)
		c.bus.Publish(&FrameResult{
			Frame:       frame,
			Detections:  tracked,
			InferenceMs: inferenceMs,
		})
	}
}

func (c *Controller) detect(ctx context.Context, detector Detector, frame *Frame, cfg Config) ([]Detection, float32, error) {
	if detector == nil {
		return nil, 0, errors.New("no detector configured")
	}
	detections, err := detector.Detect(ctx, frame, cfg.ConfidenceThreshold, cfg.IoUThreshold)
	if err != nil {
		return nil, 0, err
	}
	var ms float32
	if timer, ok := detector.(InferenceTimer); ok {
		ms = timer.LastInferenceMs()
	}
	return detections, ms, nil
}

func (c *Controller) updateInference(ms float32) {
	if ms <= 0 {
		return
	}
	c.statsMu.Lock()
	if c.avgInferenceMs == 0 {
		c.avgInferenceMs = ms
	} else {
		c.avgInferenceMs = (c.avgInferenceMs + ms) / 2
	}
	c.statsMu.Unlock()
}
