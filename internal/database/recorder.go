package database

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"hazlabel/internal/pipeline"
)

// Recorder subscribes to pipeline results and persists them in batches.
// Writes happen off the processing path so a slow disk never stalls frames.
type Recorder struct {
	db *Database

	mu      sync.Mutex
	runID   string
	pending []*DetectionRecord
	cancel  func()
	flushCh chan struct{}
	done    chan struct{}
}

const recorderBatchSize = 64

// NewRecorder creates a recorder writing to db.
func NewRecorder(db *Database) *Recorder {
	return &Recorder{db: db}
}

// StartRun opens a new run row and begins consuming results from the bus.
// Returns the generated run ID.
func (r *Recorder) StartRun(bus *pipeline.EventBus, source, detector string) (string, error) {
	runID := uuid.New().String()

	if err := r.db.CreateRun(&RunRecord{
		ID:        runID,
		Source:    source,
		Detector:  detector,
		StartedAt: time.Now(),
	}); err != nil {
		return "", err
	}

	r.mu.Lock()
	r.runID = runID
	r.pending = nil
	r.flushCh = make(chan struct{}, 1)
	r.done = make(chan struct{})
	r.mu.Unlock()

	r.cancel = bus.Subscribe(r.onResult)
	go r.writeLoop()

	log.Printf("[Recorder] Run %s started", runID)
	return runID, nil
}

// StopRun flushes pending rows and closes out the run record.
func (r *Recorder) StopRun(frames, dropped int64) error {
	r.mu.Lock()
	runID := r.runID
	r.runID = ""
	done := r.done
	r.mu.Unlock()

	if runID == "" {
		return nil
	}

	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	if done != nil {
		close(done)
	}
	r.flush()

	if err := r.db.FinishRun(runID, time.Now(), frames, dropped); err != nil {
		return err
	}
	log.Printf("[Recorder] Run %s stopped (%d frames, %d dropped)", runID, frames, dropped)
	return nil
}

func (r *Recorder) onResult(result *pipeline.FrameResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.runID == "" {
		return
	}
	for _, d := range result.Detections {
		r.pending = append(r.pending, &DetectionRecord{
			RunID:      r.runID,
			TrackID:    d.TrackID,
			Class:      d.Class,
			Confidence: float64(d.Confidence),
			X1:         float64(d.Box.X1),
			Y1:         float64(d.Box.Y1),
			X2:         float64(d.Box.X2),
			Y2:         float64(d.Box.Y2),
			FrameSeq:   int64(d.FrameSeq),
			Timestamp:  d.Timestamp,
		})
	}
	if len(r.pending) >= recorderBatchSize {
		select {
		case r.flushCh <- struct{}{}:
		default:
		}
	}
}

func (r *Recorder) writeLoop() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	r.mu.Lock()
	flushCh := r.flushCh
	done := r.done
	r.mu.Unlock()

	for {
		select {
		case <-done:
			return
		case <-flushCh:
			r.flush()
		case <-ticker.C:
			r.flush()
		}
	}
}

func (r *Recorder) flush() {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := r.db.SaveDetections(batch); err != nil {
		log.Printf("[Recorder] Failed to persist %d detections: %v", len(batch), err)
	}
}
