// Package export writes detection history and frame snapshots to disk.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"hazlabel/internal/pipeline"
)

// Exporter writes CSV files and screenshots into a fixed output directory.
type Exporter struct {
	dir string
}

// NewExporter creates the output directory if needed.
func NewExporter(dir string) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Exporter{dir: dir}, nil
}

// Dir returns the output directory.
func (e *Exporter) Dir() string { return e.dir }

// WriteCSV dumps published frames to a timestamped CSV file, one row per
// tracked detection, and returns the file path.
func (e *Exporter) WriteCSV(history []pipeline.PublishedFrame) (string, error) {
	name := fmt.Sprintf("detections_%s_%s.csv",
		time.Now().Format("20060102_150405"), uuid.New().String()[:8])
	path := filepath.Join(e.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"track_id", "class", "confidence", "x1", "y1", "x2", "y2", "frame_seq", "timestamp"}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}

	for _, frame := range history {
		for _, d := range frame.Detections {
			row := []string{
				strconv.FormatInt(d.TrackID, 10),
				d.Class,
				strconv.FormatFloat(float64(d.Confidence), 'f', 4, 32),
				strconv.FormatFloat(float64(d.Box.X1), 'f', 1, 32),
				strconv.FormatFloat(float64(d.Box.Y1), 'f', 1, 32),
				strconv.FormatFloat(float64(d.Box.X2), 'f', 1, 32),
				strconv.FormatFloat(float64(d.Box.Y2), 'f', 1, 32),
				strconv.FormatUint(frame.FrameSeq, 10),
				frame.Timestamp.Format(time.RFC3339Nano),
			}
			if err := w.Write(row); err != nil {
				return "", fmt.Errorf("write csv row: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return path, nil
}

// WriteScreenshot saves a JPEG frame to a timestamped file and returns the
// file path. The data is written as-is; callers annotate first if desired.
func (e *Exporter) WriteScreenshot(jpeg []byte) (string, error) {
	if len(jpeg) == 0 {
		return "", fmt.Errorf("no frame available")
	}

	name := fmt.Sprintf("screenshot_%s_%s.jpg",
		time.Now().Format("20060102_150405"), uuid.New().String()[:8])
	path := filepath.Join(e.dir, name)

	if err := os.WriteFile(path, jpeg, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}
