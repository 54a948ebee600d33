package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hazlabel/internal/pipeline"
)

func sampleHistory() []pipeline.PublishedFrame {
	ts := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	return []pipeline.PublishedFrame{
		{
			FrameSeq:  1,
			Timestamp: ts,
			Detections: []pipeline.TrackedDetection{
				{TrackID: 1, Class: "GHS02", Confidence: 0.9, Box: pipeline.BBox{X1: 10, Y1: 10, X2: 60, Y2: 60}},
			},
		},
		{
			FrameSeq:  2,
			Timestamp: ts.Add(66 * time.Millisecond),
			Detections: []pipeline.TrackedDetection{
				{TrackID: 1, Class: "GHS02", Confidence: 0.88, Box: pipeline.BBox{X1: 12, Y1: 11, X2: 63, Y2: 60}},
				{TrackID: 2, Class: "GHS05", Confidence: 0.75, Box: pipeline.BBox{X1: 100, Y1: 40, X2: 140, Y2: 90}},
			},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	e, err := NewExporter(t.TempDir())
	require.NoError(t, err)

	path, err := e.WriteCSV(sampleHistory())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "detections_"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4) // header + 3 detections

	assert.Equal(t, []string{"track_id", "class", "confidence", "x1", "y1", "x2", "y2", "frame_seq", "timestamp"}, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "GHS02", rows[1][1])
	assert.Equal(t, "0.9000", rows[1][2])
	assert.Equal(t, "2", rows[3][0])
	assert.Equal(t, "GHS05", rows[3][1])
	assert.Equal(t, "2", rows[3][7])
}

func TestWriteCSVEmptyHistory(t *testing.T) {
	e, err := NewExporter(t.TempDir())
	require.NoError(t, err)

	path, err := e.WriteCSV(nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(string(data)), "\n")+1) // header only
}

func TestWriteScreenshot(t *testing.T) {
	e, err := NewExporter(t.TempDir())
	require.NoError(t, err)

	jpeg := []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}
	path, err := e.WriteScreenshot(jpeg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "screenshot_"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, jpeg, data)
}

func TestWriteScreenshotNoFrame(t *testing.T) {
	e, err := NewExporter(t.TempDir())
	require.NoError(t, err)

	_, err = e.WriteScreenshot(nil)
	assert.Error(t, err)
}

func TestUniqueFilenames(t *testing.T) {
	e, err := NewExporter(t.TempDir())
	require.NoError(t, err)

	first, err := e.WriteCSV(nil)
	require.NoError(t, err)
	second, err := e.WriteCSV(nil)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
