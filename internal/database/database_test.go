package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunLifecycle(t *testing.T) {
	db := testDB(t)

	runID := uuid.New().String()
	started := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, db.CreateRun(&RunRecord{
		ID:        runID,
		Source:    "/dev/video0",
		Detector:  "yolo-http",
		StartedAt: started,
	}))

	run, err := db.GetRun(runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "/dev/video0", run.Source)
	assert.Nil(t, run.StoppedAt)

	stopped := started.Add(time.Minute)
	require.NoError(t, db.FinishRun(runID, stopped, 900, 12))

	run, err = db.GetRun(runID)
	require.NoError(t, err)
	require.NotNil(t, run.StoppedAt)
	assert.Equal(t, int64(900), run.Frames)
	assert.Equal(t, int64(12), run.Dropped)
}

func TestGetRunMissing(t *testing.T) {
	db := testDB(t)

	run, err := db.GetRun(uuid.New().String())
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestListRunsNewestFirst(t *testing.T) {
	db := testDB(t)

	base := time.Now().UTC()
	oldID, newID := uuid.New().String(), uuid.New().String()
	require.NoError(t, db.CreateRun(&RunRecord{ID: oldID, Source: "a", Detector: "d", StartedAt: base.Add(-time.Hour)}))
	require.NoError(t, db.CreateRun(&RunRecord{ID: newID, Source: "b", Detector: "d", StartedAt: base}))

	runs, err := db.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newID, runs[0].ID)
	assert.Equal(t, oldID, runs[1].ID)
}

func TestSaveAndListDetections(t *testing.T) {
	db := testDB(t)

	runID := uuid.New().String()
	require.NoError(t, db.CreateRun(&RunRecord{ID: runID, Source: "s", Detector: "d", StartedAt: time.Now()}))

	now := time.Now().UTC()
	records := []*DetectionRecord{
		{RunID: runID, TrackID: 2, Class: "GHS05", Confidence: 0.7, X1: 100, Y1: 40, X2: 140, Y2: 90, FrameSeq: 2, Timestamp: now},
		{RunID: runID, TrackID: 1, Class: "GHS02", Confidence: 0.9, X1: 10, Y1: 10, X2: 60, Y2: 60, FrameSeq: 1, Timestamp: now},
	}
	require.NoError(t, db.SaveDetections(records))

	got, err := db.ListDetections(runID, nil, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by frame sequence, then track.
	assert.Equal(t, int64(1), got[0].FrameSeq)
	assert.Equal(t, int64(1), got[0].TrackID)
	assert.Equal(t, "GHS02", got[0].Class)
	assert.Equal(t, int64(2), got[1].TrackID)
}

func TestSaveDetectionsEmptyBatch(t *testing.T) {
	db := testDB(t)
	assert.NoError(t, db.SaveDetections(nil))
}

func TestDeleteOldDetections(t *testing.T) {
	db := testDB(t)

	runID := uuid.New().String()
	require.NoError(t, db.CreateRun(&RunRecord{ID: runID, Source: "s", Detector: "d", StartedAt: time.Now()}))

	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC()
	require.NoError(t, db.SaveDetections([]*DetectionRecord{
		{RunID: runID, TrackID: 1, Class: "GHS02", FrameSeq: 1, Timestamp: old},
		{RunID: runID, TrackID: 1, Class: "GHS02", FrameSeq: 2, Timestamp: recent},
	}))

	deleted, err := db.DeleteOldDetections(time.Now().UTC().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := db.ListDetections(runID, nil, 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestConfigRoundTrip(t *testing.T) {
	db := testDB(t)

	require.NoError(t, db.SaveConfig("confidence_threshold", "0.25"))
	require.NoError(t, db.SaveConfig("confidence_threshold", "0.40"))

	value, err := db.GetConfig("confidence_threshold")
	require.NoError(t, err)
	assert.Equal(t, "0.40", value)

	missing, err := db.GetConfig("nope")
	require.NoError(t, err)
	assert.Empty(t, missing)

	all, err := db.ListConfigs()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"confidence_threshold": "0.40"}, all)
}
