package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trackedDet(id int64, class string) TrackedDetection {
	return TrackedDetection{
		TrackID:    id,
		Class:      class,
		Confidence: 0.9,
		Box:        BBox{X1: 10, Y1: 10, X2: 60, Y2: 60},
	}
}

func TestAggregatorSnapshotEmpty(t *testing.T) {
	a := NewAggregator(10)

	seq, dets := a.Snapshot()
	assert.Equal(t, uint64(0), seq)
	assert.NotNil(t, dets)
	assert.Empty(t, dets)
}

func TestAggregatorSnapshotTracksLatest(t *testing.T) {
	a := NewAggregator(10)

	a.Publish(1, time.Now(), []TrackedDetection{trackedDet(1, "GHS02")})
	a.Publish(2, time.Now(), []TrackedDetection{trackedDet(1, "GHS02"), trackedDet(2, "GHS05")})

	seq, dets := a.Snapshot()
	assert.Equal(t, uint64(2), seq)
	require.Len(t, dets, 2)
	assert.Equal(t, int64(1), dets[0].TrackID)
	assert.Equal(t, int64(2), dets[1].TrackID)
}

func TestAggregatorSnapshotIsACopy(t *testing.T) {
	a := NewAggregator(10)
	a.Publish(1, time.Now(), []TrackedDetection{trackedDet(1, "GHS02")})

	_, dets := a.Snapshot()
	dets[0].TrackID = 99

	_, again := a.Snapshot()
	assert.Equal(t, int64(1), again[0].TrackID)
}

func TestAggregatorPublishCopiesInput(t *testing.T) {
	a := NewAggregator(10)
	input := []TrackedDetection{trackedDet(1, "GHS02")}
	a.Publish(1, time.Now(), input)

	input[0].TrackID = 99

	_, dets := a.Snapshot()
	assert.Equal(t, int64(1), dets[0].TrackID)
}

func TestAggregatorHistoryBounded(t *testing.T) {
	a := NewAggregator(3)

	for seq := uint64(1); seq <= 5; seq++ {
		a.Publish(seq, time.Now(), []TrackedDetection{trackedDet(int64(seq), "GHS02")})
	}

	history := a.History()
	require.Len(t, history, 3)
	assert.Equal(t, uint64(3), history[0].FrameSeq)
	assert.Equal(t, uint64(5), history[2].FrameSeq)
	assert.Equal(t, 3, a.HistoryLen())
}

func TestAggregatorClear(t *testing.T) {
	a := NewAggregator(3)
	a.Publish(1, time.Now(), []TrackedDetection{trackedDet(1, "GHS02")})

	a.Clear()

	seq, dets := a.Snapshot()
	assert.Equal(t, uint64(0), seq)
	assert.Empty(t, dets)
	assert.Equal(t, 0, a.HistoryLen())
}
