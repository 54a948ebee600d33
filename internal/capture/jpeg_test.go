package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jpegBytes(payload ...byte) []byte {
	frame := []byte{0xFF, 0xD8}
	frame = append(frame, payload...)
	return append(frame, 0xFF, 0xD9)
}

func TestExtractJPEGFrame(t *testing.T) {
	frame := jpegBytes(0x01, 0x02, 0x03)
	buffer := append([]byte{}, frame...)

	got := ExtractJPEGFrame(&buffer)
	require.NotNil(t, got)
	assert.Equal(t, frame, got)
	assert.Empty(t, buffer)
}

func TestExtractJPEGFrameSkipsLeadingGarbage(t *testing.T) {
	frame := jpegBytes(0xAA, 0xBB)
	buffer := append([]byte{0x00, 0x11, 0x22}, frame...)

	got := ExtractJPEGFrame(&buffer)
	require.NotNil(t, got)
	assert.Equal(t, frame, got)
}

func TestExtractJPEGFrameIncomplete(t *testing.T) {
	// Start marker present, end marker still in flight.
	buffer := []byte{0xFF, 0xD8, 0x01, 0x02, 0x03}
	assert.Nil(t, ExtractJPEGFrame(&buffer))
	assert.Len(t, buffer, 5)

	// No start marker at all.
	buffer = []byte{0x01, 0x02, 0x03, 0x04}
	assert.Nil(t, ExtractJPEGFrame(&buffer))

	// Too short to hold any frame.
	buffer = []byte{0xFF, 0xD8}
	assert.Nil(t, ExtractJPEGFrame(&buffer))
}

func TestExtractJPEGFrameLeavesTrailingData(t *testing.T) {
	first := jpegBytes(0x01)
	second := jpegBytes(0x02)
	buffer := append(append([]byte{}, first...), second...)

	got := ExtractJPEGFrame(&buffer)
	assert.Equal(t, first, got)

	got = ExtractJPEGFrame(&buffer)
	assert.Equal(t, second, got)
	assert.Empty(t, buffer)
}

func TestIsStillURL(t *testing.T) {
	assert.True(t, IsStillURL("http://cam.local/snapshot.jpg"))
	assert.True(t, IsStillURL("https://cam.local/image"))
	assert.False(t, IsStillURL("rtsp://cam.local/stream"))
	assert.False(t, IsStillURL("/dev/video0"))
	assert.False(t, IsStillURL("http://cam.local/stream.mjpeg"))
}
