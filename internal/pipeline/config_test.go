package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"confidence below zero", func(c *Config) { c.ConfidenceThreshold = -0.1 }, false},
		{"confidence above one", func(c *Config) { c.ConfidenceThreshold = 1.1 }, false},
		{"confidence at bounds", func(c *Config) { c.ConfidenceThreshold = 1.0 }, true},
		{"iou above one", func(c *Config) { c.IoUThreshold = 1.5 }, false},
		{"iou at zero", func(c *Config) { c.IoUThreshold = 0 }, true},
		{"queue depth zero", func(c *Config) { c.MaxQueueDepth = 0 }, false},
		{"confirmation zero", func(c *Config) { c.ConfirmationFrames = 0 }, false},
		{"grace negative", func(c *Config) { c.LostGraceFrames = -1 }, false},
		{"grace zero", func(c *Config) { c.LostGraceFrames = 0 }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrConfigValidation)
			}
		})
	}
}

func TestBBoxIoU(t *testing.T) {
	a := BBox{X1: 10, Y1: 10, X2: 60, Y2: 60}

	assert.InDelta(t, 1.0, a.IoU(a), 1e-6)
	assert.Zero(t, a.IoU(BBox{X1: 100, Y1: 100, X2: 150, Y2: 150}))

	b := BBox{X1: 12, Y1: 11, X2: 63, Y2: 60}
	iou := a.IoU(b)
	assert.Greater(t, iou, float32(0.5))
	assert.Less(t, iou, float32(1.0))
	assert.InDelta(t, a.IoU(b), b.IoU(a), 1e-6)
}
