package pipeline

import "errors"

var (
	// ErrOpenFailure means the frame source could not be opened. Fatal to
	// pipeline start; the pipeline stays stopped.
	ErrOpenFailure = errors.New("frame source open failed")

	// ErrConfigValidation means a configuration value was out of range. The
	// prior configuration is retained.
	ErrConfigValidation = errors.New("invalid pipeline configuration")

	// ErrAlreadyRunning is returned by Start when the pipeline is not stopped.
	ErrAlreadyRunning = errors.New("pipeline already running")

	// ErrNotRunning is returned by Pause/Resume outside the running states.
	ErrNotRunning = errors.New("pipeline not running")
)
