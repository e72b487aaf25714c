package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrTriggerRunning is returned when Start is called on a running trigger
	ErrTriggerRunning = errors.New("scheduler trigger is already running")
)
