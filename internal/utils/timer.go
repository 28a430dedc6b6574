package utils

import "time"

// Timer measures the wall-clock duration of one request.
type Timer struct {
	startTime time.Time
	duration  time.Duration
}

// NewTimer returns a running timer.
func NewTimer() *Timer {
	return &Timer{startTime: time.Now()}
}

// Stop freezes the measured duration and returns it.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.startTime)
	return t.duration
}

// Elapsed returns the time since start without stopping the timer.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.startTime)
}

// GetDuration returns the duration frozen by Stop, or zero before Stop.
func (t *Timer) GetDuration() time.Duration {
	return t.duration
}
