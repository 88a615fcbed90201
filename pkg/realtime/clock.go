package realtime

import "time"

// Timer is a pending callback armed by a Clock.
type Timer interface {
	// Stop prevents the callback from running and reports whether it was still pending.
	Stop() bool
}

// Clock abstracts wall time so schedules can be driven manually in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock is the Clock backed by package time.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// AfterFunc runs f in its own goroutine after d.
func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
