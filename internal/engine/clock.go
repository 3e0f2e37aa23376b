package engine

import "time"

// Clock supplies wall-clock time for created_at, updated_at and event
// timestamps. Tests inject a deterministic clock.
//
// Thread-safety: implementations must be safe for concurrent use.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system time.
type SystemClock struct{}

// Now returns the current time in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// stamp normalizes a clock reading to stored precision and never returns a
// time before floor. Per-task event timestamps therefore never decrease,
// even if the wall clock steps backwards.
func stamp(c Clock, floor time.Time) time.Time {
	now := c.Now().UTC().Truncate(time.Microsecond)
	if now.Before(floor) {
		return floor
	}
	return now
}
