// Package throttle provides a deadline gate deciding when work is due again.
package throttle

import "time"

// Throttle is a single "not due before" deadline.
// The zero value is already expired, so the first check is always due.
//
// A Throttle is not safe for concurrent use; callers serialize access.
type Throttle struct {
	deadline time.Time
}

// Due reports whether now has reached the deadline.
func (t *Throttle) Due(now time.Time) bool {
	return !now.Before(t.deadline)
}

// Reset moves the deadline to now + interval.
// An interval of zero (or less) keeps every subsequent call due.
func (t *Throttle) Reset(now time.Time, interval time.Duration) {
	t.deadline = now.Add(interval)
}

// Deadline returns the current deadline.
func (t *Throttle) Deadline() time.Time {
	return t.deadline
}
