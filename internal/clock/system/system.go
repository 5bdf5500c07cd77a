// Package system provides the wall clock used to stamp ingested pages.
package system

import "time"

// Clock reports the current UTC time.
type Clock struct{}

// New returns a wall clock.
func New() Clock {
	return Clock{}
}

// Now returns time.Now in UTC so stored timestamps sort the same everywhere.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
