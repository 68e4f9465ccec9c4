// Package clock supplies the calendar date used for loan terms.
package clock

import "time"

// Clock reports the current instant
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now implements Clock
func (SystemClock) Now() time.Time { return time.Now() }

// Fixed always reports the same instant
type Fixed time.Time

// Now implements Clock
func (f Fixed) Now() time.Time { return time.Time(f) }

// Date truncates t to midnight UTC of its UTC calendar day
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar date of c
func Today(c Clock) time.Time {
	return Date(c.Now())
}

// DaysBetween returns the number of whole calendar days from a to b
func DaysBetween(a, b time.Time) int {
	return int(Date(b).Sub(Date(a)).Hours() / 24)
}
