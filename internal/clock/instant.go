package clock

import (
	"errors"
	"math"
	"time"
)

var (
	// ErrOverflow is returned when duration arithmetic would pass MaxInstant.
	ErrOverflow = errors.New("clock: instant overflow")

	// ErrNegativeDuration is returned when a negative duration is added to an
	// instant. Instants only move forward through arithmetic.
	ErrNegativeDuration = errors.New("clock: negative duration")
)

// Instant is a point in time expressed as the duration elapsed since the
// Unix epoch, with nanosecond resolution.
type Instant time.Duration

// MaxInstant is the largest representable instant (around the year 2262).
const MaxInstant = Instant(math.MaxInt64)

// FromTime converts a wall-clock time into an Instant. Times before the
// epoch clamp to zero.
func FromTime(t time.Time) Instant {
	ns := t.UnixNano()
	if ns < 0 {
		return 0
	}
	return Instant(ns)
}

// Add returns i+d, or ErrOverflow if the result would not be representable.
func (i Instant) Add(d time.Duration) (Instant, error) {
	if d < 0 {
		return i, ErrNegativeDuration
	}
	if Instant(d) > MaxInstant-i {
		return i, ErrOverflow
	}
	return i + Instant(d), nil
}

// Sub returns the duration i-j.
func (i Instant) Sub(j Instant) time.Duration {
	return time.Duration(i - j)
}

// Time returns the instant as a UTC time.Time.
func (i Instant) Time() time.Time {
	return time.Unix(0, int64(i)).UTC()
}

// Seconds returns the whole seconds elapsed since the epoch.
func (i Instant) Seconds() int64 {
	return int64(time.Duration(i) / time.Second)
}

// String renders the instant as an RFC 3339 UTC timestamp.
func (i Instant) String() string {
	return i.Time().Format(time.RFC3339Nano)
}
