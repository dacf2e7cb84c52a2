// Package clock is the single source of "now" for tollgate.
//
// Production code reads time through Now and Add, which consult the clock
// installed for the process. The default is the system wall clock. Tests
// install a Stopped clock (see SetToSystemTime and Install) and move it
// forward explicitly, which makes expiry behaviour deterministic.
//
// The installed clock is process-wide state. Installing or advancing it from
// tests that run concurrently in the same process gives undefined results;
// tests that mutate the clock must not call t.Parallel.
package clock

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrNotStopped is returned by Advance when the installed clock cannot be
// moved manually.
var ErrNotStopped = errors.New("clock: installed clock is not stopped")

// Clock reads the current instant.
type Clock interface {
	// Now returns the current instant. It never fails.
	Now() Instant
	// Add returns Now()+d without changing the clock.
	Add(d time.Duration) (Instant, error)
}

// Controller is a Clock whose instant is moved by the caller. It exists for
// test orchestration only.
type Controller interface {
	Clock
	// Set moves the clock to i. It is the only way to move time backwards.
	Set(i Instant)
	// Advance moves the clock forward by d and returns the new instant.
	Advance(d time.Duration) (Instant, error)
}

// System is the wall clock.
type System struct{}

// Now returns the current wall-clock instant.
func (System) Now() Instant {
	return FromTime(time.Now())
}

// Add returns the wall-clock instant plus d.
func (s System) Add(d time.Duration) (Instant, error) {
	return s.Now().Add(d)
}

type holder struct {
	clock Clock
}

var current atomic.Pointer[holder]

func init() {
	current.Store(&holder{clock: System{}})
}

// Current returns the clock installed for the process.
func Current() Clock {
	return current.Load().clock
}

// Install makes c the process clock and returns a function that restores
// the previously installed one. A nil c installs the system clock.
func Install(c Clock) (restore func()) {
	if c == nil {
		c = System{}
	}
	prev := current.Swap(&holder{clock: c})
	return func() { current.Store(prev) }
}

// SetToSystemTime installs a stopped clock frozen at the current wall-clock
// instant and returns it.
func SetToSystemTime() *Stopped {
	s := NewStopped(System{}.Now())
	Install(s)
	return s
}

// Now returns the current instant of the installed clock.
func Now() Instant {
	return Current().Now()
}

// Add returns Now()+d on the installed clock.
func Add(d time.Duration) (Instant, error) {
	return Current().Add(d)
}

// Advance moves the installed clock forward by d. It fails with
// ErrNotStopped unless the installed clock is a Controller.
func Advance(d time.Duration) (Instant, error) {
	c, ok := Current().(Controller)
	if !ok {
		return 0, ErrNotStopped
	}
	return c.Advance(d)
}
