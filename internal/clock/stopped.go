package clock

import (
	"sync"
	"time"
)

// Stopped is a clock that only changes when told to.
type Stopped struct {
	mu  sync.Mutex
	now Instant
}

// NewStopped returns a clock frozen at i.
func NewStopped(i Instant) *Stopped {
	return &Stopped{now: i}
}

// Now returns the stored instant.
func (s *Stopped) Now() Instant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Add returns the stored instant plus d without storing it.
func (s *Stopped) Add(d time.Duration) (Instant, error) {
	return s.Now().Add(d)
}

// Set stores i.
func (s *Stopped) Set(i Instant) {
	s.mu.Lock()
	s.now = i
	s.mu.Unlock()
}

// SetToSystemTime stores a snapshot of the wall clock.
func (s *Stopped) SetToSystemTime() {
	s.Set(System{}.Now())
}

// Advance adds d to the stored instant. On error the instant is unchanged.
func (s *Stopped) Advance(d time.Duration) (Instant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.now.Add(d)
	if err != nil {
		return s.now, err
	}
	s.now = next
	return next, nil
}
