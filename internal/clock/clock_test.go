package clock

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// useStopped installs a stopped clock at i for the duration of the test.
func useStopped(t *testing.T, i Instant) *Stopped {
	t.Helper()
	s := NewStopped(i)
	restore := Install(s)
	t.Cleanup(restore)
	return s
}

// ---------------------------------------------------------------------------
// Instant arithmetic
// ---------------------------------------------------------------------------

func TestInstantAdd(t *testing.T) {
	got, err := Instant(10 * time.Second).Add(5 * time.Second)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got != Instant(15*time.Second) {
		t.Errorf("got %v, want 15s", time.Duration(got))
	}
}

func TestInstantAddOverflow(t *testing.T) {
	i := MaxInstant - Instant(time.Second)

	if _, err := i.Add(time.Second); err != nil {
		t.Fatalf("adding up to MaxInstant should succeed, got %v", err)
	}

	got, err := i.Add(2 * time.Second)
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if got != i {
		t.Errorf("instant changed on overflow: got %d, want %d", got, i)
	}
}

func TestInstantAddNegative(t *testing.T) {
	if _, err := Instant(time.Hour).Add(-time.Second); !errors.Is(err, ErrNegativeDuration) {
		t.Errorf("expected ErrNegativeDuration, got %v", err)
	}
}

func TestInstantString(t *testing.T) {
	i := Instant(1_700_000_000 * int64(time.Second))
	if got, want := i.String(), "2023-11-14T22:13:20Z"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := i.Seconds(); got != 1_700_000_000 {
		t.Errorf("Seconds() = %d", got)
	}
}

func TestFromTimeClampsBeforeEpoch(t *testing.T) {
	if got := FromTime(time.Unix(-10, 0)); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

// ---------------------------------------------------------------------------
// Process clock
// ---------------------------------------------------------------------------

func TestDefaultIsSystemClock(t *testing.T) {
	if _, ok := Current().(System); !ok {
		t.Fatalf("expected System clock by default, got %T", Current())
	}

	before := FromTime(time.Now())
	now := Now()
	after := FromTime(time.Now())
	if now < before || now > after {
		t.Errorf("Now() = %v, want between %v and %v", now, before, after)
	}
}

func TestAdvanceRequiresStoppedClock(t *testing.T) {
	restore := Install(System{})
	defer restore()

	if _, err := Advance(time.Second); !errors.Is(err, ErrNotStopped) {
		t.Errorf("expected ErrNotStopped, got %v", err)
	}
}

func TestInstallRestores(t *testing.T) {
	s := NewStopped(42)
	restore := Install(s)
	if Now() != 42 {
		t.Fatalf("installed clock not used: Now() = %d", Now())
	}
	restore()
	if _, ok := Current().(System); !ok {
		t.Errorf("restore did not reinstall previous clock, got %T", Current())
	}
}

func TestInstallNilInstallsSystem(t *testing.T) {
	restore := Install(nil)
	defer restore()
	if _, ok := Current().(System); !ok {
		t.Errorf("got %T, want System", Current())
	}
}

func TestSetToSystemTime(t *testing.T) {
	prev := Current()
	t.Cleanup(func() { Install(prev) })

	before := FromTime(time.Now())
	s := SetToSystemTime()
	after := FromTime(time.Now())

	if Current() != Clock(s) {
		t.Fatalf("SetToSystemTime did not install the stopped clock")
	}
	frozen := Now()
	if frozen < before || frozen > after {
		t.Errorf("snapshot %v outside [%v, %v]", frozen, before, after)
	}

	time.Sleep(2 * time.Millisecond)
	if Now() != frozen {
		t.Errorf("stopped clock moved on its own: %v -> %v", frozen, Now())
	}
}

// ---------------------------------------------------------------------------
// Stopped clock
// ---------------------------------------------------------------------------

func TestStoppedAdvance(t *testing.T) {
	useStopped(t, Instant(100*time.Second))

	got, err := Advance(10 * time.Second)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if got != Instant(110*time.Second) || Now() != got {
		t.Errorf("Advance returned %v, Now() = %v, want 110s", time.Duration(got), time.Duration(Now()))
	}
}

func TestStoppedAdvanceOverflowLeavesInstant(t *testing.T) {
	start := MaxInstant - 5
	s := useStopped(t, start)

	if _, err := s.Advance(10); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if s.Now() != start {
		t.Errorf("instant moved on overflow: %d", s.Now())
	}
}

func TestStoppedAdvanceNeverGoesBack(t *testing.T) {
	s := useStopped(t, Instant(time.Minute))

	if _, err := s.Advance(-time.Second); !errors.Is(err, ErrNegativeDuration) {
		t.Fatalf("expected ErrNegativeDuration, got %v", err)
	}
	if s.Now() != Instant(time.Minute) {
		t.Errorf("instant moved backwards: %v", time.Duration(s.Now()))
	}

	s.Set(Instant(time.Second))
	if s.Now() != Instant(time.Second) {
		t.Errorf("Set did not move the clock back")
	}
}

func TestStoppedAddDoesNotMutate(t *testing.T) {
	s := useStopped(t, Instant(time.Hour))

	got, err := Add(30 * time.Minute)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got != Instant(90*time.Minute) {
		t.Errorf("Add = %v", time.Duration(got))
	}
	if s.Now() != Instant(time.Hour) {
		t.Errorf("Add mutated the clock: %v", time.Duration(s.Now()))
	}
}

func TestAddOverflow(t *testing.T) {
	useStopped(t, MaxInstant-Instant(time.Second))

	if _, err := Add(time.Hour); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
}

func TestStoppedConcurrentReads(t *testing.T) {
	s := NewStopped(0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Now()
				s.Advance(time.Nanosecond)
			}
		}()
	}
	wg.Wait()

	if s.Now() != 800 {
		t.Errorf("got %d, want 800", s.Now())
	}
}
