package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const sweepTimeout = 30 * time.Second

// Purger removes expired keys and reports how many were removed.
type Purger interface {
	RemoveExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically purges expired keys in the background.
type Sweeper struct {
	purger   Purger
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Sweeper. Returns nil if interval is not positive, which
// disables sweeping; all methods are safe to call on a nil Sweeper.
func New(p Purger, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		purger:   p,
		interval: interval,
		logger:   logger,
	}
}

// Start begins the background loop. It sweeps once immediately and then
// every interval. Non-blocking.
func (s *Sweeper) Start() {
	if s == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.sweep(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sweep(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown stops the background loop and waits for an in-flight sweep.
func (s *Sweeper) Shutdown() {
	if s == nil {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Sweeper) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	n, err := s.purger.RemoveExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("sweep expired keys failed", "error", err)
		}
		return
	}
	s.logger.Debug("swept expired keys", "removed", n)
}
