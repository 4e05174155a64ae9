package registry

import (
	"log/slog"
	"sync"
	"time"
)

// Sweeper runs the expiry sweep on a fixed schedule so expiry work is
// bounded rather than paid on every access.
type Sweeper struct {
	registry *Registry
	interval time.Duration
	logger   *slog.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSweeper creates a sweeper. An interval of zero defaults to hourly.
func NewSweeper(r *Registry, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		registry: r,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start() {
	s.logger.Info("Verification sweeper started", "interval", s.interval.String())
	go s.run()
}

func (s *Sweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.registry.SweepExpired(time.Now().UTC())
		case <-s.stopCh:
			s.logger.Info("Verification sweeper stopped")
			return
		}
	}
}

// Stop terminates the sweep loop. Safe to call more than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}
