package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Refresher starts a background refresh, returning false when one is
// already running.
type Refresher interface {
	StartRefresh() bool
}

// SchedulerConfig holds configuration for the refresh scheduler
type SchedulerConfig struct {
	Refresher Refresher
	Interval  time.Duration
	Logger    *logrus.Logger
}

// Scheduler triggers a refresh at startup and then on every tick. A tick
// that lands on a running refresh is skipped, not queued.
type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	logger    *logrus.Logger

	mu      sync.Mutex
	running bool
}

func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Scheduler{
		refresher: cfg.Refresher,
		interval:  cfg.Interval,
		logger:    cfg.Logger,
	}
}

// Start blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("invalid refresh interval %s", s.interval)
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.WithField("interval", s.interval).Info("starting refresh scheduler")
	s.tick()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	if !s.refresher.StartRefresh() {
		s.logger.Debug("refresh in progress, tick skipped")
	}
}
