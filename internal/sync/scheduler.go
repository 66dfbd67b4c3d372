package sync

import (
	"context"
	"sync"
	"time"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/errors"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/logging"
)

// Syncer runs one sync pass. *Engine implements it.
type Syncer interface {
	Sync(ctx context.Context) (*Result, error)
}

// SchedulerConfig controls the background sync cadence.
type SchedulerConfig struct {
	// Interval between automatic passes.
	Interval time.Duration

	// Timeout bounds a single pass.
	Timeout time.Duration

	// Enabled starts the scheduler active; it can be toggled later.
	Enabled bool
}

// DefaultSchedulerConfig returns the scheduler defaults.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		Interval: 15 * time.Minute,
		Timeout:  2 * time.Minute,
		Enabled:  true,
	}
}

// Scheduler runs sync passes on an interval. TriggerNow requests an
// immediate pass without waiting for the next tick; triggers coalesce
// while a pass is pending.
type Scheduler struct {
	syncer Syncer
	config *SchedulerConfig
	logger *logging.Logger

	trigger chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
	enabled bool
}

// NewScheduler builds a scheduler. A nil config uses defaults.
func NewScheduler(syncer Syncer, config *SchedulerConfig) *Scheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerConfig().Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultSchedulerConfig().Timeout
	}
	return &Scheduler{
		syncer:  syncer,
		config:  config,
		logger:  logging.Get().WithComponent("sync.scheduler"),
		trigger: make(chan struct{}, 1),
		enabled: config.Enabled,
	}
}

// Start launches the background loop. Starting twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()

	s.logger.Info("sync scheduler started", map[string]interface{}{
		"interval": s.config.Interval.String(),
	})
}

// Stop halts the loop and waits for an in-flight pass to finish.
// Stopping twice is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("sync scheduler stopped")
}

// TriggerNow requests an immediate pass. Safe to call whether or not
// the scheduler is running; pending triggers coalesce into one.
func (s *Scheduler) TriggerNow() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// SetEnabled toggles automatic passes. A disabled scheduler keeps its
// loop alive but skips work, so re-enabling needs no restart.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
}

// Enabled reports whether passes run.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Running reports whether the loop is alive.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runOnce()
		case <-s.trigger:
			s.runOnce()
		}
	}
}

func (s *Scheduler) runOnce() {
	if !s.Enabled() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()

	result, err := s.syncer.Sync(ctx)
	switch {
	case err == nil:
		if result != nil && (result.Pushed > 0 || result.Pulled > 0) {
			s.logger.Info("sync pass finished", map[string]interface{}{
				"pushed":   result.Pushed,
				"pulled":   result.Pulled,
				"duration": result.Duration.String(),
			})
		}
	case errors.Is(err, errors.ErrSyncNotConfigured):
		// Signed out; nothing to mirror.
		s.logger.Debug("sync pass skipped", map[string]interface{}{
			"reason": "no session",
		})
	case errors.Is(err, errors.ErrSyncBusy):
		// A manually triggered pass is still running.
	default:
		s.logger.Error("sync pass failed", err)
	}
}
