// Package scheduler runs automatic report exports on an interval and
// prunes old archives per the retention policy.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/export"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
)

// ExportInterval defines the scheduling frequency.
type ExportInterval string

const (
	IntervalManual  ExportInterval = "manual"
	IntervalDaily   ExportInterval = "daily"
	IntervalWeekly  ExportInterval = "weekly"
	IntervalMonthly ExportInterval = "monthly"
)

// Exporter produces one archive per call. *export.Service implements
// it.
type Exporter interface {
	Export(config *export.ExportConfig) (*export.ExportResult, error)
}

// ArchivePruner is the retention bookkeeping surface.
// *db.Repository implements it.
type ArchivePruner interface {
	StaleReportArchives(keep int) ([]*models.ReportArchive, error)
	DeleteReportArchive(id string) error
}

// Config holds the scheduler configuration.
type Config struct {
	// Interval is how often to export. Manual disables the ticker.
	Interval ExportInterval
	// RetentionCount is how many archives to keep; 0 keeps all.
	RetentionCount int
	// Password encrypts scheduled archives when non-empty.
	Password string
}

// Scheduler manages automatic exports.
type Scheduler struct {
	exporter Exporter
	pruner   ArchivePruner
	logger   *slog.Logger

	mu      sync.Mutex
	config  *Config
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. Nothing runs until Start.
func NewScheduler(exporter Exporter, pruner ArchivePruner, config *Config) *Scheduler {
	if config == nil {
		config = &Config{Interval: IntervalManual}
	}
	if config.RetentionCount < 0 {
		config.RetentionCount = 0
	}
	return &Scheduler{
		exporter: exporter,
		pruner:   pruner,
		config:   config,
		logger:   slog.Default(),
	}
}

// Start begins periodic exports, including one immediately. In manual
// mode it is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	interval := s.config.Interval
	if interval == IntervalManual {
		s.logger.Info("export scheduler in manual mode, automatic exports disabled")
		return nil
	}
	dur, err := intervalDuration(interval)
	if err != nil {
		return err
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.logger.Info("export scheduler started",
		"interval", string(interval),
		"retention_count", s.config.RetentionCount)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if _, err := s.RunNow(); err != nil {
			s.logger.Error("initial export failed", "error", err)
		}

		ticker := time.NewTicker(dur)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.RunNow(); err != nil {
					s.logger.Error("scheduled export failed", "error", err)
				}
			case <-s.stopCh:
				s.logger.Info("export scheduler stopped")
				return
			case <-ctx.Done():
				s.logger.Info("export scheduler context cancelled")
				return
			}
		}
	}()
	return nil
}

// Stop shuts the scheduler down and waits for an in-flight pass.
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
}

// RunNow performs one export with retention applied, regardless of the
// configured interval.
func (s *Scheduler) RunNow() (*export.ExportResult, error) {
	s.mu.Lock()
	password := s.config.Password
	keep := s.config.RetentionCount
	s.mu.Unlock()

	result, err := s.exporter.Export(&export.ExportConfig{Password: password})
	if err != nil {
		return nil, fmt.Errorf("export failed: %w", err)
	}
	s.logger.Info("export completed",
		"file", result.FilePath,
		"size_bytes", result.SizeBytes,
		"item_count", result.ItemCount,
		"duration", result.Duration)

	// Retention failures never fail the export that just succeeded.
	if keep > 0 {
		if err := s.applyRetention(keep); err != nil {
			s.logger.Error("retention pruning failed", "error", err)
		}
	}
	return result, nil
}

// Config returns a copy of the current configuration.
func (s *Scheduler) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.config
}

// UpdateConfig replaces the configuration. An interval change takes
// effect on the next Start.
func (s *Scheduler) UpdateConfig(config *Config) {
	if config == nil {
		return
	}
	if config.RetentionCount < 0 {
		config.RetentionCount = 0
	}
	s.mu.Lock()
	s.config = config
	s.mu.Unlock()
}

// applyRetention deletes archives beyond the keep newest, file first,
// then the bookkeeping row.
func (s *Scheduler) applyRetention(keep int) error {
	stale, err := s.pruner.StaleReportArchives(keep)
	if err != nil {
		return fmt.Errorf("list stale archives: %w", err)
	}

	for _, archive := range stale {
		if err := os.Remove(archive.FilePath); err != nil && !os.IsNotExist(err) {
			s.logger.Error("failed to delete old archive",
				"path", archive.FilePath,
				"error", err)
			continue
		}
		if err := s.pruner.DeleteReportArchive(string(archive.ID)); err != nil {
			s.logger.Error("failed to delete archive record",
				"id", string(archive.ID),
				"error", err)
			continue
		}
		s.logger.Info("deleted old archive", "path", archive.FilePath)
	}
	return nil
}

// intervalDuration converts an interval to a ticker duration.
func intervalDuration(interval ExportInterval) (time.Duration, error) {
	switch interval {
	case IntervalDaily:
		return 24 * time.Hour, nil
	case IntervalWeekly:
		return 7 * 24 * time.Hour, nil
	case IntervalMonthly:
		// Approximate as 30 days.
		return 30 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown export interval: %s", interval)
	}
}
