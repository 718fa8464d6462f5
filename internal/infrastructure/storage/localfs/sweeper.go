package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically removes files under a storage prefix that outlived
// maxAge. It catches blobs orphaned by a crashed run.
type Sweeper struct {
	cron     *cron.Cron
	root     string
	schedule string
	maxAge   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewSweeper(storage *Storage, prefix, schedule string, maxAge time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		cron:     cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug)))),
		root:     filepath.Join(storage.basePath, prefix),
		schedule: schedule,
		maxAge:   maxAge,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(); err != nil {
			s.logger.Warn("temp_sweep_failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule temp sweep %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("temp_sweeper_started", "schedule", s.schedule, "max_age", s.maxAge.String())
	return nil
}

func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

// Sweep deletes expired files once and reports how many were removed.
func (s *Sweeper) Sweep() (int, error) {
	cutoff := s.now().Add(-s.maxAge)
	removed := 0
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("temp_sweep_remove_failed", "path", path, "error", err)
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("sweep %s: %w", s.root, err)
	}
	if removed > 0 {
		s.logger.Info("temp_sweep_completed", "removed", removed)
	}
	return removed, nil
}
