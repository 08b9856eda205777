package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/querypad/pkg/repositories"
)

// DefaultSweepInterval is how often expired results are removed.
const DefaultSweepInterval = 5 * time.Minute

// ResultCacheSweeper removes expired result cache entries and their files.
type ResultCacheSweeper interface {
	// Start runs Sweep every interval in the background.
	Start()

	// Stop ends the background loop. Safe to call more than once.
	Stop()

	// Sweep removes files then metadata for every entry expired before now.
	// Errors are logged; it returns how many entries were removed.
	Sweep(ctx context.Context) int
}

type resultCacheSweeper struct {
	repo      repositories.ResultCacheRepository
	exporter  ResultExporter
	scheduler Scheduler
	interval  time.Duration
	now       func() time.Time
	logger    *zap.Logger

	mu     sync.Mutex
	cancel CancelFunc
}

// NewResultCacheSweeper creates a sweeper. interval <= 0 uses DefaultSweepInterval.
func NewResultCacheSweeper(
	repo repositories.ResultCacheRepository,
	exporter ResultExporter,
	scheduler Scheduler,
	interval time.Duration,
	now func() time.Time,
	logger *zap.Logger,
) ResultCacheSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if now == nil {
		now = time.Now
	}
	return &resultCacheSweeper{
		repo:      repo,
		exporter:  exporter,
		scheduler: scheduler,
		interval:  interval,
		now:       now,
		logger:    logger.Named("result-cache-sweeper"),
	}
}

var _ ResultCacheSweeper = (*resultCacheSweeper)(nil)

func (s *resultCacheSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}
	s.cancel = s.scheduler.Every(s.interval, func() {
		s.Sweep(context.Background())
	})
	s.logger.Info("Result cache sweeper started", zap.Duration("interval", s.interval))
}

func (s *resultCacheSweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.logger.Info("Result cache sweeper stopped")
	}
}

func (s *resultCacheSweeper) Sweep(ctx context.Context) int {
	expired, err := s.repo.FindExpired(ctx, s.now())
	if err != nil {
		s.logger.Error("Failed to find expired results", zap.Error(err))
		return 0
	}

	removed := 0
	for _, entry := range expired {
		if err := s.exporter.Remove(entry.CacheKey); err != nil {
			s.logger.Error("Failed to remove export files",
				zap.String("cache_key", entry.CacheKey),
				zap.Error(err),
			)
		}
		if err := s.repo.Delete(ctx, entry.CacheKey); err != nil {
			s.logger.Error("Failed to delete result cache entry",
				zap.String("cache_key", entry.CacheKey),
				zap.Error(err),
			)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("Swept expired results", zap.Int("removed", removed))
	}
	return removed
}
