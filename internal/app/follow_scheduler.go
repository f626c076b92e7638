package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"vodfetch/internal/ports"
)

// FollowScheduler periodically refreshes the catalog snapshot and runs the
// due follows against it.
type FollowScheduler struct {
	logger  zerolog.Logger
	follows *FollowService
	repo    ports.FollowRepository
	sync    *SyncService

	TickInterval time.Duration
	SyncInterval time.Duration
	BatchSize    int
	Enqueue      bool
}

func NewFollowScheduler(logger zerolog.Logger, follows *FollowService, repo ports.FollowRepository, sync *SyncService) *FollowScheduler {
	return &FollowScheduler{
		logger:       logger,
		follows:      follows,
		repo:         repo,
		sync:         sync,
		TickInterval: 60 * time.Second,
		SyncInterval: 6 * time.Hour,
		BatchSize:    10,
		Enqueue:      true,
	}
}

func (sch *FollowScheduler) Run(ctx context.Context) {
	interval := sch.TickInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastSync time.Time
	for {
		select {
		case <-ctx.Done():
			sch.logger.Info().Msg("follow scheduler stopped")
			return
		case <-ticker.C:
			if sch.sync != nil && sch.SyncInterval > 0 && time.Since(lastSync) >= sch.SyncInterval {
				if _, err := sch.sync.Refresh(ctx); err != nil {
					sch.logger.Warn().Err(err).Msg("scheduled catalog sync failed")
				} else {
					lastSync = time.Now()
				}
			}
			sch.tick(ctx)
		}
	}
}

func (sch *FollowScheduler) tick(ctx context.Context) {
	if sch.follows == nil || sch.repo == nil {
		return
	}
	limit := sch.BatchSize
	if limit <= 0 {
		limit = 10
	}

	due, err := sch.repo.Due(ctx, time.Now().UTC(), limit)
	if err != nil {
		sch.logger.Error().Err(err).Msg("follow due query failed")
		return
	}

	for _, f := range due {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, err := sch.follows.CheckOnce(ctx, f.ID, sch.Enqueue); err != nil {
			sch.logger.Warn().Err(err).Str("follow_id", f.ID).Msg("follow check failed")
		}
	}
}
