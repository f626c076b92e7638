package ports

import (
	"context"
	"time"

	"vodfetch/internal/domain"
)

type FollowRepository interface {
	Create(ctx context.Context, f domain.Follow) (domain.Follow, error)
	Get(ctx context.Context, id string) (domain.Follow, error)
	List(ctx context.Context, limit int) ([]domain.Follow, error)
	Update(ctx context.Context, f domain.Follow) (domain.Follow, error)
	Delete(ctx context.Context, id string) error
	Due(ctx context.Context, now time.Time, limit int) ([]domain.Follow, error)
	// MarkDownloadedEpisodeMax updates lastDownloadedEpisode atomically:
	// lastDownloadedEpisode = max(lastDownloadedEpisode, episode).
	MarkDownloadedEpisodeMax(ctx context.Context, id string, episode int) (domain.Follow, error)
}
