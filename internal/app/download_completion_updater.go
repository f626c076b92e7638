package app

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"vodfetch/internal/ports"
)

// DownloadCompletionUpdater listens for completed download jobs and advances
// the matching follow's lastDownloadedEpisode mark.
type DownloadCompletionUpdater struct {
	logger  zerolog.Logger
	bus     ports.EventBus
	follows ports.FollowRepository
}

func NewDownloadCompletionUpdater(logger zerolog.Logger, bus ports.EventBus, follows ports.FollowRepository) *DownloadCompletionUpdater {
	return &DownloadCompletionUpdater{logger: logger, bus: bus, follows: follows}
}

func (u *DownloadCompletionUpdater) Run(ctx context.Context) {
	if u == nil || u.bus == nil || u.follows == nil {
		return
	}
	ch, cancel := u.bus.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			u.logger.Info().Msg("download completion updater stopped")
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			u.handleEvent(ctx, evt)
		}
	}
}

func (u *DownloadCompletionUpdater) handleEvent(ctx context.Context, evt ports.Event) {
	if evt.Topic != "job.completed" {
		return
	}

	var job JobDTO
	if err := json.Unmarshal(evt.Payload, &job); err != nil {
		return
	}
	if job.Type != "download" {
		return
	}

	var p downloadParams
	if len(job.Params) > 0 {
		_ = json.Unmarshal(job.Params, &p)
	}
	seriesID := strings.TrimSpace(p.SeriesID)
	if seriesID == "" || p.Episode <= 0 {
		return
	}

	follow, ok := u.findBySeries(ctx, seriesID)
	if !ok {
		return
	}
	updated, err := u.follows.MarkDownloadedEpisodeMax(ctx, follow, p.Episode)
	if err != nil {
		u.logger.Warn().Err(err).Str("series_id", seriesID).Msg("failed to mark episode downloaded")
		return
	}

	b, _ := json.Marshal(toFollowDTO(updated))
	if len(b) > 0 {
		u.bus.Publish("follow.downloaded", b)
	}
}

func (u *DownloadCompletionUpdater) findBySeries(ctx context.Context, seriesID string) (string, bool) {
	follows, err := u.follows.List(ctx, 500)
	if err != nil {
		return "", false
	}
	for _, f := range follows {
		if f.SeriesID == seriesID {
			return f.ID, true
		}
	}
	return "", false
}
