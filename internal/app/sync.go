package app

import (
	"context"

	"github.com/rs/zerolog"

	"vodfetch/internal/ports"
)

// SyncService refreshes the catalog from the provider listing. A series whose
// episode feed fails is skipped and logged, like any other partial provider
// outage; the rest of the refresh continues.
type SyncService struct {
	logger  zerolog.Logger
	listing ports.ListingFetcher
	catalog ports.CatalogStore
}

func NewSyncService(logger zerolog.Logger, listing ports.ListingFetcher, catalog ports.CatalogStore) *SyncService {
	return &SyncService{logger: logger, listing: listing, catalog: catalog}
}

type SyncStats struct {
	Movies   int `json:"movies"`
	Series   int `json:"series"`
	Episodes int `json:"episodes"`
	Skipped  int `json:"skipped"`
}

func (s *SyncService) Refresh(ctx context.Context) (SyncStats, error) {
	stats := SyncStats{}

	movies, err := s.listing.Movies(ctx)
	if err != nil {
		return stats, err
	}
	for _, m := range movies {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := s.catalog.UpsertTitle(ctx, m); err != nil {
			return stats, err
		}
		stats.Movies++
	}

	series, err := s.listing.Series(ctx)
	if err != nil {
		return stats, err
	}
	for _, sr := range series {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		s.logger.Debug().Str("series", sr.Name).Msg("fetching episodes")

		episodes, err := s.listing.Episodes(ctx, sr)
		if err != nil {
			s.logger.Warn().Err(err).Str("series", sr.Name).Msg("episode feed failed, skipping")
			stats.Skipped++
			continue
		}
		if err := s.catalog.UpsertTitle(ctx, sr); err != nil {
			return stats, err
		}
		stats.Series++
		for _, ep := range episodes {
			if err := s.catalog.UpsertEpisode(ctx, ep); err != nil {
				return stats, err
			}
			stats.Episodes++
		}
	}

	s.logger.Info().
		Int("movies", stats.Movies).
		Int("series", stats.Series).
		Int("episodes", stats.Episodes).
		Int("skipped", stats.Skipped).
		Msg("catalog refreshed")
	return stats, nil
}
