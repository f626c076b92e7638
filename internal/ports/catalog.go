package ports

import (
	"context"

	"vodfetch/internal/domain"
)

// CatalogTitle is one top-level catalog row (movie or series).
type CatalogTitle struct {
	ID          string
	Name        string
	Kind        string // "movie" or "series"
	ManifestURL string
	SubtitleURL string
}

// CatalogStore persists the synchronized title listing and answers queries.
// The pipeline only reads from it; sync is the only writer.
type CatalogStore interface {
	// Search returns titles whose name contains the query, case- and
	// accent-insensitively, up to limit.
	Search(ctx context.Context, query string, limit int) ([]CatalogTitle, error)

	// Entries expands one catalog title into downloadable entries: the movie
	// itself, or every known episode of a series in episode order.
	Entries(ctx context.Context, titleID string) ([]domain.TitleEntry, error)

	UpsertTitle(ctx context.Context, t CatalogTitle) error
	UpsertEpisode(ctx context.Context, e domain.TitleEntry) error

	// MaxEpisode returns the highest known episode number of a series,
	// 0 when none are known.
	MaxEpisode(ctx context.Context, seriesID string) (int, error)
}
