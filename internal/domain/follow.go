package domain

import "time"

// Follow tracks one series so new episodes are enqueued automatically after
// each catalog refresh.
type Follow struct {
	ID string

	// SeriesID references the catalog title being followed.
	SeriesID string

	// Label is a free display name, defaults to the series name.
	Label string

	LastScheduledEpisode  int
	LastDownloadedEpisode int
	LastAvailableEpisode  int

	NextCheckAt   time.Time
	LastCheckedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
