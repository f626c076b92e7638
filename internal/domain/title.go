package domain

type TitleKind string

const (
	KindMovie   TitleKind = "movie"
	KindEpisode TitleKind = "episode"
)

// TitleEntry is one resolvable unit of content: a movie, or a single episode
// of a series. Immutable for the duration of one download.
type TitleEntry struct {
	ID   string
	Name string
	Kind TitleKind

	// SeriesID is set for episodes only.
	SeriesID   string
	SeriesName string
	Episode    int

	ManifestURL string
	SubtitleURL string
}

// OutputBase is the file name (without extension) used for the final artifact.
func (e TitleEntry) OutputBase() string {
	if e.Kind == KindEpisode && e.SeriesName != "" {
		return e.SeriesName + " - " + e.Name
	}
	return e.Name
}
