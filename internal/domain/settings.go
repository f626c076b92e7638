package domain

type Settings struct {
	// Destination is the root directory for finished artifacts.
	Destination string `json:"destination"`

	// Concurrency.
	MaxWorkers            int `json:"maxWorkers"`
	MaxConcurrentSegments int `json:"maxConcurrentSegments"`
	MaxAttemptsPerSegment int `json:"maxAttemptsPerSegment"`

	// Output container extension, without the dot.
	OutputFormat string `json:"outputFormat"`
}

func DefaultSettings() Settings {
	return Settings{
		Destination:           "videos",
		MaxWorkers:            2,
		MaxConcurrentSegments: 4,
		MaxAttemptsPerSegment: 3,
		OutputFormat:          "mp4",
	}
}
