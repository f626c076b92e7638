package app

import (
	"context"

	"vodfetch/internal/domain"
	"vodfetch/internal/ports"
)

// SettingsService validates and persists the daemon settings. OnChange, when
// set, lets saved settings re-tune running components (segment limiter,
// worker pool) without a restart.
type SettingsService struct {
	repo ports.SettingsRepository

	OnChange func(domain.Settings)
}

func NewSettingsService(repo ports.SettingsRepository) *SettingsService {
	return &SettingsService{repo: repo}
}

func (s *SettingsService) Get(ctx context.Context) (domain.Settings, error) {
	return s.repo.Get(ctx)
}

func (s *SettingsService) Put(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	defaults := domain.DefaultSettings()
	if settings.Destination == "" {
		settings.Destination = defaults.Destination
	}
	if settings.OutputFormat == "" {
		settings.OutputFormat = defaults.OutputFormat
	}
	if settings.MaxWorkers <= 0 {
		settings.MaxWorkers = defaults.MaxWorkers
	}
	if settings.MaxConcurrentSegments <= 0 {
		settings.MaxConcurrentSegments = defaults.MaxConcurrentSegments
	}
	if settings.MaxAttemptsPerSegment <= 0 {
		settings.MaxAttemptsPerSegment = defaults.MaxAttemptsPerSegment
	}
	saved, err := s.repo.Put(ctx, settings)
	if err != nil {
		return domain.Settings{}, err
	}
	if s.OnChange != nil {
		s.OnChange(saved)
	}
	return saved, nil
}
