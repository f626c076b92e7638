package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/xid"

	"vodfetch/internal/domain"
	"vodfetch/internal/ports"
)

// FollowService manages series follows: every catalog refresh, episodes
// newer than what a follow has already scheduled are enqueued as download
// jobs.
type FollowService struct {
	repo    ports.FollowRepository
	catalog ports.CatalogStore
	jobs    *JobService
	bus     ports.EventBus
}

func NewFollowService(repo ports.FollowRepository, catalog ports.CatalogStore, jobs *JobService, bus ports.EventBus) *FollowService {
	return &FollowService{repo: repo, catalog: catalog, jobs: jobs, bus: bus}
}

type FollowDTO struct {
	ID       string `json:"id"`
	SeriesID string `json:"seriesId"`
	Label    string `json:"label"`

	LastScheduledEpisode  int `json:"lastScheduledEpisode"`
	LastDownloadedEpisode int `json:"lastDownloadedEpisode"`
	LastAvailableEpisode  int `json:"lastAvailableEpisode"`

	NextCheckAt   time.Time `json:"nextCheckAt"`
	LastCheckedAt time.Time `json:"lastCheckedAt"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toFollowDTO(f domain.Follow) FollowDTO {
	return FollowDTO{
		ID:                    f.ID,
		SeriesID:              f.SeriesID,
		Label:                 f.Label,
		LastScheduledEpisode:  f.LastScheduledEpisode,
		LastDownloadedEpisode: f.LastDownloadedEpisode,
		LastAvailableEpisode:  f.LastAvailableEpisode,
		NextCheckAt:           f.NextCheckAt,
		LastCheckedAt:         f.LastCheckedAt,
		CreatedAt:             f.CreatedAt,
		UpdatedAt:             f.UpdatedAt,
	}
}

// Create registers a follow for a series that must already exist in the
// catalog. The label defaults to the catalog name.
func (s *FollowService) Create(ctx context.Context, seriesID, label string) (FollowDTO, error) {
	seriesID = strings.TrimSpace(seriesID)
	if seriesID == "" {
		return FollowDTO{}, errors.New("missing seriesId")
	}
	entries, err := s.catalog.Entries(ctx, seriesID)
	if err != nil {
		return FollowDTO{}, err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = seriesID
		if len(entries) > 0 && entries[0].SeriesName != "" {
			label = entries[0].SeriesName
		}
	}

	now := time.Now().UTC()
	f := domain.Follow{
		ID:          xid.New().String(),
		SeriesID:    seriesID,
		Label:       label,
		NextCheckAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := s.repo.Create(ctx, f)
	if err != nil {
		return FollowDTO{}, err
	}
	s.publish("follow.created", created)
	return toFollowDTO(created), nil
}

func (s *FollowService) Get(ctx context.Context, id string) (FollowDTO, error) {
	f, err := s.repo.Get(ctx, id)
	if err != nil {
		return FollowDTO{}, err
	}
	return toFollowDTO(f), nil
}

func (s *FollowService) List(ctx context.Context, limit int) ([]FollowDTO, error) {
	follows, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]FollowDTO, 0, len(follows))
	for _, f := range follows {
		out = append(out, toFollowDTO(f))
	}
	return out, nil
}

func (s *FollowService) Update(ctx context.Context, dto FollowDTO) (FollowDTO, error) {
	existing, err := s.repo.Get(ctx, dto.ID)
	if err != nil {
		return FollowDTO{}, err
	}
	if strings.TrimSpace(dto.Label) != "" {
		existing.Label = strings.TrimSpace(dto.Label)
	}
	// Manual adjustment is allowed, useful when bootstrapping a follow for a
	// series already partially downloaded.
	if dto.LastDownloadedEpisode >= 0 {
		existing.LastDownloadedEpisode = dto.LastDownloadedEpisode
	}
	if dto.LastScheduledEpisode >= 0 {
		existing.LastScheduledEpisode = dto.LastScheduledEpisode
	}
	updated, err := s.repo.Update(ctx, existing)
	if err != nil {
		return FollowDTO{}, err
	}
	s.publish("follow.updated", updated)
	return toFollowDTO(updated), nil
}

func (s *FollowService) Delete(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	if err == nil {
		s.publishRaw("follow.deleted", map[string]any{"id": id})
	}
	return err
}

type FollowCheckResult struct {
	Follow              FollowDTO `json:"follow"`
	MaxAvailableEpisode int       `json:"maxAvailableEpisode"`
	EnqueuedEpisodes    []int     `json:"enqueuedEpisodes"`
	EnqueuedJobIDs      []string  `json:"enqueuedJobIds"`
}

// CheckOnce compares the follow against the current catalog snapshot and
// enqueues a download job per episode that has not been scheduled yet. It
// never talks to the provider; a sync job keeps the snapshot fresh.
func (s *FollowService) CheckOnce(ctx context.Context, id string, enqueue bool) (FollowCheckResult, error) {
	f, err := s.repo.Get(ctx, id)
	if err != nil {
		return FollowCheckResult{}, err
	}

	maxAvail, err := s.catalog.MaxEpisode(ctx, f.SeriesID)
	if err != nil {
		return FollowCheckResult{}, err
	}

	now := time.Now().UTC()
	f.LastAvailableEpisode = maxAvail
	f.LastCheckedAt = now
	if f.LastScheduledEpisode < maxAvail {
		f.NextCheckAt = now.Add(10 * time.Minute)
	} else {
		f.NextCheckAt = now.Add(2 * time.Hour)
	}

	enqueuedEpisodes := []int{}
	enqueuedJobIDs := []string{}
	if enqueue && s.jobs != nil && f.LastScheduledEpisode < maxAvail {
		for ep := f.LastScheduledEpisode + 1; ep <= maxAvail; ep++ {
			params, _ := json.Marshal(downloadParams{
				SeriesID: f.SeriesID,
				Episode:  ep,
			})
			created, err := s.jobs.Create(ctx, CreateJobRequest{Type: "download", Params: params})
			if err != nil {
				break
			}
			enqueuedEpisodes = append(enqueuedEpisodes, ep)
			enqueuedJobIDs = append(enqueuedJobIDs, created.ID)
			f.LastScheduledEpisode = ep
		}
	}

	updated, err := s.repo.Update(ctx, f)
	if err != nil {
		return FollowCheckResult{}, err
	}
	s.publish("follow.checked", updated)

	return FollowCheckResult{
		Follow:              toFollowDTO(updated),
		MaxAvailableEpisode: maxAvail,
		EnqueuedEpisodes:    enqueuedEpisodes,
		EnqueuedJobIDs:      enqueuedJobIDs,
	}, nil
}

func (s *FollowService) publish(topic string, f domain.Follow) {
	if s.bus == nil {
		return
	}
	b, err := json.Marshal(toFollowDTO(f))
	if err != nil {
		return
	}
	s.bus.Publish(topic, b)
}

func (s *FollowService) publishRaw(topic string, v any) {
	if s.bus == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.bus.Publish(topic, b)
}
