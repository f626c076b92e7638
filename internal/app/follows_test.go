package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vodfetch/internal/domain"
	"vodfetch/internal/ports"
)

type memFollowRepo struct {
	mu      sync.Mutex
	follows map[string]domain.Follow
}

func newMemFollowRepo() *memFollowRepo {
	return &memFollowRepo{follows: map[string]domain.Follow{}}
}

func (r *memFollowRepo) Create(_ context.Context, f domain.Follow) (domain.Follow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.follows {
		if existing.SeriesID == f.SeriesID {
			return domain.Follow{}, ports.ErrConflict
		}
	}
	r.follows[f.ID] = f
	return f, nil
}

func (r *memFollowRepo) Get(_ context.Context, id string) (domain.Follow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.follows[id]
	if !ok {
		return domain.Follow{}, ports.ErrNotFound
	}
	return f, nil
}

func (r *memFollowRepo) List(_ context.Context, limit int) ([]domain.Follow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Follow, 0, len(r.follows))
	for _, f := range r.follows {
		out = append(out, f)
	}
	return out, nil
}

func (r *memFollowRepo) Update(_ context.Context, f domain.Follow) (domain.Follow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.follows[f.ID]; !ok {
		return domain.Follow{}, ports.ErrNotFound
	}
	f.UpdatedAt = time.Now().UTC()
	r.follows[f.ID] = f
	return f, nil
}

func (r *memFollowRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.follows[id]; !ok {
		return ports.ErrNotFound
	}
	delete(r.follows, id)
	return nil
}

func (r *memFollowRepo) Due(_ context.Context, now time.Time, limit int) ([]domain.Follow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Follow{}
	for _, f := range r.follows {
		if !f.NextCheckAt.After(now) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *memFollowRepo) MarkDownloadedEpisodeMax(_ context.Context, id string, episode int) (domain.Follow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.follows[id]
	if !ok {
		return domain.Follow{}, ports.ErrNotFound
	}
	if episode > f.LastDownloadedEpisode {
		f.LastDownloadedEpisode = episode
	}
	r.follows[id] = f
	return f, nil
}

func followFixtureCatalog(maxEp int) *fakeCatalog {
	cat := &fakeCatalog{
		titles:  []ports.CatalogTitle{{ID: "s1", Name: "Deep Oceans", Kind: "series"}},
		entries: map[string][]domain.TitleEntry{},
		maxEp:   map[string]int{"s1": maxEp},
	}
	for ep := 1; ep <= maxEp; ep++ {
		cat.entries["s1"] = append(cat.entries["s1"], domain.TitleEntry{
			ID:         "s1e" + string(rune('0'+ep)),
			Kind:       domain.KindEpisode,
			SeriesID:   "s1",
			SeriesName: "Deep Oceans",
			Episode:    ep,
		})
	}
	return cat
}

func TestFollowCreateDefaultsLabelToSeriesName(t *testing.T) {
	ctx := context.Background()
	svc := NewFollowService(newMemFollowRepo(), followFixtureCatalog(3), nil, nil)

	created, err := svc.Create(ctx, "s1", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Label != "Deep Oceans" {
		t.Fatalf("expected series name label, got %q", created.Label)
	}
	if created.NextCheckAt.IsZero() {
		t.Fatal("expected immediate first check")
	}
}

func TestFollowCheckOnceEnqueuesNewEpisodes(t *testing.T) {
	ctx := context.Background()
	repo := newMemFollowRepo()
	jobRepo := newMemJobRepo()
	jobs := NewJobService(jobRepo, nil)
	svc := NewFollowService(repo, followFixtureCatalog(5), jobs, nil)

	created, err := svc.Create(ctx, "s1", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Update(ctx, FollowDTO{ID: created.ID, LastScheduledEpisode: 2, LastDownloadedEpisode: 2}); err != nil {
		t.Fatalf("update: %v", err)
	}

	res, err := svc.CheckOnce(ctx, created.ID, true)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.MaxAvailableEpisode != 5 {
		t.Fatalf("expected max 5, got %d", res.MaxAvailableEpisode)
	}
	if len(res.EnqueuedEpisodes) != 3 || res.EnqueuedEpisodes[0] != 3 || res.EnqueuedEpisodes[2] != 5 {
		t.Fatalf("expected episodes 3..5, got %v", res.EnqueuedEpisodes)
	}
	if res.Follow.LastScheduledEpisode != 5 {
		t.Fatalf("expected mark at 5, got %d", res.Follow.LastScheduledEpisode)
	}

	queued, err := jobRepo.List(ctx, 10)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(queued) != 3 {
		t.Fatalf("expected 3 download jobs, got %d", len(queued))
	}
	var p downloadParams
	if err := json.Unmarshal(queued[0].ParamsJSON, &p); err != nil {
		t.Fatalf("params: %v", err)
	}
	if p.SeriesID != "s1" || p.Episode == 0 {
		t.Fatalf("unexpected params %+v", p)
	}
}

func TestFollowCheckOnceWithoutEnqueueOnlyUpdatesMarks(t *testing.T) {
	ctx := context.Background()
	repo := newMemFollowRepo()
	svc := NewFollowService(repo, followFixtureCatalog(4), nil, nil)

	created, err := svc.Create(ctx, "s1", "x")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	res, err := svc.CheckOnce(ctx, created.ID, false)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.Follow.LastAvailableEpisode != 4 {
		t.Fatalf("expected availability 4, got %d", res.Follow.LastAvailableEpisode)
	}
	if res.Follow.LastScheduledEpisode != 0 {
		t.Fatalf("nothing should be scheduled, got %d", res.Follow.LastScheduledEpisode)
	}
	if len(res.EnqueuedEpisodes) != 0 {
		t.Fatalf("unexpected enqueues %v", res.EnqueuedEpisodes)
	}
}

func TestDownloadCompletionUpdaterAdvancesMark(t *testing.T) {
	ctx := context.Background()
	repo := newMemFollowRepo()

	seed := domain.Follow{ID: "f1", SeriesID: "s1", LastDownloadedEpisode: 2}
	if _, err := repo.Create(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	u := NewDownloadCompletionUpdater(zerolog.Nop(), noopBus{}, repo)
	params, _ := json.Marshal(downloadParams{SeriesID: "s1", Episode: 4})
	payload, _ := json.Marshal(JobDTO{ID: "j1", Type: "download", Params: params})
	u.handleEvent(ctx, ports.Event{Topic: "job.completed", Payload: payload})

	got, err := repo.Get(ctx, "f1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastDownloadedEpisode != 4 {
		t.Fatalf("expected 4, got %d", got.LastDownloadedEpisode)
	}

	// Non-download events are ignored.
	payload, _ = json.Marshal(JobDTO{ID: "j2", Type: "sync"})
	u.handleEvent(ctx, ports.Event{Topic: "job.completed", Payload: payload})
	got, _ = repo.Get(ctx, "f1")
	if got.LastDownloadedEpisode != 4 {
		t.Fatalf("sync job must not move the mark, got %d", got.LastDownloadedEpisode)
	}
}

type noopBus struct{}

func (noopBus) Publish(string, []byte) {}

func (noopBus) Subscribe() (<-chan ports.Event, func()) {
	ch := make(chan ports.Event)
	return ch, func() {}
}
