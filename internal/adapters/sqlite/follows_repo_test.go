package sqlite

import (
	"context"
	"testing"
	"time"

	"vodfetch/internal/domain"
	"vodfetch/internal/ports"
)

func newTestFollow(id, seriesID string) domain.Follow {
	now := time.Now().UTC().Truncate(time.Second)
	return domain.Follow{
		ID:          id,
		SeriesID:    seriesID,
		Label:       "Show " + seriesID,
		NextCheckAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestFollowsCreateRejectsDuplicateSeries(t *testing.T) {
	ctx := context.Background()
	repo := NewFollowsRepository(openTestDB(t).SQL)

	if _, err := repo.Create(ctx, newTestFollow("f1", "s1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Create(ctx, newTestFollow("f2", "s1")); err != ports.ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestFollowsDue(t *testing.T) {
	ctx := context.Background()
	repo := NewFollowsRepository(openTestDB(t).SQL)
	now := time.Now().UTC().Truncate(time.Second)

	overdue := newTestFollow("f1", "s1")
	overdue.NextCheckAt = now.Add(-time.Hour)
	future := newTestFollow("f2", "s2")
	future.NextCheckAt = now.Add(time.Hour)
	for _, f := range []domain.Follow{overdue, future} {
		if _, err := repo.Create(ctx, f); err != nil {
			t.Fatalf("create %s: %v", f.ID, err)
		}
	}

	due, err := repo.Due(ctx, now, 10)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 || due[0].ID != "f1" {
		t.Fatalf("expected [f1], got %+v", due)
	}
}

func TestFollowsUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewFollowsRepository(openTestDB(t).SQL)

	f, err := repo.Create(ctx, newTestFollow("f1", "s1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	f.Label = "renamed"
	f.LastScheduledEpisode = 4
	f.LastAvailableEpisode = 4
	f.NextCheckAt = f.NextCheckAt.Add(30 * time.Minute)
	got, err := repo.Update(ctx, f)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Label != "renamed" || got.LastScheduledEpisode != 4 {
		t.Fatalf("unexpected follow %+v", got)
	}

	if err := repo.Delete(ctx, "f1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, "f1"); err != ports.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFollowsMarkDownloadedEpisodeMax(t *testing.T) {
	ctx := context.Background()
	repo := NewFollowsRepository(openTestDB(t).SQL)

	seed := newTestFollow("f1", "s1")
	seed.LastDownloadedEpisode = 5
	if _, err := repo.Create(ctx, seed); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.MarkDownloadedEpisodeMax(ctx, "f1", 3)
	if err != nil {
		t.Fatalf("mark lower: %v", err)
	}
	if got.LastDownloadedEpisode != 5 {
		t.Fatalf("lower episode must not regress the mark, got %d", got.LastDownloadedEpisode)
	}

	got, err = repo.MarkDownloadedEpisodeMax(ctx, "f1", 7)
	if err != nil {
		t.Fatalf("mark higher: %v", err)
	}
	if got.LastDownloadedEpisode != 7 {
		t.Fatalf("expected 7, got %d", got.LastDownloadedEpisode)
	}
}
