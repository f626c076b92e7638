package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"vodfetch/internal/domain"
	"vodfetch/internal/ports"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCatalogSearchFoldsAccents(t *testing.T) {
	ctx := context.Background()
	repo := NewCatalogRepository(openTestDB(t).SQL)

	titles := []ports.CatalogTitle{
		{ID: "t1", Name: "Les Misérables", Kind: "movie", ManifestURL: "https://cdn/t1.m3u8"},
		{ID: "t2", Name: "Misery", Kind: "movie", ManifestURL: "https://cdn/t2.m3u8"},
		{ID: "t3", Name: "Something Else", Kind: "movie", ManifestURL: "https://cdn/t3.m3u8"},
	}
	for _, title := range titles {
		if err := repo.UpsertTitle(ctx, title); err != nil {
			t.Fatalf("upsert %s: %v", title.ID, err)
		}
	}

	got, err := repo.Search(ctx, "miserables", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "t1" {
		t.Fatalf("expected [t1], got %+v", got)
	}

	got, err = repo.Search(ctx, "MISE", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %+v", got)
	}
}

func TestCatalogUpsertTitleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewCatalogRepository(openTestDB(t).SQL)

	title := ports.CatalogTitle{ID: "t1", Name: "Old Name", Kind: "movie", ManifestURL: "https://cdn/a.m3u8"}
	if err := repo.UpsertTitle(ctx, title); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	title.Name = "New Name"
	title.ManifestURL = "https://cdn/b.m3u8"
	if err := repo.UpsertTitle(ctx, title); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.Search(ctx, "new name", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ManifestURL != "https://cdn/b.m3u8" {
		t.Fatalf("expected updated row, got %+v", got)
	}
}

func TestCatalogEntriesMovie(t *testing.T) {
	ctx := context.Background()
	repo := NewCatalogRepository(openTestDB(t).SQL)

	title := ports.CatalogTitle{ID: "m1", Name: "Solo Film", Kind: "movie", ManifestURL: "https://cdn/m1.m3u8", SubtitleURL: "https://cdn/m1.srt"}
	if err := repo.UpsertTitle(ctx, title); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	entries, err := repo.Entries(ctx, "m1")
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Kind != domain.KindMovie || e.Name != "Solo Film" || e.SubtitleURL != "https://cdn/m1.srt" {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestCatalogEntriesSeriesOrderedByEpisode(t *testing.T) {
	ctx := context.Background()
	repo := NewCatalogRepository(openTestDB(t).SQL)

	if err := repo.UpsertTitle(ctx, ports.CatalogTitle{ID: "s1", Name: "Show", Kind: "series"}); err != nil {
		t.Fatalf("upsert title: %v", err)
	}
	for _, num := range []int{3, 1, 2} {
		e := domain.TitleEntry{
			ID:          "s1e" + string(rune('0'+num)),
			SeriesID:    "s1",
			Name:        "Episode",
			Episode:     num,
			ManifestURL: "https://cdn/ep.m3u8",
		}
		if err := repo.UpsertEpisode(ctx, e); err != nil {
			t.Fatalf("upsert episode %d: %v", num, err)
		}
	}

	entries, err := repo.Entries(ctx, "s1")
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.Episode != i+1 {
			t.Fatalf("entry %d has episode %d", i, e.Episode)
		}
		if e.SeriesName != "Show" || e.Kind != domain.KindEpisode {
			t.Fatalf("unexpected entry %+v", e)
		}
	}

	max, err := repo.MaxEpisode(ctx, "s1")
	if err != nil {
		t.Fatalf("max episode: %v", err)
	}
	if max != 3 {
		t.Fatalf("expected max 3, got %d", max)
	}
}

func TestCatalogEntriesUnknownTitle(t *testing.T) {
	repo := NewCatalogRepository(openTestDB(t).SQL)
	if _, err := repo.Entries(context.Background(), "nope"); err != ports.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
