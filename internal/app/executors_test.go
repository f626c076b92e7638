package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"vodfetch/internal/domain"
	"vodfetch/internal/ports"
)

func noCancelEnv(t *testing.T) ExecEnv {
	t.Helper()
	return ExecEnv{
		UpdateProgress: func(float64) error { return nil },
		SetResult:      func(any) error { return nil },
		IsCanceled:     func() (bool, error) { return false, nil },
	}
}

func TestDownloadExecutorMissingParams(t *testing.T) {
	exec := DownloadExecutor{NewDriver: func(context.Context) (*Driver, error) {
		t.Fatal("driver must not be built without params")
		return nil, nil
	}}
	err := exec.Execute(context.Background(), domain.Job{ID: "j1", Type: "download"}, noCancelEnv(t))
	var coded *CodedError
	if !errors.As(err, &coded) || coded.Code != "invalid_params" {
		t.Fatalf("expected invalid_params, got %v", err)
	}
}

func TestDownloadExecutorNotFound(t *testing.T) {
	ff := newFakeFetcher()
	cat := &fakeCatalog{}
	exec := DownloadExecutor{NewDriver: func(context.Context) (*Driver, error) {
		return testDriver(t, cat, ff, copyMuxer{}), nil
	}}

	job := domain.Job{ID: "j1", Type: "download", ParamsJSON: []byte(`{"query":"nothing"}`)}
	err := exec.Execute(context.Background(), job, noCancelEnv(t))
	var coded *CodedError
	if !errors.As(err, &coded) || coded.Code != "not_found" {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestDownloadExecutorDownloadsSeries(t *testing.T) {
	ff := newFakeFetcher()
	cat := seriesFixture(ff, 3)
	exec := DownloadExecutor{NewDriver: func(context.Context) (*Driver, error) {
		return testDriver(t, cat, ff, copyMuxer{}), nil
	}}

	var result downloadResult
	var lastProgress float64
	env := ExecEnv{
		UpdateProgress: func(p float64) error {
			lastProgress = p
			return nil
		},
		SetResult: func(v any) error {
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			return json.Unmarshal(b, &result)
		},
		IsCanceled: func() (bool, error) { return false, nil },
	}

	job := domain.Job{ID: "j1", Type: "download", ParamsJSON: []byte(`{"query":"deep oceans"}`)}
	if err := exec.Execute(context.Background(), job, env); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Outputs) != 3 || len(result.Failed) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if lastProgress != 1 {
		t.Fatalf("expected final progress 1, got %v", lastProgress)
	}
}

func TestDownloadExecutorSeriesIDWithEpisodeFilter(t *testing.T) {
	ff := newFakeFetcher()
	cat := seriesFixture(ff, 3)
	exec := DownloadExecutor{NewDriver: func(context.Context) (*Driver, error) {
		return testDriver(t, cat, ff, copyMuxer{}), nil
	}}

	var result downloadResult
	env := noCancelEnv(t)
	env.SetResult = func(v any) error {
		b, _ := json.Marshal(v)
		return json.Unmarshal(b, &result)
	}

	job := domain.Job{ID: "j1", Type: "download", ParamsJSON: []byte(`{"seriesId":"s1","episode":2}`)}
	if err := exec.Execute(context.Background(), job, env); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Outputs) != 1 {
		t.Fatalf("expected exactly episode 2, got %+v", result)
	}

	job.ParamsJSON = []byte(`{"seriesId":"s1","episode":9}`)
	err := exec.Execute(context.Background(), job, env)
	var coded *CodedError
	if !errors.As(err, &coded) || coded.Code != "not_found" {
		t.Fatalf("expected not_found for missing episode, got %v", err)
	}
}

type staticListing struct {
	movies   []ports.CatalogTitle
	series   []ports.CatalogTitle
	episodes map[string][]domain.TitleEntry
	broken   map[string]bool
}

func (l staticListing) Movies(context.Context) ([]ports.CatalogTitle, error) { return l.movies, nil }
func (l staticListing) Series(context.Context) ([]ports.CatalogTitle, error) { return l.series, nil }

func (l staticListing) Episodes(_ context.Context, s ports.CatalogTitle) ([]domain.TitleEntry, error) {
	if l.broken[s.ID] {
		return nil, errors.New("feed unavailable")
	}
	return l.episodes[s.ID], nil
}

func TestSyncExecutorRefreshesCatalog(t *testing.T) {
	listing := staticListing{
		movies: []ports.CatalogTitle{{ID: "m1", Name: "A Film", Kind: "movie"}},
		series: []ports.CatalogTitle{
			{ID: "s1", Name: "Good Show", Kind: "series"},
			{ID: "s2", Name: "Broken Show", Kind: "series"},
		},
		episodes: map[string][]domain.TitleEntry{
			"s1": {
				{ID: "e1", SeriesID: "s1", Episode: 1},
				{ID: "e2", SeriesID: "s1", Episode: 2},
			},
		},
		broken: map[string]bool{"s2": true},
	}
	cat := &fakeCatalog{entries: map[string][]domain.TitleEntry{}}
	exec := SyncExecutor{Sync: NewSyncService(zerolog.Nop(), listing, cat)}

	var stats SyncStats
	env := noCancelEnv(t)
	env.SetResult = func(v any) error {
		b, _ := json.Marshal(v)
		return json.Unmarshal(b, &stats)
	}

	if err := exec.Execute(context.Background(), domain.Job{ID: "j1", Type: "sync"}, env); err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := SyncStats{Movies: 1, Series: 1, Episodes: 2, Skipped: 1}
	if stats != want {
		t.Fatalf("expected %+v, got %+v", want, stats)
	}
}
