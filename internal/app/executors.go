package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"vodfetch/internal/domain"
)

// JobExecutor runs one claimed job to completion. Returning a *CodedError
// surfaces a stable errorCode on the failed job.
type JobExecutor interface {
	Execute(ctx context.Context, job domain.Job, env ExecEnv) error
}

type ExecEnv struct {
	UpdateProgress func(progress float64) error
	SetResult      func(result any) error
	IsCanceled     func() (bool, error)
}

type ExecutorRegistry struct {
	byType map[string]JobExecutor
}

func NewExecutorRegistry() ExecutorRegistry {
	return ExecutorRegistry{byType: map[string]JobExecutor{}}
}

func (r ExecutorRegistry) Register(jobType string, exec JobExecutor) ExecutorRegistry {
	r.byType[jobType] = exec
	return r
}

func (r ExecutorRegistry) Get(jobType string) JobExecutor {
	if ex, ok := r.byType[jobType]; ok {
		return ex
	}
	return unknownTypeExecutor{}
}

type unknownTypeExecutor struct{}

func (unknownTypeExecutor) Execute(ctx context.Context, job domain.Job, env ExecEnv) error {
	return &CodedError{Code: "invalid_params", Message: "unknown job type " + job.Type}
}

// DownloadExecutor resolves a catalog query and drives the full segment
// pipeline for every matched entry. A fresh Driver is built per job so it
// picks up the settings current at execution time.
type DownloadExecutor struct {
	NewDriver func(ctx context.Context) (*Driver, error)
}

type downloadParams struct {
	Query    string `json:"query"`
	SeriesID string `json:"seriesId,omitempty"`
	Episode  int    `json:"episode,omitempty"`
}

type downloadResult struct {
	Outputs []string `json:"outputs"`
	Failed  []string `json:"failed,omitempty"`
}

func (e DownloadExecutor) Execute(ctx context.Context, job domain.Job, env ExecEnv) error {
	var p downloadParams
	if len(job.ParamsJSON) > 0 {
		if err := json.Unmarshal(job.ParamsJSON, &p); err != nil {
			return &CodedError{Code: "invalid_params", Err: err}
		}
	}
	if strings.TrimSpace(p.Query) == "" && strings.TrimSpace(p.SeriesID) == "" {
		return &CodedError{Code: "invalid_params", Message: "missing params.query"}
	}

	driver, err := e.NewDriver(ctx)
	if err != nil {
		return &CodedError{Code: "internal", Err: err}
	}

	var entries []domain.TitleEntry
	if p.SeriesID != "" {
		entries, err = driver.Entries(ctx, p.SeriesID)
	} else {
		entries, err = driver.Resolve(ctx, p.Query)
	}
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return &CodedError{Code: "not_found", Err: err}
		}
		var ambiguous *domain.AmbiguousQueryError
		if errors.As(err, &ambiguous) {
			return &CodedError{Code: "ambiguous", Err: err}
		}
		if errors.Is(err, ErrNotFound) {
			return &CodedError{Code: "not_found", Err: err}
		}
		return &CodedError{Code: "internal", Err: err}
	}
	if p.Episode > 0 {
		entries = filterEpisode(entries, p.Episode)
		if len(entries) == 0 {
			return &CodedError{Code: "not_found", Message: "episode not in catalog"}
		}
	}

	total := len(entries)
	result := downloadResult{Outputs: []string{}}
	outcomes := make([]TitleOutcome, 0, total)
	for i, entry := range entries {
		if canceled, err := env.IsCanceled(); err != nil || canceled {
			return err
		}

		idx := i
		driver.OnProgress = func(_ domain.TitleEntry, done, segments int) {
			if segments == 0 {
				return
			}
			frac := (float64(idx) + float64(done)/float64(segments)) / float64(total)
			_ = env.UpdateProgress(frac)
		}

		output, err := driver.DownloadEntry(ctx, entry)
		outcomes = append(outcomes, TitleOutcome{Entry: entry, Output: output, Err: err})
		if err != nil {
			result.Failed = append(result.Failed, entry.OutputBase())
			continue
		}
		result.Outputs = append(result.Outputs, output)
	}

	if err := env.SetResult(result); err != nil {
		return err
	}
	if err := Summarize(outcomes); err != nil {
		return &CodedError{Code: "download_failed", Err: err}
	}
	return env.UpdateProgress(1)
}

func filterEpisode(entries []domain.TitleEntry, episode int) []domain.TitleEntry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.Episode == episode {
			out = append(out, e)
		}
	}
	return out
}

// SyncExecutor refreshes the local catalog snapshot from the provider feeds.
type SyncExecutor struct {
	Sync *SyncService
}

func (e SyncExecutor) Execute(ctx context.Context, job domain.Job, env ExecEnv) error {
	stats, err := e.Sync.Refresh(ctx)
	if err != nil {
		return &CodedError{Code: "sync_failed", Err: err}
	}
	if err := env.SetResult(stats); err != nil {
		return err
	}
	return env.UpdateProgress(1)
}

// NoopExecutor completes immediately. Wired in for smoke-testing a deployed
// daemon without touching the network.
type NoopExecutor struct{}

func (NoopExecutor) Execute(ctx context.Context, job domain.Job, env ExecEnv) error {
	if canceled, err := env.IsCanceled(); err != nil || canceled {
		return err
	}
	return env.UpdateProgress(1)
}
