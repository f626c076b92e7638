package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"vodfetch/internal/domain"
	"vodfetch/internal/ports"
)

type WorkerOptions struct {
	PollInterval time.Duration
}

func DefaultWorkerOptions() WorkerOptions {
	return WorkerOptions{PollInterval: 750 * time.Millisecond}
}

// Worker claims queued jobs one at a time and runs them through the
// executor registry.
type Worker struct {
	logger zerolog.Logger
	repo   ports.JobRepository
	bus    ports.EventBus
	execs  ExecutorRegistry
	opts   WorkerOptions
}

func NewWorker(logger zerolog.Logger, repo ports.JobRepository, bus ports.EventBus, execs ExecutorRegistry, opts WorkerOptions) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultWorkerOptions().PollInterval
	}
	return &Worker{logger: logger, repo: repo, bus: bus, execs: execs, opts: opts}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := w.repo.ClaimNextQueued(ctx)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				w.logger.Error().Err(err).Msg("claim next job failed")
				continue
			}
			w.execute(ctx, job)
		}
	}
}

func (w *Worker) execute(ctx context.Context, job domain.Job) {
	w.logger.Info().Str("job_id", job.ID).Str("type", job.Type).Msg("job claimed")
	PublishJobEvent(w.bus, "job.started", job)

	isCanceled := func() (bool, error) {
		current, err := w.repo.Get(ctx, job.ID)
		if err != nil {
			return false, err
		}
		return current.State == domain.JobCanceled, nil
	}

	// A cancel request lands in the store via the job service; fold it into
	// the executor's context so in-flight segment fetches stop too.
	jobCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-jobCtx.Done():
				return
			case <-ticker.C:
				if canceled, err := isCanceled(); err == nil && canceled {
					stop()
					return
				}
			}
		}
	}()

	env := ExecEnv{
		IsCanceled: isCanceled,
		UpdateProgress: func(progress float64) error {
			updated, err := w.repo.UpdateProgress(ctx, job.ID, progress)
			if err != nil {
				return err
			}
			PublishJobEvent(w.bus, "job.progress", updated)
			return nil
		},
		SetResult: func(result any) error {
			b, err := json.Marshal(result)
			if err != nil {
				return err
			}
			_, err = w.repo.UpdateResult(ctx, job.ID, b)
			return err
		},
	}

	err := w.execs.Get(job.Type).Execute(jobCtx, job, env)
	if err != nil {
		w.fail(ctx, job, err)
		return
	}

	canceled, err := isCanceled()
	if err != nil {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to reload job")
		return
	}
	if canceled {
		w.logger.Info().Str("job_id", job.ID).Msg("job canceled")
		return
	}

	phase, err := w.repo.UpdateState(ctx, job.ID, domain.JobRunning, domain.JobMuxing)
	if err != nil {
		w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("failed to mark job muxing")
		return
	}
	PublishJobEvent(w.bus, "job.muxing", phase)

	finished, err := w.repo.UpdateState(ctx, job.ID, domain.JobMuxing, domain.JobCompleted)
	if err != nil {
		w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("failed to mark job completed")
		return
	}
	finished, _ = w.repo.UpdateProgress(ctx, job.ID, 1)
	PublishJobEvent(w.bus, "job.completed", finished)
	w.logger.Info().Str("job_id", job.ID).Msg("job completed")
}

func (w *Worker) fail(ctx context.Context, job domain.Job, execErr error) {
	if ctx.Err() != nil {
		// Daemon shutdown, leave the job running so a restart can't mislabel
		// an interrupted download as failed.
		return
	}
	w.logger.Error().Err(execErr).Str("job_id", job.ID).Msg("executor failed")

	code := "internal"
	var coded *CodedError
	if errors.As(execErr, &coded) && coded.Code != "" {
		code = coded.Code
	}
	if _, err := w.repo.UpdateError(ctx, job.ID, code, execErr.Error()); err != nil {
		w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("failed to record job error")
	}
	failed, err := w.repo.UpdateState(ctx, job.ID, domain.JobRunning, domain.JobFailed)
	if err != nil {
		// Most likely canceled under us.
		return
	}
	PublishJobEvent(w.bus, "job.failed", failed)
}
