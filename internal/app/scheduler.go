package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vodfetch/internal/domain"
)

// Decrypter is what the scheduler needs from the decryption unit.
type Decrypter interface {
	Decrypt(ctx context.Context, data []byte, seg domain.SegmentDescriptor) ([]byte, error)
}

type SchedulerConfig struct {
	// Concurrency is the ceiling on simultaneous in-flight fetches.
	Concurrency int
	// MaxAttempts bounds fetch attempts per segment, transient failures only.
	MaxAttempts int
	// BackoffBase doubles per attempt, capped at BackoffCap.
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Concurrency: 4,
		MaxAttempts: 3,
		BackoffBase: 500 * time.Millisecond,
		BackoffCap:  8 * time.Second,
	}
}

// Scheduler owns the per-title download: it dispatches segment fetch+decrypt
// tasks in manifest order under a bounded concurrency ceiling, retries
// transient failures with exponential backoff, and fails the whole title as
// soon as one task exhausts its budget or hits a permanent error.
//
// Completion order is unconstrained; ordering the output is the sink's job.
type Scheduler struct {
	logger  zerolog.Logger
	fetch   Fetcher
	decrypt Decrypter
	limiter *DynamicLimiter
	cfg     SchedulerConfig

	// OnProgress, when set, is told how many segments are done after each
	// completion.
	OnProgress func(done, total int)
}

// NewScheduler builds a scheduler. limiter may be shared between titles to
// bound process-wide network use; pass nil for a private one.
func NewScheduler(logger zerolog.Logger, fetch Fetcher, decrypt Decrypter, limiter *DynamicLimiter, cfg SchedulerConfig) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = def.BackoffCap
	}
	if limiter == nil {
		limiter = NewDynamicLimiter(cfg.Concurrency)
	}
	return &Scheduler{logger: logger, fetch: fetch, decrypt: decrypt, limiter: limiter, cfg: cfg}
}

type segResult struct {
	seg domain.AssembledSegment
	err error
}

// Run downloads every segment of the manifest, handing completed segments to
// sink as they arrive (any order). The first fatal error cancels the rest and
// is returned after all in-flight work has stopped.
func (s *Scheduler) Run(ctx context.Context, manifest *domain.Manifest, sink func(domain.AssembledSegment) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	total := len(manifest.Segments)
	results := make(chan segResult, total)

	go func() {
		var wg sync.WaitGroup
		// Dispatch strictly in sequence-index order; the limiter enforces
		// the in-flight ceiling.
		for i := range manifest.Segments {
			if err := s.limiter.Acquire(ctx); err != nil {
				break
			}
			task := &domain.DownloadTask{Segment: manifest.Segments[i], Status: domain.TaskPending}
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.runTask(ctx, task, results)
			}()
		}
		wg.Wait()
		close(results)
	}()

	var firstErr error
	done := 0
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
				cancel()
			}
			continue
		}
		if firstErr != nil {
			// Title already failed; drop late completions.
			continue
		}
		if err := sink(res.seg); err != nil {
			firstErr = err
			cancel()
			continue
		}
		done++
		if s.OnProgress != nil {
			s.OnProgress(done, total)
		}
	}
	if firstErr == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return firstErr
}

// runTask drives one task through its state machine. The caller has already
// acquired a limiter slot; the slot is released during backoff so waiting
// never starves other segments.
func (s *Scheduler) runTask(ctx context.Context, task *domain.DownloadTask, results chan<- segResult) {
	seg := task.Segment
	holding := true
	defer func() {
		if holding {
			s.limiter.Release()
		}
	}()

	for {
		_ = task.Transition(domain.TaskInFlight)
		task.Attempts++

		data, err := s.fetch.Fetch(ctx, seg.URL, seg.Range)
		if err == nil {
			data, err = s.decrypt.Decrypt(ctx, data, seg)
		}
		if err == nil {
			_ = task.Transition(domain.TaskDone)
			results <- segResult{seg: domain.AssembledSegment{Index: seg.Index, Data: data}}
			return
		}
		task.LastErr = err

		if ctx.Err() != nil {
			_ = task.Transition(domain.TaskFailed)
			results <- segResult{err: ctx.Err()}
			return
		}
		if !domain.IsTransient(err) || task.Attempts >= s.cfg.MaxAttempts {
			_ = task.Transition(domain.TaskFailed)
			s.logger.Error().Err(err).Int("segment", seg.Index).Int("attempts", task.Attempts).Msg("segment failed")
			results <- segResult{err: err}
			return
		}

		_ = task.Transition(domain.TaskRetrying)
		s.logger.Warn().Err(err).Int("segment", seg.Index).Int("attempt", task.Attempts).Msg("segment retry")

		// Give the slot back while waiting.
		s.limiter.Release()
		holding = false
		if err := sleepCtx(ctx, s.backoff(task.Attempts)); err != nil {
			results <- segResult{err: err}
			return
		}
		if err := s.limiter.Acquire(ctx); err != nil {
			results <- segResult{err: err}
			return
		}
		holding = true
	}
}

func (s *Scheduler) backoff(attempt int) time.Duration {
	d := s.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= s.cfg.BackoffCap {
			return s.cfg.BackoffCap
		}
	}
	if d > s.cfg.BackoffCap {
		d = s.cfg.BackoffCap
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
