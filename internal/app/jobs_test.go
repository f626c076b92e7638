package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vodfetch/internal/domain"
	"vodfetch/internal/ports"
)

type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]domain.Job
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: map[string]domain.Job{}}
}

func (r *memJobRepo) Create(_ context.Context, job domain.Job) (domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
	return job, nil
}

func (r *memJobRepo) Get(_ context.Context, id string) (domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.Job{}, ports.ErrNotFound
	}
	return job, nil
}

func (r *memJobRepo) List(_ context.Context, limit int) ([]domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memJobRepo) ClaimNextQueued(_ context.Context) (domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var oldest *domain.Job
	for id := range r.jobs {
		j := r.jobs[id]
		if j.State != domain.JobQueued {
			continue
		}
		if oldest == nil || j.CreatedAt.Before(oldest.CreatedAt) {
			oldest = &j
		}
	}
	if oldest == nil {
		return domain.Job{}, ports.ErrNotFound
	}
	oldest.State = domain.JobRunning
	r.jobs[oldest.ID] = *oldest
	return *oldest, nil
}

func (r *memJobRepo) UpdateProgress(_ context.Context, id string, progress float64) (domain.Job, error) {
	return r.mutate(id, func(j *domain.Job) error {
		j.Progress = progress
		return nil
	})
}

func (r *memJobRepo) UpdateResult(_ context.Context, id string, resultJSON []byte) (domain.Job, error) {
	return r.mutate(id, func(j *domain.Job) error {
		j.ResultJSON = resultJSON
		return nil
	})
}

func (r *memJobRepo) UpdateError(_ context.Context, id string, code string, message string) (domain.Job, error) {
	return r.mutate(id, func(j *domain.Job) error {
		j.ErrorCode = code
		j.ErrorMessage = message
		return nil
	})
}

func (r *memJobRepo) UpdateState(_ context.Context, id string, expected domain.JobState, next domain.JobState) (domain.Job, error) {
	if !domain.CanTransition(expected, next) {
		return domain.Job{}, domain.ErrInvalidTransition
	}
	return r.mutate(id, func(j *domain.Job) error {
		if j.State != expected {
			return ports.ErrNotFound
		}
		j.State = next
		return nil
	})
}

func (r *memJobRepo) mutate(id string, fn func(*domain.Job) error) (domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.Job{}, ports.ErrNotFound
	}
	if err := fn(&job); err != nil {
		return domain.Job{}, err
	}
	job.UpdatedAt = time.Now().UTC()
	r.jobs[id] = job
	return job, nil
}

func TestJobServiceCreateRejectsEmptyType(t *testing.T) {
	svc := NewJobService(newMemJobRepo(), nil)
	_, err := svc.Create(context.Background(), CreateJobRequest{Type: "  "})
	var coded *CodedError
	if !errors.As(err, &coded) || coded.Code != "invalid_params" {
		t.Fatalf("expected invalid_params, got %v", err)
	}
}

func TestJobServiceCancelQueuedJob(t *testing.T) {
	ctx := context.Background()
	svc := NewJobService(newMemJobRepo(), nil)

	created, err := svc.Create(ctx, CreateJobRequest{Type: "noop"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	canceled, err := svc.Cancel(ctx, created.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if canceled.State != domain.JobCanceled {
		t.Fatalf("expected canceled, got %s", canceled.State)
	}
	// Cancel on a terminal job reports the state instead of erroring.
	again, err := svc.Cancel(ctx, created.ID)
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if again.State != domain.JobCanceled {
		t.Fatalf("expected canceled, got %s", again.State)
	}
}

func runWorkerOnce(t *testing.T, repo ports.JobRepository, execs ExecutorRegistry, jobID string) domain.Job {
	t.Helper()
	w := NewWorker(zerolog.Nop(), repo, nil, execs, WorkerOptions{PollInterval: time.Millisecond})
	job, err := repo.ClaimNextQueued(context.Background())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if job.ID != jobID {
		t.Fatalf("claimed wrong job %s", job.ID)
	}
	w.execute(context.Background(), job)
	final, err := repo.Get(context.Background(), jobID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	return final
}

func TestWorkerCompletesJobThroughPhases(t *testing.T) {
	repo := newMemJobRepo()
	svc := NewJobService(repo, nil)
	created, err := svc.Create(context.Background(), CreateJobRequest{Type: "noop"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	execs := NewExecutorRegistry().Register("noop", NoopExecutor{})
	final := runWorkerOnce(t, repo, execs, created.ID)
	if final.State != domain.JobCompleted {
		t.Fatalf("expected completed, got %s", final.State)
	}
	if final.Progress != 1 {
		t.Fatalf("expected progress 1, got %v", final.Progress)
	}
}

func TestWorkerRecordsCodedError(t *testing.T) {
	repo := newMemJobRepo()
	svc := NewJobService(repo, nil)
	created, err := svc.Create(context.Background(), CreateJobRequest{Type: "boom"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// No executor registered for "boom": the registry falls back to the
	// unknown-type executor, which fails with invalid_params.
	final := runWorkerOnce(t, repo, NewExecutorRegistry(), created.ID)
	if final.State != domain.JobFailed {
		t.Fatalf("expected failed, got %s", final.State)
	}
	if final.ErrorCode != "invalid_params" {
		t.Fatalf("expected invalid_params, got %q", final.ErrorCode)
	}
}

func TestWorkerPoolResize(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := NewWorkerPool(ctx, zerolog.Nop(), newMemJobRepo(), nil, NewExecutorRegistry(), WorkerOptions{PollInterval: time.Millisecond})
	defer pool.Close()

	pool.SetCount(3)
	if got := pool.Count(); got != 3 {
		t.Fatalf("expected 3 workers, got %d", got)
	}
	pool.SetCount(1)
	if got := pool.Count(); got != 1 {
		t.Fatalf("expected 1 worker, got %d", got)
	}
	pool.Close()
	if got := pool.Count(); got != 0 {
		t.Fatalf("expected 0 workers after close, got %d", got)
	}
}
