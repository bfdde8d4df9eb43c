// Package jobs records the status of upload batches so clients can poll
// them after an asynchronous upload.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cgillinger/facebook-stats/internal/domain"
	"github.com/cgillinger/facebook-stats/internal/pipeline"
	"github.com/cgillinger/facebook-stats/internal/pkg/logger"
)

// ErrNotFound is returned for unknown or expired jobs.
var ErrNotFound = errors.New("job not found")

// Status of an upload job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the job will not change again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job is the tracked state of one upload batch.
type Job struct {
	ID         string                  `json:"id"`
	Status     Status                  `json:"status"`
	Files      []string                `json:"files"`
	FilesDone  int                     `json:"files_done"`
	Provenance []domain.FileProvenance `json:"provenance"`
	Result     *pipeline.BatchResult   `json:"result,omitempty"`
	Error      string                  `json:"error,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
	StartedAt  *time.Time              `json:"started_at,omitempty"`
	FinishedAt *time.Time              `json:"finished_at,omitempty"`
}

// New returns a queued job for the given file names.
func New(id string, files []string) *Job {
	return &Job{
		ID:         id,
		Status:     StatusQueued,
		Files:      append([]string{}, files...),
		Provenance: []domain.FileProvenance{},
		CreatedAt:  time.Now().UTC(),
	}
}

// Tracker stores jobs.
type Tracker interface {
	Save(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	// List returns the most recent jobs first.
	List(ctx context.Context, limit int) ([]*Job, error)
}

// Recorder mirrors a pipeline batch into a Tracker. Its methods are safe to
// call from the pipeline worker.
type Recorder struct {
	tracker Tracker
	mu      sync.Mutex
	job     *Job
}

// Track saves job as queued and returns a recorder for it.
func Track(ctx context.Context, t Tracker, job *Job) (*Recorder, error) {
	if err := t.Save(ctx, job); err != nil {
		return nil, err
	}
	return &Recorder{tracker: t, job: job}, nil
}

// Hook wires the recorder into b's callbacks.
func (r *Recorder) Hook(b *pipeline.Batch) {
	b.ID = r.job.ID
	b.OnStart = r.Started
	b.OnFile = r.FileDone
}

// Started marks the job running.
func (r *Recorder) Started() {
	r.update(func(j *Job) {
		now := time.Now().UTC()
		j.Status = StatusRunning
		j.StartedAt = &now
	})
}

// FileDone records one file's provenance.
func (r *Recorder) FileDone(p domain.FileProvenance) {
	r.update(func(j *Job) {
		j.FilesDone++
		j.Provenance = append(j.Provenance, p)
	})
}

// Finish stores the batch outcome.
func (r *Recorder) Finish(res *pipeline.BatchResult, err error) {
	r.update(func(j *Job) {
		now := time.Now().UTC()
		j.FinishedAt = &now
		j.Result = res
		switch {
		case errors.Is(err, pipeline.ErrCancelled), errors.Is(err, pipeline.ErrStopped):
			j.Status = StatusCancelled
			j.Error = err.Error()
		case err != nil:
			j.Status = StatusFailed
			j.Error = err.Error()
		case res != nil && res.Aborted != nil:
			j.Status = StatusFailed
			j.Error = res.Aborted.Error()
		default:
			j.Status = StatusCompleted
		}
	})
}

// Snapshot returns a copy of the current job state.
func (r *Recorder) Snapshot() Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.job
	cp.Provenance = append([]domain.FileProvenance(nil), r.job.Provenance...)
	return cp
}

func (r *Recorder) update(fn func(*Job)) {
	r.mu.Lock()
	fn(r.job)
	cp := *r.job
	cp.Provenance = append([]domain.FileProvenance(nil), r.job.Provenance...)
	r.mu.Unlock()

	// Job status is advisory; a failed write must not fail the batch.
	if err := r.tracker.Save(context.Background(), &cp); err != nil {
		logger.Warn("job status not saved", "job_id", cp.ID, "error", err)
	}
}
