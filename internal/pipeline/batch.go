package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cgillinger/facebook-stats/internal/dedupe"
	"github.com/cgillinger/facebook-stats/internal/domain"
)

var (
	ErrQueueFull = errors.New("upload queue is full")
	ErrStopped   = errors.New("session is stopped")
	ErrCancelled = errors.New("batch cancelled")
)

// Input is one uploaded file.
type Input struct {
	Name string
	Data []byte
}

// Batch is a set of files processed together, in order.
type Batch struct {
	ID    string
	Files []Input
	// Scope overrides the session's default duplicate scope when set.
	Scope dedupe.Scope
	// Selected replaces the session's metric selection when non-empty.
	Selected domain.FieldSet
	// AbortOnMissingRequired stops the batch at the first file that lacks
	// required columns. Otherwise such files are processed and flagged.
	AbortOnMissingRequired bool

	// OnStart and OnFile are called from the worker goroutine.
	OnStart func()
	OnFile  func(domain.FileProvenance)
}

// BatchResult summarizes one processed batch.
type BatchResult struct {
	BatchID      string                  `json:"batch_id"`
	Files        []domain.FileProvenance `json:"files"`
	Rows         int                     `json:"rows"`
	Duplicates   int                     `json:"duplicates"`
	DuplicateIDs []string                `json:"duplicate_ids"`
	Posts        int                     `json:"posts"`
	// Aborted is set when AbortOnMissingRequired stopped the batch.
	Aborted   *domain.MissingRequiredColumnsWarning `json:"aborted,omitempty"`
	Cancelled bool                                  `json:"cancelled"`
	StartedAt time.Time                             `json:"started_at"`
	Duration  time.Duration                         `json:"duration_ns"`
}

// Failed counts files that could not be parsed.
func (r *BatchResult) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Status == domain.FileFailed {
			n++
		}
	}
	return n
}

// Ticket tracks a submitted batch.
type Ticket struct {
	ID     string
	ctx    context.Context
	cancel context.CancelFunc
	batch  Batch

	once   sync.Once
	done   chan struct{}
	result *BatchResult
	err    error
}

func newTicket(ctx context.Context, b Batch) *Ticket {
	ctx, cancel := context.WithCancel(ctx)
	return &Ticket{ID: b.ID, ctx: ctx, cancel: cancel, batch: b, done: make(chan struct{})}
}

// Done is closed when the batch has finished or was dropped.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Cancel stops the batch at the next file boundary.
func (t *Ticket) Cancel() { t.cancel() }

// Wait blocks until the batch finishes or ctx ends.
func (t *Ticket) Wait(ctx context.Context) (*BatchResult, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome once Done is closed.
func (t *Ticket) Result() (*BatchResult, error) {
	select {
	case <-t.done:
		return t.result, t.err
	default:
		return nil, nil
	}
}

func (t *Ticket) finish(res *BatchResult, err error) {
	t.once.Do(func() {
		t.result, t.err = res, err
		t.cancel()
		close(t.done)
	})
}
