// Package inbox polls an S3 prefix for exported CSV files and feeds them to
// the pipeline.
package inbox

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cgillinger/facebook-stats/internal/domain"
	"github.com/cgillinger/facebook-stats/internal/jobs"
	"github.com/cgillinger/facebook-stats/internal/pipeline"
	"github.com/cgillinger/facebook-stats/internal/pkg/logger"
	"github.com/google/uuid"
)

// ErrBusy is returned by RunOnce while another run is in progress.
var ErrBusy = errors.New("inbox run already in progress")

const (
	incomingDir  = "incoming/"
	processedDir = "processed/"
	failedDir    = "failed/"
)

// Processor runs a batch to completion.
type Processor interface {
	Process(ctx context.Context, b pipeline.Batch) (*pipeline.BatchResult, error)
}

// Config configures a Poller.
type Config struct {
	Prefix   string
	Interval time.Duration
	// Jobs, when set, records inbox batches next to uploaded ones.
	Jobs jobs.Tracker
}

// RunResult summarizes one poll.
type RunResult struct {
	JobID     string    `json:"job_id,omitempty"`
	Files     []string  `json:"files"`
	Processed []string  `json:"processed"`
	Failed    []string  `json:"failed"`
	Left      []string  `json:"left,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Error     string    `json:"error,omitempty"`
}

// Poller moves files from <prefix>incoming/ through the pipeline and files
// them under processed/ or failed/.
type Poller struct {
	store     ObjectStore
	processor Processor
	prefix    string
	interval  time.Duration
	tracker   jobs.Tracker

	running int32
	mu      sync.RWMutex
	last    time.Time
	result  *RunResult

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPoller(store ObjectStore, processor Processor, cfg Config) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	prefix := cfg.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Poller{
		store:     store,
		processor: processor,
		prefix:    prefix,
		interval:  interval,
		tracker:   cfg.Jobs,
	}
}

// Start runs one poll immediately and then one per interval until Stop.
func (p *Poller) Start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())
	logger.Info("inbox poller starting", "prefix", p.prefix, "interval", p.interval.String())

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.poll()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.ctx.Done():
				return
			case <-ticker.C:
				p.poll()
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight poll.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	logger.Info("inbox poller stopped")
}

func (p *Poller) poll() {
	if _, err := p.RunOnce(p.ctx); err != nil && !errors.Is(err, ErrBusy) && !errors.Is(err, context.Canceled) {
		logger.Error("inbox poll failed", "error", err)
	}
}

// ManualTrigger runs a poll now, outside the schedule.
func (p *Poller) ManualTrigger(ctx context.Context) (*RunResult, error) {
	logger.Info("inbox poll triggered manually")
	return p.RunOnce(ctx)
}

func (p *Poller) IsRunning() bool { return atomic.LoadInt32(&p.running) == 1 }

func (p *Poller) LastRunAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// LastResult is the outcome of the latest completed run, or nil.
func (p *Poller) LastResult() *RunResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.result
}

// RunOnce processes every CSV under incoming/ as one batch, in key order.
// It returns a nil result when there was nothing to do.
func (p *Poller) RunOnce(ctx context.Context) (*RunResult, error) {
	if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
		return nil, ErrBusy
	}
	defer atomic.StoreInt32(&p.running, 0)

	started := time.Now().UTC()
	p.mu.Lock()
	p.last = started
	p.mu.Unlock()

	res, err := p.run(ctx, started)
	if res != nil {
		if err != nil {
			res.Error = err.Error()
		}
		p.mu.Lock()
		p.result = res
		p.mu.Unlock()
	}
	return res, err
}

func (p *Poller) run(ctx context.Context, started time.Time) (*RunResult, error) {
	objects, err := p.store.List(ctx, p.prefix+incomingDir)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, o := range objects {
		if strings.HasSuffix(strings.ToLower(o.Key), ".csv") {
			keys = append(keys, o.Key)
		}
	}
	if len(keys) == 0 {
		logger.Debug("inbox empty", "prefix", p.prefix+incomingDir)
		return nil, nil
	}

	res := &RunResult{Files: keys, Processed: []string{}, Failed: []string{}, StartedAt: started}

	var (
		batch  pipeline.Batch
		inputs []string
	)
	for _, key := range keys {
		data, err := p.store.Get(ctx, key)
		if err != nil {
			logger.Warn("inbox file unreadable", "key", key, "error", err)
			p.file(ctx, key, failedDir, res)
			continue
		}
		batch.Files = append(batch.Files, pipeline.Input{Name: path.Base(key), Data: data})
		inputs = append(inputs, key)
	}
	if len(inputs) == 0 {
		return res, nil
	}

	var rec *jobs.Recorder
	if p.tracker != nil {
		res.JobID = uuid.NewString()
		names := make([]string, len(batch.Files))
		for i, f := range batch.Files {
			names[i] = f.Name
		}
		rec, err = jobs.Track(ctx, p.tracker, jobs.New(res.JobID, names))
		if err != nil {
			logger.Warn("inbox job not tracked", "error", err)
			rec = nil
		} else {
			rec.Hook(&batch)
		}
	}

	out, err := p.processor.Process(ctx, batch)
	if rec != nil {
		rec.Finish(out, err)
	}
	if out == nil {
		res.Left = inputs
		return res, err
	}

	for i, key := range inputs {
		if i >= len(out.Files) {
			res.Left = append(res.Left, key)
			continue
		}
		prov := out.Files[i]
		switch {
		case prov.Status == domain.FileProcessed:
			p.file(ctx, key, processedDir, res)
		case prov.Status == domain.FileSkipped && out.Cancelled:
			res.Left = append(res.Left, key)
		default:
			p.file(ctx, key, failedDir, res)
		}
	}

	logger.Info("inbox run complete",
		"files", len(keys),
		"processed", len(res.Processed),
		"failed", len(res.Failed),
		"left", len(res.Left))
	if errors.Is(err, pipeline.ErrCancelled) {
		return res, nil
	}
	return res, err
}

func (p *Poller) file(ctx context.Context, key, dir string, res *RunResult) {
	dst := p.prefix + dir + path.Base(key)
	if err := p.store.Move(ctx, key, dst); err != nil {
		logger.Warn("inbox move failed", "key", key, "dst", dst, "error", err)
		res.Left = append(res.Left, key)
		return
	}
	if dir == processedDir {
		res.Processed = append(res.Processed, key)
	} else {
		res.Failed = append(res.Failed, key)
	}
}
