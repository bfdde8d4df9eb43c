// Package pipeline runs uploaded exports through parsing, column mapping,
// duplicate removal and identity resolution, and keeps the accumulated post
// table of one session.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cgillinger/facebook-stats/internal/aggregate"
	"github.com/cgillinger/facebook-stats/internal/csvparse"
	"github.com/cgillinger/facebook-stats/internal/dedupe"
	"github.com/cgillinger/facebook-stats/internal/domain"
	"github.com/cgillinger/facebook-stats/internal/identity"
	"github.com/cgillinger/facebook-stats/internal/mapping"
	"github.com/cgillinger/facebook-stats/internal/pkg/logger"
	"github.com/google/uuid"
)

const defaultQueueSize = 16

// Options configure a Session.
type Options struct {
	Mapping  *mapping.Store
	Engine   *aggregate.Engine
	Identity identity.Options
	// Scope is the default duplicate scope; ScopeSession when empty.
	Scope dedupe.Scope
	// Metrics is the initial metric selection; domain.DefaultMetrics when empty.
	Metrics   domain.FieldSet
	QueueSize int
	// OnSnapshot receives the session state after every batch that changed
	// it and after Reset.
	OnSnapshot func(*Snapshot)
	NewID      func() string
}

// Session owns the duplicate registry, the identity resolver and the post
// table. Batches are processed one at a time, in submission order, by a
// single worker goroutine.
type Session struct {
	opts  Options
	queue chan *Ticket
	// run is held while a batch is processing and by Reset.
	run chan struct{}

	mu           sync.RWMutex
	registry     *dedupe.Registry
	resolver     *identity.Resolver
	posts        []domain.Post
	files        []domain.FileProvenance
	warnings     []domain.DataQualityWarning
	totalRows    int
	duplicates   int
	duplicateIDs []string
	dupReported  map[string]bool
	selected     domain.FieldSet

	lifeMu  sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	stopped bool
}

// NewSession validates opts and returns an idle session. Call Start to run
// the worker.
func NewSession(opts Options) (*Session, error) {
	if opts.Mapping == nil {
		return nil, errors.New("pipeline: mapping store is required")
	}
	if opts.Engine == nil {
		opts.Engine = aggregate.NewEngine(nil)
	}
	if opts.Scope == "" {
		opts.Scope = dedupe.ScopeSession
	}
	if len(opts.Metrics) == 0 {
		opts.Metrics = domain.NewFieldSet(domain.DefaultMetrics...)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	s := &Session{
		opts:        opts,
		queue:       make(chan *Ticket, opts.QueueSize),
		run:         make(chan struct{}, 1),
		registry:    dedupe.NewRegistry(),
		resolver:    identity.NewResolver(opts.Identity),
		dupReported: make(map[string]bool),
		selected:    copySet(opts.Metrics),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// Start launches the worker. It is a no-op if already running.
func (s *Session) Start() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.running || s.stopped {
		return
	}
	s.running = true
	logger.Info("pipeline session started", "queue_size", s.opts.QueueSize, "scope", string(s.opts.Scope))

	s.wg.Add(1)
	go s.loop()
}

// Stop cancels the in-flight batch at its next file boundary, fails every
// queued batch with ErrStopped and waits for the worker to exit.
func (s *Session) Stop() {
	s.lifeMu.Lock()
	if s.stopped {
		s.lifeMu.Unlock()
		return
	}
	s.stopped = true
	s.running = false
	s.cancel()
	s.lifeMu.Unlock()

	s.wg.Wait()
	s.drain(ErrStopped)
	logger.Info("pipeline session stopped")
}

func (s *Session) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case t := <-s.queue:
			res, err := s.runBatch(t)
			t.finish(res, err)
		}
	}
}

// Submit queues b and returns immediately. ctx bounds the batch itself, not
// the call: cancelling it stops the batch at the next file boundary.
func (s *Session) Submit(ctx context.Context, b Batch) (*Ticket, error) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.stopped {
		return nil, ErrStopped
	}
	if b.ID == "" {
		b.ID = s.opts.NewID()
	}
	t := newTicket(ctx, b)
	select {
	case s.queue <- t:
		logger.Debug("batch queued", "batch_id", t.ID, "files", len(b.Files))
		return t, nil
	default:
		t.cancel()
		return nil, ErrQueueFull
	}
}

// Process submits b and waits for its result.
func (s *Session) Process(ctx context.Context, b Batch) (*BatchResult, error) {
	t, err := s.Submit(ctx, b)
	if err != nil {
		return nil, err
	}
	return t.Wait(ctx)
}

// QueueLen is the number of batches waiting behind the in-flight one.
func (s *Session) QueueLen() int { return len(s.queue) }

// ClearQueue drops every pending batch. The in-flight batch is not
// affected. It returns the number of dropped batches.
func (s *Session) ClearQueue() int {
	n := s.drain(ErrCancelled)
	if n > 0 {
		logger.Info("upload queue cleared", "dropped", n)
	}
	return n
}

func (s *Session) drain(err error) int {
	n := 0
	for {
		select {
		case t := <-s.queue:
			t.finish(&BatchResult{BatchID: t.ID, Files: []domain.FileProvenance{}, DuplicateIDs: []string{}, Cancelled: true}, err)
			n++
		default:
			return n
		}
	}
}

// Reset forgets every processed file: posts, duplicate registry, identity
// indexes and stats. It waits for the in-flight batch to finish. The metric
// selection and queued batches are kept.
func (s *Session) Reset(ctx context.Context) error {
	select {
	case s.run <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.run }()

	s.mu.Lock()
	posts, files := len(s.posts), len(s.files)
	s.registry.Reset()
	s.resolver.Reset()
	s.posts = nil
	s.files = nil
	s.warnings = nil
	s.totalRows = 0
	s.duplicates = 0
	s.duplicateIDs = nil
	s.dupReported = make(map[string]bool)
	s.mu.Unlock()

	logger.Info("pipeline session reset", "posts", posts, "files", files)
	s.publish()
	return nil
}

// SetSelected replaces the metric selection used by Snapshot.
func (s *Session) SetSelected(selected domain.FieldSet) {
	if len(selected) == 0 {
		return
	}
	s.mu.Lock()
	s.selected = copySet(selected)
	s.mu.Unlock()
}

// Selected returns the current metric selection.
func (s *Session) Selected() domain.FieldSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySet(s.selected)
}

// Engine returns the aggregation engine.
func (s *Session) Engine() *aggregate.Engine { return s.opts.Engine }

// Posts returns a copy of the post table in processing order.
func (s *Session) Posts() []domain.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Post(nil), s.posts...)
}

// Trend is the monthly series of metric for one account.
func (s *Session) Trend(key domain.AccountKey, metric domain.Field) ([]aggregate.TrendPoint, error) {
	return s.opts.Engine.MonthlyTrend(s.Posts(), key, metric)
}

func (s *Session) runBatch(t *Ticket) (*BatchResult, error) {
	select {
	case s.run <- struct{}{}:
	case <-t.ctx.Done():
		return &BatchResult{BatchID: t.ID, Files: []domain.FileProvenance{}, DuplicateIDs: []string{}, Cancelled: true}, ErrCancelled
	}
	defer func() { <-s.run }()

	b := t.batch
	res := &BatchResult{
		BatchID:      t.ID,
		Files:        make([]domain.FileProvenance, 0, len(b.Files)),
		DuplicateIDs: []string{},
		StartedAt:    time.Now(),
	}
	if t.ctx.Err() != nil {
		res.Cancelled = true
		return res, ErrCancelled
	}
	if b.OnStart != nil {
		b.OnStart()
	}
	s.SetSelected(b.Selected)

	scope := b.Scope
	if scope == "" {
		scope = s.opts.Scope
	}

	for i, in := range b.Files {
		if t.ctx.Err() != nil || s.ctx.Err() != nil {
			res.Cancelled = true
			s.skipRest(res, b.Files[i:], "batch cancelled")
			break
		}
		prov, abort := s.processFile(in, scope, b.AbortOnMissingRequired, res)
		res.Files = append(res.Files, prov)
		if b.OnFile != nil {
			b.OnFile(prov)
		}
		if abort != nil {
			res.Aborted = abort
			s.skipRest(res, b.Files[i+1:], "batch aborted: "+abort.Error())
			break
		}
	}
	res.Duration = time.Since(res.StartedAt)

	logger.Info("batch processed",
		"batch_id", res.BatchID,
		"files", len(res.Files),
		"rows", res.Rows,
		"duplicates", res.Duplicates,
		"posts", res.Posts,
		"failed", res.Failed(),
		"cancelled", res.Cancelled,
		"duration_ms", res.Duration.Milliseconds())

	if len(res.Files) > 0 {
		s.publish()
	}
	if res.Cancelled {
		return res, ErrCancelled
	}
	return res, nil
}

func (s *Session) skipRest(res *BatchResult, rest []Input, reason string) {
	for _, in := range rest {
		prov := domain.FileProvenance{
			FileID:      s.opts.NewID(),
			FileName:    in.Name,
			Status:      domain.FileSkipped,
			Error:       reason,
			ProcessedAt: time.Now(),
		}
		s.commitFile(prov)
		res.Files = append(res.Files, prov)
	}
}

// processFile runs one file. Nothing shared is touched until the file has
// parsed and its header has been resolved.
func (s *Session) processFile(in Input, scope dedupe.Scope, abortOnMissing bool, res *BatchResult) (domain.FileProvenance, *domain.MissingRequiredColumnsWarning) {
	prov := domain.FileProvenance{
		FileID:      s.opts.NewID(),
		FileName:    in.Name,
		ProcessedAt: time.Now(),
	}

	file, err := csvparse.ParseBytes(in.Data, in.Name)
	if err != nil {
		prov.Status = domain.FileFailed
		prov.Error = err.Error()
		logger.Warn("file rejected", "file", in.Name, "error", err)
		s.commitFile(prov)
		return prov, nil
	}

	table := s.opts.Mapping.Current()
	resolution := mapping.ResolveHeaders(file.Headers, table)
	prov.MissingRequired = resolution.MissingRequired
	prov.UnknownColumns = resolution.Unknown
	if len(prov.MissingRequired) == 0 {
		prov.MissingRequired = nil
	}
	if len(prov.UnknownColumns) == 0 {
		prov.UnknownColumns = nil
	}

	if w := resolution.Warning(in.Name); w != nil {
		if abortOnMissing {
			prov.Status = domain.FileSkipped
			prov.Error = w.Error()
			logger.Warn("file lacks required columns, aborting batch", "file", in.Name, "fields", fieldNames(w.Fields))
			s.commitFile(prov)
			return prov, w
		}
		logger.Warn("file lacks required columns", "file", in.Name, "fields", fieldNames(w.Fields))
	}

	mapper := mapping.NewRowMapper(file.Headers, table)
	rows := make([]domain.Row, 0, len(file.Records))
	for _, rec := range file.Records {
		row := mapper.Map(rec.Cells, domain.Origin{FileID: prov.FileID, FileName: in.Name, Line: rec.Line})
		if row.Len() == 0 {
			continue
		}
		rows = append(rows, row)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	registry := s.registry
	if scope == dedupe.ScopeFile {
		registry = dedupe.NewRegistry()
	}
	d := dedupe.Dedupe(rows, registry)

	loc := s.opts.Engine.Location()
	posts := make([]domain.Post, 0, len(d.Unique))
	accounts := make(map[domain.AccountKey]bool)
	var warnings []domain.DataQualityWarning
	for _, row := range d.Unique {
		r := s.resolver.Resolve(row)
		posts = append(posts, domain.Post{Row: row, AccountKey: r.Key, Origin: row.Origin(), Synthetic: r.Synthetic})
		accounts[r.Key] = true
		if r.Warning != nil {
			warnings = append(warnings, *r.Warning)
		}
		if raw := row.Text(domain.FieldPublishTime); raw != "" {
			if _, err := aggregate.ParseTime(raw, loc); err != nil {
				prov.Warnings++
			}
		}
	}

	prov.Status = domain.FileProcessed
	prov.Rows = len(rows)
	prov.Duplicates = d.DuplicateCount
	prov.Accounts = len(accounts)
	prov.Warnings += len(warnings)

	s.posts = append(s.posts, posts...)
	s.files = append(s.files, prov)
	s.warnings = append(s.warnings, warnings...)
	s.totalRows += len(rows)
	s.duplicates += d.DuplicateCount
	for _, id := range d.DuplicateIDs {
		if !s.dupReported[id] {
			s.dupReported[id] = true
			s.duplicateIDs = append(s.duplicateIDs, id)
		}
	}

	res.Rows += len(rows)
	res.Duplicates += d.DuplicateCount
	res.DuplicateIDs = append(res.DuplicateIDs, d.DuplicateIDs...)
	res.Posts += len(posts)

	logger.Debug("file processed",
		"file", in.Name,
		"rows", len(rows),
		"duplicates", d.DuplicateCount,
		"accounts", len(accounts),
		"scope", string(scope))
	return prov, nil
}

func (s *Session) commitFile(prov domain.FileProvenance) {
	s.mu.Lock()
	s.files = append(s.files, prov)
	s.mu.Unlock()
}

func (s *Session) publish() {
	if s.opts.OnSnapshot == nil {
		return
	}
	s.opts.OnSnapshot(s.Snapshot(nil))
}

func copySet(in domain.FieldSet) domain.FieldSet {
	out := make(domain.FieldSet, len(in))
	for f := range in {
		out[f] = struct{}{}
	}
	return out
}

func fieldNames(fields []domain.Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ",")
}

