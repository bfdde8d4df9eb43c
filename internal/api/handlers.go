// Package api serves the pipeline session, the mapping table and the
// supporting stores over HTTP.
package api

import (
	"context"
	"sync"
	"time"

	"github.com/cgillinger/facebook-stats/internal/inbox"
	"github.com/cgillinger/facebook-stats/internal/jobs"
	"github.com/cgillinger/facebook-stats/internal/mapping"
	"github.com/cgillinger/facebook-stats/internal/pipeline"
	"github.com/cgillinger/facebook-stats/internal/storage"
)

const defaultMaxUpload = 64 << 20

// Inbox is the slice of the inbox poller the API exposes.
type Inbox interface {
	ManualTrigger(ctx context.Context) (*inbox.RunResult, error)
	IsRunning() bool
	LastRunAt() time.Time
	LastResult() *inbox.RunResult
}

// Handlers contains all HTTP handlers
type Handlers struct {
	session  *pipeline.Session
	mappings *mapping.Service
	jobs     jobs.Tracker
	storage  storage.Backend
	inbox    Inbox

	maxUpload      int64
	abortOnMissing bool

	mu      sync.Mutex
	tickets map[string]*pipeline.Ticket
}

// NewHandlers creates a new Handlers instance. A nil tracker keeps job
// records in memory for a day.
func NewHandlers(session *pipeline.Session, mappings *mapping.Service, tracker jobs.Tracker) *Handlers {
	if tracker == nil {
		tracker = jobs.NewMemoryTracker(24 * time.Hour)
	}
	return &Handlers{
		session:   session,
		mappings:  mappings,
		jobs:      tracker,
		maxUpload: defaultMaxUpload,
		tickets:   make(map[string]*pipeline.Ticket),
	}
}

// SetStorage enables the storage stats endpoint.
func (h *Handlers) SetStorage(b storage.Backend) {
	h.storage = b
}

// SetInbox enables the inbox endpoints.
func (h *Handlers) SetInbox(i Inbox) {
	h.inbox = i
}

// SetMaxUploadBytes bounds the multipart upload body.
func (h *Handlers) SetMaxUploadBytes(n int64) {
	if n > 0 {
		h.maxUpload = n
	}
}

// SetAbortOnMissing sets the default for uploads that do not say.
func (h *Handlers) SetAbortOnMissing(v bool) {
	h.abortOnMissing = v
}
