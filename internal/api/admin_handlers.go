package api

import (
	"errors"
	"net/http"

	"github.com/cgillinger/facebook-stats/internal/inbox"
	"github.com/cgillinger/facebook-stats/internal/pkg/httputil"
)

// HandleStorageStats reports document counts and sizes per category.
//
//	GET /api/storage/stats
func (h *Handlers) HandleStorageStats(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		httputil.ErrorWithCode(w, http.StatusServiceUnavailable, "not_configured", "storage is not configured", nil)
		return
	}
	stats, err := h.storage.Stats(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, stats)
}

// HandleInboxTrigger polls the inbox now and returns the run.
//
//	POST /api/inbox/trigger
func (h *Handlers) HandleInboxTrigger(w http.ResponseWriter, r *http.Request) {
	if h.inbox == nil {
		httputil.ErrorWithCode(w, http.StatusServiceUnavailable, "not_configured", "inbox is not enabled", nil)
		return
	}
	res, err := h.inbox.ManualTrigger(r.Context())
	switch {
	case errors.Is(err, inbox.ErrBusy):
		httputil.Conflict(w, err.Error())
		return
	case err != nil && res == nil:
		respondServiceError(w, err)
		return
	}
	if res == nil {
		httputil.OK(w, map[string]interface{}{"files": []string{}, "message": "inbox is empty"})
		return
	}
	httputil.OK(w, res)
}

// HandleInboxStatus reports the poller state and its latest run.
//
//	GET /api/inbox/status
func (h *Handlers) HandleInboxStatus(w http.ResponseWriter, r *http.Request) {
	if h.inbox == nil {
		httputil.OK(w, map[string]interface{}{"enabled": false})
		return
	}
	status := map[string]interface{}{
		"enabled":     true,
		"running":     h.inbox.IsRunning(),
		"last_result": h.inbox.LastResult(),
	}
	if last := h.inbox.LastRunAt(); !last.IsZero() {
		status["last_run_at"] = last
	}
	httputil.OK(w, status)
}
