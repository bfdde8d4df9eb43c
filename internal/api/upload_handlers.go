package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/cgillinger/facebook-stats/internal/dedupe"
	"github.com/cgillinger/facebook-stats/internal/domain"
	"github.com/cgillinger/facebook-stats/internal/jobs"
	"github.com/cgillinger/facebook-stats/internal/pipeline"
	"github.com/cgillinger/facebook-stats/internal/pkg/httputil"
	"github.com/cgillinger/facebook-stats/internal/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const multipartMemory = 32 << 20

// UploadResponse is returned by HandleUpload.
type UploadResponse struct {
	Job    jobs.Job              `json:"job"`
	Result *pipeline.BatchResult `json:"result,omitempty"`
}

// HandleUpload queues the uploaded files as one batch. With ?wait=true it
// answers once the batch has finished; otherwise it answers 202 with the job
// to poll.
//
//	POST /api/uploads (multipart: files, scope, metrics, abort_on_missing)
func (h *Handlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		httputil.BadRequest(w, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	batch, err := h.batchFromForm(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	names := make([]string, len(batch.Files))
	for i, f := range batch.Files {
		names[i] = f.Name
	}

	rec, err := jobs.Track(r.Context(), h.jobs, jobs.New(uuid.NewString(), names))
	if err != nil {
		httputil.InternalError(w, fmt.Errorf("create job: %w", err))
		return
	}
	rec.Hook(&batch)

	// The batch outlives the request unless the job is cancelled.
	ticket, err := h.session.Submit(context.WithoutCancel(r.Context()), batch)
	if err != nil {
		rec.Finish(nil, err)
		respondServiceError(w, err)
		return
	}
	finished := h.watch(ticket, rec)
	logger.Info("upload queued", "job_id", ticket.ID, "files", len(names))

	if !httputil.QueryBool(r, "wait") {
		httputil.Accepted(w, UploadResponse{Job: rec.Snapshot()})
		return
	}
	select {
	case <-finished:
	case <-r.Context().Done():
		return
	}
	res, _ := ticket.Result()
	httputil.OK(w, UploadResponse{Job: rec.Snapshot(), Result: res})
}

func (h *Handlers) batchFromForm(r *http.Request) (pipeline.Batch, error) {
	batch := pipeline.Batch{AbortOnMissingRequired: h.abortOnMissing}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return batch, errors.New("no files uploaded")
	}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return batch, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return batch, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		batch.Files = append(batch.Files, pipeline.Input{Name: fh.Filename, Data: data})
	}

	if v := strings.TrimSpace(r.FormValue("scope")); v != "" {
		scope, err := dedupe.ParseScope(v)
		if err != nil {
			return batch, err
		}
		batch.Scope = scope
	}
	if v := r.FormValue("metrics"); v != "" {
		set, err := parseMetrics(strings.Split(v, ","))
		if err != nil {
			return batch, err
		}
		batch.Selected = set
	}
	if v := strings.TrimSpace(r.FormValue("abort_on_missing")); v != "" {
		abort, err := strconv.ParseBool(v)
		if err != nil {
			return batch, fmt.Errorf("abort_on_missing: %w", err)
		}
		batch.AbortOnMissingRequired = abort
	}
	return batch, nil
}

// watch records the ticket's outcome and keeps it cancellable until then.
// The returned channel closes after the job record is final.
func (h *Handlers) watch(t *pipeline.Ticket, rec *jobs.Recorder) <-chan struct{} {
	h.mu.Lock()
	h.tickets[t.ID] = t
	h.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		<-t.Done()
		h.mu.Lock()
		delete(h.tickets, t.ID)
		h.mu.Unlock()

		res, err := t.Result()
		rec.Finish(res, err)
	}()
	return finished
}

// HandleGetJob returns one job.
//
//	GET /api/jobs/{id}
func (h *Handlers) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, job)
}

// HandleListJobs returns the most recent jobs first.
//
//	GET /api/jobs?limit=
func (h *Handlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	list, err := h.jobs.List(r.Context(), httputil.QueryInt(r, "limit", 20))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if list == nil {
		list = []*jobs.Job{}
	}
	httputil.OK(w, map[string]interface{}{"jobs": list})
}

// HandleCancelJob stops a queued or running job at its next file boundary.
//
//	POST /api/jobs/{id}/cancel
func (h *Handlers) HandleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.mu.Lock()
	t, ok := h.tickets[id]
	h.mu.Unlock()
	if !ok {
		httputil.ErrorWithCode(w, http.StatusConflict, "not_active", "job is not queued or running", nil)
		return
	}
	t.Cancel()
	httputil.Accepted(w, map[string]string{"id": id, "status": "cancelling"})
}

// HandleClearQueue drops every batch waiting behind the in-flight one.
//
//	DELETE /api/queue
func (h *Handlers) HandleClearQueue(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]int{"dropped": h.session.ClearQueue()})
}

// HandleResetSession forgets every processed file.
//
//	POST /api/session/reset
func (h *Handlers) HandleResetSession(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Reset(r.Context()); err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.NoContent(w)
}

func parseMetrics(names []string) (domain.FieldSet, error) {
	var clean []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			clean = append(clean, n)
		}
	}
	set, unknown := domain.ParseMetrics(clean)
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown metrics: %s", strings.Join(unknown, ", "))
	}
	return set, nil
}
