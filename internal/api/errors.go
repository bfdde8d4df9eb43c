package api

import (
	"errors"
	"net/http"

	"github.com/cgillinger/facebook-stats/internal/domain"
	"github.com/cgillinger/facebook-stats/internal/jobs"
	"github.com/cgillinger/facebook-stats/internal/mapping"
	"github.com/cgillinger/facebook-stats/internal/pipeline"
	"github.com/cgillinger/facebook-stats/internal/pkg/httputil"
	"github.com/cgillinger/facebook-stats/internal/storage"
)

// conflictDetails is the client-facing shape of a MappingConflictError.
type conflictDetails struct {
	Kind     domain.ConflictKind `json:"kind"`
	External string              `json:"external,omitempty"`
	Field    domain.Field        `json:"field,omitempty"`
	Existing domain.Field        `json:"existing,omitempty"`
}

// respondServiceError maps errors from the session, mapping service and
// stores to status codes. Anything unrecognized is logged and hidden.
func respondServiceError(w http.ResponseWriter, err error) {
	var conflict *domain.MappingConflictError
	switch {
	case errors.As(err, &conflict):
		status := http.StatusConflict
		if conflict.Kind == domain.ConflictUnknownField || conflict.Kind == domain.ConflictBlankName {
			status = http.StatusUnprocessableEntity
		}
		httputil.ErrorWithCode(w, status, "mapping_conflict", conflict.Error(), conflictDetails{
			Kind:     conflict.Kind,
			External: conflict.External,
			Field:    conflict.Field,
			Existing: conflict.Existing,
		})
	case errors.Is(err, mapping.ErrLocked):
		httputil.ErrorWithCode(w, http.StatusLocked, "locked", err.Error(), nil)
	case errors.Is(err, pipeline.ErrQueueFull):
		httputil.ErrorWithCode(w, http.StatusServiceUnavailable, "queue_full", err.Error(), nil)
	case errors.Is(err, pipeline.ErrStopped):
		httputil.ErrorWithCode(w, http.StatusServiceUnavailable, "stopped", err.Error(), nil)
	case errors.Is(err, jobs.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		httputil.NotFound(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
