package api

import (
	"net/http"

	"github.com/cgillinger/facebook-stats/internal/domain"
	"github.com/cgillinger/facebook-stats/internal/mapping"
	"github.com/cgillinger/facebook-stats/internal/pkg/httputil"
)

type renameRequest struct {
	Field   domain.Field `json:"field"`
	OldName string       `json:"old_name"`
	NewName string       `json:"new_name"`
}

type bindingRequest struct {
	Field    domain.Field `json:"field"`
	External string       `json:"external"`
}

type exclusionRequest struct {
	External string `json:"external"`
}

// HandleGetMappings returns the current mapping table.
//
//	GET /api/mappings
func (h *Handlers) HandleGetMappings(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, h.mappings.Current())
}

// HandleRename renames one external name of a field.
//
//	PUT /api/mappings/rename
func (h *Handlers) HandleRename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	h.applyEdit(w, r, mapping.Rename(req.Field, req.OldName, req.NewName))
}

// HandleBind adds an external name to a field.
//
//	POST /api/mappings/bindings
func (h *Handlers) HandleBind(w http.ResponseWriter, r *http.Request) {
	var req bindingRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	h.applyEdit(w, r, mapping.Bind(req.Field, req.External))
}

// HandleUnbind removes an external name from a field.
//
//	DELETE /api/mappings/bindings
func (h *Handlers) HandleUnbind(w http.ResponseWriter, r *http.Request) {
	var req bindingRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	h.applyEdit(w, r, mapping.Unbind(req.Field, req.External))
}

// HandleExclude puts a column name on the exclusion list.
//
//	POST /api/mappings/exclusions
func (h *Handlers) HandleExclude(w http.ResponseWriter, r *http.Request) {
	var req exclusionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	h.applyEdit(w, r, mapping.Exclude(req.External))
}

// HandleInclude takes a column name off the exclusion list.
//
//	DELETE /api/mappings/exclusions
func (h *Handlers) HandleInclude(w http.ResponseWriter, r *http.Request) {
	var req exclusionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	h.applyEdit(w, r, mapping.Include(req.External))
}

// HandleSetRequired replaces the required field set.
//
//	PUT /api/mappings/required {"fields": [...]}
func (h *Handlers) HandleSetRequired(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fields []domain.Field `json:"fields"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	h.applyEdit(w, r, mapping.SetRequired(req.Fields))
}

// HandleResetMappings restores the built-in table.
//
//	POST /api/mappings/reset
func (h *Handlers) HandleResetMappings(w http.ResponseWriter, r *http.Request) {
	table, err := h.mappings.ResetToDefaults(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, table)
}

// HandleValidateHeaders resolves a header row against the current table
// without processing anything.
//
//	POST /api/mappings/validate {"headers": [...]}
func (h *Handlers) HandleValidateHeaders(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Headers []string `json:"headers"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.Headers) == 0 {
		httputil.BadRequest(w, "headers are required")
		return
	}
	httputil.OK(w, mapping.ResolveHeaders(req.Headers, h.mappings.Current()))
}

func (h *Handlers) applyEdit(w http.ResponseWriter, r *http.Request, edit mapping.Edit) {
	table, err := h.mappings.Edit(r.Context(), edit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, table)
}
