package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cgillinger/facebook-stats/internal/domain"
	"github.com/cgillinger/facebook-stats/internal/export"
	"github.com/cgillinger/facebook-stats/internal/pipeline"
	"github.com/cgillinger/facebook-stats/internal/pkg/httputil"
	"github.com/cgillinger/facebook-stats/internal/view"
	"github.com/go-chi/chi/v5"
)

// AccountsResponse is one page of the account view.
type AccountsResponse struct {
	Accounts []view.AccountRow        `json:"accounts"`
	Totals   map[domain.Field]float64 `json:"totals"`
	Selected []domain.Field           `json:"selected"`
	Total    int                      `json:"total"`
	Page     int                      `json:"page"`
	Limit    int                      `json:"limit"`
}

// PostsResponse is one page of the post view.
type PostsResponse struct {
	Posts []view.PostRow `json:"posts"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// snapshot aggregates the session for the request's ?metrics, falling back
// to the session selection.
func (h *Handlers) snapshot(w http.ResponseWriter, r *http.Request) (*pipeline.Snapshot, domain.FieldSet, bool) {
	var selected domain.FieldSet
	if names := httputil.QueryList(r, "metrics"); len(names) > 0 {
		set, err := parseMetrics(names)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return nil, nil, false
		}
		selected = set
	}
	snap := h.session.Snapshot(selected)
	if len(selected) == 0 {
		selected = domain.NewFieldSet(snap.Selected...)
	}
	return snap, selected, true
}

func (h *Handlers) accountRows(snap *pipeline.Snapshot, r *http.Request) []view.AccountRow {
	rows := view.Accounts(snap.Summaries)
	view.SortAccounts(rows, r.URL.Query().Get("sort"), view.ParseDirection(r.URL.Query().Get("dir")))
	return rows
}

func (h *Handlers) postRows(snap *pipeline.Snapshot, r *http.Request) []view.PostRow {
	posts := view.FilterPosts(snap.Posts, domain.AccountKey(r.URL.Query().Get("account")))
	rows := view.Posts(posts, snap.Summaries)
	view.SortPosts(rows, r.URL.Query().Get("sort"), view.ParseDirection(r.URL.Query().Get("dir")), h.session.Engine().Location())
	return rows
}

// HandleAccounts returns the sorted, paged account view with its totals.
//
//	GET /api/accounts?sort=&dir=&page=&limit=&metrics=
func (h *Handlers) HandleAccounts(w http.ResponseWriter, r *http.Request) {
	snap, selected, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	rows := h.accountRows(snap, r)
	page, limit := httputil.QueryInt(r, "page", 1), httputil.QueryInt(r, "limit", 0)
	start, end := view.Page(len(rows), page, limit)

	httputil.OK(w, AccountsResponse{
		Accounts: rows[start:end],
		Totals:   view.Totals(snap.Summaries, selected),
		Selected: snap.Selected,
		Total:    len(rows),
		Page:     page,
		Limit:    limit,
	})
}

// HandleAccountNames lists the distinct account names.
//
//	GET /api/accounts/names
func (h *Handlers) HandleAccountNames(w http.ResponseWriter, r *http.Request) {
	names := view.AccountNames(h.session.Snapshot(nil).Summaries)
	if names == nil {
		names = []string{}
	}
	httputil.OK(w, map[string][]string{"names": names})
}

// HandleExportAccounts writes the whole sorted account view as CSV or
// Excel. ?format overrides the extension.
//
//	GET /api/accounts/export.csv
//	GET /api/accounts/export.xlsx
func (h *Handlers) HandleExportAccounts(w http.ResponseWriter, r *http.Request) {
	format, ok := exportFormat(w, r)
	if !ok {
		return
	}
	snap, selected, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	rows := h.accountRows(snap, r)
	sheet := export.AccountsSheet(h.mappings.Current(), rows, view.Totals(snap.Summaries, selected), selected)
	writeExport(w, "accounts", format, sheet)
}

// HandleTrend returns one account's monthly series for a metric.
//
//	GET /api/accounts/{key}/trend?metric=
func (h *Handlers) HandleTrend(w http.ResponseWriter, r *http.Request) {
	key := domain.AccountKey(chi.URLParam(r, "key"))
	metric := domain.Field(r.URL.Query().Get("metric"))
	if metric == "" {
		metric = domain.FieldViews
	}
	if !metric.IsMetric() {
		httputil.BadRequest(w, fmt.Sprintf("unknown metric %q", metric))
		return
	}

	known := false
	for _, p := range h.session.Posts() {
		if p.AccountKey == key {
			known = true
			break
		}
	}
	if !known {
		httputil.NotFound(w, "account not found")
		return
	}
	points, err := h.session.Trend(key, metric)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.OK(w, map[string]interface{}{
		"account_key": key,
		"metric":      metric,
		"points":      points,
	})
}

// HandlePosts returns the sorted, paged post view.
//
//	GET /api/posts?sort=&dir=&page=&limit=&account=
func (h *Handlers) HandlePosts(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot(nil)
	rows := h.postRows(snap, r)
	page, limit := httputil.QueryInt(r, "page", 1), httputil.QueryInt(r, "limit", 50)
	start, end := view.Page(len(rows), page, limit)

	httputil.OK(w, PostsResponse{
		Posts: rows[start:end],
		Total: len(rows),
		Page:  page,
		Limit: limit,
	})
}

// HandleExportPosts writes the whole sorted post view as CSV or Excel.
//
//	GET /api/posts/export.csv
//	GET /api/posts/export.xlsx
func (h *Handlers) HandleExportPosts(w http.ResponseWriter, r *http.Request) {
	format, ok := exportFormat(w, r)
	if !ok {
		return
	}
	snap, selected, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	rows := h.postRows(snap, r)
	writeExport(w, "posts", format, export.PostsSheet(h.mappings.Current(), rows, selected))
}

// HandleStats returns the processing statistics of the session.
//
//	GET /api/stats
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot(nil)
	httputil.OK(w, map[string]interface{}{
		"stats":        snap.Stats,
		"queue":        h.session.QueueLen(),
		"selected":     snap.Selected,
		"generated_at": snap.GeneratedAt,
	})
}

// HandleGetMetrics returns the session's metric selection.
//
//	GET /api/metrics
func (h *Handlers) HandleGetMetrics(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string][]domain.Field{"selected": h.session.Selected().Sorted()})
}

// HandleSetMetrics replaces the session's metric selection.
//
//	PUT /api/metrics {"metrics": [...]}
func (h *Handlers) HandleSetMetrics(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Metrics []string `json:"metrics"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	set, err := parseMetrics(req.Metrics)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if len(set) == 0 {
		httputil.BadRequest(w, "at least one metric is required")
		return
	}
	h.session.SetSelected(set)
	httputil.OK(w, map[string][]domain.Field{"selected": set.Sorted()})
}

func exportFormat(w http.ResponseWriter, r *http.Request) (export.Format, bool) {
	if q := r.URL.Query().Get("format"); q != "" {
		format, err := export.ParseFormat(q)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return "", false
		}
		return format, true
	}
	if strings.HasSuffix(r.URL.Path, ".xlsx") {
		return export.FormatXLSX, true
	}
	return export.FormatCSV, true
}

// writeExport renders the whole file before any header is sent.
func writeExport(w http.ResponseWriter, name string, format export.Format, sheet *export.Sheet) {
	var buf bytes.Buffer
	if err := sheet.Write(&buf, format); err != nil {
		httputil.InternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s-%s.%s"`, name, time.Now().UTC().Format("20060102"), format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
