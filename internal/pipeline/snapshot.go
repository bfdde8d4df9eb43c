package pipeline

import (
	"time"

	"github.com/cgillinger/facebook-stats/internal/domain"
)

// Snapshot is the session state aggregated for one metric selection.
type Snapshot struct {
	Summaries   []domain.AccountSummary `json:"summaries"`
	Posts       []domain.Post           `json:"posts"`
	Stats       domain.Stats            `json:"stats"`
	Selected    []domain.Field          `json:"selected"`
	GeneratedAt time.Time               `json:"generated_at"`
}

// Snapshot aggregates the current post table. An empty selected uses the
// session's selection. Summaries are recomputed in full on every call.
func (s *Session) Snapshot(selected domain.FieldSet) *Snapshot {
	s.mu.RLock()
	posts := append([]domain.Post(nil), s.posts...)
	files := append([]domain.FileProvenance(nil), s.files...)
	warnings := append([]domain.DataQualityWarning(nil), s.warnings...)
	stats := domain.Stats{
		TotalRows:    s.totalRows,
		Duplicates:   s.duplicates,
		DuplicateIDs: append([]string{}, s.duplicateIDs...),
	}
	if len(selected) == 0 {
		selected = copySet(s.selected)
	}
	s.mu.RUnlock()

	report := s.opts.Engine.Aggregate(posts, selected)
	warnings = append(warnings, report.Warnings...)

	stats.UniquePostIDs = uniquePostIDs(posts)
	stats.UniquePosts = len(posts)
	stats.Accounts = len(report.Summaries)
	stats.DateRange = report.DateRange
	stats.Files = files
	if stats.Files == nil {
		stats.Files = []domain.FileProvenance{}
	}
	stats.Warnings = warnings
	stats.Flagged = flaggedRows(warnings)

	if posts == nil {
		posts = []domain.Post{}
	}
	return &Snapshot{
		Summaries:   report.Summaries,
		Posts:       posts,
		Stats:       stats,
		Selected:    selected.Sorted(),
		GeneratedAt: time.Now().UTC(),
	}
}

func uniquePostIDs(posts []domain.Post) int {
	ids := make(map[string]bool, len(posts))
	for _, p := range posts {
		if id := p.Row.Text(domain.FieldPostID); id != "" {
			ids[id] = true
		}
	}
	return len(ids)
}

// flaggedRows counts rows carrying at least one warning.
func flaggedRows(warnings []domain.DataQualityWarning) int {
	rows := make(map[domain.Origin]bool, len(warnings))
	for _, w := range warnings {
		rows[w.Origin] = true
	}
	return len(rows)
}
