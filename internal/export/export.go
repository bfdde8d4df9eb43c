// Package export writes the account and post views as CSV or Excel sheets,
// headed by the mapping table's display names.
package export

import (
	"io"
	"strconv"

	"github.com/cgillinger/facebook-stats/internal/domain"
	"github.com/cgillinger/facebook-stats/internal/mapping"
	"github.com/cgillinger/facebook-stats/internal/view"
)

// TotalLabel heads the totals row of the account export.
const TotalLabel = "Totalt"

// postColumns are the descriptive columns of the post export.
var postColumns = []domain.Field{
	domain.FieldPublishTime,
	domain.FieldPostType,
	domain.FieldTitle,
	domain.FieldDescription,
}

// Columns orders the selected metrics by the table's display groups.
// Selected metrics that no group mentions follow in lexical order.
func Columns(t *mapping.Table, selected domain.FieldSet) []domain.Field {
	var out []domain.Field
	seen := make(map[domain.Field]bool)
	for _, g := range t.Groups {
		for _, f := range g.Fields {
			if selected.Has(f) && f.IsMetric() && !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	for _, f := range selected.Sorted() {
		if f.IsMetric() && !seen[f] {
			out = append(out, f)
		}
	}
	return out
}

// AccountsSheet lays out one line per account followed by a totals row.
// Reach and rate columns are left blank in the totals row.
func AccountsSheet(t *mapping.Table, rows []view.AccountRow, totals map[domain.Field]float64, selected domain.FieldSet) *Sheet {
	cols := Columns(t, selected)
	sh := &Sheet{Header: []string{t.DisplayName(domain.FieldAccountName), t.DisplayName(domain.FieldAccountID), "URL"}}
	for _, f := range cols {
		sh.Header = append(sh.Header, t.DisplayName(f))
	}

	for _, r := range rows {
		line := []Cell{Text(r.Name), Text(r.AccountID), Text(r.PageURL)}
		for _, f := range cols {
			line = append(line, accountCell(r, f))
		}
		sh.Rows = append(sh.Rows, line)
	}

	line := []Cell{Text(TotalLabel), {}, {}}
	for _, f := range cols {
		v, ok := totals[f]
		line = append(line, number(v, ok))
	}
	sh.Rows = append(sh.Rows, line)
	return sh
}

// Accounts writes AccountsSheet as CSV.
func Accounts(w io.Writer, t *mapping.Table, rows []view.AccountRow, totals map[domain.Field]float64, selected domain.FieldSet) error {
	return AccountsSheet(t, rows, totals, selected).Write(w, FormatCSV)
}

func accountCell(r view.AccountRow, f domain.Field) Cell {
	switch f {
	case domain.FieldPostCount:
		return Number(float64(r.PostCount))
	case domain.FieldPostsPerDay:
		return Number(r.PerDay)
	}
	v, ok := r.Values[f]
	return number(v, ok)
}

// PostsSheet lays out one line per post. Only per-post metrics are included;
// the account-level rates have no meaning for a single post.
func PostsSheet(t *mapping.Table, rows []view.PostRow, selected domain.FieldSet) *Sheet {
	var metrics []domain.Field
	for _, f := range Columns(t, selected) {
		if f.IsAdditive() || f == domain.FieldEngagementTotal {
			metrics = append(metrics, f)
		}
	}

	sh := &Sheet{Header: []string{t.DisplayName(domain.FieldAccountName)}}
	for _, f := range postColumns {
		sh.Header = append(sh.Header, t.DisplayName(f))
	}
	sh.Header = append(sh.Header, t.DisplayName(domain.FieldPermalink))
	for _, f := range metrics {
		sh.Header = append(sh.Header, t.DisplayName(f))
	}

	for _, r := range rows {
		line := []Cell{Text(r.AccountName)}
		for _, f := range postColumns {
			line = append(line, Text(r.Fields.Text(f)))
		}
		line = append(line, Text(r.URL))
		for _, f := range metrics {
			line = append(line, postCell(r.Fields, f))
		}
		sh.Rows = append(sh.Rows, line)
	}
	return sh
}

// Posts writes PostsSheet as CSV.
func Posts(w io.Writer, t *mapping.Table, rows []view.PostRow, selected domain.FieldSet) error {
	return PostsSheet(t, rows, selected).Write(w, FormatCSV)
}

func postCell(row domain.Row, f domain.Field) Cell {
	if f != domain.FieldEngagementTotal {
		v, ok := row.Number(f)
		return number(v, ok)
	}
	var sum float64
	found := false
	for _, in := range domain.EngagementInputs {
		if v, ok := row.Number(in); ok {
			sum += v
			found = true
		}
	}
	return number(sum, found)
}

func number(v float64, ok bool) Cell {
	if !ok {
		return Cell{}
	}
	return Number(v)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
