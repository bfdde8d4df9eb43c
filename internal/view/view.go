// Package view shapes summaries and posts for display: sorting, paging,
// totals and links back to the pages.
package view

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cgillinger/facebook-stats/internal/aggregate"
	"github.com/cgillinger/facebook-stats/internal/domain"
	"github.com/cgillinger/facebook-stats/internal/textnorm"
)

const facebookBase = "https://www.facebook.com/"

// Sort keys that are not fields.
const (
	SortName        = "name"
	SortPostCount   = "post_count"
	SortPostsPerDay = "posts_per_day"
)

// TotalFields are the account-view columns that get a totals row. Reach
// and averages are per-account figures and are not summed.
var TotalFields = []domain.Field{
	domain.FieldViews,
	domain.FieldLikes,
	domain.FieldComments,
	domain.FieldShares,
	domain.FieldEngagementTotal,
	domain.FieldTotalClicks,
	domain.FieldOtherClicks,
	domain.FieldLinkClicks,
	domain.FieldPostCount,
}

// Direction of a sort.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection defaults to ascending.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Desc)) {
		return Desc
	}
	return Asc
}

// AccountRow is one line of the account view.
type AccountRow struct {
	Key       domain.AccountKey        `json:"account_key"`
	Name      string                   `json:"account_name"`
	AccountID string                   `json:"account_id,omitempty"`
	PageURL   string                   `json:"page_url,omitempty"`
	Values    map[domain.Field]float64 `json:"values"`
	PostCount int                      `json:"post_count"`
	PerDay    float64                  `json:"posts_per_day"`
	Span      *domain.DateRange        `json:"span,omitempty"`
}

// PostRow is one line of the post view.
type PostRow struct {
	AccountKey  domain.AccountKey `json:"account_key"`
	AccountName string            `json:"account_name"`
	Fields      domain.Row        `json:"fields"`
	URL         string            `json:"url,omitempty"`
	Synthetic   bool              `json:"synthetic,omitempty"`
	Origin      domain.Origin     `json:"origin"`
}

// PageURL links to a page by id.
func PageURL(accountID string) string {
	if accountID == "" {
		return ""
	}
	return facebookBase + url.PathEscape(accountID)
}

// PostURL prefers the exported permalink and falls back to the page/post
// path, or the bare post id when the page is unknown.
func PostURL(row domain.Row) string {
	if link := row.Text(domain.FieldPermalink); link != "" {
		return link
	}
	postID := row.Text(domain.FieldPostID)
	if postID == "" {
		return ""
	}
	if accountID := row.Text(domain.FieldAccountID); accountID != "" {
		return facebookBase + url.PathEscape(accountID) + "/posts/" + url.PathEscape(postID)
	}
	return facebookBase + url.PathEscape(postID)
}

// Accounts converts summaries to rows in the given order.
func Accounts(summaries []domain.AccountSummary) []AccountRow {
	rows := make([]AccountRow, 0, len(summaries))
	for _, s := range summaries {
		row := AccountRow{
			Key:       s.Key,
			Name:      s.Name,
			AccountID: s.AccountID,
			PageURL:   PageURL(s.AccountID),
			Values:    s.Values,
			PostCount: s.PostCount,
			PerDay:    s.PostsPerDay,
		}
		if s.FirstPublished != nil {
			row.Span = &domain.DateRange{Start: s.FirstPublished, End: s.LastPublished}
		}
		rows = append(rows, row)
	}
	return rows
}

// Posts converts posts to rows, naming each after its account summary so a
// renamed page shows one name.
func Posts(posts []domain.Post, summaries []domain.AccountSummary) []PostRow {
	names := make(map[domain.AccountKey]string, len(summaries))
	for _, s := range summaries {
		names[s.Key] = s.Name
	}
	rows := make([]PostRow, 0, len(posts))
	for _, p := range posts {
		name, ok := names[p.AccountKey]
		if !ok {
			name = p.Row.Text(domain.FieldAccountName)
		}
		rows = append(rows, PostRow{
			AccountKey:  p.AccountKey,
			AccountName: name,
			Fields:      p.Row,
			URL:         PostURL(p.Row),
			Synthetic:   p.Synthetic,
			Origin:      p.Origin,
		})
	}
	return rows
}

// Totals sums TotalFields over rows, for the selected fields only.
func Totals(summaries []domain.AccountSummary, selected domain.FieldSet) map[domain.Field]float64 {
	all := aggregate.Totals(summaries)
	out := make(map[domain.Field]float64)
	for _, f := range TotalFields {
		if !selected.Has(f) {
			continue
		}
		if v, ok := all[f]; ok {
			out[f] = v
		}
	}
	return out
}

// AccountNames returns the distinct account names, sorted.
func AccountNames(summaries []domain.AccountSummary) []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range summaries {
		if s.Name == "" || seen[s.Name] {
			continue
		}
		seen[s.Name] = true
		names = append(names, s.Name)
	}
	sort.Slice(names, func(i, j int) bool { return textnorm.Normalize(names[i]) < textnorm.Normalize(names[j]) })
	return names
}

// SortAccounts sorts rows in place, stably. Rows without a value for the
// key go last in either direction.
func SortAccounts(rows []AccountRow, key string, dir Direction) {
	if key == "" {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		switch key {
		case SortName, string(domain.FieldAccountName):
			return less(textnorm.Normalize(rows[i].Name), textnorm.Normalize(rows[j].Name), dir)
		case string(domain.FieldAccountID):
			return less(rows[i].AccountID, rows[j].AccountID, dir)
		}
		a, aok := accountValue(rows[i], key)
		b, bok := accountValue(rows[j], key)
		return lessOptional(a, aok, b, bok, dir)
	})
}

func accountValue(r AccountRow, key string) (float64, bool) {
	switch key {
	case SortPostCount:
		return float64(r.PostCount), true
	case SortPostsPerDay:
		return r.PerDay, true
	}
	v, ok := r.Values[domain.Field(key)]
	return v, ok
}

// SortPosts sorts rows in place, stably. Metrics compare numerically,
// publish_time chronologically in loc and other fields by normalized text.
func SortPosts(rows []PostRow, key string, dir Direction, loc *time.Location) {
	if key == "" {
		return
	}
	f := domain.Field(key)
	if key == SortName {
		f = domain.FieldAccountName
	}
	sort.SliceStable(rows, func(i, j int) bool {
		switch {
		case f == domain.FieldAccountName:
			return less(textnorm.Normalize(rows[i].AccountName), textnorm.Normalize(rows[j].AccountName), dir)
		case f == domain.FieldPublishTime:
			a, aerr := aggregate.ParseTime(rows[i].Fields.Text(f), loc)
			b, berr := aggregate.ParseTime(rows[j].Fields.Text(f), loc)
			return lessOptional(float64(a.UnixNano()), aerr == nil, float64(b.UnixNano()), berr == nil, dir)
		case f.IsMetric():
			a, aok := rows[i].Fields.Number(f)
			b, bok := rows[j].Fields.Number(f)
			return lessOptional(a, aok, b, bok, dir)
		}
		a, b := rows[i].Fields.Text(f), rows[j].Fields.Text(f)
		if a == "" || b == "" {
			return a != "" && b == ""
		}
		return less(textnorm.Normalize(a), textnorm.Normalize(b), dir)
	})
}

func less[T string | float64](a, b T, dir Direction) bool {
	if dir == Desc {
		return a > b
	}
	return a < b
}

func lessOptional(a float64, aok bool, b float64, bok bool, dir Direction) bool {
	if !aok || !bok {
		return aok && !bok
	}
	return less(a, b, dir)
}

// Page returns the bounds of a 1-based page. limit <= 0 means everything.
func Page(total, page, limit int) (start, end int) {
	if limit <= 0 {
		return 0, total
	}
	if page < 1 {
		page = 1
	}
	start = (page - 1) * limit
	if start > total {
		start = total
	}
	end = start + limit
	if end > total {
		end = total
	}
	return start, end
}

// FilterPosts keeps the posts of one account; an empty key keeps all.
func FilterPosts(posts []domain.Post, key domain.AccountKey) []domain.Post {
	if key == "" {
		return posts
	}
	out := make([]domain.Post, 0, len(posts))
	for _, p := range posts {
		if p.AccountKey == key {
			out = append(out, p)
		}
	}
	return out
}
