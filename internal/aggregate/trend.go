package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/cgillinger/facebook-stats/internal/domain"
)

// TrendPoint is one month of a single account's metric.
type TrendPoint struct {
	Month string  `json:"month"` // YYYY-MM
	Value float64 `json:"value"`
	Posts int     `json:"posts"`
}

// MonthlyTrend buckets the posts of one account by local publish month and
// aggregates metric per bucket with the same rules as Aggregate. Posts
// without a parseable publish time are skipped. Months without posts are
// not emitted.
func (e *Engine) MonthlyTrend(posts []domain.Post, key domain.AccountKey, metric domain.Field) ([]TrendPoint, error) {
	if !metric.IsMetric() {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}

	buckets := make(map[string][]domain.Post)
	for _, p := range posts {
		if p.AccountKey != key {
			continue
		}
		t, err := ParseTime(p.Row.Text(domain.FieldPublishTime), e.loc)
		if err != nil {
			continue
		}
		m := monthKey(t.In(e.loc))
		buckets[m] = append(buckets[m], p)
	}

	months := make([]string, 0, len(buckets))
	for m := range buckets {
		months = append(months, m)
	}
	sort.Strings(months)

	selected := domain.NewFieldSet(metric)
	points := make([]TrendPoint, 0, len(months))
	for _, m := range months {
		report := e.Aggregate(buckets[m], selected)
		s := report.Summaries[0]
		v, _ := s.Value(metric)
		points = append(points, TrendPoint{Month: m, Value: v, Posts: s.PostCount})
	}
	return points, nil
}

func monthKey(t time.Time) string {
	return t.Format("2006-01")
}
