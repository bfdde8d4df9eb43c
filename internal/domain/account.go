package domain

import "time"

// AccountKey groups posts belonging to the same real-world account.
type AccountKey string

// AccountSummary is the per-account rollup. Values holds only the selected
// metrics; a metric with no contributing value is absent, not zero.
type AccountSummary struct {
	Key            AccountKey        `json:"account_key"`
	Name           string            `json:"account_name"`
	AccountID      string            `json:"account_id,omitempty"`
	Values         map[Field]float64 `json:"values"`
	PostCount      int               `json:"post_count"`
	PostsPerDay    float64           `json:"posts_per_day"`
	FirstPublished *time.Time        `json:"first_published,omitempty"`
	LastPublished  *time.Time        `json:"last_published,omitempty"`
}

// Value returns the materialized value of a metric.
func (s AccountSummary) Value(f Field) (float64, bool) {
	v, ok := s.Values[f]
	return v, ok
}
