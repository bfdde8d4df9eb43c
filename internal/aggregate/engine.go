// Package aggregate folds resolved posts into per-account summaries.
package aggregate

import (
	"fmt"
	"math"
	"time"

	"github.com/cgillinger/facebook-stats/internal/domain"
)

// Engine is stateless apart from its options and safe for concurrent use.
type Engine struct {
	loc *time.Location
}

// NewEngine aggregates calendar days in loc. A nil loc means the local zone.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{loc: loc}
}

// Location is the zone used to bucket publish times into days.
func (e *Engine) Location() *time.Location { return e.loc }

// Report is the result of one aggregation.
type Report struct {
	Summaries []domain.AccountSummary
	Warnings  []domain.DataQualityWarning
	DateRange domain.DateRange
}

type accumulator struct {
	summary    domain.AccountSummary
	sums       map[domain.Field]float64
	seen       map[domain.Field]bool
	reachSum   float64
	reachCount int
	first      *time.Time
	last       *time.Time
}

// Aggregate groups posts by account key, in order of first appearance, and
// materializes the selected metrics. Additive metrics are summed at full
// precision; average_reach and posts_per_day are derived per account and
// rounded. A metric with no contributing value is left out.
func (e *Engine) Aggregate(posts []domain.Post, selected domain.FieldSet) Report {
	var (
		order  []domain.AccountKey
		accs   = make(map[domain.AccountKey]*accumulator)
		report = Report{Summaries: []domain.AccountSummary{}, Warnings: []domain.DataQualityWarning{}}
	)

	for _, p := range posts {
		acc, ok := accs[p.AccountKey]
		if !ok {
			acc = &accumulator{
				summary: domain.AccountSummary{Key: p.AccountKey},
				sums:    make(map[domain.Field]float64),
				seen:    make(map[domain.Field]bool),
			}
			accs[p.AccountKey] = acc
			order = append(order, p.AccountKey)
		}
		if acc.summary.Name == "" {
			acc.summary.Name = p.Row.Text(domain.FieldAccountName)
		}
		if acc.summary.AccountID == "" && !p.Synthetic {
			acc.summary.AccountID = p.Row.Text(domain.FieldAccountID)
		}
		acc.summary.PostCount++

		for _, f := range domain.AdditiveFields {
			if v, ok := p.Row.Number(f); ok {
				acc.sums[f] += v
				acc.seen[f] = true
			}
		}
		if v, ok := p.Row.Number(domain.FieldReach); ok {
			acc.reachSum += v
			acc.reachCount++
		}

		if raw := p.Row.Text(domain.FieldPublishTime); raw != "" {
			t, err := ParseTime(raw, e.loc)
			if err != nil {
				report.Warnings = append(report.Warnings, domain.DataQualityWarning{
					Issue:  domain.IssueUnparseableDate,
					Origin: p.Origin,
					PostID: p.Row.Text(domain.FieldPostID),
					Value:  raw,
					Detail: fmt.Sprintf("publish time %q could not be parsed", raw),
				})
			} else {
				acc.observe(t)
				report.DateRange = widen(report.DateRange, t)
			}
		}
	}

	for _, key := range order {
		report.Summaries = append(report.Summaries, accs[key].finish(selected, e.loc))
	}
	return report
}

func (a *accumulator) observe(t time.Time) {
	if a.first == nil || t.Before(*a.first) {
		tt := t
		a.first = &tt
	}
	if a.last == nil || t.After(*a.last) {
		tt := t
		a.last = &tt
	}
}

func (a *accumulator) finish(selected domain.FieldSet, loc *time.Location) domain.AccountSummary {
	s := a.summary
	s.Values = make(map[domain.Field]float64)
	s.FirstPublished, s.LastPublished = a.first, a.last

	s.PostsPerDay = float64(s.PostCount)
	if a.first != nil {
		days := daysInclusive(dayOf(*a.first, loc), dayOf(*a.last, loc))
		s.PostsPerDay = round1(float64(s.PostCount) / float64(max(1, days)))
	}

	for _, f := range domain.AdditiveFields {
		if selected.Has(f) && a.seen[f] {
			s.Values[f] = a.sums[f]
		}
	}
	if selected.Has(domain.FieldEngagementTotal) {
		total, found := 0.0, false
		for _, f := range domain.EngagementInputs {
			if a.seen[f] {
				total += a.sums[f]
				found = true
			}
		}
		if found {
			s.Values[domain.FieldEngagementTotal] = total
		}
	}
	if selected.Has(domain.FieldAverageReach) && a.reachCount > 0 {
		s.Values[domain.FieldAverageReach] = math.Round(a.reachSum / float64(a.reachCount))
	}
	if selected.Has(domain.FieldPostCount) {
		s.Values[domain.FieldPostCount] = float64(s.PostCount)
	}
	if selected.Has(domain.FieldPostsPerDay) {
		s.Values[domain.FieldPostsPerDay] = s.PostsPerDay
	}
	return s
}

func widen(r domain.DateRange, t time.Time) domain.DateRange {
	if r.Start == nil || t.Before(*r.Start) {
		tt := t
		r.Start = &tt
	}
	if r.End == nil || t.After(*r.End) {
		tt := t
		r.End = &tt
	}
	return r
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Totals sums the additive metrics and post counts over summaries. Derived
// averages and rates are not summable and are left out.
func Totals(summaries []domain.AccountSummary) map[domain.Field]float64 {
	out := make(map[domain.Field]float64)
	for _, s := range summaries {
		for f, v := range s.Values {
			if f.IsAdditive() || f == domain.FieldEngagementTotal || f == domain.FieldPostCount {
				out[f] += v
			}
		}
	}
	return out
}
