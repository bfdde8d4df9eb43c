package aggregate

import (
	"testing"
	"time"

	"github.com/cgillinger/facebook-stats/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkPost(key string, kv ...string) domain.Post {
	values := map[domain.Field]domain.Value{}
	for i := 0; i+1 < len(kv); i += 2 {
		values[domain.Field(kv[i])] = domain.ParseValue(kv[i+1])
	}
	origin := domain.Origin{FileName: "export.csv", Line: 2}
	return domain.Post{Row: domain.NewRow(values, origin), AccountKey: domain.AccountKey(key), Origin: origin}
}

var allMetrics = domain.NewFieldSet(append(append([]domain.Field(nil), domain.AdditiveFields...),
	domain.FieldEngagementTotal, domain.FieldAverageReach, domain.FieldPostCount, domain.FieldPostsPerDay)...)

func TestAggregateSumsAndDerivedMetrics(t *testing.T) {
	posts := []domain.Post{
		mkPost("acme", "account_name", "Acme", "account_id", "111", "likes", "10", "comments", "2", "reach", "100"),
		mkPost("beta", "account_name", "Beta", "likes", "1"),
		mkPost("acme", "account_name", "Acme", "likes", "5", "shares", "1", "reach", "151"),
		mkPost("acme", "account_name", "Acme", "reach", "n/a"),
	}

	report := NewEngine(nil).Aggregate(posts, allMetrics)
	require.Len(t, report.Summaries, 2)

	acme := report.Summaries[0]
	assert.Equal(t, domain.AccountKey("acme"), acme.Key)
	assert.Equal(t, "Acme", acme.Name)
	assert.Equal(t, "111", acme.AccountID)
	assert.Equal(t, 3, acme.PostCount)
	assert.Equal(t, 15.0, acme.Values[domain.FieldLikes])
	assert.Equal(t, 2.0, acme.Values[domain.FieldComments])
	assert.Equal(t, 1.0, acme.Values[domain.FieldShares])
	assert.Equal(t, 18.0, acme.Values[domain.FieldEngagementTotal])
	assert.Equal(t, 251.0, acme.Values[domain.FieldReach])
	// (100+151)/2 rounds half away from zero; "n/a" counts on neither side.
	assert.Equal(t, 126.0, acme.Values[domain.FieldAverageReach])
	assert.Equal(t, 3.0, acme.Values[domain.FieldPostCount])
	assert.Equal(t, 3.0, acme.Values[domain.FieldPostsPerDay])

	beta := report.Summaries[1]
	_, ok := beta.Value(domain.FieldReach)
	assert.False(t, ok, "no reach values means no reach metric")
	_, ok = beta.Value(domain.FieldAverageReach)
	assert.False(t, ok)
	_, ok = beta.Value(domain.FieldViews)
	assert.False(t, ok)
	assert.Equal(t, 1.0, beta.Values[domain.FieldEngagementTotal])
}

func TestAggregateOnlyMaterializesSelected(t *testing.T) {
	posts := []domain.Post{mkPost("a", "likes", "3", "views", "10")}
	report := NewEngine(nil).Aggregate(posts, domain.NewFieldSet(domain.FieldViews))
	require.Len(t, report.Summaries, 1)
	assert.Equal(t, map[domain.Field]float64{domain.FieldViews: 10}, report.Summaries[0].Values)
	assert.Equal(t, 1, report.Summaries[0].PostCount)
}

func TestAggregateAdditivityVersusDerived(t *testing.T) {
	a := []domain.Post{
		mkPost("k", "likes", "10", "reach", "100", "publish_time", "2024-03-01T10:00:00Z"),
		mkPost("k", "likes", "3", "reach", "50", "publish_time", "2024-03-01T12:00:00Z"),
	}
	b := []domain.Post{
		mkPost("k", "likes", "7", "reach", "1000", "publish_time", "2024-03-04T09:00:00Z"),
	}
	e := NewEngine(time.UTC)

	ra := e.Aggregate(a, allMetrics).Summaries[0]
	rb := e.Aggregate(b, allMetrics).Summaries[0]
	rab := e.Aggregate(append(append([]domain.Post(nil), a...), b...), allMetrics).Summaries[0]

	for _, f := range []domain.Field{domain.FieldLikes, domain.FieldReach, domain.FieldEngagementTotal, domain.FieldPostCount} {
		assert.Equal(t, ra.Values[f]+rb.Values[f], rab.Values[f], "field %s is additive", f)
	}

	// Averages and rates are re-derived, never summed.
	assert.Equal(t, 383.0, rab.Values[domain.FieldAverageReach])
	assert.NotEqual(t, ra.Values[domain.FieldAverageReach]+rb.Values[domain.FieldAverageReach], rab.Values[domain.FieldAverageReach])
	assert.Equal(t, 2.0, ra.Values[domain.FieldPostsPerDay])
	assert.Equal(t, 1.0, rb.Values[domain.FieldPostsPerDay])
	assert.Equal(t, 0.8, rab.Values[domain.FieldPostsPerDay]) // 3 posts over 4 days
	assert.NotEqual(t, ra.Values[domain.FieldPostsPerDay]+rb.Values[domain.FieldPostsPerDay], rab.Values[domain.FieldPostsPerDay])
}

func TestPostsPerDaySingleDay(t *testing.T) {
	posts := []domain.Post{
		mkPost("k", "publish_time", "2024-05-02 08:00"),
		mkPost("k", "publish_time", "2024-05-02 12:30"),
		mkPost("k", "publish_time", "2024-05-02 23:59"),
	}
	s := NewEngine(nil).Aggregate(posts, allMetrics).Summaries[0]
	assert.Equal(t, 3.0, s.PostsPerDay)
	assert.Equal(t, 3.0, s.Values[domain.FieldPostsPerDay])
}

func TestPostsPerDayUsesLocalCalendarDays(t *testing.T) {
	stockholm, err := time.LoadLocation("Europe/Stockholm")
	require.NoError(t, err)

	// 23:30 UTC and 00:30 UTC the next day are both 1 March in Stockholm.
	posts := []domain.Post{
		mkPost("k", "publish_time", "2024-02-29T23:30:00Z"),
		mkPost("k", "publish_time", "2024-03-01T00:30:00Z"),
	}
	assert.Equal(t, 1.0, NewEngine(time.UTC).Aggregate(posts, allMetrics).Summaries[0].PostsPerDay)
	assert.Equal(t, 2.0, NewEngine(stockholm).Aggregate(posts, allMetrics).Summaries[0].PostsPerDay)

	// Across the spring DST change: 30 and 31 March are two days.
	dst := []domain.Post{
		mkPost("k", "publish_time", "2024-03-30 22:00"),
		mkPost("k", "publish_time", "2024-03-31 23:00"),
	}
	assert.Equal(t, 1.0, NewEngine(stockholm).Aggregate(dst, allMetrics).Summaries[0].PostsPerDay)
}

func TestPostsPerDayWithoutDates(t *testing.T) {
	posts := []domain.Post{
		mkPost("k", "likes", "1"),
		mkPost("k", "likes", "1", "publish_time", "yesterday"),
	}
	report := NewEngine(nil).Aggregate(posts, allMetrics)
	s := report.Summaries[0]
	assert.Equal(t, 2.0, s.PostsPerDay)
	assert.Nil(t, s.FirstPublished)
	assert.Nil(t, report.DateRange.Start)

	require.Len(t, report.Warnings, 1)
	w := report.Warnings[0]
	assert.Equal(t, domain.IssueUnparseableDate, w.Issue)
	assert.Equal(t, "yesterday", w.Value)
}

func TestAggregateDateRangeAndOrder(t *testing.T) {
	posts := []domain.Post{
		mkPost("b", "publish_time", "2024-01-10"),
		mkPost("a", "publish_time", "2024-01-05"),
		mkPost("b", "publish_time", "2024-02-01"),
	}
	report := NewEngine(nil).Aggregate(posts, allMetrics)
	require.Len(t, report.Summaries, 2)
	assert.Equal(t, domain.AccountKey("b"), report.Summaries[0].Key)
	assert.Equal(t, domain.AccountKey("a"), report.Summaries[1].Key)
	assert.Equal(t, "2024-01-05", report.DateRange.Start.Format("2006-01-02"))
	assert.Equal(t, "2024-02-01", report.DateRange.End.Format("2006-01-02"))
	assert.Equal(t, "2024-01-10", report.Summaries[0].FirstPublished.Format("2006-01-02"))
}

func TestNewEngineDefaultsToLocalZone(t *testing.T) {
	assert.Equal(t, time.Local, NewEngine(nil).Location())
	assert.Equal(t, time.UTC, NewEngine(time.UTC).Location())
}

func TestPostsPerDayCountsSingleDigitUSDates(t *testing.T) {
	posts := []domain.Post{
		mkPost("k", "publish_time", "3/1/2024 9:05"),
		mkPost("k", "publish_time", "3/4/2024"),
	}
	report := NewEngine(time.UTC).Aggregate(posts, allMetrics)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, 0.5, report.Summaries[0].PostsPerDay) // 2 posts over 4 days
}

func TestAggregateEmpty(t *testing.T) {
	report := NewEngine(nil).Aggregate(nil, allMetrics)
	assert.Empty(t, report.Summaries)
	assert.NotNil(t, report.Summaries)
}

func TestTotals(t *testing.T) {
	summaries := []domain.AccountSummary{
		{Values: map[domain.Field]float64{domain.FieldLikes: 3, domain.FieldAverageReach: 10, domain.FieldPostCount: 2}},
		{Values: map[domain.Field]float64{domain.FieldLikes: 4, domain.FieldPostsPerDay: 1.5, domain.FieldPostCount: 1}},
	}
	totals := Totals(summaries)
	assert.Equal(t, 7.0, totals[domain.FieldLikes])
	assert.Equal(t, 3.0, totals[domain.FieldPostCount])
	_, ok := totals[domain.FieldAverageReach]
	assert.False(t, ok)
	_, ok = totals[domain.FieldPostsPerDay]
	assert.False(t, ok)
}
