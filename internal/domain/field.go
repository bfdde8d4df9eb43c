package domain

import "sort"

// Field is a stable, export-independent identifier for a statistic or a
// metadata item of a post.
type Field string

// Fields produced by column mapping.
const (
	FieldPostID      Field = "post_id"
	FieldAccountID   Field = "account_id"
	FieldAccountName Field = "account_name"
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldPublishTime Field = "publish_time"
	FieldPostType    Field = "post_type"
	FieldPermalink   Field = "permalink"
	FieldViews       Field = "views"
	FieldReach       Field = "reach"
	FieldLikes       Field = "likes"
	FieldComments    Field = "comments"
	FieldShares      Field = "shares"
	FieldTotalClicks Field = "total_clicks"
	FieldOtherClicks Field = "other_clicks"
	FieldLinkClicks  Field = "link_clicks"
)

// Derived fields computed by aggregation.
const (
	FieldEngagementTotal Field = "engagement_total"
	FieldAverageReach    Field = "average_reach"
	FieldPostCount       Field = "post_count"
	FieldPostsPerDay     Field = "posts_per_day"
)

// FieldSchemaVersion is bumped whenever MappedFields changes.
const FieldSchemaVersion = 2

// MappedFields lists every field a mapping table must bind, in display order.
var MappedFields = []Field{
	FieldPostID,
	FieldAccountID,
	FieldAccountName,
	FieldTitle,
	FieldDescription,
	FieldPublishTime,
	FieldPostType,
	FieldPermalink,
	FieldViews,
	FieldReach,
	FieldLikes,
	FieldComments,
	FieldShares,
	FieldTotalClicks,
	FieldOtherClicks,
	FieldLinkClicks,
}

// AdditiveFields are count-like metrics that can be summed across posts.
var AdditiveFields = []Field{
	FieldViews,
	FieldReach,
	FieldLikes,
	FieldComments,
	FieldShares,
	FieldTotalClicks,
	FieldOtherClicks,
	FieldLinkClicks,
}

// EngagementInputs are summed into engagement_total.
var EngagementInputs = []Field{FieldLikes, FieldComments, FieldShares}

// DefaultMetrics is the metric selection used when a caller supplies none.
var DefaultMetrics = []Field{
	FieldViews,
	FieldAverageReach,
	FieldEngagementTotal,
	FieldLikes,
	FieldComments,
	FieldShares,
	FieldPostCount,
	FieldPostsPerDay,
}

var mappedSet = func() map[Field]bool {
	m := make(map[Field]bool, len(MappedFields))
	for _, f := range MappedFields {
		m[f] = true
	}
	return m
}()

var metricSet = func() map[Field]bool {
	m := make(map[Field]bool)
	for _, f := range AdditiveFields {
		m[f] = true
	}
	for _, f := range []Field{FieldEngagementTotal, FieldAverageReach, FieldPostCount, FieldPostsPerDay} {
		m[f] = true
	}
	return m
}()

// IsMapped reports whether f is a field that column mapping can produce.
func (f Field) IsMapped() bool { return mappedSet[f] }

// IsMetric reports whether f can appear in an account summary.
func (f Field) IsMetric() bool { return metricSet[f] }

// IsAdditive reports whether f can be summed across posts.
func (f Field) IsAdditive() bool {
	for _, a := range AdditiveFields {
		if a == f {
			return true
		}
	}
	return false
}

// FieldSet is an unordered set of fields.
type FieldSet map[Field]struct{}

// NewFieldSet builds a set from the given fields.
func NewFieldSet(fields ...Field) FieldSet {
	s := make(FieldSet, len(fields))
	for _, f := range fields {
		s[f] = struct{}{}
	}
	return s
}

// Has reports whether f is in the set.
func (s FieldSet) Has(f Field) bool {
	_, ok := s[f]
	return ok
}

// Sorted returns the members in lexical order.
func (s FieldSet) Sorted() []Field {
	out := make([]Field, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseMetrics converts raw names into a metric set. Unknown names are
// returned separately so callers can reject them.
func ParseMetrics(names []string) (FieldSet, []string) {
	set := make(FieldSet, len(names))
	var unknown []string
	for _, n := range names {
		f := Field(n)
		if !f.IsMetric() {
			unknown = append(unknown, n)
			continue
		}
		set[f] = struct{}{}
	}
	return set, unknown
}
