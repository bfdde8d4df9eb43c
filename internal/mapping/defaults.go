package mapping

import "github.com/cgillinger/facebook-stats/internal/domain"

// defaultBindings covers the English and Swedish export generations seen so
// far. Order matters only for display.
var defaultBindings = []Binding{
	{"Post ID", domain.FieldPostID},
	{"Publicerings-id", domain.FieldPostID},
	{"Page ID", domain.FieldAccountID},
	{"Sid-id", domain.FieldAccountID},
	{"Page name", domain.FieldAccountName},
	{"Sidnamn", domain.FieldAccountName},
	{"Title", domain.FieldTitle},
	{"Titel", domain.FieldTitle},
	{"Description", domain.FieldDescription},
	{"Beskrivning", domain.FieldDescription},
	{"Publish time", domain.FieldPublishTime},
	{"Publiceringstid", domain.FieldPublishTime},
	{"Post type", domain.FieldPostType},
	{"Inläggstyp", domain.FieldPostType},
	{"Permalink", domain.FieldPermalink},
	{"Permalänk", domain.FieldPermalink},
	{"Impressions", domain.FieldViews},
	{"Views", domain.FieldViews},
	{"Visningar", domain.FieldViews},
	{"Reach", domain.FieldReach},
	{"Räckvidd", domain.FieldReach},
	{"Reactions", domain.FieldLikes},
	{"Reaktioner", domain.FieldLikes},
	{"Comments", domain.FieldComments},
	{"Kommentarer", domain.FieldComments},
	{"Shares", domain.FieldShares},
	{"Delningar", domain.FieldShares},
	{"Total clicks", domain.FieldTotalClicks},
	{"Totalt antal klick", domain.FieldTotalClicks},
	{"Other Clicks", domain.FieldOtherClicks},
	{"Övriga klick", domain.FieldOtherClicks},
	{"Link Clicks", domain.FieldLinkClicks},
	{"Länkklick", domain.FieldLinkClicks},
}

// defaultExcluded are paid/ad columns whose names collide with organic ones.
var defaultExcluded = []string{
	"Paid reach",
	"Paid impressions",
	"Paid views",
	"Ad impressions",
	"Ad reach",
	"Betald räckvidd",
	"Betalda visningar",
	"Annonsvisningar",
	"Annonsräckvidd",
}

var defaultDisplayNames = map[domain.Field]string{
	domain.FieldPostID:          "Post ID",
	domain.FieldAccountID:       "Sid-ID",
	domain.FieldAccountName:     "Sidnamn",
	domain.FieldTitle:           "Titel",
	domain.FieldDescription:     "Beskrivning",
	domain.FieldPublishTime:     "Publiceringstid",
	domain.FieldPostType:        "Typ",
	domain.FieldPermalink:       "Länk",
	domain.FieldViews:           "Visningar",
	domain.FieldReach:           "Posträckvidd",
	domain.FieldAverageReach:    "Genomsnittlig räckvidd",
	domain.FieldEngagementTotal: "Reaktioner, kommentarer och delningar",
	domain.FieldLikes:           "Reaktioner",
	domain.FieldComments:        "Kommentarer",
	domain.FieldShares:          "Delningar",
	domain.FieldTotalClicks:     "Totalt antal klick",
	domain.FieldOtherClicks:     "Övriga klick",
	domain.FieldLinkClicks:      "Länkklick",
	domain.FieldPostCount:       "Antal publiceringar",
	domain.FieldPostsPerDay:     "Publiceringar per dag",
}

var defaultGroups = []Group{
	{Name: "Metadata", Fields: []domain.Field{
		domain.FieldPostID, domain.FieldAccountID, domain.FieldAccountName, domain.FieldTitle,
		domain.FieldDescription, domain.FieldPublishTime, domain.FieldPostType, domain.FieldPermalink,
	}},
	{Name: "Räckvidd och visningar", Fields: []domain.Field{
		domain.FieldViews, domain.FieldReach, domain.FieldAverageReach,
	}},
	{Name: "Engagemang", Fields: []domain.Field{
		domain.FieldEngagementTotal, domain.FieldLikes, domain.FieldComments, domain.FieldShares,
		domain.FieldTotalClicks, domain.FieldOtherClicks, domain.FieldLinkClicks,
	}},
	{Name: "Publiceringsstatistik", Fields: []domain.Field{
		domain.FieldPostCount, domain.FieldPostsPerDay,
	}},
}

// DefaultRequired is the minimal required set: reach and views.
var DefaultRequired = []domain.Field{domain.FieldViews, domain.FieldReach}

// DefaultTable returns a fresh compiled copy of the built-in table.
func DefaultTable() *Table {
	t := &Table{
		Schema:       domain.FieldSchemaVersion,
		Bindings:     defaultBindings,
		Excluded:     defaultExcluded,
		Required:     DefaultRequired,
		Groups:       defaultGroups,
		DisplayNames: defaultDisplayNames,
	}
	c, err := Compile(t)
	if err != nil {
		panic("mapping: invalid built-in table: " + err.Error())
	}
	return c
}
