package mapping

import (
	"sort"

	"github.com/cgillinger/facebook-stats/internal/domain"
	"github.com/cgillinger/facebook-stats/internal/textnorm"
)

// Match is a raw header resolved to an internal field.
type Match struct {
	External string       `json:"external"`
	Field    domain.Field `json:"field"`
	Index    int          `json:"index"`
}

// Resolution is the outcome of matching a header row against a table.
type Resolution struct {
	Found           []Match        `json:"found"`
	Missing         []domain.Field `json:"missing"`
	Unknown         []string       `json:"unknown"`
	Excluded        []string       `json:"excluded"`
	MissingRequired []domain.Field `json:"missing_required"`
	Valid           bool           `json:"is_valid"`
}

// ResolveHeaders matches raw headers against t. Validity only requires the
// table's required fields; other missing fields are tolerated.
func ResolveHeaders(rawHeaders []string, t *Table) Resolution {
	res := Resolution{
		Found:           []Match{},
		Missing:         []domain.Field{},
		Unknown:         []string{},
		Excluded:        []string{},
		MissingRequired: []domain.Field{},
	}
	covered := make(map[domain.Field]bool)

	for i, h := range rawHeaders {
		if textnorm.Normalize(h) == "" {
			continue
		}
		if t.IsExcluded(h) {
			res.Excluded = append(res.Excluded, h)
			continue
		}
		f, ok := t.Lookup(h)
		if !ok {
			res.Unknown = append(res.Unknown, h)
			continue
		}
		res.Found = append(res.Found, Match{External: h, Field: f, Index: i})
		covered[f] = true
	}

	for _, f := range domain.MappedFields {
		if covered[f] {
			continue
		}
		res.Missing = append(res.Missing, f)
		if t.IsRequired(f) {
			res.MissingRequired = append(res.MissingRequired, f)
		}
	}
	res.Valid = len(res.MissingRequired) == 0
	return res
}

// Warning returns the structured missing-required warning, or nil.
func (r Resolution) Warning(file string) *domain.MissingRequiredColumnsWarning {
	if r.Valid {
		return nil
	}
	return &domain.MissingRequiredColumnsWarning{
		File:   file,
		Fields: append([]domain.Field(nil), r.MissingRequired...),
	}
}

// RowMapper maps raw rows of one file using a resolution computed once for
// the file's header.
type RowMapper struct {
	matches []Match
}

// NewRowMapper prepares a mapper for the given header row.
func NewRowMapper(rawHeaders []string, t *Table) *RowMapper {
	return &RowMapper{matches: ResolveHeaders(rawHeaders, t).Found}
}

// Map converts one raw row. Cells without a mapping are dropped. When two
// headers resolve to the same field, the first non-empty one in header
// order wins.
func (m *RowMapper) Map(raw domain.RawRow, origin domain.Origin) domain.Row {
	values := make(map[domain.Field]domain.Value, len(m.matches))
	for _, match := range m.matches {
		if _, taken := values[match.Field]; taken {
			continue
		}
		v, ok := raw[match.External]
		if !ok || v.IsEmpty() {
			continue
		}
		values[match.Field] = v
	}
	return domain.NewRow(values, origin)
}

// MapRow converts a raw row against t without a prepared header order;
// headers are visited in lexical order so the result is deterministic.
func MapRow(raw domain.RawRow, t *Table, origin domain.Origin) domain.Row {
	headers := make([]string, 0, len(raw))
	for h := range raw {
		headers = append(headers, h)
	}
	sort.Strings(headers)
	return NewRowMapper(headers, t).Map(raw, origin)
}
