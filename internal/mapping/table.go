package mapping

import (
	"github.com/cgillinger/facebook-stats/internal/domain"
	"github.com/cgillinger/facebook-stats/internal/textnorm"
)

// Binding associates one external column name with an internal field.
type Binding struct {
	External string       `json:"external"`
	Field    domain.Field `json:"field"`
}

// Group is a display grouping of fields. It is opaque to resolution.
type Group struct {
	Name   string         `json:"name"`
	Fields []domain.Field `json:"fields"`
}

// Table is an ordered, bidirectional association between external names and
// internal fields. A *Table handed out by a Store is never mutated; every
// edit returns a new Table.
type Table struct {
	Revision     int                     `json:"revision"`
	Schema       int                     `json:"schema"`
	Bindings     []Binding               `json:"bindings"`
	Excluded     []string                `json:"excluded"`
	Required     []domain.Field          `json:"required"`
	Groups       []Group                 `json:"groups,omitempty"`
	DisplayNames map[domain.Field]string `json:"display_names,omitempty"`

	lookup   map[string]domain.Field
	excluded map[string]bool
}

// Compile validates t and returns a copy with its lookup indexes built.
func Compile(t *Table) (*Table, error) {
	c := t.clone()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.index()
	return c, nil
}

// Validate checks the table invariants: every mapped field has at least one
// usable external name and no normalized name is bound to two fields or both
// bound and excluded.
func (t *Table) Validate() error {
	excluded := make(map[string]bool, len(t.Excluded))
	for _, name := range t.Excluded {
		if n := textnorm.Normalize(name); n != "" {
			excluded[n] = true
		}
	}

	seen := make(map[string]domain.Field, len(t.Bindings))
	perField := make(map[domain.Field]int)
	for _, b := range t.Bindings {
		if !b.Field.IsMapped() {
			return &domain.MappingConflictError{Kind: domain.ConflictUnknownField, Field: b.Field, External: b.External}
		}
		n := textnorm.Normalize(b.External)
		if n == "" {
			return &domain.MappingConflictError{Kind: domain.ConflictBlankName, Field: b.Field}
		}
		if excluded[n] {
			return &domain.MappingConflictError{Kind: domain.ConflictExcludedName, External: b.External, Field: b.Field}
		}
		if prev, ok := seen[n]; ok && prev != b.Field {
			return &domain.MappingConflictError{Kind: domain.ConflictAlreadyBound, External: b.External, Field: b.Field, Existing: prev}
		}
		seen[n] = b.Field
		perField[b.Field]++
	}

	for _, f := range domain.MappedFields {
		if perField[f] == 0 {
			return &domain.MappingConflictError{
				Kind:   domain.ConflictInvalidTable,
				Field:  f,
				Detail: "field " + string(f) + " has no external name",
			}
		}
	}
	for _, f := range t.Required {
		if !f.IsMapped() {
			return &domain.MappingConflictError{Kind: domain.ConflictUnknownField, Field: f}
		}
	}
	return nil
}

// Lookup returns the field bound to an external name, honoring exclusions.
func (t *Table) Lookup(external string) (domain.Field, bool) {
	n := textnorm.Normalize(external)
	if t.lookup == nil {
		for _, name := range t.Excluded {
			if textnorm.Normalize(name) == n {
				return "", false
			}
		}
		for _, b := range t.Bindings {
			if textnorm.Normalize(b.External) == n {
				return b.Field, true
			}
		}
		return "", false
	}
	if t.excluded[n] {
		return "", false
	}
	f, ok := t.lookup[n]
	return f, ok
}

// IsExcluded reports whether an external name is on the exclusion list.
func (t *Table) IsExcluded(external string) bool {
	n := textnorm.Normalize(external)
	if t.excluded != nil {
		return t.excluded[n]
	}
	for _, name := range t.Excluded {
		if textnorm.Normalize(name) == n {
			return true
		}
	}
	return false
}

// ExternalNames returns the external names bound to f, in table order.
func (t *Table) ExternalNames(f domain.Field) []string {
	var out []string
	for _, b := range t.Bindings {
		if b.Field == f {
			out = append(out, b.External)
		}
	}
	return out
}

// DisplayName returns the label for f, falling back to the identifier.
func (t *Table) DisplayName(f domain.Field) string {
	if name, ok := t.DisplayNames[f]; ok && name != "" {
		return name
	}
	return string(f)
}

// IsRequired reports whether f is in the required set.
func (t *Table) IsRequired(f domain.Field) bool {
	for _, r := range t.Required {
		if r == f {
			return true
		}
	}
	return false
}

func (t *Table) index() {
	t.lookup = make(map[string]domain.Field, len(t.Bindings))
	t.excluded = make(map[string]bool, len(t.Excluded))
	for _, name := range t.Excluded {
		t.excluded[textnorm.Normalize(name)] = true
	}
	for _, b := range t.Bindings {
		n := textnorm.Normalize(b.External)
		if _, ok := t.lookup[n]; !ok {
			t.lookup[n] = b.Field
		}
	}
}

func (t *Table) clone() *Table {
	c := &Table{
		Revision: t.Revision,
		Schema:   t.Schema,
		Bindings: append([]Binding(nil), t.Bindings...),
		Excluded: append([]string(nil), t.Excluded...),
		Required: append([]domain.Field(nil), t.Required...),
	}
	for _, g := range t.Groups {
		c.Groups = append(c.Groups, Group{Name: g.Name, Fields: append([]domain.Field(nil), g.Fields...)})
	}
	if t.DisplayNames != nil {
		c.DisplayNames = make(map[domain.Field]string, len(t.DisplayNames))
		for k, v := range t.DisplayNames {
			c.DisplayNames[k] = v
		}
	}
	return c
}
