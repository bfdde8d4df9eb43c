package mapping

import (
	"strings"

	"github.com/cgillinger/facebook-stats/internal/domain"
	"github.com/cgillinger/facebook-stats/internal/textnorm"
)

// An Edit derives a new table from the current one. Edits never modify
// their input.
type Edit func(*Table) (*Table, error)

// Rename replaces the external name oldName bound to field with newName.
func Rename(field domain.Field, oldName, newName string) Edit {
	return func(t *Table) (*Table, error) {
		newName = strings.TrimSpace(newName)
		if err := checkName(t, field, newName); err != nil {
			return nil, err
		}
		idx := t.bindingIndex(field, oldName)
		if idx < 0 {
			return nil, &domain.MappingConflictError{Kind: domain.ConflictNotBound, External: oldName, Field: field}
		}

		next := t.clone()
		if dup := t.bindingIndex(field, newName); dup >= 0 && dup != idx {
			// newName already names this field; dropping oldName is enough.
			next.Bindings = append(next.Bindings[:idx:idx], next.Bindings[idx+1:]...)
		} else {
			next.Bindings[idx] = Binding{External: newName, Field: field}
		}
		return Compile(next)
	}
}

// Bind adds external as another name for field.
func Bind(field domain.Field, external string) Edit {
	return func(t *Table) (*Table, error) {
		external = strings.TrimSpace(external)
		if err := checkName(t, field, external); err != nil {
			return nil, err
		}
		next := t.clone()
		if t.bindingIndex(field, external) < 0 {
			next.Bindings = append(next.Bindings, Binding{External: external, Field: field})
		}
		return Compile(next)
	}
}

// Unbind removes external from field. A field's last name cannot be removed.
func Unbind(field domain.Field, external string) Edit {
	return func(t *Table) (*Table, error) {
		idx := t.bindingIndex(field, external)
		if idx < 0 {
			return nil, &domain.MappingConflictError{Kind: domain.ConflictNotBound, External: external, Field: field}
		}
		if len(t.ExternalNames(field)) == 1 {
			return nil, &domain.MappingConflictError{Kind: domain.ConflictLastName, External: external, Field: field}
		}
		next := t.clone()
		next.Bindings = append(next.Bindings[:idx:idx], next.Bindings[idx+1:]...)
		return Compile(next)
	}
}

// Exclude puts external on the exclusion list. Bound names must be unbound
// first.
func Exclude(external string) Edit {
	return func(t *Table) (*Table, error) {
		external = strings.TrimSpace(external)
		n := textnorm.Normalize(external)
		if n == "" {
			return nil, &domain.MappingConflictError{Kind: domain.ConflictBlankName}
		}
		for _, b := range t.Bindings {
			if textnorm.Normalize(b.External) == n {
				return nil, &domain.MappingConflictError{Kind: domain.ConflictAlreadyBound, External: external, Existing: b.Field}
			}
		}
		next := t.clone()
		if !t.IsExcluded(external) {
			next.Excluded = append(next.Excluded, external)
		}
		return Compile(next)
	}
}

// Include removes external from the exclusion list.
func Include(external string) Edit {
	return func(t *Table) (*Table, error) {
		n := textnorm.Normalize(external)
		next := t.clone()
		next.Excluded = next.Excluded[:0]
		found := false
		for _, name := range t.Excluded {
			if textnorm.Normalize(name) == n {
				found = true
				continue
			}
			next.Excluded = append(next.Excluded, name)
		}
		if !found {
			return nil, &domain.MappingConflictError{Kind: domain.ConflictNotBound, External: external, Detail: "name is not excluded"}
		}
		return Compile(next)
	}
}

// SetRequired replaces the required field set.
func SetRequired(fields []domain.Field) Edit {
	return func(t *Table) (*Table, error) {
		next := t.clone()
		next.Required = append([]domain.Field(nil), fields...)
		return Compile(next)
	}
}

// Replace swaps in a whole table, e.g. one loaded from storage.
func Replace(table *Table) Edit {
	return func(*Table) (*Table, error) {
		return Compile(table)
	}
}

// checkName validates a name about to be bound to field.
func checkName(t *Table, field domain.Field, external string) error {
	if !field.IsMapped() {
		return &domain.MappingConflictError{Kind: domain.ConflictUnknownField, Field: field}
	}
	n := textnorm.Normalize(external)
	if n == "" {
		return &domain.MappingConflictError{Kind: domain.ConflictBlankName, Field: field}
	}
	if t.IsExcluded(external) {
		return &domain.MappingConflictError{Kind: domain.ConflictExcludedName, External: external, Field: field}
	}
	for _, b := range t.Bindings {
		if textnorm.Normalize(b.External) == n && b.Field != field {
			return &domain.MappingConflictError{Kind: domain.ConflictAlreadyBound, External: external, Field: field, Existing: b.Field}
		}
	}
	return nil
}

func (t *Table) bindingIndex(field domain.Field, external string) int {
	n := textnorm.Normalize(external)
	if n == "" {
		return -1
	}
	for i, b := range t.Bindings {
		if b.Field == field && textnorm.Normalize(b.External) == n {
			return i
		}
	}
	return -1
}
