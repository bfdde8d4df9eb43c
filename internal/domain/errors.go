package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared across the pipeline.
var (
	ErrNoHeader  = errors.New("no header row")
	ErrEmptyFile = errors.New("file is empty")
)

// ParseError reports input that is not well-formed tabular text. It is fatal
// for the file it names; other files in a batch still run.
type ParseError struct {
	File string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s: line %d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConflictKind classifies a rejected mapping edit.
type ConflictKind string

const (
	ConflictBlankName     ConflictKind = "blank_name"
	ConflictAlreadyBound  ConflictKind = "already_bound"
	ConflictLastName      ConflictKind = "last_name"
	ConflictExcludedName  ConflictKind = "excluded_name"
	ConflictUnknownField  ConflictKind = "unknown_field"
	ConflictNotBound      ConflictKind = "not_bound"
	ConflictInvalidTable  ConflictKind = "invalid_table"
	ConflictStaleRevision ConflictKind = "stale_revision"
)

// MappingConflictError is returned when an edit would break the mapping
// table's invariants. The table is left unchanged.
type MappingConflictError struct {
	Kind     ConflictKind
	External string
	Field    Field
	// Existing is the field the external name is already bound to.
	Existing Field
	Detail   string
}

func (e *MappingConflictError) Error() string {
	switch e.Kind {
	case ConflictBlankName:
		return fmt.Sprintf("mapping conflict: external name for %s must not be blank", e.Field)
	case ConflictAlreadyBound:
		return fmt.Sprintf("mapping conflict: %q is already bound to %s", e.External, e.Existing)
	case ConflictLastName:
		return fmt.Sprintf("mapping conflict: %q is the last external name of %s", e.External, e.Field)
	case ConflictExcludedName:
		return fmt.Sprintf("mapping conflict: %q is on the exclusion list", e.External)
	case ConflictUnknownField:
		return fmt.Sprintf("mapping conflict: unknown field %q", e.Field)
	case ConflictNotBound:
		return fmt.Sprintf("mapping conflict: %q is not bound to %s", e.External, e.Field)
	}
	if e.Detail != "" {
		return "mapping conflict: " + e.Detail
	}
	return "mapping conflict: " + string(e.Kind)
}

// MissingRequiredColumnsWarning is a structured result, not a failure: the
// file lacks headers for some required fields.
type MissingRequiredColumnsWarning struct {
	File   string  `json:"file"`
	Fields []Field `json:"fields"`
}

func (w *MissingRequiredColumnsWarning) Error() string {
	names := make([]string, len(w.Fields))
	for i, f := range w.Fields {
		names[i] = string(f)
	}
	return fmt.Sprintf("%s: missing required columns: %s", w.File, strings.Join(names, ", "))
}

// QualityIssue classifies a DataQualityWarning.
type QualityIssue string

const (
	IssueNoAccount       QualityIssue = "no_account"
	IssueUnparseableDate QualityIssue = "unparseable_date"
)

// DataQualityWarning flags a row that still flows through the pipeline but
// could not be handled fully.
type DataQualityWarning struct {
	Issue  QualityIssue `json:"issue"`
	Origin Origin       `json:"origin"`
	PostID string       `json:"post_id,omitempty"`
	Value  string       `json:"value,omitempty"`
	Detail string       `json:"detail"`
}

func (w DataQualityWarning) Error() string {
	return fmt.Sprintf("%s line %d: %s", w.Origin.FileName, w.Origin.Line, w.Detail)
}
