package domain

import (
	"encoding/json"
	"sort"
)

// RawRow maps an export column name, as written in the CSV header, to its cell.
type RawRow map[string]Value

// Origin identifies where a row came from. FileID is unique per upload, so
// the same file submitted twice yields different origins.
type Origin struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	Line     int    `json:"line"`
}

// Row is one post after column mapping, keyed by internal field. A Row is
// immutable: the constructor copies its input and no method mutates it.
type Row struct {
	values map[Field]Value
	origin Origin
}

// NewRow builds a Row from field values. Empty cells are dropped so that a
// missing value is never confused with zero.
func NewRow(values map[Field]Value, origin Origin) Row {
	m := make(map[Field]Value, len(values))
	for f, v := range values {
		if v.IsEmpty() {
			continue
		}
		m[f] = v
	}
	return Row{values: m, origin: origin}
}

// Origin returns the row's provenance.
func (r Row) Origin() Origin { return r.origin }

// Get returns the value for f.
func (r Row) Get(f Field) (Value, bool) {
	v, ok := r.values[f]
	return v, ok
}

// Text returns the raw text for f, or "".
func (r Row) Text(f Field) string {
	return r.values[f].Raw
}

// Number returns the numeric value for f. ok is false when the field is
// absent or not numeric.
func (r Row) Number(f Field) (float64, bool) {
	v, present := r.values[f]
	if !present || !v.IsNum {
		return 0, false
	}
	return v.Num, true
}

// Fields returns the populated fields in lexical order.
func (r Row) Fields() []Field {
	out := make([]Field, 0, len(r.values))
	for f := range r.values {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of populated fields.
func (r Row) Len() int { return len(r.values) }

// MarshalJSON writes the row as a flat object of field values. Only
// metrics are written as numbers; ids and other text keep their raw form so
// long numeric ids survive.
func (r Row) MarshalJSON() ([]byte, error) {
	out := make(map[Field]interface{}, len(r.values))
	for f, v := range r.values {
		if f.IsMetric() {
			out[f] = v
			continue
		}
		out[f] = v.Raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a flat object of field values. The origin is not
// part of the encoding.
func (r *Row) UnmarshalJSON(data []byte) error {
	var m map[Field]Value
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*r = NewRow(m, Origin{})
	return nil
}

// Post is a deduplicated, account-resolved row.
type Post struct {
	Row        Row        `json:"fields"`
	AccountKey AccountKey `json:"account_key"`
	Origin     Origin     `json:"origin"`
	// Synthetic marks account events such as cover photo updates.
	Synthetic bool `json:"synthetic,omitempty"`
}
