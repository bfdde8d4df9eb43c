package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Value is one scalar cell. Raw keeps the text exactly as exported (trimmed);
// Num holds the numeric reading when Raw parses as a finite number.
type Value struct {
	Raw   string
	Num   float64
	IsNum bool
}

// ParseValue types a raw CSV cell.
func ParseValue(raw string) Value {
	raw = strings.TrimSpace(raw)
	v := Value{Raw: raw}
	if n, ok := parseNumber(raw); ok {
		v.Num = n
		v.IsNum = true
	}
	return v
}

// NumberValue builds a numeric Value.
func NumberValue(n float64) Value {
	return Value{Raw: strconv.FormatFloat(n, 'f', -1, 64), Num: n, IsNum: true}
}

// TextValue builds a non-numeric Value, even if the text looks numeric.
func TextValue(s string) Value {
	return Value{Raw: strings.TrimSpace(s)}
}

// IsEmpty reports whether the cell carried no text.
func (v Value) IsEmpty() bool { return v.Raw == "" }

// MarshalJSON writes numbers as JSON numbers and everything else as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsNum {
		return json.Marshal(v.Num)
	}
	return json.Marshal(v.Raw)
}

// UnmarshalJSON accepts either a JSON number or a string.
func (v *Value) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*v = NumberValue(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = ParseValue(s)
	return nil
}

// parseNumber accepts plain decimal numbers and digit groups separated by
// spaces, no-break spaces ("1 234") or commas ("1,234"). Every group after
// the first must have exactly three digits, so a decimal comma ("1,5") is
// not a number. Infinity and NaN are rejected.
func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	groups := strings.FieldsFunc(s, isGroupSeparator)
	if strings.Contains(s, ",") {
		groups = strings.Split(s, ",")
	}
	if len(groups) > 1 {
		first := strings.TrimPrefix(groups[0], "-")
		if first == "" || !isDigits(first) || len(first) > 3 {
			return 0, false
		}
		for i, g := range groups[1:] {
			head := g
			if i == len(groups)-2 {
				head, _, _ = strings.Cut(g, ".")
			}
			if len(head) != 3 || !isDigits(head) {
				return 0, false
			}
		}
		s = strings.Join(groups, "")
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, false
	}
	return n, true
}

func isGroupSeparator(r rune) bool {
	return r == ' ' || r == '\u00a0' || r == '\u202f'
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
