package aggregate

import (
	"errors"
	"strings"
	"time"
)

// ErrUnparseableTime is returned by ParseTime.
var ErrUnparseableTime = errors.New("unparseable publish time")

// zoned layouts carry their own offset.
var zoned = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05 -0700",
}

// local layouts are read in the engine's location.
var local = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	// month/day/year with one- or two-digit parts, as in US exports
	"1/2/2006 15:4:5",
	"1/2/2006 15:4",
	"1/2/2006",
}

// ParseTime reads the publish time formats found in exports. Times without
// an offset are taken to be in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrUnparseableTime
	}
	for _, layout := range zoned {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range local {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrUnparseableTime
}

// civilDay is a calendar date with no zone attached.
type civilDay struct {
	year  int
	month time.Month
	day   int
}

func dayOf(t time.Time, loc *time.Location) civilDay {
	y, m, d := t.In(loc).Date()
	return civilDay{y, m, d}
}

// daysInclusive counts calendar days from a to b, both included. Counting
// on noon UTC keeps daylight saving shifts out of the arithmetic.
func daysInclusive(a, b civilDay) int {
	ta := time.Date(a.year, a.month, a.day, 12, 0, 0, 0, time.UTC)
	tb := time.Date(b.year, b.month, b.day, 12, 0, 0, 0, time.UTC)
	if tb.Before(ta) {
		ta, tb = tb, ta
	}
	return int(tb.Sub(ta).Hours()/24) + 1
}
