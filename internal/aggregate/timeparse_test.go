package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	stockholm, err := time.LoadLocation("Europe/Stockholm")
	require.NoError(t, err)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-01T10:15:00Z", time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC)},
		{"2024-03-01T10:15:00+01:00", time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC)},
		{"2024-03-01T10:15:00-0800", time.Date(2024, 3, 1, 18, 15, 0, 0, time.UTC)},
		{"2024-03-01T10:15:00", time.Date(2024, 3, 1, 10, 15, 0, 0, stockholm)},
		{"2024-03-01 10:15", time.Date(2024, 3, 1, 10, 15, 0, 0, stockholm)},
		{" 2024-03-01 ", time.Date(2024, 3, 1, 0, 0, 0, 0, stockholm)},
		{"03/01/2024 10:15", time.Date(2024, 3, 1, 10, 15, 0, 0, stockholm)},
		{"03/01/2024", time.Date(2024, 3, 1, 0, 0, 0, 0, stockholm)},
		{"12/31/2023 14:00", time.Date(2023, 12, 31, 14, 0, 0, 0, stockholm)},
		{"1/5/2024 9:05", time.Date(2024, 1, 5, 9, 5, 0, 0, stockholm)},
		{"3/7/2024", time.Date(2024, 3, 7, 0, 0, 0, 0, stockholm)},
		{"3/7/2024 9:5", time.Date(2024, 3, 7, 9, 5, 0, 0, stockholm)},
		{"3/7/2024 9:05:7", time.Date(2024, 3, 7, 9, 5, 7, 0, stockholm)},
		{"11/7/2024 14:30:45", time.Date(2024, 11, 7, 14, 30, 45, 0, stockholm)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTime(tt.in, stockholm)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %v got %v", tt.want, got)
		})
	}

	for _, bad := range []string{"", "yesterday", "2024-13-01", "1 mars 2024", "13/1/2024", "1/5/24"} {
		_, err := ParseTime(bad, stockholm)
		assert.ErrorIs(t, err, ErrUnparseableTime, bad)
	}
}

func TestDaysInclusive(t *testing.T) {
	assert.Equal(t, 1, daysInclusive(civilDay{2024, 3, 1}, civilDay{2024, 3, 1}))
	assert.Equal(t, 2, daysInclusive(civilDay{2024, 2, 28}, civilDay{2024, 2, 29}))
	assert.Equal(t, 367, daysInclusive(civilDay{2024, 1, 1}, civilDay{2025, 1, 1}))
	assert.Equal(t, 3, daysInclusive(civilDay{2024, 3, 3}, civilDay{2024, 3, 1}))
}
