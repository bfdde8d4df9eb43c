package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"trim and lower", "  Reach ", "reach"},
		{"collapse whitespace", "Total \t  clicks\n", "total clicks"},
		{"zero width", "Re\u200bach\ufeff", "reach"},
		{"bom prefix", "\ufeffPost ID", "post id"},
		{"no-break space", "Post\u00a0ID", "post id"},
		{"swedish", "RÄCKVIDD", "räckvidd"},
		{"decomposed umlaut", "Ra\u0308ckvidd", "räckvidd"},
		{"only invisible", "\u200b\u200c\u200d", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIsProjection(t *testing.T) {
	inputs := []string{
		"", " ", "Reach ", "  Publicerings-id", "Sid\u200b-id", "ÖVRIGA  KLICK",
		"Reactions, Comments and Shares", "A\u0308\u0301", "İstanbul", "\ufeff\ufeffX",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("Reach ", "reach"))
	assert.True(t, Equal("Sid-id", "sid-id\u200d"))
	assert.False(t, Equal("Reach", "Reach 2"))
}
