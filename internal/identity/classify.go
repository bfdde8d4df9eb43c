package identity

import (
	"strings"

	"github.com/cgillinger/facebook-stats/internal/domain"
	"github.com/cgillinger/facebook-stats/internal/textnorm"
)

// DefaultSyntheticPatterns match the page-event rows exports mix in with
// real posts, in Swedish and English.
var DefaultSyntheticPatterns = []string{
	"uppdaterade sitt omslagsfoto",
	"uppdaterat sitt omslagsfoto",
	"har uppdaterat sin profilbild",
	"uppdaterade sin profilbild",
	"updated their cover photo",
	"updated its cover photo",
	"updated the cover photo",
	"updated their profile picture",
	"updated its profile picture",
}

// Classifier recognizes synthetic account events by their title or
// description.
type Classifier struct {
	patterns []string
}

// NewClassifier normalizes the default patterns plus any extras. Blank
// patterns are ignored.
func NewClassifier(extra ...string) *Classifier {
	c := &Classifier{}
	seen := map[string]bool{}
	for _, p := range append(append([]string(nil), DefaultSyntheticPatterns...), extra...) {
		n := textnorm.Normalize(p)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		c.patterns = append(c.patterns, n)
	}
	return c
}

// IsSynthetic reports whether row is a cover-photo or profile-picture event
// rather than a post.
func (c *Classifier) IsSynthetic(row domain.Row) bool {
	for _, f := range []domain.Field{domain.FieldTitle, domain.FieldDescription} {
		text := textnorm.Normalize(row.Text(f))
		if text == "" {
			continue
		}
		for _, p := range c.patterns {
			if strings.Contains(text, p) {
				return true
			}
		}
	}
	return false
}
