// Package dedupe drops repeated posts across the files of a batch or a
// whole session.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/cgillinger/facebook-stats/internal/domain"
	"github.com/cgillinger/facebook-stats/internal/textnorm"
)

// Scope says how long a registry lives.
type Scope string

const (
	// ScopeSession shares one registry across every file until reset.
	ScopeSession Scope = "session"
	// ScopeFile gives each file a fresh registry.
	ScopeFile Scope = "file"
)

// ParseScope accepts "session" or "file"; anything else is an error.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeSession, "":
		return ScopeSession, nil
	case ScopeFile:
		return ScopeFile, nil
	}
	return "", fmt.Errorf("unknown dedupe scope %q", s)
}

// Registry remembers admitted posts by id, or by fingerprint for rows
// without an id, together with the origin that was admitted.
type Registry struct {
	mu   sync.Mutex
	seen map[string]domain.Origin
	ids  int
}

func NewRegistry() *Registry {
	return &Registry{seen: make(map[string]domain.Origin)}
}

// Reset forgets everything.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.seen = make(map[string]domain.Origin)
	r.ids = 0
	r.mu.Unlock()
}

// Len is the number of admitted posts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

// UniquePostIDs is the number of admitted posts that carried a post id.
func (r *Registry) UniquePostIDs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ids
}

// Contains reports whether postID was admitted.
func (r *Registry) Contains(postID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[idKey(postID)]
	return ok
}

// Result is the outcome of one Dedupe call.
type Result struct {
	Unique         []domain.Row
	DuplicateCount int
	DuplicateIDs   []string
}

// Dedupe keeps the first occurrence of each post, in input order, and
// records new posts in seen. A row whose admitted origin is its own is not
// a duplicate, so running Dedupe again over its own output changes nothing.
func Dedupe(rows []domain.Row, seen *Registry) Result {
	seen.mu.Lock()
	defer seen.mu.Unlock()

	res := Result{Unique: make([]domain.Row, 0, len(rows)), DuplicateIDs: []string{}}
	thisCall := make(map[string]bool, len(rows))
	reported := make(map[string]bool)

	for _, row := range rows {
		id := strings.TrimSpace(row.Text(domain.FieldPostID))
		key := idKey(id)
		if id == "" {
			key = "fp:" + Fingerprint(row)
		}

		admitted, known := seen.seen[key]
		duplicate := thisCall[key] || (known && admitted != row.Origin())
		thisCall[key] = true
		if duplicate {
			res.DuplicateCount++
			if id != "" && !reported[id] {
				reported[id] = true
				res.DuplicateIDs = append(res.DuplicateIDs, id)
			}
			continue
		}
		if !known {
			seen.seen[key] = row.Origin()
			if id != "" {
				seen.ids++
			}
		}
		res.Unique = append(res.Unique, row)
	}
	return res
}

func idKey(id string) string { return "id:" + strings.TrimSpace(id) }

// Fingerprint hashes every field of the row, normalized and in field order.
func Fingerprint(row domain.Row) string {
	var b strings.Builder
	for _, f := range row.Fields() {
		b.WriteString(string(f))
		b.WriteByte('=')
		b.WriteString(textnorm.Normalize(row.Text(f)))
		b.WriteByte(0x1f)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
