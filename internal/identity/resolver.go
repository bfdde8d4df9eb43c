// Package identity assigns every post to a stable account key, so a page
// that reports under several ids, or posts cover-photo events without one,
// still ends up as a single account.
package identity

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cgillinger/facebook-stats/internal/domain"
	"github.com/cgillinger/facebook-stats/internal/textnorm"
	"github.com/google/uuid"
)

// Resolution is the outcome for one row.
type Resolution struct {
	Key       domain.AccountKey
	Synthetic bool
	Warning   *domain.DataQualityWarning
}

// Options configure a Resolver.
type Options struct {
	// MergeByName sends ordinary rows to the first key seen for their
	// normalized page name, whatever their id. Synthetic rows always
	// resolve by name.
	MergeByName bool
	Classifier  *Classifier
	// NewPlaceholder overrides placeholder key generation in tests.
	NewPlaceholder func() string
}

type nameEntry struct {
	key domain.AccountKey
	// provisional entries were created by a synthetic row; the first
	// ordinary row with that name claims them.
	provisional bool
}

// Resolver owns the name and id indexes for one session. Indexes only grow
// until Reset.
type Resolver struct {
	mu             sync.Mutex
	mergeByName    bool
	classifier     *Classifier
	newPlaceholder func() string
	byName         map[string]*nameEntry
	byID           map[string]domain.AccountKey
}

func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		mergeByName:    opts.MergeByName,
		classifier:     opts.Classifier,
		newPlaceholder: opts.NewPlaceholder,
	}
	if r.classifier == nil {
		r.classifier = NewClassifier()
	}
	if r.newPlaceholder == nil {
		r.newPlaceholder = uuid.NewString
	}
	r.Reset()
	return r
}

// Reset clears both indexes.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.byName = make(map[string]*nameEntry)
	r.byID = make(map[string]domain.AccountKey)
	r.mu.Unlock()
}

// Len is the number of distinct names indexed.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName)
}

// Lookup returns the key established for a page name, if any.
func (r *Resolver) Lookup(name string) (domain.AccountKey, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byName[textnorm.Normalize(name)]
	if !ok {
		return "", false
	}
	return e.key, true
}

// Resolve assigns row to an account key and records it in the indexes.
func (r *Resolver) Resolve(row domain.Row) Resolution {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := textnorm.Normalize(row.Text(domain.FieldAccountName))
	id := strings.TrimSpace(row.Text(domain.FieldAccountID))

	if name != "" && r.classifier.IsSynthetic(row) {
		if e, ok := r.byName[name]; ok {
			return Resolution{Key: e.key, Synthetic: true}
		}
		key := domain.AccountKey("name_" + name)
		r.byName[name] = &nameEntry{key: key, provisional: true}
		return Resolution{Key: key, Synthetic: true}
	}

	var key domain.AccountKey
	if e, ok := r.byName[name]; ok && name != "" && (r.mergeByName || e.provisional) {
		key = e.key
		e.provisional = false
	} else if k, ok := r.byID[id]; ok && id != "" {
		key = k
	}

	var warning *domain.DataQualityWarning
	if key == "" {
		switch {
		case name != "" && id != "":
			key = domain.AccountKey(name + "_" + last4(id))
		case id != "":
			key = domain.AccountKey("id_" + id)
		case name != "":
			key = domain.AccountKey("name_" + name)
		default:
			key = domain.AccountKey("placeholder_" + r.newPlaceholder())
			warning = &domain.DataQualityWarning{
				Issue:  domain.IssueNoAccount,
				Origin: row.Origin(),
				PostID: row.Text(domain.FieldPostID),
				Detail: fmt.Sprintf("row has neither page name nor page id, assigned %s", key),
			}
		}
	}

	if name != "" {
		if _, ok := r.byName[name]; !ok {
			r.byName[name] = &nameEntry{key: key}
		}
	}
	if id != "" {
		if _, ok := r.byID[id]; !ok {
			r.byID[id] = key
		}
	}
	return Resolution{Key: key, Warning: warning}
}

func last4(id string) string {
	if len(id) <= 4 {
		return id
	}
	return id[len(id)-4:]
}
