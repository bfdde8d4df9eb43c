package mapping

import (
	"sync"
	"sync/atomic"
)

// Store holds the current table behind an atomic pointer. Readers take a
// snapshot with Current and keep using it for a whole resolution pass;
// writers build a new table and swap it in.
type Store struct {
	mu  sync.Mutex // serializes writers
	cur atomic.Pointer[Table]
}

// NewStore compiles t and makes it current.
func NewStore(t *Table) (*Store, error) {
	c, err := Compile(t)
	if err != nil {
		return nil, err
	}
	s := &Store{}
	s.cur.Store(c)
	return s, nil
}

// Current returns the current table. Callers must treat it as read-only.
func (s *Store) Current() *Table {
	return s.cur.Load()
}

// Apply runs edit against the current table and swaps in the result. On
// error the current table is untouched. It returns the previous and the new
// table.
func (s *Store) Apply(edit Edit) (prev, next *Table, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev = s.cur.Load()
	next, err = edit(prev)
	if err != nil {
		return prev, nil, err
	}
	next.Revision = prev.Revision + 1
	s.cur.Store(next)
	return prev, next, nil
}

// Restore validates t and makes it current, keeping t's revision. It is
// used for tables read back from storage.
func (s *Store) Restore(t *Table) (*Table, error) {
	next, err := Compile(t)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.Store(next)
	return next, nil
}

// Revert restores prev if next is still current. It reports whether the
// swap happened.
func (s *Store) Revert(next, prev *Table) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur.CompareAndSwap(next, prev)
}
