package jobs

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

type memEntry struct {
	data      []byte
	createdAt time.Time
	expiresAt time.Time
}

// MemoryTracker keeps jobs in process memory. It is the fallback when no
// Redis is configured.
type MemoryTracker struct {
	mu   sync.Mutex
	ttl  time.Duration
	jobs map[string]memEntry
	now  func() time.Time
}

func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	return &MemoryTracker{ttl: ttl, jobs: make(map[string]memEntry), now: time.Now}
}

func (m *MemoryTracker) Save(_ context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = memEntry{data: data, createdAt: job.CreatedAt, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryTracker) Get(_ context.Context, id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.jobs[id]
	if !ok || m.expired(e) {
		delete(m.jobs, id)
		return nil, ErrNotFound
	}
	var job Job
	if err := json.Unmarshal(e.data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (m *MemoryTracker) List(_ context.Context, limit int) ([]*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]memEntry, 0, len(m.jobs))
	for id, e := range m.jobs {
		if m.expired(e) {
			delete(m.jobs, id)
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].createdAt.After(entries[j].createdAt) })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	out := make([]*Job, 0, len(entries))
	for _, e := range entries {
		var job Job
		if err := json.Unmarshal(e.data, &job); err != nil {
			return nil, err
		}
		out = append(out, &job)
	}
	return out, nil
}

func (m *MemoryTracker) expired(e memEntry) bool {
	return m.ttl > 0 && m.now().After(e.expiresAt)
}
