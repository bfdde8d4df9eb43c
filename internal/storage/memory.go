package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memDoc struct {
	data      []byte
	updatedAt time.Time
}

// Memory is a process-local backend for the CLI and tests. Documents are
// stored encoded so callers cannot alias stored values.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string]memDoc
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]memDoc)}
}

func (m *Memory) Save(_ context.Context, category, key string, v interface{}) error {
	if err := CheckKey(category, key); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs[category] == nil {
		m.docs[category] = make(map[string]memDoc)
	}
	m.docs[category][key] = memDoc{data: data, updatedAt: time.Now().UTC()}
	return nil
}

func (m *Memory) Load(_ context.Context, category, key string, target interface{}) error {
	m.mu.RLock()
	doc, ok := m.docs[category][key]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(doc.data, target)
}

func (m *Memory) Delete(_ context.Context, category, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[category][key]; !ok {
		return ErrNotFound
	}
	delete(m.docs[category], key)
	return nil
}

func (m *Memory) List(_ context.Context, category string) ([]DocumentInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]DocumentInfo, 0, len(m.docs[category]))
	for key, doc := range m.docs[category] {
		infos = append(infos, DocumentInfo{Category: category, Key: key, Size: int64(len(doc.data)), UpdatedAt: doc.updatedAt})
	}
	sortInfos(infos)
	return infos, nil
}

func (m *Memory) Stats(context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := NewStats("memory")
	for category, docs := range m.docs {
		for _, doc := range docs {
			stats.Add(category, int64(len(doc.data)))
		}
	}
	return stats, nil
}
