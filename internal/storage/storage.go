// Package storage persists JSON documents addressed by (category, key).
// The mapping table and the latest processed result live here.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cgillinger/facebook-stats/internal/config"
)

var (
	// ErrNotFound is returned by Load and Delete for an absent document.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidKey rejects categories or keys that could escape their namespace.
	ErrInvalidKey = errors.New("invalid document category or key")
)

// Backend is a document store.
type Backend interface {
	Save(ctx context.Context, category, key string, v interface{}) error
	Load(ctx context.Context, category, key string, target interface{}) error
	Delete(ctx context.Context, category, key string) error
	List(ctx context.Context, category string) ([]DocumentInfo, error)
	Stats(ctx context.Context) (*Stats, error)
}

// DocumentInfo describes one stored document.
type DocumentInfo struct {
	Category  string    `json:"category"`
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategoryStats aggregates one category.
type CategoryStats struct {
	Documents int   `json:"documents"`
	Bytes     int64 `json:"bytes"`
}

// Stats summarizes a backend's contents.
type Stats struct {
	Backend    string                   `json:"backend"`
	Documents  int                      `json:"documents"`
	Bytes      int64                    `json:"bytes"`
	Categories map[string]CategoryStats `json:"categories"`
}

// NewStats returns empty stats for the named backend.
func NewStats(backend string) *Stats {
	return &Stats{Backend: backend, Categories: make(map[string]CategoryStats)}
}

// Add counts one document.
func (s *Stats) Add(category string, size int64) {
	c := s.Categories[category]
	c.Documents++
	c.Bytes += size
	s.Categories[category] = c
	s.Documents++
	s.Bytes += size
}

// New builds the backend named by cfg.Type. The postgres backend lives in
// the repository package and is wired by the caller.
func New(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch cfg.Type {
	case "local", "":
		return NewLocal(cfg.LocalPath)
	case "aws":
		awsStorage, err := NewAWSStorage(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("initializing AWS storage: %w", err)
		}
		return awsStorage, nil
	case "memory":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
}

// CheckKey rejects empty names and names that could escape their namespace.
func CheckKey(category, key string) error {
	for _, s := range []string{category, key} {
		if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
			return fmt.Errorf("%w: %q/%q", ErrInvalidKey, category, key)
		}
	}
	return nil
}

func sortInfos(infos []DocumentInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
}
