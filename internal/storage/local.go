package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Local keeps documents as indented JSON files under root/category/key.json.
type Local struct {
	root string
	mu   sync.RWMutex
}

// NewLocal creates root if needed.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &Local{root: root}, nil
}

func (s *Local) path(category, key string) string {
	return filepath.Join(s.root, category, key+".json")
}

// Save writes through a temp file and rename so readers never see a torn
// document.
func (s *Local) Save(_ context.Context, category, key string, v interface{}) error {
	if err := CheckKey(category, key); err != nil {
		return err
	}
	dir := filepath.Join(s.root, category)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(dir, key+".*.tmp")
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encoding %s/%s: %w", category, key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(category, key))
}

func (s *Local) Load(_ context.Context, category, key string, target interface{}) error {
	if err := CheckKey(category, key); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := os.Open(s.path(category, key))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(target); err != nil {
		return fmt.Errorf("decoding %s/%s: %w", category, key, err)
	}
	return nil
}

func (s *Local) Delete(_ context.Context, category, key string) error {
	if err := CheckKey(category, key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(category, key))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

func (s *Local) List(_ context.Context, category string) ([]DocumentInfo, error) {
	if err := CheckKey(category, "x"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(category)
}

func (s *Local) list(category string) ([]DocumentInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, category))
	if errors.Is(err, fs.ErrNotExist) {
		return []DocumentInfo{}, nil
	}
	if err != nil {
		return nil, err
	}

	infos := make([]DocumentInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, DocumentInfo{
			Category:  category,
			Key:       strings.TrimSuffix(entry.Name(), ".json"),
			Size:      fi.Size(),
			UpdatedAt: fi.ModTime().UTC(),
		})
	}
	sortInfos(infos)
	return infos, nil
}

func (s *Local) Stats(context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := NewStats("local")
	dirs, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		infos, err := s.list(d.Name())
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			stats.Add(d.Name(), info.Size)
		}
	}
	return stats, nil
}
