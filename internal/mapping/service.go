package mapping

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/cgillinger/facebook-stats/internal/domain"
	"github.com/cgillinger/facebook-stats/internal/pkg/distlock"
	"github.com/cgillinger/facebook-stats/internal/pkg/logger"
	"github.com/cgillinger/facebook-stats/internal/storage"
)

const (
	docCategory = "mappings"
	docKey      = "table"
)

// ErrLocked is returned when another process holds the mapping edit lock.
var ErrLocked = errors.New("mapping table is being edited elsewhere")

// Documents is the slice of storage the service needs.
type Documents interface {
	Save(ctx context.Context, category, key string, v interface{}) error
	Load(ctx context.Context, category, key string, target interface{}) error
}

// Service loads, edits and persists the mapping table.
type Service struct {
	store   *Store
	docs    Documents
	newLock func() distlock.DistLock
}

// NewService wraps store. docs and newLock may be nil, in which case edits
// stay in memory and are not serialized across processes.
func NewService(store *Store, docs Documents, newLock func() distlock.DistLock) *Service {
	return &Service{store: store, docs: docs, newLock: newLock}
}

// Store exposes the underlying copy-on-write store.
func (s *Service) Store() *Store { return s.store }

// Current returns the current table.
func (s *Service) Current() *Table { return s.store.Current() }

// Load replaces the current table with the persisted one. A missing or
// invalid persisted table leaves the current table in place.
func (s *Service) Load(ctx context.Context, required []domain.Field) error {
	if s.docs == nil {
		return s.applyRequired(required)
	}
	var persisted Table
	err := s.docs.Load(ctx, docCategory, docKey, &persisted)
	if errors.Is(err, storage.ErrNotFound) {
		logger.Info("no persisted mapping table, using defaults")
		return s.applyRequired(required)
	}
	if err != nil {
		return fmt.Errorf("load mapping table: %w", err)
	}
	if persisted.Schema != domain.FieldSchemaVersion {
		logger.Warn("persisted mapping table has an old schema, using defaults",
			"schema", persisted.Schema, "want", domain.FieldSchemaVersion)
		return s.applyRequired(required)
	}
	if _, err := s.store.Restore(&persisted); err != nil {
		logger.Warn("persisted mapping table is invalid, using defaults", "error", err)
		return s.applyRequired(required)
	}
	logger.Info("mapping table loaded", "revision", persisted.Revision, "bindings", len(persisted.Bindings))
	return s.applyRequired(required)
}

func (s *Service) applyRequired(required []domain.Field) error {
	if len(required) == 0 || slices.Equal(required, s.store.Current().Required) {
		return nil
	}
	_, _, err := s.store.Apply(SetRequired(required))
	return err
}

// Edit applies edit, persists the new table and returns it. If persisting
// fails the in-memory swap is reverted.
func (s *Service) Edit(ctx context.Context, edit Edit) (*Table, error) {
	if s.newLock != nil {
		lock := s.newLock()
		ok, err := lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire mapping lock: %w", err)
		}
		if !ok {
			return nil, ErrLocked
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("release mapping lock", "error", err)
			}
		}()
	}

	prev, next, err := s.store.Apply(edit)
	if err != nil {
		return nil, err
	}
	if s.docs != nil {
		if err := s.docs.Save(ctx, docCategory, docKey, next); err != nil {
			if !s.store.Revert(next, prev) {
				logger.Warn("mapping table changed during failed save, revert skipped", "revision", next.Revision)
			}
			return nil, fmt.Errorf("save mapping table: %w", err)
		}
	}
	logger.Info("mapping table updated", "revision", next.Revision)
	return next, nil
}

// ResetToDefaults replaces the table with the built-in one, keeping the
// current required set.
func (s *Service) ResetToDefaults(ctx context.Context) (*Table, error) {
	required := s.Current().Required
	return s.Edit(ctx, func(*Table) (*Table, error) {
		t := DefaultTable()
		t.Required = append([]domain.Field(nil), required...)
		return Compile(t)
	})
}
