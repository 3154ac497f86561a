// Package viewstore persists saved filter views in a single durable slot.
package viewstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/starford/flowcrm/internal/apperr"
	"github.com/starford/flowcrm/internal/models"
	"github.com/starford/flowcrm/internal/storage"
)

// Store keeps the full view collection in memory and rewrites the whole
// collection to its slot after every mutation.
//
// All methods hold one mutex, so concurrent Save calls cannot race on id
// assignment. The in-memory copy only changes after the slot write
// succeeds, which keeps memory and slot in lock-step.
type Store struct {
	mu     sync.Mutex
	slot   storage.Slot
	logger *slog.Logger
	views  []models.SavedView
	now    func() time.Time
}

// New loads the collection from slot. Unreadable or malformed data is
// logged and the store starts empty; construction never fails.
func New(ctx context.Context, slot storage.Slot, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		slot:   slot,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	s.views = s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) []models.SavedView {
	data, err := s.slot.Load(ctx)
	if err != nil {
		s.logger.Warn("viewstore: load failed, starting empty",
			slog.String("slot", s.slot.Name()),
			slog.String("error", err.Error()))
		return []models.SavedView{}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []models.SavedView{}
	}
	var views []models.SavedView
	if err := json.Unmarshal(data, &views); err != nil {
		s.logger.Warn("viewstore: invalid data, starting empty",
			slog.String("slot", s.slot.Name()),
			slog.String("error", err.Error()))
		return []models.SavedView{}
	}
	if views == nil {
		views = []models.SavedView{}
	}
	s.logger.Info("viewstore: loaded",
		slog.String("slot", s.slot.Name()),
		slog.Int("views", len(views)))
	return views
}

// persist writes next to the slot and, on success, makes it current.
// Callers hold s.mu.
func (s *Store) persist(ctx context.Context, next []models.SavedView) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("viewstore: encode: %w", err)
	}
	if err := s.slot.Save(ctx, data); err != nil {
		s.logger.Error("viewstore: save failed",
			slog.String("slot", s.slot.Name()),
			slog.String("error", err.Error()))
		return fmt.Errorf("viewstore: save: %w", err)
	}
	s.views = next
	return nil
}

func (s *Store) indexOf(id int64) int {
	return slices.IndexFunc(s.views, func(v models.SavedView) bool { return v.ID == id })
}

// List returns the views of the given type in storage order.
func (s *Store) List(_ context.Context, typ models.ViewType) ([]models.SavedView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.SavedView{}
	for _, v := range s.views {
		if v.Type == typ {
			out = append(out, v.Clone())
		}
	}
	return out, nil
}

// Get returns the view with id, or apperr.ErrNotFound.
func (s *Store) Get(_ context.Context, id int64) (models.SavedView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.SavedView{}, fmt.Errorf("view %d: %w", id, apperr.ErrNotFound)
	}
	return s.views[i].Clone(), nil
}

// Save stores a new view with id max(ids)+1 and fresh timestamps. The
// input is not validated here.
func (s *Store) Save(ctx context.Context, in models.ViewInput) (models.SavedView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var maxID int64
	for _, v := range s.views {
		maxID = max(maxID, v.ID)
	}
	now := s.now()
	filters := slices.Clone(in.Filters)
	if filters == nil {
		filters = []models.FilterRule{}
	}
	view := models.SavedView{
		ID:          maxID + 1,
		Name:        in.Name,
		Description: in.Description,
		Type:        in.Type,
		Filters:     filters,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	next := append(slices.Clone(s.views), view)
	if err := s.persist(ctx, next); err != nil {
		return models.SavedView{}, err
	}
	return view.Clone(), nil
}

// UpdateCheck inspects a pending update while the store is locked. current
// is the stored view, next the merged result. A non-nil error aborts the
// update and is returned unchanged.
type UpdateCheck func(current, next models.SavedView) error

// Update merges patch into the view with id and refreshes UpdatedAt. The
// checks run in the same critical section as the write, so a check on
// current cannot be invalidated by a concurrent update.
func (s *Store) Update(ctx context.Context, id int64, patch models.ViewPatch, checks ...UpdateCheck) (models.SavedView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.SavedView{}, fmt.Errorf("view %d: %w", id, apperr.ErrNotFound)
	}

	view := s.views[i].Clone()
	if patch.Name != nil {
		view.Name = *patch.Name
	}
	if patch.Description != nil {
		view.Description = *patch.Description
	}
	if patch.Type != nil {
		view.Type = *patch.Type
	}
	if patch.Filters != nil {
		view.Filters = slices.Clone(*patch.Filters)
		if view.Filters == nil {
			view.Filters = []models.FilterRule{}
		}
	}
	view.UpdatedAt = s.now()

	for _, check := range checks {
		if err := check(s.views[i].Clone(), view.Clone()); err != nil {
			return models.SavedView{}, err
		}
	}

	next := slices.Clone(s.views)
	next[i] = view
	if err := s.persist(ctx, next); err != nil {
		return models.SavedView{}, err
	}
	return view.Clone(), nil
}

// Delete removes the view with id, or returns apperr.ErrNotFound.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("view %d: %w", id, apperr.ErrNotFound)
	}
	next := slices.Delete(slices.Clone(s.views), i, i+1)
	return s.persist(ctx, next)
}

// Len returns the number of stored views across all types.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}
