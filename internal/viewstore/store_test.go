package viewstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/flowcrm/internal/apperr"
	"github.com/starford/flowcrm/internal/models"
	"github.com/starford/flowcrm/internal/storage"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func contactsInput(name string) models.ViewInput {
	return models.ViewInput{
		Name: name,
		Type: models.ViewContacts,
		Filters: []models.FilterRule{
			{ID: "r1", Field: "company", Operator: models.OpContains, Value: "acme"},
		},
	}
}

func TestSave_AssignsIDsAndTimestamps(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, storage.NewMemorySlot(nil), quiet)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	a, err := s.Save(ctx, contactsInput("A"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	b, err := s.Save(ctx, contactsInput("B"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if a.ID != 1 || b.ID != 2 {
		t.Errorf("ids = %d, %d; want 1, 2", a.ID, b.ID)
	}
	if !a.CreatedAt.Equal(fixed) || !a.UpdatedAt.Equal(fixed) {
		t.Errorf("timestamps = %v / %v", a.CreatedAt, a.UpdatedAt)
	}
}

func TestSave_IDIsMaxPlusOne(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot([]byte(`[
		{"id":3,"name":"x","type":"contacts","filters":[],"createdAt":"2024-01-01T00:00:00Z","updatedAt":"2024-01-01T00:00:00Z"},
		{"id":7,"name":"y","type":"deals","filters":[],"createdAt":"2024-01-01T00:00:00Z","updatedAt":"2024-01-01T00:00:00Z"}
	]`))
	s := New(ctx, slot, quiet)

	v, err := s.Save(ctx, contactsInput("new"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if v.ID != 8 {
		t.Errorf("id = %d, want 8", v.ID)
	}

	if err := s.Delete(ctx, 8); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	v, _ = s.Save(ctx, contactsInput("again"))
	if v.ID != 8 {
		t.Errorf("id after deleting max = %d, want 8", v.ID)
	}
}

func TestList_ScopedByType(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, storage.NewMemorySlot(nil), quiet)
	_, _ = s.Save(ctx, contactsInput("c1"))
	_, _ = s.Save(ctx, models.ViewInput{Name: "d1", Type: models.ViewDeals})
	_, _ = s.Save(ctx, contactsInput("c2"))

	got, err := s.List(ctx, models.ViewContacts)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].Name != "c1" || got[1].Name != "c2" {
		t.Errorf("contacts views = %+v", got)
	}
	deals, _ := s.List(ctx, models.ViewDeals)
	if len(deals) != 1 || deals[0].Filters == nil {
		t.Errorf("deal views = %+v", deals)
	}
}

func TestRoundTrip_ThroughFileSlot(t *testing.T) {
	ctx := context.Background()
	slot, err := storage.NewFileSlot(filepath.Join(t.TempDir(), "views.json"))
	if err != nil {
		t.Fatal(err)
	}

	s := New(ctx, slot, quiet)
	saved, err := s.Save(ctx, contactsInput("Acme people"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened := New(ctx, slot, quiet)
	got, err := reopened.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Name != "Acme people" || len(got.Filters) != 1 || got.Filters[0].Value != "acme" {
		t.Errorf("reloaded view = %+v", got)
	}
	if !got.CreatedAt.Equal(saved.CreatedAt) {
		t.Errorf("createdAt = %v, want %v", got.CreatedAt, saved.CreatedAt)
	}
}

func TestUpdate_MergesPatch(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, storage.NewMemorySlot(nil), quiet)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0 }
	v, _ := s.Save(ctx, contactsInput("before"))

	s.now = func() time.Time { return t0.Add(time.Hour) }
	name := "after"
	got, err := s.Update(ctx, v.ID, models.ViewPatch{Name: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Name != "after" || len(got.Filters) != 1 {
		t.Errorf("updated = %+v", got)
	}
	if !got.CreatedAt.Equal(t0) || !got.UpdatedAt.Equal(t0.Add(time.Hour)) {
		t.Errorf("timestamps = %v / %v", got.CreatedAt, got.UpdatedAt)
	}

	empty := []models.FilterRule{}
	got, _ = s.Update(ctx, v.ID, models.ViewPatch{Filters: &empty})
	if len(got.Filters) != 0 || got.Name != "after" {
		t.Errorf("after filters patch = %+v", got)
	}
}

func TestUpdate_CheckRejectsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot(nil)
	s := New(ctx, slot, quiet)
	v, _ := s.Save(ctx, contactsInput("before"))
	saves := slot.Saves()

	stop := errors.New("stop")
	name := "after"
	var seen [2]string
	_, err := s.Update(ctx, v.ID, models.ViewPatch{Name: &name}, func(current, next models.SavedView) error {
		seen = [2]string{current.Name, next.Name}
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("err = %v, want check error", err)
	}
	if seen != [2]string{"before", "after"} {
		t.Errorf("check saw %v", seen)
	}
	if got, _ := s.Get(ctx, v.ID); got.Name != "before" {
		t.Errorf("name = %q, want unchanged", got.Name)
	}
	if slot.Saves() != saves {
		t.Error("rejected update was written")
	}
}

func TestMissingID_NotFound(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot(nil)
	s := New(ctx, slot, quiet)
	_, _ = s.Save(ctx, contactsInput("keep"))
	saves := slot.Saves()

	if _, err := s.Get(ctx, 42); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get err = %v", err)
	}
	if _, err := s.Update(ctx, 42, models.ViewPatch{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Update err = %v", err)
	}
	if err := s.Delete(ctx, 42); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Delete err = %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("len = %d, want 1", s.Len())
	}
	if slot.Saves() != saves {
		t.Errorf("missing id caused a write")
	}
}

func TestNew_CorruptDataStartsEmpty(t *testing.T) {
	ctx := context.Background()
	for name, data := range map[string]string{
		"garbage": "{not json",
		"object":  `{"id":1}`,
		"null":    "null",
		"blank":   "  ",
	} {
		t.Run(name, func(t *testing.T) {
			s := New(ctx, storage.NewMemorySlot([]byte(data)), quiet)
			if s.Len() != 0 {
				t.Errorf("len = %d, want 0", s.Len())
			}
			v, err := s.Save(ctx, contactsInput("first"))
			if err != nil || v.ID != 1 {
				t.Errorf("Save = %+v, %v", v, err)
			}
		})
	}
}

func TestNew_LoadErrorStartsEmpty(t *testing.T) {
	slot := storage.NewMemorySlot([]byte(`[{"id":1,"name":"x","type":"contacts","filters":[]}]`))
	slot.LoadErr = errors.New("unreachable")
	s := New(context.Background(), slot, quiet)
	if s.Len() != 0 {
		t.Errorf("len = %d, want 0", s.Len())
	}
}

func TestSaveFailure_PropagatesAndRollsBack(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot(nil)
	s := New(ctx, slot, quiet)
	v, _ := s.Save(ctx, contactsInput("kept"))

	boom := errors.New("quota exceeded")
	slot.SaveErr = boom

	if _, err := s.Save(ctx, contactsInput("lost")); !errors.Is(err, boom) {
		t.Errorf("Save err = %v", err)
	}
	name := "renamed"
	if _, err := s.Update(ctx, v.ID, models.ViewPatch{Name: &name}); !errors.Is(err, boom) {
		t.Errorf("Update err = %v", err)
	}
	if err := s.Delete(ctx, v.ID); !errors.Is(err, boom) {
		t.Errorf("Delete err = %v", err)
	}

	got, err := s.Get(ctx, v.ID)
	if err != nil || got.Name != "kept" || s.Len() != 1 {
		t.Errorf("state changed after failed writes: %+v, %v, len %d", got, err, s.Len())
	}
}

func TestReturnedViewsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, storage.NewMemorySlot(nil), quiet)
	v, _ := s.Save(ctx, contactsInput("a"))
	v.Filters[0].Value = "mutated"

	got, _ := s.Get(ctx, v.ID)
	if got.Filters[0].Value != "acme" {
		t.Errorf("store shares filter slice with caller")
	}
}

func TestSave_ConcurrentIDsUnique(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, storage.NewMemorySlot(nil), quiet)

	const n = 20
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.Save(ctx, contactsInput("c"))
			if err == nil {
				ids <- v.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("got %d ids, want %d", len(seen), n)
	}
}
