package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"stageplan/pkg/domain"
)

func snapshot(id string) domain.ProjectSnapshot {
	return domain.ProjectSnapshot{
		ID:         id,
		StageCount: 3,
		NextID:     2,
		SavedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Entities: []domain.EntitySnapshot{{
			ID:         1,
			Position:   domain.Position{X: 0.5, Y: 0.5},
			FirstStage: 1,
			FirstValue: domain.Value{"name": "chest", "mode": "fast"},
			Diffs:      map[domain.StageNumber]domain.Diff{3: {"mode": nil}},
		}},
	}
}

func TestSQLiteStorePersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := NewStore(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if err := store.Save(ctx, snapshot("alpha")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, snapshot("beta")); err != nil {
		t.Fatalf("save: %v", err)
	}
	updated := snapshot("alpha")
	updated.NextID = 9
	if err := store.Save(ctx, updated); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	got, err := reloaded.Load(ctx, "alpha")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(updated, got); diff != "" {
		t.Fatalf("reloaded snapshot (-want +got):\n%s", diff)
	}
	ids, err := reloaded.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff([]string{"alpha", "beta"}, ids); diff != "" {
		t.Fatalf("ids (-want +got):\n%s", diff)
	}
	if reloaded.Path() != path {
		t.Fatalf("unexpected path %s", reloaded.Path())
	}
}

func TestSQLiteStoreDeleteAndMissing(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.Load(ctx, "ghost"); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Save(ctx, snapshot("alpha")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ok, err := store.Delete(ctx, "alpha"); !ok || err != nil {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "alpha"); ok || err != nil {
		t.Fatalf("second delete: %v %v", ok, err)
	}
	if err := store.Save(ctx, domain.ProjectSnapshot{}); err == nil {
		t.Fatalf("expected empty id error")
	}
}

func TestSQLiteStoreCreatesStateTable(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	var name string
	if err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", "state").Scan(&name); err != nil {
		t.Fatalf("lookup state table: %v", err)
	}
}
