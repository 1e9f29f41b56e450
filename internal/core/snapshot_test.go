package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"stageplan/internal/infra/persistence/memory"
	"stageplan/pkg/domain"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	saved := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, 3, WithClock(ClockFunc(func() time.Time { return saved })))
	chest := h.build(1, info("chest", at(0.5, 0.5), domain.North, domain.Value{"bar": "4"}))
	if res := h.engine.TryUpdateFromWorld(chest, 3, info("chest", at(0.5, 0.5), domain.North, domain.Value{"bar": "9"})); res != domain.UpdateUpdated {
		t.Fatalf("edit: %s", res)
	}
	a := h.build(1, info("pole", at(4.5, 0.5), domain.North, nil))
	b := h.build(2, info("pole", at(7.5, 0.5), domain.North, nil))
	if res := h.engine.TryUpdateWiresFromWorld(b, 2, []domain.ObservedLink{{Other: h.handle(a, 2), Cable: true}}); res != domain.WireUpdated {
		t.Fatalf("wire: %s", res)
	}

	ctx := context.Background()
	store := memory.NewStore()
	if err := h.engine.Save(ctx, store, "alpha"); err != nil {
		t.Fatalf("save: %v", err)
	}
	snap, err := store.Load(ctx, "alpha")
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if !snap.SavedAt.Equal(saved) || snap.StageCount != 3 || len(snap.Entities) != 3 {
		t.Fatalf("unexpected snapshot header %+v", snap)
	}

	world := newFakeWorld()
	restored, err := Load(ctx, store, "alpha", testProtos(), world, world)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	rc, ok := restored.Content().Get(chest.ID())
	if !ok {
		t.Fatalf("chest missing after restore")
	}
	v, _ := rc.ValueAtStage(3)
	if diff := cmp.Diff(domain.Value{"name": "chest", "bar": "9"}, v); diff != "" {
		t.Fatalf("stage 3 value (-want +got):\n%s", diff)
	}
	ra, _ := restored.Content().Get(a.ID())
	rb, _ := restored.Content().Get(b.ID())
	if !restored.Content().Graph().HasCable(ra.ID(), rb.ID()) {
		t.Fatalf("cable lost in round trip")
	}
	for _, s := range []domain.StageNumber{2, 3} {
		ha, _ := ra.Representation(s)
		hb, _ := rb.Representation(s)
		if !world.hasCable(s, ha.Handle, hb.Handle) {
			t.Fatalf("cable not rebuilt on stage %d", s)
		}
	}
	if diff := cmp.Diff([]string{"chest", "pole"}, worldNames(world, 1)); diff != "" {
		t.Fatalf("stage 1 objects (-want +got):\n%s", diff)
	}
}

func TestSaveAndLoadRejectEmptyID(t *testing.T) {
	h := newHarness(t, 1)
	store := memory.NewStore()
	if err := h.engine.Save(context.Background(), store, ""); !errors.Is(err, ErrEmptyProjectID) {
		t.Fatalf("expected empty id error, got %v", err)
	}
	if _, err := Load(context.Background(), store, "", testProtos(), h.world, h.world); !errors.Is(err, ErrEmptyProjectID) {
		t.Fatalf("expected empty id error, got %v", err)
	}
	if _, err := Load(context.Background(), store, "missing", testProtos(), h.world, h.world); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSaveReportsStoreFailure(t *testing.T) {
	metrics := &captureMetrics{}
	h := newHarness(t, 1, WithMetrics(metrics))
	store := memory.NewStore()
	_ = store.Close()
	if err := h.engine.Save(context.Background(), store, "alpha"); !errors.Is(err, memory.ErrClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
	if diff := cmp.Diff([]string{"save:fail"}, metrics.ops); diff != "" {
		t.Fatalf("metrics (-want +got):\n%s", diff)
	}
}
