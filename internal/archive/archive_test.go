package archive

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"stageplan/internal/blob/core"
	"stageplan/pkg/domain"
)

func sampleSnapshot(id string, saved time.Time) domain.ProjectSnapshot {
	last := domain.StageNumber(3)
	return domain.ProjectSnapshot{
		ID:         id,
		StageCount: 4,
		NextID:     3,
		Entities: []domain.EntitySnapshot{
			{ID: 1, Position: domain.Position{X: 0.5, Y: 0.5}, FirstStage: 1, LastStage: &last, FirstValue: domain.Value{"name": "chest", "bar": "2"}, Diffs: map[domain.StageNumber]domain.Diff{2: {"bar": "5"}}},
			{ID: 2, Position: domain.Position{X: 3.5, Y: 0.5}, FirstStage: 2, FirstValue: domain.Value{"name": "pole"}},
		},
		Cables:  []domain.CableEdge{{A: 1, B: 2}},
		SavedAt: saved,
	}
}

func TestArchiveBackends(t *testing.T) {
	for _, cfg := range []Config{
		{Driver: core.DriverMemory},
		{Driver: core.DriverFilesystem, Root: t.TempDir()},
	} {
		t.Run(string(cfg.Driver), func(t *testing.T) {
			ctx := context.Background()
			a, err := Open(ctx, cfg)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			if a.Driver() != cfg.Driver {
				t.Fatalf("driver %s, want %s", a.Driver(), cfg.Driver)
			}
			if _, _, err := a.Latest(ctx, "alpha"); !errors.Is(err, ErrNoArchives) {
				t.Fatalf("expected no archives, got %v", err)
			}

			older := sampleSnapshot("alpha", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
			newer := sampleSnapshot("alpha", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
			newer.Entities = newer.Entities[:1]
			newer.Cables = nil
			for _, snap := range []domain.ProjectSnapshot{newer, older, sampleSnapshot("beta", older.SavedAt)} {
				if _, err := a.Put(ctx, snap); err != nil {
					t.Fatalf("put %s: %v", snap.ID, err)
				}
			}

			entries, err := a.List(ctx, "alpha")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(entries) != 2 {
				t.Fatalf("expected 2 alpha archives, got %+v", entries)
			}
			if !entries[0].SavedAt.Equal(older.SavedAt) || entries[1].Entities != 1 || entries[0].StageCount != 4 {
				t.Fatalf("unexpected entries %+v", entries)
			}
			if !strings.HasPrefix(entries[0].Key, "projects/alpha/20260101T") {
				t.Fatalf("unexpected key %s", entries[0].Key)
			}

			got, entry, err := a.Latest(ctx, "alpha")
			if err != nil {
				t.Fatalf("latest: %v", err)
			}
			if entry.Key != entries[1].Key {
				t.Fatalf("latest picked %s", entry.Key)
			}
			if diff := cmp.Diff(newer, got); diff != "" {
				t.Fatalf("latest snapshot (-want +got):\n%s", diff)
			}

			loaded, err := a.Load(ctx, entries[0].Key)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if diff := cmp.Diff(older, loaded); diff != "" {
				t.Fatalf("older snapshot (-want +got):\n%s", diff)
			}

			if ok, err := a.Delete(ctx, entries[0].Key); !ok || err != nil {
				t.Fatalf("delete: %v %v", ok, err)
			}
			if _, err := a.Load(ctx, entries[0].Key); !errors.Is(err, core.ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
		})
	}
}

func TestArchivePutValidatesAndStamps(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, Config{Driver: core.DriverMemory})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, id := range []string{"", "a/b"} {
		if _, err := a.Put(ctx, domain.ProjectSnapshot{ID: id, StageCount: 1}); err == nil {
			t.Fatalf("expected rejection for %q", id)
		}
	}
	a.newID = func() string { return "fixed" }
	entry, err := a.Put(ctx, domain.ProjectSnapshot{ID: "gamma", StageCount: 1})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if entry.SavedAt.IsZero() || !strings.HasSuffix(entry.Key, "-fixed.json") {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if _, err := a.Put(ctx, domain.ProjectSnapshot{ID: "gamma", StageCount: 1, SavedAt: entry.SavedAt}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected key collision, got %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "tape"}); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}
