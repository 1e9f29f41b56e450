package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"stageplan/pkg/domain"

	_ "modernc.org/sqlite"
)

func TestNewStoreWrapsOpenError(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("boom") })
	defer restore()
	_, err := NewStore(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestNewStoreWrapsPingError(t *testing.T) {
	var gotDriver, gotDSN string
	restore := OverrideSQLOpen(func(driver, dsn string) (*sql.DB, error) {
		gotDriver, gotDSN = driver, dsn
		db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "closed.db"))
		if err != nil {
			return nil, err
		}
		_ = db.Close()
		return db, nil
	})
	defer restore()
	_, err := NewStore(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping error, got %v", err)
	}
	if gotDriver != "pgx" || gotDSN != DefaultDSN {
		t.Fatalf("unexpected open args %q %q", gotDriver, gotDSN)
	}
}

// TestStoreAgainstLiveDatabase runs only when STAGEPLAN_TEST_POSTGRES_DSN points at a database.
func TestStoreAgainstLiveDatabase(t *testing.T) {
	dsn := os.Getenv("STAGEPLAN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("STAGEPLAN_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	id := "pg-test-" + time.Now().UTC().Format("20060102150405.000000000")
	snap := domain.ProjectSnapshot{
		ID:         id,
		StageCount: 2,
		NextID:     2,
		SavedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Entities: []domain.EntitySnapshot{{
			ID:         1,
			FirstStage: 1,
			FirstValue: domain.Value{"name": "chest"},
		}},
	}
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(snap, got); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}
	if ok, err := store.Delete(ctx, id); !ok || err != nil {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if _, err := store.Load(ctx, id); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
