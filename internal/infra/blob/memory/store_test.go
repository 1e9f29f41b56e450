package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"stageplan/internal/blob/core"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	meta := map[string]string{"project": "alpha"}
	info, err := s.Put(ctx, "projects/alpha/1.json", bytes.NewReader([]byte("{}")), core.PutOptions{ContentType: "application/json", Metadata: meta})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["project"] = "mutated"
	if info.Size != 2 || info.Metadata["project"] != "alpha" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "projects/alpha/1.json", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected exists error, got %v", err)
	}
	_, rc, err := s.Get(ctx, "projects/alpha/1.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "{}" {
		t.Fatalf("unexpected data %q", data)
	}
	if _, err := s.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.Put(ctx, "projects/beta/1.json", bytes.NewReader([]byte("x")), core.PutOptions{}); err != nil {
		t.Fatalf("put beta: %v", err)
	}
	list, _ := s.List(ctx, "projects/alpha/")
	if len(list) != 1 || list[0].Key != "projects/alpha/1.json" {
		t.Fatalf("unexpected list %+v", list)
	}
	if all, _ := s.List(ctx, ""); len(all) != 2 {
		t.Fatalf("expected two blobs, got %d", len(all))
	}
	if ok, _ := s.Delete(ctx, "projects/alpha/1.json"); !ok {
		t.Fatalf("expected delete true")
	}
	if ok, _ := s.Delete(ctx, "projects/alpha/1.json"); ok {
		t.Fatalf("expected delete false")
	}
}
