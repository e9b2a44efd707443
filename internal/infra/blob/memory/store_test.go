package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"cultureplan/internal/blob/core"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	meta := map[string]string{"plate": "1"}
	info, err := s.Put(ctx, "plans/a/plate-01.csv", strings.NewReader("A,B\n"), core.PutOptions{ContentType: "text/csv", Metadata: meta})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["plate"] = "mutated"
	if info.Size != 4 || info.Metadata["plate"] != "1" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "plans/a/plate-01.csv", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := s.Put(ctx, " ", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}

	got, rc, err := s.Get(ctx, "plans/a/plate-01.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "A,B\n" || got.ContentType != "text/csv" {
		t.Fatalf("unexpected get %q %+v", body, got)
	}
	got.Metadata["plate"] = "changed"
	head, err := s.Head(ctx, "plans/a/plate-01.csv")
	if err != nil || head.Metadata["plate"] != "1" {
		t.Fatalf("head leaked mutation: %+v %v", head, err)
	}

	_, _ = s.Put(ctx, "plans/b/plate-01.csv", strings.NewReader("y"), core.PutOptions{})
	_, _ = s.Put(ctx, "plans/a/layout.json", strings.NewReader("{}"), core.PutOptions{})
	list, _ := s.List(ctx, "plans/a/")
	if len(list) != 2 || list[0].Key != "plans/a/layout.json" || list[1].Key != "plans/a/plate-01.csv" {
		t.Fatalf("unexpected list %+v", list)
	}

	if ok, _ := s.Delete(ctx, "plans/a/layout.json"); !ok {
		t.Fatalf("expected delete")
	}
	if ok, _ := s.Delete(ctx, "plans/a/layout.json"); ok {
		t.Fatalf("expected second delete to report missing")
	}
	if _, _, err := s.Get(ctx, "plans/a/layout.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Head(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
