package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Get(ctx, "k"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get missing = %v", err)
	}
	buf := []byte(`{"a":1}`)
	_ = s.Set(ctx, "k", buf)
	buf[2] = 'z'

	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != `{"a":1}` {
		t.Fatalf("Get = %s, %v", got, err)
	}
	_ = s.Delete(ctx, "k")
	if _, err := s.Get(ctx, "k"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get after delete = %v", err)
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.json")
	s := NewFileStore(path)

	if _, err := s.Get(ctx, "k"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get on missing file = %v", err)
	}
	if err := s.Set(ctx, "k", []byte(`[1,2]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "other", []byte(`"x"`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != `[1,2]` {
		t.Fatalf("Get = %s, %v", got, err)
	}
	reopened, err := NewFileStore(path).Get(ctx, "k")
	if err != nil || string(reopened) != `[1,2]` {
		t.Fatalf("Get from reopened store = %s, %v", reopened, err)
	}
	if err := s.Set(ctx, "bad", []byte("nope")); err == nil {
		t.Fatal("Set with non-JSON value should fail")
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get after delete = %v", err)
	}
	if _, err := s.Get(ctx, "other"); err != nil {
		t.Fatalf("other key lost: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")
	if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path).Get(context.Background(), "k"); err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get on corrupt file = %v", err)
	}
}
