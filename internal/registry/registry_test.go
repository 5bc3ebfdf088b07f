package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/raggate/internal/domain"
	"github.com/kailas-cloud/raggate/internal/kv/file"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store, err := file.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("file.NewStore: %v", err)
	}
	return New(store)
}

func TestRegistry_RoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	cfg := domain.CollectionConfig{
		Name:           "docs",
		EmbeddingModel: "nomic-embed-text",
		Dimension:      768,
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
	}
	if err := r.Set(ctx, cfg); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := r.Get(ctx, "docs")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != cfg {
		t.Errorf("Get: got %+v, want %+v", got, cfg)
	}
}

func TestRegistry_GetMissing(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Get(context.Background(), "absent")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_Remove(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if err := r.Set(ctx, domain.CollectionConfig{Name: "docs", EmbeddingModel: "m", Dimension: 4}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := r.Remove(ctx, "docs"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := r.Remove(ctx, "docs"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second remove, got %v", err)
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Set(ctx, domain.CollectionConfig{Name: name, EmbeddingModel: "m", Dimension: 4}); err != nil {
			t.Fatalf("Set %s: %v", name, err)
		}
	}

	cfgs, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(cfgs) != 3 {
		t.Fatalf("List: got %d, want 3", len(cfgs))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, cfg := range cfgs {
		if cfg.Name != want[i] {
			t.Errorf("List[%d]: got %q, want %q", i, cfg.Name, want[i])
		}
	}
}
