// Package registry persists collection configs through the kv contract.
// It intentionally holds no in-memory cache: every call goes to the backing
// store, so multiple gateway processes sharing one store stay consistent
// up to last-write-wins.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/kailas-cloud/raggate/internal/domain"
	"github.com/kailas-cloud/raggate/internal/kv"
)

// Registry maps collection names to their configs.
type Registry struct {
	store kv.Store
}

// New creates a collection registry over a kv store.
func New(store kv.Store) *Registry {
	return &Registry{store: store}
}

// Get returns the config for a collection, or domain.ErrNotFound.
func (r *Registry) Get(ctx context.Context, name string) (domain.CollectionConfig, error) {
	raw, err := r.store.Get(ctx, kv.BucketCollections, name)
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return domain.CollectionConfig{}, fmt.Errorf("collection %q: %w", name, domain.ErrNotFound)
		}
		return domain.CollectionConfig{}, fmt.Errorf("load collection %q: %w", name, err)
	}

	var cfg domain.CollectionConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return domain.CollectionConfig{}, fmt.Errorf("decode collection %q: %w", name, err)
	}
	return cfg, nil
}

// Set persists a collection config keyed by its name.
func (r *Registry) Set(ctx context.Context, cfg domain.CollectionConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode collection %q: %w", cfg.Name, err)
	}
	if err := r.store.Set(ctx, kv.BucketCollections, cfg.Name, raw); err != nil {
		return fmt.Errorf("store collection %q: %w", cfg.Name, err)
	}
	return nil
}

// Remove deletes a collection config, or domain.ErrNotFound.
func (r *Registry) Remove(ctx context.Context, name string) error {
	if err := r.store.Delete(ctx, kv.BucketCollections, name); err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return fmt.Errorf("collection %q: %w", name, domain.ErrNotFound)
		}
		return fmt.Errorf("remove collection %q: %w", name, err)
	}
	return nil
}

// List returns all collection configs sorted by name.
func (r *Registry) List(ctx context.Context) ([]domain.CollectionConfig, error) {
	all, err := r.store.List(ctx, kv.BucketCollections)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	cfgs := make([]domain.CollectionConfig, 0, len(all))
	for name, raw := range all {
		var cfg domain.CollectionConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("decode collection %q: %w", name, err)
		}
		cfgs = append(cfgs, cfg)
	}
	sort.Slice(cfgs, func(i, j int) bool { return cfgs[i].Name < cfgs[j].Name })
	return cfgs, nil
}
