// Package file implements the kv contract on top of one JSON file per bucket.
// Every operation re-reads the file from disk, so concurrent processes observe
// each other's writes with last-write-wins semantics. An in-process mutex
// serializes the read-modify-write cycle within a single gateway instance.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kailas-cloud/raggate/internal/kv"
)

// Store implements kv.Store over flat JSON files in a data directory.
type Store struct {
	dir string
	mu  sync.Mutex
}

var _ kv.Store = (*Store)(nil)

// NewStore creates a file store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read(bucket)
	if err != nil {
		return nil, err
	}
	v, ok := data[key]
	if !ok {
		return nil, kv.ErrKeyNotFound
	}
	return v, nil
}

// Set stores a value at the given key.
func (s *Store) Set(_ context.Context, bucket, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read(bucket)
	if err != nil {
		return err
	}
	data[key] = value
	return s.write(bucket, data)
}

// Delete removes a key. Deleting a missing key returns kv.ErrKeyNotFound.
func (s *Store) Delete(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read(bucket)
	if err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		return kv.ErrKeyNotFound
	}
	delete(data, key)
	return s.write(bucket, data)
}

// List returns every key/value pair in the bucket.
func (s *Store) List(_ context.Context, bucket string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read(bucket)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out, nil
}

// Close is a no-op; the store holds no open handles between calls.
func (s *Store) Close() {}

func (s *Store) path(bucket string) string {
	return filepath.Join(s.dir, bucket+".json")
}

func (s *Store) read(bucket string) (map[string]json.RawMessage, error) {
	raw, err := os.ReadFile(s.path(bucket))
	if os.IsNotExist(err) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read bucket %s: %w", bucket, err)
	}
	data := map[string]json.RawMessage{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("parse bucket %s: %w", bucket, err)
		}
	}
	return data, nil
}

func (s *Store) write(bucket string, data map[string]json.RawMessage) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode bucket %s: %w", bucket, err)
	}

	// Write-then-rename so a crashed write never truncates the bucket.
	tmp := s.path(bucket) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write bucket %s: %w", bucket, err)
	}
	if err := os.Rename(tmp, s.path(bucket)); err != nil {
		return fmt.Errorf("rename bucket %s: %w", bucket, err)
	}
	return nil
}
