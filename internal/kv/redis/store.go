// Package redis implements the kv contract via rueidis for deployments that
// want the registry and token store in Redis instead of flat files.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/raggate/internal/kv"
)

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

// Store implements kv.Store via rueidis.
type Store struct {
	client rueidis.Client
	prefix string
}

var _ kv.Store = (*Store)(nil)

// NewStore creates a Redis store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client, prefix: cfg.KeyPrefix}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := s.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("store not ready: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	cmd := s.client.B().Get().Key(s.key(bucket, key)).Build()
	data, err := s.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, kv.ErrKeyNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Set stores a value at the given key.
func (s *Store) Set(ctx context.Context, bucket, key string, value []byte) error {
	cmd := s.client.B().Set().Key(s.key(bucket, key)).Value(string(value)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("set %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key returns kv.ErrKeyNotFound.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	cmd := s.client.B().Del().Key(s.key(bucket, key)).Build()
	n, err := s.client.Do(ctx, cmd).AsInt64()
	if err != nil {
		return fmt.Errorf("del %s/%s: %w", bucket, key, err)
	}
	if n == 0 {
		return kv.ErrKeyNotFound
	}
	return nil
}

// List returns every key/value pair in the bucket via cursor SCAN.
func (s *Store) List(ctx context.Context, bucket string) (map[string][]byte, error) {
	pattern := s.key(bucket, "*")
	out := make(map[string][]byte)

	var cursor uint64
	for {
		cmd := s.client.B().Scan().Cursor(cursor).Match(pattern).Count(100).Build()
		entry, err := s.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", bucket, err)
		}

		for _, full := range entry.Elements {
			val, err := s.Get(ctx, bucket, strings.TrimPrefix(full, s.key(bucket, "")))
			if err != nil {
				// Deleted between SCAN and GET.
				if errors.Is(err, kv.ErrKeyNotFound) {
					continue
				}
				return nil, err
			}
			out[strings.TrimPrefix(full, s.key(bucket, ""))] = val
		}

		cursor = entry.Cursor
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

func (s *Store) key(bucket, key string) string {
	return s.prefix + bucket + ":" + key
}
