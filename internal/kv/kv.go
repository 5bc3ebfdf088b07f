// Package kv defines the small durable key-value contract backing the
// collection registry and the token store. Implementations live in
// subpackages (file, redis) and are selected by the storage driver config.
package kv

import (
	"context"
	"errors"
)

// ErrKeyNotFound signals a missing key.
var ErrKeyNotFound = errors.New("kv: key not found")

// Buckets used by the gateway.
const (
	BucketCollections = "collections"
	BucketTokens      = "tokens"
)

// Store is a durable string-keyed byte store partitioned into buckets.
// Writes are last-write-wins; implementations provide no cross-process
// coordination.
type Store interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Set(ctx context.Context, bucket, key string, value []byte) error
	Delete(ctx context.Context, bucket, key string) error
	// List returns every key/value pair in the bucket.
	List(ctx context.Context, bucket string) (map[string][]byte, error)
	Close()
}
