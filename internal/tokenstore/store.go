// Package tokenstore manages API bearer tokens: bcrypt-hashed at rest, the
// plaintext is handed out exactly once at creation. While the store is empty
// the gateway runs in open mode; the first created token flips it to
// protected mode.
package tokenstore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kailas-cloud/raggate/internal/domain"
	"github.com/kailas-cloud/raggate/internal/kv"
)

const tokenPrefix = "rg_"

// Store persists hashed API tokens through the kv contract.
type Store struct {
	store kv.Store
	cost  int
}

// New creates a token store with the default bcrypt cost.
func New(store kv.Store) *Store {
	return &Store{store: store, cost: bcrypt.DefaultCost}
}

// Exists reports whether any token is registered.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	all, err := s.store.List(ctx, kv.BucketTokens)
	if err != nil {
		return false, fmt.Errorf("list tokens: %w", err)
	}
	return len(all) > 0, nil
}

// Validate checks a candidate plaintext against every stored hash.
// Any single match grants access.
func (s *Store) Validate(ctx context.Context, token string) (bool, error) {
	all, err := s.store.List(ctx, kv.BucketTokens)
	if err != nil {
		return false, fmt.Errorf("list tokens: %w", err)
	}

	for _, raw := range all {
		var stored domain.APIToken
		if err := json.Unmarshal(raw, &stored); err != nil {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(stored.TokenHash), []byte(token)) == nil {
			return true, nil
		}
	}
	return false, nil
}

// Create mints a token, stores its hash, and returns the plaintext exactly once.
func (s *Store) Create(ctx context.Context, name string) (string, domain.APITokenInfo, error) {
	if name == "" {
		return "", domain.APITokenInfo{}, domain.Invalidf("token name is required")
	}

	plaintext, err := generateToken(40)
	if err != nil {
		return "", domain.APITokenInfo{}, fmt.Errorf("generate token: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		return "", domain.APITokenInfo{}, fmt.Errorf("hash token: %w", err)
	}

	tok := domain.APIToken{
		ID:        uuid.NewString(),
		Name:      name,
		TokenHash: string(hash),
		CreatedAt: time.Now().UTC(),
	}

	raw, err := json.Marshal(tok)
	if err != nil {
		return "", domain.APITokenInfo{}, fmt.Errorf("encode token: %w", err)
	}
	if err := s.store.Set(ctx, kv.BucketTokens, tok.ID, raw); err != nil {
		return "", domain.APITokenInfo{}, fmt.Errorf("store token: %w", err)
	}

	return plaintext, tok.Info(), nil
}

// Get returns the public view of one token, or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (domain.APITokenInfo, error) {
	raw, err := s.store.Get(ctx, kv.BucketTokens, id)
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return domain.APITokenInfo{}, fmt.Errorf("token %q: %w", id, domain.ErrNotFound)
		}
		return domain.APITokenInfo{}, fmt.Errorf("load token %q: %w", id, err)
	}

	var tok domain.APIToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return domain.APITokenInfo{}, fmt.Errorf("decode token %q: %w", id, err)
	}
	return tok.Info(), nil
}

// List returns public token views sorted by creation time.
func (s *Store) List(ctx context.Context) ([]domain.APITokenInfo, error) {
	all, err := s.store.List(ctx, kv.BucketTokens)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}

	infos := make([]domain.APITokenInfo, 0, len(all))
	for id, raw := range all {
		var tok domain.APIToken
		if err := json.Unmarshal(raw, &tok); err != nil {
			return nil, fmt.Errorf("decode token %q: %w", id, err)
		}
		infos = append(infos, tok.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.Before(infos[j].CreatedAt) })
	return infos, nil
}

// Delete removes a token, or domain.ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, kv.BucketTokens, id); err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return fmt.Errorf("token %q: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("delete token %q: %w", id, err)
	}
	return nil
}

const tokenCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateToken returns tokenPrefix followed by length random charset bytes.
func generateToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range bytes {
		bytes[i] = tokenCharset[b%byte(len(tokenCharset))]
	}
	return tokenPrefix + string(bytes), nil
}
