// Package session resolves bearer tokens to the caller's identity: who they are and
// which board and grade they study. Tokens are issued elsewhere; this package only
// stores and reads the identity attached to them.
package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
	"github.com/p-n-ai/pai-curriculum/internal/platform/cache"
)

// ErrNotFound is returned when a token has no live session.
var ErrNotFound = errors.New("session not found")

// Identity is the caller's profile as far as curriculum reads are concerned.
type Identity struct {
	UserID string           `json:"userId"`
	Board  curriculum.Board `json:"board,omitempty"`
	Grade  string           `json:"grade,omitempty"`
}

// Store looks up and records sessions by bearer token.
type Store interface {
	Lookup(ctx context.Context, token string) (Identity, error)
	Save(ctx context.Context, token string, id Identity, ttl time.Duration) error
	Revoke(ctx context.Context, token string) error
}

// TokenKey derives the storage key for a token. Raw tokens are never stored.
func TokenKey(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return "session:" + hex.EncodeToString(sum[:])
}

// RedisStore keeps sessions in Redis as JSON under hashed token keys.
type RedisStore struct {
	redis *cache.Redis
}

// NewRedisStore creates a session store on an open Redis client.
func NewRedisStore(r *cache.Redis) *RedisStore {
	return &RedisStore{redis: r}
}

func (s *RedisStore) Lookup(ctx context.Context, token string) (Identity, error) {
	if strings.TrimSpace(token) == "" {
		return Identity{}, ErrNotFound
	}
	var id Identity
	err := s.redis.GetJSON(ctx, TokenKey(token), &id)
	if errors.Is(err, cache.ErrMiss) {
		return Identity{}, ErrNotFound
	}
	if err != nil {
		return Identity{}, fmt.Errorf("lookup session: %w", err)
	}
	return id, nil
}

func (s *RedisStore) Save(ctx context.Context, token string, id Identity, ttl time.Duration) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("token is required")
	}
	if err := s.redis.SetJSON(ctx, TokenKey(token), id, ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	if err := s.redis.Del(ctx, TokenKey(token)); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// MemoryStore keeps sessions in process memory, for tests and single-node use.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memSession
	now      func() time.Time
}

type memSession struct {
	id        Identity
	expiresAt time.Time // zero means no expiry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memSession), now: time.Now}
}

func (s *MemoryStore) Lookup(_ context.Context, token string) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := TokenKey(token)
	sess, ok := s.sessions[key]
	if !ok {
		return Identity{}, ErrNotFound
	}
	if !sess.expiresAt.IsZero() && !s.now().Before(sess.expiresAt) {
		delete(s.sessions, key)
		return Identity{}, ErrNotFound
	}
	return sess.id, nil
}

func (s *MemoryStore) Save(_ context.Context, token string, id Identity, ttl time.Duration) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("token is required")
	}
	sess := memSession{id: id}
	if ttl > 0 {
		sess.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.sessions[TokenKey(token)] = sess
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, TokenKey(token))
	s.mu.Unlock()
	return nil
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
