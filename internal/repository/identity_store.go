package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tokengate/auth-service/internal/domain"
)

const identityKeyPrefix = "auth:identity:"

// IdentityStore resolves a token subject to its principal record.
// Implementations return ErrNotFound for unknown subjects.
type IdentityStore interface {
	LoadIdentity(ctx context.Context, username string) (*domain.Identity, error)
}

// CachedIdentityStore is a read-through Redis cache in front of another IdentityStore.
type CachedIdentityStore struct {
	next   IdentityStore
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedIdentityStore wraps next. A nil client or zero ttl disables caching.
func NewCachedIdentityStore(next IdentityStore, client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *CachedIdentityStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedIdentityStore{next: next, client: client, ttl: ttl, logger: logger}
}

func (s *CachedIdentityStore) enabled() bool {
	return s.client != nil && s.ttl > 0
}

// LoadIdentity serves from Redis when possible and falls back to the wrapped store.
func (s *CachedIdentityStore) LoadIdentity(ctx context.Context, username string) (*domain.Identity, error) {
	if !s.enabled() {
		return s.next.LoadIdentity(ctx, username)
	}

	key := identityKeyPrefix + username
	raw, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var identity domain.Identity
		if jsonErr := json.Unmarshal(raw, &identity); jsonErr == nil {
			return &identity, nil
		}
		s.logger.Warn("discarding corrupt identity cache entry", zap.String("username", username))
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("identity cache read failed", zap.String("username", username), zap.Error(err))
	}

	identity, err := s.next.LoadIdentity(ctx, username)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(identity)
	if err == nil {
		err = s.client.Set(ctx, key, payload, s.ttl).Err()
	}
	if err != nil {
		s.logger.Warn("identity cache write failed", zap.String("username", username), zap.Error(err))
	}
	return identity, nil
}

// Invalidate drops the cached identity for username.
func (s *CachedIdentityStore) Invalidate(ctx context.Context, username string) error {
	if !s.enabled() {
		return nil
	}
	return s.client.Del(ctx, identityKeyPrefix+username).Err()
}
