package rediscache

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// TokenStore keeps the bearer token of one profile under parceldesk:token:<profile>.
// Tokens carry their own expiry, so the key has no TTL.
type TokenStore struct {
	c       *redis.Client
	profile string
}

func NewTokenStore(c *redis.Client, profile string) *TokenStore {
	if profile == "" {
		profile = "default"
	}
	return &TokenStore{c: c, profile: profile}
}

func (s *TokenStore) key() string {
	return fmt.Sprintf("parceldesk:token:%s", s.profile)
}

func (s *TokenStore) Load(ctx context.Context) (string, bool, error) {
	v, err := s.c.Get(ctx, s.key()).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis get token")
	}
	return v, v != "", nil
}

func (s *TokenStore) Save(ctx context.Context, token string) error {
	if err := s.c.Set(ctx, s.key(), token, 0).Err(); err != nil {
		return errors.Wrap(err, "redis set token")
	}
	return nil
}

func (s *TokenStore) Clear(ctx context.Context) error {
	if err := s.c.Del(ctx, s.key()).Err(); err != nil {
		return errors.Wrap(err, "redis del token")
	}
	return nil
}
