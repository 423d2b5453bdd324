package cache

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultNamespace = "kitchen"

// Option tunes a redis store.
type Option func(*redisStore)

// WithTTL sets the expiry used when Set is called with a zero ttl.
func WithTTL(ttl time.Duration) Option {
	return func(s *redisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithNamespace prefixes every key with ns and a colon. An empty ns disables the prefix.
func WithNamespace(ns string) Option {
	return func(s *redisStore) { s.namespace = ns }
}

type redisStore struct {
	client    goredis.UniversalClient
	ttl       time.Duration
	namespace string
}

// NewRedisStore wraps client. Keys are namespaced under "kitchen:" unless overridden.
func NewRedisStore(client goredis.UniversalClient, opts ...Option) Store {
	s := &redisStore{client: client, ttl: 5 * time.Minute, namespace: defaultNamespace}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *redisStore) key(k string) string {
	if s.namespace == "" {
		return k
	}
	return s.namespace + ":" + k
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, s.key(key)).Bytes()
	switch {
	case errors.Is(err, goredis.Nil):
		return nil, ErrCacheMiss
	case err != nil:
		return nil, err
	}
	return b, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}
