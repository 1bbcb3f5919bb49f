// --- File: internal/storage/cache/tokenstore.go ---
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tinywideclouds/go-fcm-messaging/pkg/dispatch"
)

// ErrCacheMiss is returned by CacheClient.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// generationKey versions every cached listing. Bumping it orphans all of
// them at once, which is what a delete needs: a token delete does not know
// which user owned the token.
const generationKey = "fcm:tokens:gen"

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get decodes the value into dest, or returns an error (ErrCacheMiss if absent).
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Incr atomically increments a counter, creating it at 1.
	Incr(ctx context.Context, key string) (int64, error)
}

// CachedTokenStore is a Decorator that adds Read-Aside caching to any TokenStore.
type CachedTokenStore struct {
	realStore dispatch.TokenStore
	cache     CacheClient
	ttl       time.Duration
}

func NewCachedTokenStore(realStore dispatch.TokenStore, cache CacheClient, ttl time.Duration) *CachedTokenStore {
	return &CachedTokenStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
	}
}

// --- READ PATH (Read-Aside) ---

func (s *CachedTokenStore) TokensForUser(ctx context.Context, userID int64) ([]dispatch.TokenRecord, error) {
	return s.readAside(ctx, fmt.Sprintf("user:%d", userID), func() ([]dispatch.TokenRecord, error) {
		return s.realStore.TokensForUser(ctx, userID)
	})
}

func (s *CachedTokenStore) AllTokens(ctx context.Context) ([]dispatch.TokenRecord, error) {
	return s.readAside(ctx, "all", func() ([]dispatch.TokenRecord, error) {
		return s.realStore.AllTokens(ctx)
	})
}

func (s *CachedTokenStore) readAside(ctx context.Context, suffix string, load func() ([]dispatch.TokenRecord, error)) ([]dispatch.TokenRecord, error) {
	gen, genErr := s.generation(ctx)
	key := fmt.Sprintf("fcm:tokens:v%d:%s", gen, suffix)

	if genErr == nil {
		var cached []dispatch.TokenRecord
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	fresh, err := load()
	if err != nil {
		return nil, err
	}

	// Only populate when the generation is known, otherwise a later read
	// could see an entry written before a delete.
	if genErr == nil {
		_ = s.cache.Set(ctx, key, fresh, s.ttl)
	}
	return fresh, nil
}

func (s *CachedTokenStore) generation(ctx context.Context) (int64, error) {
	var gen int64
	err := s.cache.Get(ctx, generationKey, &gen)
	if errors.Is(err, ErrCacheMiss) {
		return 0, nil
	}
	return gen, err
}

// --- WRITE PATHS (Invalidate-on-Write) ---

func (s *CachedTokenStore) DeleteByToken(ctx context.Context, token string) (bool, error) {
	removed, err := s.realStore.DeleteByToken(ctx, token)
	if err != nil {
		return false, err
	}
	if removed {
		if err := s.invalidate(ctx); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func (s *CachedTokenStore) DeleteTokens(ctx context.Context, tokens []string) (bool, error) {
	if len(tokens) == 0 {
		return true, nil
	}
	removed, err := s.realStore.DeleteTokens(ctx, tokens)
	if err != nil {
		return removed, err
	}
	if removed {
		if err := s.invalidate(ctx); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// invalidate bumps the generation so the next read goes to the real store.
func (s *CachedTokenStore) invalidate(ctx context.Context) error {
	if _, err := s.cache.Incr(ctx, generationKey); err != nil {
		return fmt.Errorf("token cache invalidation failed: %w", err)
	}
	return nil
}
