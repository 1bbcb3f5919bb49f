// --- File: internal/storage/cache/tokenstore_test.go ---
package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-fcm-messaging/internal/storage/cache"
	"github.com/tinywideclouds/go-fcm-messaging/pkg/dispatch"
)

// --- Mocks ---
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}
func (m *MockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}
func (m *MockCache) Incr(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

type MockRealStore struct {
	mock.Mock
}

func (m *MockRealStore) DeleteByToken(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}
func (m *MockRealStore) DeleteTokens(ctx context.Context, tokens []string) (bool, error) {
	args := m.Called(ctx, tokens)
	return args.Bool(0), args.Error(1)
}
func (m *MockRealStore) TokensForUser(ctx context.Context, userID int64) ([]dispatch.TokenRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dispatch.TokenRecord), args.Error(1)
}
func (m *MockRealStore) AllTokens(ctx context.Context) ([]dispatch.TokenRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dispatch.TokenRecord), args.Error(1)
}

func setGeneration(gen int64) func(mock.Arguments) {
	return func(args mock.Arguments) {
		*args.Get(2).(*int64) = gen
	}
}

func TestCachedStore_ReadAside(t *testing.T) {
	ctx := context.Background()
	records := []dispatch.TokenRecord{{UserID: 7, FCMToken: "token-a"}}

	t.Run("Miss loads from store and populates", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedTokenStore(mockDB, mockCache, time.Hour)

		mockCache.On("Get", ctx, "fcm:tokens:gen", mock.Anything).Return(nil).Run(setGeneration(3))
		mockCache.On("Get", ctx, "fcm:tokens:v3:user:7", mock.Anything).Return(cache.ErrCacheMiss)
		mockDB.On("TokensForUser", ctx, int64(7)).Return(records, nil)
		mockCache.On("Set", ctx, "fcm:tokens:v3:user:7", records, time.Hour).Return(nil)

		got, err := store.TokensForUser(ctx, 7)

		require.NoError(t, err)
		assert.Equal(t, records, got)
		mockDB.AssertExpectations(t)
		mockCache.AssertExpectations(t)
	})

	t.Run("Hit skips the store", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedTokenStore(mockDB, mockCache, time.Hour)

		mockCache.On("Get", ctx, "fcm:tokens:gen", mock.Anything).Return(cache.ErrCacheMiss)
		mockCache.On("Get", ctx, "fcm:tokens:v0:all", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
			*args.Get(2).(*[]dispatch.TokenRecord) = records
		})

		got, err := store.AllTokens(ctx)

		require.NoError(t, err)
		assert.Equal(t, records, got)
		mockDB.AssertNotCalled(t, "AllTokens", mock.Anything)
	})

	t.Run("Cache outage falls through without populating", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedTokenStore(mockDB, mockCache, time.Hour)

		mockCache.On("Get", ctx, "fcm:tokens:gen", mock.Anything).Return(assert.AnError)
		mockDB.On("AllTokens", ctx).Return(records, nil)

		got, err := store.AllTokens(ctx)

		require.NoError(t, err)
		assert.Equal(t, records, got)
		mockCache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCachedStore_ImmediateInvalidation(t *testing.T) {
	ctx := context.Background()

	t.Run("Delete bumps the generation", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedTokenStore(mockDB, mockCache, time.Hour)

		mockDB.On("DeleteByToken", ctx, "dead-token").Return(true, nil)
		mockCache.On("Incr", ctx, "fcm:tokens:gen").Return(int64(4), nil)

		removed, err := store.DeleteByToken(ctx, "dead-token")

		require.NoError(t, err)
		assert.True(t, removed)
		mockDB.AssertExpectations(t)
		mockCache.AssertExpectations(t)
	})

	t.Run("Nothing removed leaves the cache alone", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedTokenStore(mockDB, mockCache, time.Hour)

		mockDB.On("DeleteTokens", ctx, []string{"ghost"}).Return(false, nil)

		removed, err := store.DeleteTokens(ctx, []string{"ghost"})

		require.NoError(t, err)
		assert.False(t, removed)
		mockCache.AssertNotCalled(t, "Incr", mock.Anything, mock.Anything)
	})

	t.Run("Empty batch never reaches the store", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedTokenStore(mockDB, mockCache, time.Hour)

		removed, err := store.DeleteTokens(ctx, []string{})

		require.NoError(t, err)
		assert.True(t, removed)
		mockDB.AssertNotCalled(t, "DeleteTokens", mock.Anything, mock.Anything)
	})

	t.Run("Batch delete invalidates", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedTokenStore(mockDB, mockCache, time.Hour)

		mockDB.On("DeleteTokens", ctx, []string{"t1", "t2"}).Return(true, nil)
		mockCache.On("Incr", ctx, "fcm:tokens:gen").Return(int64(0), assert.AnError)

		removed, err := store.DeleteTokens(ctx, []string{"t1", "t2"})

		require.Error(t, err)
		assert.True(t, removed)
		assert.Contains(t, err.Error(), "invalidation failed")
	})
}
