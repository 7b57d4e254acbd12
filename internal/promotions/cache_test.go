package promotions

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/smilequote-backend/pkg/db/models"
)

type memoryCache struct {
	data map[string]string
	sets int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string]string{}}
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.sets++
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	default:
		m.data[key] = fmt.Sprint(v)
	}
	return nil
}

func (m *memoryCache) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryCache) CacheKey(scope string, parts ...string) string {
	return strings.Join(append([]string{"test", scope}, parts...), ":")
}

func TestCachedStoreReadsThrough(t *testing.T) {
	promo := summer25()
	store := &stubStore{byIdentifier: map[string]*models.Promotion{"SUMMER25": promo}}
	cache := newMemoryCache()
	cached := NewCachedStore(store, cache, time.Minute, nil)

	first, err := cached.FindByIdentifier(context.Background(), "SUMMER25")
	require.NoError(t, err)
	second, err := cached.FindByIdentifier(context.Background(), "SUMMER25")
	require.NoError(t, err)

	assert.Equal(t, 1, store.calls)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.DiscountValue.Equal(promo.DiscountValue))
	assert.Equal(t, promo.EndDate.Unix(), second.EndDate.Unix())
}

func TestCachedStoreKeyIsCaseInsensitive(t *testing.T) {
	promo := summer25()
	cache := newMemoryCache()
	cached := NewCachedStore(&stubStore{byIdentifier: map[string]*models.Promotion{"summer25": promo}}, cache, time.Minute, nil)

	_, err := cached.FindByIdentifier(context.Background(), "summer25")
	require.NoError(t, err)

	_, ok := cache.data["test:promotion:ident:summer25"]
	assert.True(t, ok)
}

func TestCachedStoreInvalidateDropsAllKeys(t *testing.T) {
	promo := summer25()
	store := &stubStore{
		byIdentifier: map[string]*models.Promotion{"SUMMER25": promo, "summer-smile": promo},
		byID:         map[uuid.UUID]*models.Promotion{},
	}
	store.byID[promo.ID] = promo
	cache := newMemoryCache()
	cached := NewCachedStore(store, cache, time.Minute, nil)

	_, _ = cached.FindByIdentifier(context.Background(), "SUMMER25")
	_, _ = cached.FindByIdentifier(context.Background(), "summer-smile")
	_, _ = cached.FindByID(context.Background(), promo.ID)
	require.Len(t, cache.data, 3)

	cached.Invalidate(context.Background(), promo)
	assert.Empty(t, cache.data)
}

func TestCachedStoreDoesNotCacheMisses(t *testing.T) {
	cache := newMemoryCache()
	cached := NewCachedStore(&stubStore{}, cache, time.Minute, nil)

	_, err := cached.FindByIdentifier(context.Background(), "NOPE")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Zero(t, cache.sets)
}

func TestCachedStoreWithoutCache(t *testing.T) {
	promo := summer25()
	store := &stubStore{byIdentifier: map[string]*models.Promotion{"SUMMER25": promo}}
	cached := NewCachedStore(store, nil, 0, nil)

	_, err := cached.FindByIdentifier(context.Background(), "SUMMER25")
	require.NoError(t, err)
	_, err = cached.FindByIdentifier(context.Background(), "SUMMER25")
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
	cached.Invalidate(context.Background(), promo)
}
