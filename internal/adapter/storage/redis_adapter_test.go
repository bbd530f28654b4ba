package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/marketplace-cart/internal/core/domain"
	"github.com/rl1809/marketplace-cart/internal/port"
)

func setupTestRedis(t *testing.T) (*RedisAdapter, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisAdapter(client), mr
}

func TestRedisGet_NotFound(t *testing.T) {
	adapter, _ := setupTestRedis(t)

	data, err := adapter.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, port.ErrSlotNotFound)
	assert.Nil(t, data)
}

func TestRedisSetGet(t *testing.T) {
	adapter, mr := setupTestRedis(t)
	ctx := context.Background()

	blob := []byte(`[{"id":"p1","title":"Shirt","image_url":"u","price":59.9,"quantity":1}]`)
	require.NoError(t, adapter.Set(ctx, "@GoMarketPlace:cart", blob))

	raw, err := mr.Get(RedisKey("@GoMarketPlace:cart"))
	require.NoError(t, err)
	assert.Equal(t, string(blob), raw)

	got, err := adapter.Get(ctx, "@GoMarketPlace:cart")
	require.NoError(t, err)
	assert.Equal(t, blob, got)
}

func TestRedisSet_Overwrites(t *testing.T) {
	adapter, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, adapter.Set(ctx, "cart", []byte(`[1]`)))
	require.NoError(t, adapter.Set(ctx, "cart", []byte(`[2]`)))
	require.NoError(t, adapter.Set(ctx, "cart", []byte(`[2]`)))

	got, err := adapter.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, `[2]`, string(got))
}

func TestRedis_RoundTripCart(t *testing.T) {
	adapter, _ := setupTestRedis(t)
	ctx := context.Background()

	cart := domain.Cart{
		{ProductBase: domain.ProductBase{ID: "p1", Title: "Shirt", ImageURL: "u", Price: 59.9}, Quantity: 2},
		{ProductBase: domain.ProductBase{ID: "p2", Title: "Mug", ImageURL: "m", Price: 12}, Quantity: 1},
	}
	data, err := domain.EncodeCart(cart)
	require.NoError(t, err)
	require.NoError(t, adapter.Set(ctx, "cart", data))

	raw, err := adapter.Get(ctx, "cart")
	require.NoError(t, err)
	got, err := domain.DecodeCart(raw)
	require.NoError(t, err)
	assert.Equal(t, cart, got)
}

func TestRedis_ConcurrentSets(t *testing.T) {
	adapter, _ := setupTestRedis(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, adapter.Set(ctx, "cart", []byte(`[]`)))
		}()
	}
	wg.Wait()

	got, err := adapter.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))
}

func TestRedis_Unavailable(t *testing.T) {
	adapter, mr := setupTestRedis(t)
	mr.Close()

	ctx := context.Background()
	assert.Error(t, adapter.Ping(ctx))

	_, err := adapter.Get(ctx, "cart")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, port.ErrSlotNotFound)

	assert.Error(t, adapter.Set(ctx, "cart", []byte(`[]`)))
}

func TestRedisDelete(t *testing.T) {
	adapter, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, adapter.Set(ctx, "cart", []byte(`[]`)))
	require.True(t, mr.Exists(RedisKey("cart")))

	require.NoError(t, adapter.Delete(ctx, "cart"))
	assert.False(t, mr.Exists(RedisKey("cart")))

	_, err := adapter.Get(ctx, "cart")
	assert.ErrorIs(t, err, port.ErrSlotNotFound)

	assert.NoError(t, adapter.Delete(ctx, "cart"))
}

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "slot:@GoMarketPlace:cart", RedisKey("@GoMarketPlace:cart"))
}

func TestRedisPing(t *testing.T) {
	adapter, _ := setupTestRedis(t)
	assert.NoError(t, adapter.Ping(context.Background()))
}
