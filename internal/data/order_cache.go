package data

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/meikanc/mpesa-backend/internal/biz"
	"github.com/meikanc/mpesa-backend/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// nullCacheValue marks a cached miss so repeated lookups for unknown orders
// do not hammer the database.
const nullCacheValue = "null"

type orderCache struct {
	data *Data
	log  *log.Helper
}

// NewOrderCache creates the redis-backed order status cache.
func NewOrderCache(data *Data, logger log.Logger) biz.OrderCache {
	return &orderCache{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func orderStatusKey(orderID uint64) string {
	return fmt.Sprintf("order:status:%d", orderID)
}

func (c *orderCache) GetOrderStatus(ctx context.Context, orderID uint64) (*biz.OrderStatusView, bool, error) {
	val, err := c.data.rdb.Get(ctx, orderStatusKey(orderID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if val == nullCacheValue {
		return nil, true, nil
	}
	var view biz.OrderStatusView
	if err := json.Unmarshal([]byte(val), &view); err != nil {
		// Corrupt entry: treat as a miss and drop it.
		c.log.Warnf("Dropping corrupt cache entry for order %d: %v", orderID, err)
		c.data.rdb.Del(ctx, orderStatusKey(orderID))
		return nil, false, nil
	}
	return &view, true, nil
}

func (c *orderCache) SetOrderStatus(ctx context.Context, orderID uint64, view *biz.OrderStatusView) error {
	key := orderStatusKey(orderID)
	if view == nil {
		return c.data.rdb.Set(ctx, key, nullCacheValue, constants.NullCacheExpiration).Err()
	}
	payload, err := json.Marshal(view)
	if err != nil {
		return err
	}
	ttl := constants.OrderCacheExpiration + time.Duration(rand.Intn(constants.CacheRandomMaxSeconds))*time.Second
	return c.data.rdb.Set(ctx, key, payload, ttl).Err()
}

func (c *orderCache) Invalidate(ctx context.Context, orderID uint64) error {
	return c.data.rdb.Del(ctx, orderStatusKey(orderID)).Err()
}
