package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"app/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

const productTTL = 5 * time.Minute

// 商品詳細のread-throughキャッシュ。
// redisが落ちていてもエラーにせず素通りさせる。
type ProductCache struct {
	rdb *redis.Client
}

func NewProductCache(addr string) *ProductCache {
	if addr == "" {
		return nil
	}
	return &ProductCache{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func key(productID int64) string {
	return "product:" + strconv.FormatInt(productID, 10)
}

func (c *ProductCache) Get(ctx context.Context, productID int64) (model.Product, bool) {
	if c == nil {
		return model.Product{}, false
	}

	data, err := c.rdb.Get(ctx, key(productID)).Bytes()
	if err != nil {
		return model.Product{}, false
	}

	var p model.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return model.Product{}, false
	}
	return p, true
}

func (c *ProductCache) Set(ctx context.Context, p model.Product) {
	if c == nil {
		return
	}

	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, key(p.ID), data, productTTL).Err()
}

// 商品更新・在庫変更時に呼ぶ
func (c *ProductCache) Invalidate(ctx context.Context, productID int64) {
	if c == nil {
		return
	}
	_ = c.rdb.Del(ctx, key(productID)).Err()
}
