package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gofalre.io/inventory/models"
)

const stockCacheTTL = 5 * time.Minute

// StockCache is a read-through cache for stock records. It only serves
// display reads; the reservation path always reads the store directly so a
// conditional write is never keyed on a stale version. Every cache fault is
// logged and absorbed.
type StockCache struct {
	client *redis.Client
	logger *zap.Logger
}

func NewStockCache(client *redis.Client, logger *zap.Logger) *StockCache {
	return &StockCache{
		client: client,
		logger: logger,
	}
}

func stockCacheKey(productID string) string {
	return fmt.Sprintf("stock:%s", productID)
}

func (c *StockCache) Get(ctx context.Context, productID string) (*models.StockRecord, bool) {
	data, err := c.client.Get(ctx, stockCacheKey(productID)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Error("failed to get cached stock record", zap.String("product_id", productID), zap.Error(err))
		return nil, false
	}

	var rec models.StockRecord
	if err = json.Unmarshal(data, &rec); err != nil {
		c.logger.Error("failed to decode cached stock record", zap.String("product_id", productID), zap.Error(err))
		return nil, false
	}
	return &rec, true
}

func (c *StockCache) Set(ctx context.Context, rec *models.StockRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		c.logger.Error("failed to encode stock record", zap.String("product_id", rec.ProductID), zap.Error(err))
		return
	}
	if err = c.client.Set(ctx, stockCacheKey(rec.ProductID), data, stockCacheTTL).Err(); err != nil {
		c.logger.Error("failed to cache stock record", zap.String("product_id", rec.ProductID), zap.Error(err))
	}
}

// Invalidate drops cached records after their quantities changed.
func (c *StockCache) Invalidate(ctx context.Context, productIDs ...string) {
	if len(productIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, stockCacheKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Error("failed to invalidate stock cache", zap.Strings("product_ids", productIDs), zap.Error(err))
	}
}
