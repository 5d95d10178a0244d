package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const opTimeout = 2 * time.Second

// ProductCache кеширует снимки каталога для read-time проекции корзины.
// Кеш опционален: при недоступности Redis сервис читает каталог напрямую.
type ProductCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

// NewProductCache создаёт кеш поверх готового Redis-клиента.
func NewProductCache(client *redis.Client) *ProductCache {
	return &ProductCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

// Get возвращает товар из кеша или domain.ErrCacheMiss.
func (c *ProductCache) Get(productID string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, err := c.client.Get(ctx, cacheKey(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Product{}, domain.ErrCacheMiss
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("redis get: %w", err)
	}

	var product domain.Product
	if err := json.Unmarshal(data, &product); err != nil {
		return domain.Product{}, fmt.Errorf("unmarshal cached product: %w", err)
	}

	return product, nil
}

// Set сохраняет товар с базовым TTL и случайным сдвигом, чтобы ключи
// не истекали одновременно.
func (c *ProductCache) Set(product domain.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	if err := c.client.Set(ctx, cacheKey(product.ID), data, c.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete инвалидирует запись о товаре.
func (c *ProductCache) Delete(productID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := c.client.Del(ctx, cacheKey(productID)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis (для health-check).
func (c *ProductCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func cacheKey(productID string) string {
	return fmt.Sprintf("product:%s", productID)
}
