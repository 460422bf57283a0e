package catalog

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"orderbyvoice/internal/common/logger"
	"orderbyvoice/internal/models"
)

const (
	productsKey = "catalog:products"
	synonymsKey = "catalog:synonyms"
)

// Cache is a read-through catalog cache: redis first, backing provider
// on miss, plus an in-process snapshot so turn processing never touches
// the network for matching. Invalidate drops both layers; callers
// invoke it after catalog updates.
type Cache struct {
	provider Provider
	synonyms SynonymProvider
	rdb      *redis.Client
	ttl      time.Duration
	log      logger.Logger

	mu   sync.RWMutex
	snap *Snapshot
}

func NewCache(provider Provider, synonyms SynonymProvider, rdb *redis.Client, ttl time.Duration, log logger.Logger) *Cache {
	return &Cache{
		provider: provider,
		synonyms: synonyms,
		rdb:      rdb,
		ttl:      ttl,
		log:      log,
	}
}

// Snapshot returns the current catalog view, loading it on first use.
func (c *Cache) Snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}
	return c.refresh(ctx)
}

// Invalidate drops the redis keys and the in-process snapshot so the
// next Snapshot call reloads from the backing provider.
func (c *Cache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()

	if c.rdb != nil {
		if err := c.rdb.Del(ctx, productsKey, synonymsKey).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) refresh(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap != nil {
		return c.snap, nil
	}

	products, err := c.loadProducts(ctx)
	if err != nil {
		return nil, err
	}
	synonyms, err := c.loadSynonyms(ctx)
	if err != nil {
		return nil, err
	}

	c.snap = BuildSnapshot(products, synonyms, c.log)
	return c.snap, nil
}

func (c *Cache) loadProducts(ctx context.Context) ([]models.Product, error) {
	if c.rdb != nil {
		if raw, err := c.rdb.Get(ctx, productsKey).Result(); err == nil {
			var products []models.Product
			if err := json.Unmarshal([]byte(raw), &products); err == nil {
				return products, nil
			}
			// Corrupt cache entry falls through to the provider.
			c.log.Warn("discarding unreadable cached catalog", map[string]interface{}{"key": productsKey})
		}
	}

	products, err := c.provider.Products(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, productsKey, products)
	return products, nil
}

func (c *Cache) loadSynonyms(ctx context.Context) ([]Synonym, error) {
	if c.rdb != nil {
		if raw, err := c.rdb.Get(ctx, synonymsKey).Result(); err == nil {
			var synonyms []Synonym
			if err := json.Unmarshal([]byte(raw), &synonyms); err == nil {
				return synonyms, nil
			}
			c.log.Warn("discarding unreadable cached synonyms", map[string]interface{}{"key": synonymsKey})
		}
	}

	synonyms, err := c.synonyms.Synonyms(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, synonymsKey, synonyms)
	return synonyms, nil
}

func (c *Cache) store(ctx context.Context, key string, value interface{}) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("catalog cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
