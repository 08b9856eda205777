package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/ekaya-inc/querypad/pkg/models"
)

// SchemaCacheRepository stores schema trees keyed by schema cache id.
// ExpiryDate on an entry is informational; entries are never evicted on read.
type SchemaCacheRepository interface {
	// Get returns the entry for cacheID. Returns nil, nil if none is stored.
	Get(ctx context.Context, cacheID string) (*models.SchemaCacheEntry, error)

	// Save inserts or replaces the entry for entry.CacheID.
	Save(ctx context.Context, entry *models.SchemaCacheEntry) error
}

// memorySchemaCache implements SchemaCacheRepository in process memory.
type memorySchemaCache struct {
	mu      sync.RWMutex
	entries map[string]models.SchemaCacheEntry
}

// NewMemorySchemaCacheRepository creates an in-process schema cache.
func NewMemorySchemaCacheRepository() SchemaCacheRepository {
	return &memorySchemaCache{entries: make(map[string]models.SchemaCacheEntry)}
}

func (r *memorySchemaCache) Get(ctx context.Context, cacheID string) (*models.SchemaCacheEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[cacheID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (r *memorySchemaCache) Save(ctx context.Context, entry *models.SchemaCacheEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[entry.CacheID] = *entry
	return nil
}

// redisSchemaCache stores each entry as a JSON string under its cache id.
// No Redis TTL is set, matching the informational expiry of the memory cache.
type redisSchemaCache struct {
	client redis.UniversalClient
}

// NewRedisSchemaCacheRepository creates a schema cache shared through Redis.
func NewRedisSchemaCacheRepository(client redis.UniversalClient) SchemaCacheRepository {
	return &redisSchemaCache{client: client}
}

func (r *redisSchemaCache) Get(ctx context.Context, cacheID string) (*models.SchemaCacheEntry, error) {
	data, err := r.client.Get(ctx, cacheID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schema cache %s: %w", cacheID, err)
	}

	var entry models.SchemaCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal schema cache %s: %w", cacheID, err)
	}
	return &entry, nil
}

func (r *redisSchemaCache) Save(ctx context.Context, entry *models.SchemaCacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal schema cache: %w", err)
	}
	if err := r.client.Set(ctx, entry.CacheID, data, 0).Err(); err != nil {
		return fmt.Errorf("save schema cache %s: %w", entry.CacheID, err)
	}
	return nil
}
