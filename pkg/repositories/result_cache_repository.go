package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ekaya-inc/querypad/pkg/models"
)

// ResultCacheRepository stores metadata for exported query results.
type ResultCacheRepository interface {
	// Get returns the entry for cacheKey. Returns nil, nil if none is stored.
	Get(ctx context.Context, cacheKey string) (*models.ResultCacheEntry, error)

	// Save inserts or updates an entry. An existing entry keeps its CreatedAt.
	Save(ctx context.Context, entry *models.ResultCacheEntry) error

	// FindExpired returns entries whose Expiration is before now, oldest first.
	FindExpired(ctx context.Context, now time.Time) ([]models.ResultCacheEntry, error)

	// Delete removes an entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, cacheKey string) error
}

// memoryResultCache implements ResultCacheRepository in process memory.
type memoryResultCache struct {
	mu      sync.RWMutex
	entries map[string]models.ResultCacheEntry
}

// NewMemoryResultCacheRepository creates an in-process result cache index.
func NewMemoryResultCacheRepository() ResultCacheRepository {
	return &memoryResultCache{entries: make(map[string]models.ResultCacheEntry)}
}

func (r *memoryResultCache) Get(ctx context.Context, cacheKey string) (*models.ResultCacheEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[cacheKey]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (r *memoryResultCache) Save(ctx context.Context, entry *models.ResultCacheEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *entry
	if existing, ok := r.entries[entry.CacheKey]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	r.entries[entry.CacheKey] = stored
	return nil
}

func (r *memoryResultCache) FindExpired(ctx context.Context, now time.Time) ([]models.ResultCacheEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var expired []models.ResultCacheEntry
	for _, entry := range r.entries {
		if entry.Expired(now) {
			expired = append(expired, entry)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].Expiration.Before(expired[j].Expiration) })
	return expired, nil
}

func (r *memoryResultCache) Delete(ctx context.Context, cacheKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, cacheKey)
	return nil
}

const (
	resultCacheKeyPrefix     = "resultcache:"
	resultCacheExpirationSet = "resultcache:expirations"
)

// redisResultCache keeps one hash per entry plus a sorted set of cache keys
// scored by expiration (unix ms) so expired entries are found without a scan.
type redisResultCache struct {
	client redis.UniversalClient
}

// NewRedisResultCacheRepository creates a result cache index shared through Redis.
func NewRedisResultCacheRepository(client redis.UniversalClient) ResultCacheRepository {
	return &redisResultCache{client: client}
}

func (r *redisResultCache) Get(ctx context.Context, cacheKey string) (*models.ResultCacheEntry, error) {
	fields, err := r.client.HGetAll(ctx, resultCacheKeyPrefix+cacheKey).Result()
	if err != nil {
		return nil, fmt.Errorf("get result cache %s: %w", cacheKey, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeResultCacheEntry(cacheKey, fields)
}

func (r *redisResultCache) Save(ctx context.Context, entry *models.ResultCacheEntry) error {
	key := resultCacheKeyPrefix + entry.CacheKey

	createdAt := entry.CreatedAt
	existing, err := r.client.HGet(ctx, key, "created_at").Result()
	switch {
	case err == nil:
		if t, perr := time.Parse(time.RFC3339Nano, existing); perr == nil {
			createdAt = t
		}
	case !errors.Is(err, redis.Nil):
		return fmt.Errorf("read result cache %s: %w", entry.CacheKey, err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"user_id", entry.UserID,
			"query_name", entry.QueryName,
			"expiration", entry.Expiration.UTC().Format(time.RFC3339Nano),
			"created_at", createdAt.UTC().Format(time.RFC3339Nano),
			"modified_at", entry.ModifiedAt.UTC().Format(time.RFC3339Nano),
		)
		pipe.ZAdd(ctx, resultCacheExpirationSet, redis.Z{
			Score:  float64(entry.Expiration.UnixMilli()),
			Member: entry.CacheKey,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save result cache %s: %w", entry.CacheKey, err)
	}
	return nil
}

func (r *redisResultCache) FindExpired(ctx context.Context, now time.Time) ([]models.ResultCacheEntry, error) {
	// Exclusive upper bound: an entry expiring exactly at now is not yet expired.
	keys, err := r.client.ZRangeByScore(ctx, resultCacheExpirationSet, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("find expired result cache: %w", err)
	}

	expired := make([]models.ResultCacheEntry, 0, len(keys))
	for _, cacheKey := range keys {
		entry, err := r.Get(ctx, cacheKey)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			// Index outlived its hash; drop the dangling member.
			r.client.ZRem(ctx, resultCacheExpirationSet, cacheKey)
			continue
		}
		expired = append(expired, *entry)
	}
	return expired, nil
}

func (r *redisResultCache) Delete(ctx context.Context, cacheKey string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, resultCacheKeyPrefix+cacheKey)
		pipe.ZRem(ctx, resultCacheExpirationSet, cacheKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete result cache %s: %w", cacheKey, err)
	}
	return nil
}

func decodeResultCacheEntry(cacheKey string, fields map[string]string) (*models.ResultCacheEntry, error) {
	entry := &models.ResultCacheEntry{
		CacheKey:  cacheKey,
		UserID:    fields["user_id"],
		QueryName: fields["query_name"],
	}
	for name, dst := range map[string]*time.Time{
		"expiration":  &entry.Expiration,
		"created_at":  &entry.CreatedAt,
		"modified_at": &entry.ModifiedAt,
	} {
		t, err := time.Parse(time.RFC3339Nano, fields[name])
		if err != nil {
			return nil, fmt.Errorf("result cache %s: bad %s: %w", cacheKey, name, err)
		}
		*dst = t
	}
	return entry, nil
}
