package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ekaya-inc/querypad/pkg/models"
	"github.com/ekaya-inc/querypad/pkg/repositories"
)

// DefaultSchemaExpiry is stamped on saved schema entries. It is informational.
const DefaultSchemaExpiry = 24 * time.Hour

// schemaFetchTimeout bounds a shared schema fetch, which outlives the
// request that started it.
const schemaFetchTimeout = 5 * time.Minute

// SchemaInfoService serves schema trees through the schema cache.
type SchemaInfoService interface {
	// Get returns the schema tree for the connection as rendered for user.
	// The cached tree is returned unless reload is set or nothing is cached.
	Get(ctx context.Context, connectionID string, user *models.User, reload bool) (models.SchemaTree, error)
}

type schemaInfoService struct {
	connections repositories.ConnectionRepository
	cache       repositories.SchemaCacheRepository
	deps        ClientDeps
	expiry      time.Duration
	group       singleflight.Group
	logger      *zap.Logger
}

// NewSchemaInfoService creates a SchemaInfoService. expiry <= 0 uses DefaultSchemaExpiry.
func NewSchemaInfoService(
	connections repositories.ConnectionRepository,
	cache repositories.SchemaCacheRepository,
	deps ClientDeps,
	expiry time.Duration,
) SchemaInfoService {
	deps = deps.withDefaults()
	if expiry <= 0 {
		expiry = DefaultSchemaExpiry
	}
	return &schemaInfoService{
		connections: connections,
		cache:       cache,
		deps:        deps,
		expiry:      expiry,
		logger:      deps.Logger.Named("schema-info"),
	}
}

var _ SchemaInfoService = (*schemaInfoService)(nil)

func (s *schemaInfoService) Get(ctx context.Context, connectionID string, user *models.User, reload bool) (models.SchemaTree, error) {
	conn, err := s.connections.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	client, err := NewConnectionClient(s.deps, *conn, user)
	if err != nil {
		return nil, err
	}
	cacheID := client.GetSchemaCacheID()

	if !reload {
		entry, err := s.cache.Get(ctx, cacheID)
		if err != nil {
			// A broken cache should not hide the schema; fall through to the driver.
			s.logger.Warn("Failed to read schema cache", zap.String("cache_id", cacheID), zap.Error(err))
		} else if entry != nil {
			return entry.Schema, nil
		}
	}

	// Concurrent callers share one fetch, so it must not die with whichever
	// request happened to start it. Each caller still stops waiting when its
	// own ctx is done.
	ch := s.group.DoChan(cacheID, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), schemaFetchTimeout)
		defer cancel()
		return s.fetchAndSave(fetchCtx, client, cacheID)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(models.SchemaTree), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *schemaInfoService) fetchAndSave(ctx context.Context, client *ConnectionClient, cacheID string) (models.SchemaTree, error) {
	tree, err := client.GetSchema(ctx)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		tree = models.SchemaTree{}
	}

	if len(tree) > 0 {
		now := s.deps.Now()
		entry := &models.SchemaCacheEntry{
			CacheID:    cacheID,
			Schema:     tree,
			ExpiryDate: now.Add(s.expiry),
			CreatedAt:  now,
		}
		if err := s.cache.Save(ctx, entry); err != nil {
			s.logger.Error("Failed to save schema cache", zap.String("cache_id", cacheID), zap.Error(err))
		}
	}

	s.logger.Debug("Fetched schema",
		zap.String("cache_id", cacheID),
		zap.Int("table_count", tree.TableCount()),
	)
	return tree, nil
}
