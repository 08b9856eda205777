package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/querypad/pkg/apperrors"
	"github.com/ekaya-inc/querypad/pkg/models"
	"github.com/ekaya-inc/querypad/pkg/repositories"
)

// DefaultResultTTL is how long exported results stay downloadable.
const DefaultResultTTL = 8 * time.Hour

// QueryRequest is a query submitted for execution.
type QueryRequest struct {
	ConnectionID string `json:"connectionId"`

	// ConnectionClientID runs the query on an open client session instead of one-shot.
	ConnectionClientID string `json:"connectionClientId,omitempty"`

	// CacheKey names the export files. Generated when empty.
	CacheKey  string `json:"cacheKey,omitempty"`
	QueryName string `json:"queryName,omitempty"`
	QueryText string `json:"queryText"`
}

// QueryResultOptions configure QueryResultService.
type QueryResultOptions struct {
	DefaultMaxRows int
	ResultTTL      time.Duration
	AllowDownloads bool
}

// QueryResultService runs queries and records their export artifacts.
type QueryResultService interface {
	Run(ctx context.Context, req QueryRequest, user *models.User) (*models.QueryResult, error)

	// Download locates the export file for cacheKey in format on behalf of user.
	// Returns apperrors.ErrForbidden when downloads are disabled or user neither
	// ran the query nor is an admin, and apperrors.ErrNotFound when the result
	// expired or was never exported.
	Download(ctx context.Context, cacheKey, format string, user *models.User) (*ResultDownload, error)
}

// ResultDownload is an export file ready to be served.
type ResultDownload struct {
	Path     string
	Filename string
}

type queryResultService struct {
	connections repositories.ConnectionRepository
	clients     ConnectionClientRegistry
	resultCache repositories.ResultCacheRepository
	exporter    ResultExporter
	deps        ClientDeps
	opts        QueryResultOptions
	logger      *zap.Logger
}

// NewQueryResultService creates a QueryResultService.
func NewQueryResultService(
	connections repositories.ConnectionRepository,
	clients ConnectionClientRegistry,
	resultCache repositories.ResultCacheRepository,
	exporter ResultExporter,
	deps ClientDeps,
	opts QueryResultOptions,
) QueryResultService {
	deps = deps.withDefaults()
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = DefaultResultTTL
	}
	return &queryResultService{
		connections: connections,
		clients:     clients,
		resultCache: resultCache,
		exporter:    exporter,
		deps:        deps,
		opts:        opts,
		logger:      deps.Logger.Named("query-result"),
	}
}

var _ QueryResultService = (*queryResultService)(nil)

func (s *queryResultService) Run(ctx context.Context, req QueryRequest, user *models.User) (*models.QueryResult, error) {
	if req.QueryText == "" {
		return nil, apperrors.NewValidationError("queryText required")
	}

	// A caller-chosen cache key must not overwrite another user's exports.
	if req.CacheKey != "" {
		existing, err := s.resultCache.Get(ctx, req.CacheKey)
		if err != nil {
			return nil, err
		}
		if existing != nil && !existing.OwnedBy(user) {
			return nil, fmt.Errorf("%w: cache key %s belongs to another user", apperrors.ErrForbidden, req.CacheKey)
		}
	}

	client, err := s.clientFor(ctx, req, user)
	if err != nil {
		return nil, err
	}

	result, err := client.RunQuery(ctx, req.QueryText)
	if err != nil {
		return nil, err
	}

	cacheKey := req.CacheKey
	if cacheKey == "" {
		cacheKey = uuid.NewString()
	}
	result.CacheKey = cacheKey

	s.saveResultCache(ctx, cacheKey, req.QueryName, user)
	if s.opts.AllowDownloads && s.exporter != nil {
		s.exporter.WriteAll(cacheKey, result)
	}

	return result, nil
}

// clientFor returns the caller's open client when one is named, or a fresh
// unconnected client that runs the query one-shot.
func (s *queryResultService) clientFor(ctx context.Context, req QueryRequest, user *models.User) (*ConnectionClient, error) {
	if req.ConnectionClientID != "" {
		client, err := s.clients.GetOneByID(req.ConnectionClientID)
		if err != nil {
			return nil, err
		}
		if err := authorizeClient(client, user, false); err != nil {
			return nil, err
		}
		return client, nil
	}

	if req.ConnectionID == "" {
		return nil, apperrors.NewValidationError("connectionId required")
	}
	conn, err := s.connections.Get(ctx, req.ConnectionID)
	if err != nil {
		return nil, err
	}
	return NewConnectionClient(s.deps, withDefaultMaxRows(*conn, s.opts.DefaultMaxRows), user)
}

func (s *queryResultService) saveResultCache(ctx context.Context, cacheKey, queryName string, user *models.User) {
	now := s.deps.Now()
	entry := &models.ResultCacheEntry{
		CacheKey:   cacheKey,
		UserID:     userID(user),
		QueryName:  SanitizeQueryName(queryName, now),
		Expiration: now.Add(s.opts.ResultTTL),
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if err := s.resultCache.Save(ctx, entry); err != nil {
		s.logger.Error("Failed to save result cache", zap.String("cache_key", cacheKey), zap.Error(err))
	}
}

func (s *queryResultService) Download(ctx context.Context, cacheKey, format string, user *models.User) (*ResultDownload, error) {
	if !s.opts.AllowDownloads || s.exporter == nil {
		return nil, fmt.Errorf("%w: downloads are disabled", apperrors.ErrForbidden)
	}

	path, err := s.exporter.Path(cacheKey, format)
	if err != nil {
		return nil, err
	}

	entry, err := s.resultCache.Get(ctx, cacheKey)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: result %s", apperrors.ErrNotFound, cacheKey)
	}
	if !entry.OwnedBy(user) && !user.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s export for %s", apperrors.ErrNotFound, format, cacheKey)
		}
		return nil, err
	}

	return &ResultDownload{Path: path, Filename: entry.QueryName + "." + format}, nil
}

func userID(user *models.User) string {
	if user == nil {
		return ""
	}
	return user.ID
}
