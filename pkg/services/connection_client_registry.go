package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/querypad/pkg/apperrors"
	"github.com/ekaya-inc/querypad/pkg/models"
)

// ConnectionClientRegistry is the process-wide table of live connection clients.
// It is not persisted; a restart drops every open session. Callers enforce
// ownership before acting on a client.
type ConnectionClientRegistry interface {
	// CreateNew builds a client, connects it, schedules its cleanup check,
	// and stores it. A client that fails to connect is never stored.
	CreateNew(ctx context.Context, cfg models.ConnectionConfig, user *models.User) (*ConnectionClient, error)

	// GetOneByID returns apperrors.ErrNotFound for unknown or evicted ids.
	GetOneByID(id string) (*ConnectionClient, error)

	// FindAll returns every stored client, oldest connection first.
	FindAll() []*ConnectionClient

	// DisconnectForID disconnects the client and always removes it.
	DisconnectForID(ctx context.Context, id string) error

	// Close disconnects every client. Used on shutdown.
	Close(ctx context.Context)
}

type connectionClientRegistry struct {
	deps    ClientDeps
	logger  *zap.Logger
	mu      sync.RWMutex
	clients map[string]*ConnectionClient
}

// NewConnectionClientRegistry creates an empty registry. deps are passed to every client it creates.
func NewConnectionClientRegistry(deps ClientDeps) ConnectionClientRegistry {
	deps = deps.withDefaults()
	return &connectionClientRegistry{
		deps:    deps,
		logger:  deps.Logger.Named("connection-clients"),
		clients: make(map[string]*ConnectionClient),
	}
}

var _ ConnectionClientRegistry = (*connectionClientRegistry)(nil)

func (r *connectionClientRegistry) CreateNew(ctx context.Context, cfg models.ConnectionConfig, user *models.User) (*ConnectionClient, error) {
	client, err := NewConnectionClient(r.deps, cfg, user)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	client.ScheduleCleanupInterval(r.deps.KeepAliveTimeout, r.deps.CleanupInterval)

	r.mu.Lock()
	r.clients[client.ID()] = client
	r.mu.Unlock()

	go r.removeWhenDone(client)

	r.logger.Info("Connection client created",
		zap.String("client_id", client.ID()),
		zap.String("connection_id", cfg.ID),
		zap.String("user_id", client.UserID()),
	)
	return client, nil
}

// removeWhenDone drops a client from the table once it disconnects itself.
func (r *connectionClientRegistry) removeWhenDone(client *ConnectionClient) {
	<-client.Done()

	r.mu.Lock()
	if r.clients[client.ID()] == client {
		delete(r.clients, client.ID())
	}
	r.mu.Unlock()
}

func (r *connectionClientRegistry) GetOneByID(id string) (*ConnectionClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return client, nil
}

func (r *connectionClientRegistry) FindAll() []*ConnectionClient {
	r.mu.RLock()
	result := make([]*ConnectionClient, 0, len(r.clients))
	for _, c := range r.clients {
		result = append(result, c)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		a, b := connectedAt(result[i]), connectedAt(result[j])
		if a.Equal(b) {
			return result[i].ID() < result[j].ID()
		}
		return a.Before(b)
	})
	return result
}

func connectedAt(c *ConnectionClient) time.Time {
	if t := c.Snapshot().ConnectedAt; t != nil {
		return *t
	}
	return time.Time{}
}

func (r *connectionClientRegistry) DisconnectForID(ctx context.Context, id string) error {
	r.mu.Lock()
	client, ok := r.clients[id]
	delete(r.clients, id)
	r.mu.Unlock()

	if !ok {
		return apperrors.ErrNotFound
	}
	client.Disconnect(ctx)

	r.logger.Info("Connection client disconnected", zap.String("client_id", id))
	return nil
}

func (r *connectionClientRegistry) Close(ctx context.Context) {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]*ConnectionClient)
	r.mu.Unlock()

	for _, c := range clients {
		c.Disconnect(ctx)
	}
	if len(clients) > 0 {
		r.logger.Info("Closed connection clients", zap.Int("count", len(clients)))
	}
}
