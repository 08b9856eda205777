package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/querypad/pkg/apperrors"
	"github.com/ekaya-inc/querypad/pkg/models"
	"github.com/ekaya-inc/querypad/pkg/repositories"
)

// ConnectionClientService exposes the client registry to request handlers and
// applies ownership rules: owners and admins may read or disconnect a client,
// only the owner may keep it alive, only admins may list every client.
type ConnectionClientService interface {
	Create(ctx context.Context, connectionID string, user *models.User) (*ConnectionClient, error)
	Get(ctx context.Context, id string, user *models.User) (*ConnectionClient, error)
	List(ctx context.Context, user *models.User) ([]*ConnectionClient, error)

	// KeepAlive pings the client. A client that is no longer connected is
	// disconnected and removed, and apperrors.ErrNotFound is returned.
	KeepAlive(ctx context.Context, id string, user *models.User) (*ConnectionClient, error)

	Disconnect(ctx context.Context, id string, user *models.User) error
}

type connectionClientService struct {
	connections    repositories.ConnectionRepository
	registry       ConnectionClientRegistry
	defaultMaxRows int
	logger         *zap.Logger
}

// NewConnectionClientService creates a ConnectionClientService.
// defaultMaxRows applies to connections that set no max_rows.
func NewConnectionClientService(
	connections repositories.ConnectionRepository,
	registry ConnectionClientRegistry,
	defaultMaxRows int,
	logger *zap.Logger,
) ConnectionClientService {
	return &connectionClientService{
		connections:    connections,
		registry:       registry,
		defaultMaxRows: defaultMaxRows,
		logger:         logger.Named("connection-client-service"),
	}
}

var _ ConnectionClientService = (*connectionClientService)(nil)

func (s *connectionClientService) Create(ctx context.Context, connectionID string, user *models.User) (*ConnectionClient, error) {
	if connectionID == "" {
		return nil, apperrors.NewValidationError("connectionId required")
	}
	conn, err := s.connections.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	return s.registry.CreateNew(ctx, withDefaultMaxRows(*conn, s.defaultMaxRows), user)
}

func (s *connectionClientService) Get(ctx context.Context, id string, user *models.User) (*ConnectionClient, error) {
	client, err := s.registry.GetOneByID(id)
	if err != nil {
		return nil, err
	}
	if err := authorizeClient(client, user, false); err != nil {
		return nil, err
	}
	return client, nil
}

func (s *connectionClientService) List(ctx context.Context, user *models.User) ([]*ConnectionClient, error) {
	if !user.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}
	return s.registry.FindAll(), nil
}

func (s *connectionClientService) KeepAlive(ctx context.Context, id string, user *models.User) (*ConnectionClient, error) {
	client, err := s.registry.GetOneByID(id)
	if err != nil {
		return nil, err
	}
	if err := authorizeClient(client, user, true); err != nil {
		return nil, err
	}

	if !client.KeepAlive() {
		if err := s.registry.DisconnectForID(ctx, id); err != nil {
			s.logger.Debug("Client already removed", zap.String("client_id", id))
		}
		return nil, fmt.Errorf("%w: connection client disconnected", apperrors.ErrNotFound)
	}
	return client, nil
}

func (s *connectionClientService) Disconnect(ctx context.Context, id string, user *models.User) error {
	client, err := s.registry.GetOneByID(id)
	if err != nil {
		return err
	}
	if err := authorizeClient(client, user, false); err != nil {
		return err
	}
	return s.registry.DisconnectForID(ctx, id)
}

// authorizeClient allows the owner, and admins unless ownerOnly is set.
func authorizeClient(client *ConnectionClient, user *models.User, ownerOnly bool) error {
	if user != nil && user.ID != "" && client.UserID() == user.ID {
		return nil
	}
	if !ownerOnly && user.IsAdmin() {
		return nil
	}
	return apperrors.ErrForbidden
}

func withDefaultMaxRows(cfg models.ConnectionConfig, maxRows int) models.ConnectionConfig {
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = maxRows
	}
	return cfg
}
