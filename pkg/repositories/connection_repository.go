package repositories

import (
	"context"
	"fmt"
	"sync"

	"github.com/ekaya-inc/querypad/pkg/apperrors"
	"github.com/ekaya-inc/querypad/pkg/crypto"
	"github.com/ekaya-inc/querypad/pkg/models"
)

// ConnectionValidator normalizes a connection definition for its driver.
// *datasource.Registry satisfies it.
type ConnectionValidator interface {
	ValidateConnection(cfg models.ConnectionConfig) (models.ConnectionConfig, error)
}

// ConnectionRepository provides read access to configured connections.
type ConnectionRepository interface {
	// Get returns a connection by id with secrets decrypted.
	// Returns an error wrapping apperrors.ErrNotFound if absent.
	Get(ctx context.Context, id string) (*models.ConnectionConfig, error)

	// List returns all connections sorted by id.
	List(ctx context.Context) ([]models.ConnectionConfig, error)
}

// connectionRepository holds connections loaded at startup.
type connectionRepository struct {
	mu    sync.RWMutex
	byID  map[string]models.ConnectionConfig
	order []string
}

// NewConnectionRepository validates and decrypts conns and serves them from memory.
// Any invalid connection fails construction, so a bad file is caught at startup.
// encryptor may be nil when no field is encrypted.
func NewConnectionRepository(conns []models.ConnectionConfig, validator ConnectionValidator, encryptor *crypto.CredentialEncryptor) (ConnectionRepository, error) {
	r := &connectionRepository{byID: make(map[string]models.ConnectionConfig, len(conns))}

	for _, conn := range conns {
		if _, dup := r.byID[conn.ID]; dup {
			return nil, fmt.Errorf("duplicate connection id %q: %w", conn.ID, apperrors.ErrConflict)
		}

		decrypted, err := crypto.DecryptConnection(encryptor, conn)
		if err != nil {
			return nil, err
		}
		validated, err := validator.ValidateConnection(decrypted)
		if err != nil {
			return nil, fmt.Errorf("connection %q: %w", conn.ID, err)
		}

		r.byID[conn.ID] = validated
		r.order = append(r.order, conn.ID)
	}

	return r, nil
}

func (r *connectionRepository) Get(ctx context.Context, id string) (*models.ConnectionConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("connection %q: %w", id, apperrors.ErrNotFound)
	}
	clone := conn.Clone()
	return &clone, nil
}

func (r *connectionRepository) List(ctx context.Context) ([]models.ConnectionConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]models.ConnectionConfig, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.byID[id].Clone())
	}
	return result, nil
}
