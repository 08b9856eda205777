package datasource

import (
	"context"
	"errors"

	"github.com/ekaya-inc/querypad/pkg/models"
)

// ErrNotConnected is returned by a Client used before Connect or after Disconnect.
var ErrNotConnected = errors.New("client is not connected")

// FieldSpec describes one connection form field a driver accepts.
type FieldSpec struct {
	Key      string `json:"key"`
	FormType string `json:"formType"` // "TEXT", "PASSWORD", "CHECKBOX"
	Label    string `json:"label"`
}

// Form field types.
const (
	FormText     = "TEXT"
	FormPassword = "PASSWORD"
	FormCheckbox = "CHECKBOX"
)

// RawResult is what a driver returns before normalization.
// Incomplete means the driver stopped reading at the connection's MaxRows;
// truncation is not an error. A MaxRows of zero or less means no limit.
type RawResult struct {
	Columns    []string         `json:"columns"`
	Rows       []map[string]any `json:"rows"`
	Incomplete bool             `json:"incomplete"`
}

// Driver is the contract every backend implementation satisfies.
// All methods work in one-shot mode: each call opens a fresh session and
// closes it before returning.
type Driver interface {
	// ID is the value of ConnectionConfig.Driver that selects this driver.
	ID() string

	// Name is a human readable name, e.g. "PostgreSQL".
	Name() string

	// Fields lists the connection form fields.
	Fields() []FieldSpec

	// ValidateConnection normalizes cfg, filling defaults.
	// Returns an error wrapping apperrors.ErrValidation on malformed input.
	ValidateConnection(cfg models.ConnectionConfig) (models.ConnectionConfig, error)

	// TestConnection opens then closes a trial session.
	TestConnection(ctx context.Context, cfg models.ConnectionConfig) error

	// GetSchema returns schema -> table -> columns for the connection.
	GetSchema(ctx context.Context, cfg models.ConnectionConfig) (models.SchemaTree, error)

	// RunQuery opens a session, executes query, and closes the session.
	RunQuery(ctx context.Context, query string, cfg models.ConnectionConfig) (*RawResult, error)
}

// Client is an explicit, reusable session. Statements run through the same
// backend session, so multi-statement transactions span RunQuery calls.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	RunQuery(ctx context.Context, query string) (*RawResult, error)
}

// PersistentDriver is implemented by drivers that can hold a session open.
type PersistentDriver interface {
	Driver

	// NewClient returns an unconnected client bound to cfg.
	NewClient(cfg models.ConnectionConfig) Client
}

// FailingClient returns a Client whose Connect and RunQuery always fail with err.
// Drivers use it when NewClient receives a configuration they cannot parse.
func FailingClient(err error) Client {
	return failingClient{err: err}
}

type failingClient struct {
	err error
}

func (c failingClient) Connect(context.Context) error    { return c.err }
func (c failingClient) Disconnect(context.Context) error { return nil }

func (c failingClient) RunQuery(context.Context, string) (*RawResult, error) {
	return nil, c.err
}
