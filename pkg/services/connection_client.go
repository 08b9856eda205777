package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/querypad/pkg/adapters/datasource"
	"github.com/ekaya-inc/querypad/pkg/apperrors"
	"github.com/ekaya-inc/querypad/pkg/logging"
	"github.com/ekaya-inc/querypad/pkg/models"
)

// Defaults used when ClientDeps leaves a timeout unset.
const (
	DefaultKeepAliveTimeout  = 30 * time.Second
	DefaultCleanupInterval   = 10 * time.Second
	DefaultInactivityTimeout = time.Hour
)

// timeoutDisconnectLimit bounds the session close run by the cleanup check.
const timeoutDisconnectLimit = 10 * time.Second

// SchemaCacheIDPrefix namespaces schema cache ids apart from result cache keys.
const SchemaCacheIDPrefix = "schemacache:"

var schemaCacheNamespace = uuid.MustParse("29e1f5b6-5d2c-4c6a-9a4e-2f3b8b0e7c41")

// ErrClientDisconnected is returned by Connect on a client that was already disconnected.
var ErrClientDisconnected = errors.New("connection client is disconnected")

// ClientDeps are the collaborators shared by every ConnectionClient.
type ClientDeps struct {
	Drivers   *datasource.Registry
	Scheduler Scheduler
	Logger    *zap.Logger
	Now       func() time.Time

	KeepAliveTimeout  time.Duration
	CleanupInterval   time.Duration
	InactivityTimeout time.Duration
}

func (d ClientDeps) withDefaults() ClientDeps {
	if d.Drivers == nil {
		d.Drivers = datasource.Default()
	}
	if d.Scheduler == nil {
		d.Scheduler = NewScheduler()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.KeepAliveTimeout <= 0 {
		d.KeepAliveTimeout = DefaultKeepAliveTimeout
	}
	if d.CleanupInterval <= 0 {
		d.CleanupInterval = DefaultCleanupInterval
	}
	if d.InactivityTimeout <= 0 {
		d.InactivityTimeout = DefaultInactivityTimeout
	}
	return d
}

// ClientSnapshot is a point-in-time view of a ConnectionClient.
type ClientSnapshot struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Driver          string     `json:"driver"`
	ConnectionID    string     `json:"connectionId"`
	UserID          string     `json:"userId,omitempty"`
	Connected       bool       `json:"connected"`
	ConnectedAt     *time.Time `json:"connectedAt"`
	LastKeepAliveAt *time.Time `json:"lastKeepAliveAt"`
	LastActivityAt  *time.Time `json:"lastActivityAt"`
}

// ConnectionClient binds one rendered connection and the requesting user to a
// driver. With a persistent-capable driver it can hold one session open
// across RunQuery calls; otherwise every RunQuery is one-shot.
type ConnectionClient struct {
	id         string
	user       *models.User
	connection models.ConnectionConfig
	adapter    datasource.Adapter
	deps       ClientDeps
	logger     *zap.Logger

	mu              sync.Mutex
	client          datasource.Client
	connectedAt     time.Time
	lastKeepAliveAt time.Time
	lastActivityAt  time.Time
	cancelCleanup   CancelFunc
	disconnected    bool

	done     chan struct{}
	doneOnce sync.Once
}

// NewConnectionClient renders cfg for user and selects its driver.
// Returns a validation error when the driver is not registered.
func NewConnectionClient(deps ClientDeps, cfg models.ConnectionConfig, user *models.User) (*ConnectionClient, error) {
	deps = deps.withDefaults()

	adapter, err := deps.Drivers.Lookup(cfg.Driver)
	if err != nil {
		return nil, err
	}

	rendered := datasource.RenderConnection(cfg, user)
	c := &ConnectionClient{
		id:         uuid.NewString(),
		user:       user,
		connection: rendered,
		adapter:    adapter,
		deps:       deps,
		done:       make(chan struct{}),
	}
	c.logger = deps.Logger.Named("connection-client").With(
		zap.String("client_id", c.id),
		zap.String("connection_name", rendered.Name),
		zap.String("driver", rendered.Driver),
	)

	c.logger.Debug("Rendered connection for user",
		zap.Any("original_connection", logging.RedactConfig(cfg.Attributes())),
		zap.Any("rendered_connection", logging.RedactConfig(rendered.Attributes())),
		zap.String("user_id", c.UserID()),
	)

	return c, nil
}

// ID returns the client id.
func (c *ConnectionClient) ID() string { return c.id }

// User returns the user the client was created for. May be nil.
func (c *ConnectionClient) User() *models.User { return c.user }

// UserID returns the owner's id, or "" when created without a user.
func (c *ConnectionClient) UserID() string {
	if c.user == nil {
		return ""
	}
	return c.user.ID
}

// Connection returns a copy of the rendered connection.
func (c *ConnectionClient) Connection() models.ConnectionConfig {
	return c.connection.Clone()
}

// SupportsPersistent reports whether Connect can succeed for this driver.
func (c *ConnectionClient) SupportsPersistent() bool {
	return c.adapter.SupportsPersistent()
}

// IsConnected reports whether a persistent session is open.
func (c *ConnectionClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil
}

// Done is closed once the client has been disconnected.
func (c *ConnectionClient) Done() <-chan struct{} {
	return c.done
}

// Connect opens a persistent session.
// Returns apperrors.ErrUnsupportedOperation for one-shot-only drivers.
func (c *ConnectionClient) Connect(ctx context.Context) error {
	if !c.adapter.SupportsPersistent() {
		return fmt.Errorf("%w: driver %q does not support persistent connections",
			apperrors.ErrUnsupportedOperation, c.connection.Driver)
	}

	c.mu.Lock()
	if c.disconnected {
		c.mu.Unlock()
		return ErrClientDisconnected
	}
	if c.client != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	client := c.adapter.Persistent.NewClient(c.connection)
	if err := client.Connect(ctx); err != nil {
		c.logger.Info("Failed to connect", zap.String("error", logging.SanitizeError(err)))
		if errors.Is(err, apperrors.ErrValidation) {
			return err
		}
		return &apperrors.DriverExecutionError{Driver: c.connection.Driver, Err: err}
	}

	c.mu.Lock()
	if c.disconnected || c.client != nil {
		// Lost a race with Disconnect or a concurrent Connect.
		c.mu.Unlock()
		if err := client.Disconnect(context.Background()); err != nil {
			c.logger.Error("Failed to close surplus session", zap.Error(err))
		}
		if c.IsConnected() {
			return nil
		}
		return ErrClientDisconnected
	}
	now := c.deps.Now()
	c.client = client
	c.connectedAt = now
	c.lastActivityAt = now
	c.lastKeepAliveAt = now
	c.mu.Unlock()

	c.logger.Debug("Connected")
	return nil
}

// KeepAlive records a liveness ping. Returns false when not connected.
func (c *ConnectionClient) KeepAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keepAliveLocked()
}

func (c *ConnectionClient) keepAliveLocked() bool {
	if c.client == nil {
		return false
	}
	c.lastKeepAliveAt = c.deps.Now()
	return true
}

// ScheduleCleanupInterval starts the recurring timeout check. On each tick the
// client disconnects itself if no keep-alive arrived within keepAliveTimeout,
// or no query ran within the connection's inactivity timeout. Zero arguments
// fall back to the configured defaults. A previously scheduled check is replaced.
func (c *ConnectionClient) ScheduleCleanupInterval(keepAliveTimeout, interval time.Duration) {
	if keepAliveTimeout <= 0 {
		keepAliveTimeout = c.deps.KeepAliveTimeout
	}
	if interval <= 0 {
		interval = c.deps.CleanupInterval
	}
	inactivityTimeout := c.inactivityTimeout()

	c.mu.Lock()
	if c.disconnected {
		c.mu.Unlock()
		return
	}
	c.keepAliveLocked()
	if c.cancelCleanup != nil {
		c.cancelCleanup()
		c.cancelCleanup = nil
	}
	c.cancelCleanup = c.deps.Scheduler.Every(interval, func() {
		c.checkTimeouts(keepAliveTimeout, inactivityTimeout)
	})
	c.mu.Unlock()
}

func (c *ConnectionClient) inactivityTimeout() time.Duration {
	if c.connection.InactivityTimeoutMs > 0 {
		return time.Duration(c.connection.InactivityTimeoutMs) * time.Millisecond
	}
	return c.deps.InactivityTimeout
}

func (c *ConnectionClient) checkTimeouts(keepAliveTimeout, inactivityTimeout time.Duration) {
	c.mu.Lock()
	now := c.deps.Now()
	sinceKeepAlive := now.Sub(c.lastKeepAliveAt)
	sinceActivity := now.Sub(c.lastActivityAt)
	c.mu.Unlock()

	c.logger.Debug("Checking last keep alive at",
		zap.Duration("since_last_keep_alive", sinceKeepAlive),
		zap.Duration("since_last_activity", sinceActivity),
	)

	if sinceKeepAlive > keepAliveTimeout || sinceActivity > inactivityTimeout {
		c.logger.Info("Client timed out",
			zap.Duration("since_last_keep_alive", sinceKeepAlive),
			zap.Duration("since_last_activity", sinceActivity),
		)
		ctx, cancel := context.WithTimeout(context.Background(), timeoutDisconnectLimit)
		defer cancel()
		c.Disconnect(ctx)
	}
}

// Disconnect cancels the cleanup check and closes the session if one is open.
// Idempotent. Driver errors are logged, never returned.
func (c *ConnectionClient) Disconnect(ctx context.Context) {
	c.mu.Lock()
	if c.disconnected {
		c.mu.Unlock()
		return
	}
	c.disconnected = true
	cancel := c.cancelCleanup
	c.cancelCleanup = nil
	client := c.client
	c.client = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if client != nil {
		c.logger.Debug("Disconnecting client connection")
		if err := client.Disconnect(ctx); err != nil {
			c.logger.Error("Failed to disconnect client", zap.String("error", logging.SanitizeError(err)))
		}
	}
	c.doneOnce.Do(func() { close(c.done) })
}

// RunQuery executes query, reusing the open session when connected and
// running one-shot otherwise. Driver errors are returned as
// *apperrors.DriverExecutionError and never retried.
func (c *ConnectionClient) RunQuery(ctx context.Context, query string) (*models.QueryResult, error) {
	result := &models.QueryResult{
		ID:        uuid.NewString(),
		StartTime: c.deps.Now(),
	}

	queryLogger := c.logger.With(
		zap.String("connection_id", c.connection.ID),
		zap.String("user_id", c.UserID()),
		zap.String("query", logging.SanitizeQuery(query)),
	)
	queryLogger.Info("Running query")

	client := c.touchActivity()

	var (
		raw *datasource.RawResult
		err error
	)
	if client != nil {
		raw, err = client.RunQuery(ctx, query)
		c.touchActivity()
	} else {
		raw, err = c.adapter.Driver.RunQuery(ctx, query, c.connection)
	}
	if err != nil {
		// Info, not Error: a bad query is not a server fault.
		queryLogger.Info("Error running query", zap.String("error", logging.SanitizeError(err)))
		return nil, &apperrors.DriverExecutionError{Driver: c.connection.Driver, Err: err}
	}
	if raw == nil {
		raw = &datasource.RawResult{}
	}
	if raw.Rows == nil {
		raw.Rows = []map[string]any{}
	}

	result.StopTime = c.deps.Now()
	result.QueryRunTime = result.StopTime.Sub(result.StartTime).Milliseconds()
	result.Rows = raw.Rows
	result.Incomplete = raw.Incomplete
	result.Fields, result.Meta = datasource.InferMeta(raw.Columns, raw.Rows)

	queryLogger.Info("Query finished",
		zap.Int64("query_run_time_ms", result.QueryRunTime),
		zap.Int("row_count", len(result.Rows)),
		zap.Bool("incomplete", result.Incomplete),
	)

	return result, nil
}

// touchActivity bumps lastActivityAt when connected and returns the open session.
func (c *ConnectionClient) touchActivity() datasource.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		c.lastActivityAt = c.deps.Now()
	}
	return c.client
}

// TestConnection opens and closes a trial session with the rendered connection.
func (c *ConnectionClient) TestConnection(ctx context.Context) error {
	if err := c.adapter.Driver.TestConnection(ctx, c.connection); err != nil {
		return &apperrors.DriverExecutionError{Driver: c.connection.Driver, Err: err}
	}
	return nil
}

// GetSchema fetches the schema tree with the row limit lifted.
func (c *ConnectionClient) GetSchema(ctx context.Context) (models.SchemaTree, error) {
	cfg := c.connection.Clone()
	cfg.MaxRows = 0

	tree, err := c.adapter.Driver.GetSchema(ctx, cfg)
	if err != nil {
		return nil, &apperrors.DriverExecutionError{Driver: c.connection.Driver, Err: err}
	}
	return tree, nil
}

// GetSchemaCacheID hashes the rendered connection's own attributes, sorted
// by key, into a stable id. Users with equal rendered connections share it.
func (c *ConnectionClient) GetSchemaCacheID() string {
	return SchemaCacheID(c.connection)
}

// SchemaCacheID is GetSchemaCacheID for an already rendered connection.
func SchemaCacheID(rendered models.ConnectionConfig) string {
	attrs := rendered.Attributes()
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ":" + fmt.Sprint(attrs[k])
	}

	id := uuid.NewSHA1(schemaCacheNamespace, []byte(strings.Join(parts, "::")))
	return SchemaCacheIDPrefix + id.String()
}

// Snapshot returns the client's identity and timestamps.
func (c *ConnectionClient) Snapshot() ClientSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return ClientSnapshot{
		ID:              c.id,
		Name:            c.connection.Name,
		Driver:          c.connection.Driver,
		ConnectionID:    c.connection.ID,
		UserID:          c.UserID(),
		Connected:       c.client != nil,
		ConnectedAt:     timePtr(c.connectedAt),
		LastKeepAliveAt: timePtr(c.lastKeepAliveAt),
		LastActivityAt:  timePtr(c.lastActivityAt),
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
