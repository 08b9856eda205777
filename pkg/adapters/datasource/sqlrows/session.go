package sqlrows

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/ekaya-inc/querypad/pkg/adapters/datasource"
	"github.com/ekaya-inc/querypad/pkg/retry"
)

// Open opens a database handle and verifies it with a ping.
// Transient network failures are retried; anything else fails immediately.
func Open(ctx context.Context, driverName, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}

	if err := retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() error {
		return db.PingContext(ctx)
	}); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Ping opens and closes a trial connection.
func Ping(ctx context.Context, driverName, dsn string) error {
	db, err := Open(ctx, driverName, dsn)
	if err != nil {
		return err
	}
	return db.Close()
}

// RunOnce opens a connection, runs a single query and closes the connection.
func RunOnce(ctx context.Context, driverName, dsn, query string, maxRows int) (*datasource.RawResult, error) {
	db, err := Open(ctx, driverName, dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return Collect(rows, maxRows)
}

// Client is a persistent session pinned to a single physical connection,
// so session state like an open transaction carries across RunQuery calls.
type Client struct {
	driverName string
	dsn        string
	maxRows    int

	// stmtMu serializes Connect and RunQuery. Disconnect never takes it.
	stmtMu sync.Mutex

	mu      sync.Mutex
	db      *sqlx.DB
	conn    *sqlx.Conn
	running bool
	closing bool
}

var _ datasource.Client = (*Client)(nil)

// NewClient returns an unconnected client.
func NewClient(driverName, dsn string, maxRows int) *Client {
	return &Client{
		driverName: driverName,
		dsn:        dsn,
		maxRows:    maxRows,
	}
}

// Connect opens the pinned connection. Calling Connect on a connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.stmtMu.Lock()
	defer c.stmtMu.Unlock()

	c.mu.Lock()
	connected := c.conn != nil
	c.mu.Unlock()
	if connected {
		return nil
	}

	db, err := Open(ctx, c.driverName, c.dsn)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Connx(ctx)
	if err != nil {
		db.Close()
		return fmt.Errorf("acquire connection: %w", err)
	}

	c.mu.Lock()
	c.db = db
	c.conn = conn
	c.closing = false
	c.mu.Unlock()
	return nil
}

// RunQuery executes query on the pinned connection.
// Queries are serialized; the backend session is not safe for concurrent statements.
func (c *Client) RunQuery(ctx context.Context, query string) (*datasource.RawResult, error) {
	c.stmtMu.Lock()
	defer c.stmtMu.Unlock()

	c.mu.Lock()
	conn := c.conn
	if conn == nil || c.closing {
		c.mu.Unlock()
		return nil, datasource.ErrNotConnected
	}
	c.running = true
	c.mu.Unlock()

	result, err := runOn(ctx, conn, query, c.maxRows)

	c.mu.Lock()
	c.running = false
	var db *sqlx.DB
	if c.closing {
		// Disconnect was called mid-query and left the close to us.
		conn, db = c.detachLocked()
	}
	c.mu.Unlock()

	if db != nil {
		_ = closeSession(conn, db)
	}
	return result, err
}

func runOn(ctx context.Context, conn *sqlx.Conn, query string, maxRows int) (*datasource.RawResult, error) {
	rows, err := conn.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return Collect(rows, maxRows)
}

// Disconnect closes the pinned connection. Safe to call more than once.
// A running query is not interrupted: the connection is marked closing and
// RunQuery closes it on return, while Disconnect returns immediately.
// Otherwise the close itself is bounded by ctx.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn == nil || c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	if c.running {
		c.mu.Unlock()
		return nil
	}
	conn, db := c.detachLocked()
	c.mu.Unlock()

	errc := make(chan error, 1)
	go func() { errc <- closeSession(conn, db) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return fmt.Errorf("close connection: %w", ctx.Err())
	}
}

func (c *Client) detachLocked() (*sqlx.Conn, *sqlx.DB) {
	conn, db := c.conn, c.db
	c.conn = nil
	c.db = nil
	c.closing = false
	return conn, db
}

func closeSession(conn *sqlx.Conn, db *sqlx.DB) error {
	connErr := conn.Close()
	dbErr := db.Close()
	if connErr != nil {
		return connErr
	}
	return dbErr
}
