package postgres

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/querypad/pkg/adapters/datasource"
)

// deferredCloseTimeout bounds the close RunQuery performs on behalf of a
// Disconnect that arrived mid-query.
const deferredCloseTimeout = 5 * time.Second

// Client is a persistent PostgreSQL session.
type Client struct {
	cfg *Config

	// stmtMu serializes Connect and RunQuery. Disconnect never takes it.
	stmtMu sync.Mutex

	mu      sync.Mutex
	conn    *pgx.Conn
	running bool
	closing bool
}

var _ datasource.Client = (*Client)(nil)

func (c *Client) Connect(ctx context.Context) error {
	c.stmtMu.Lock()
	defer c.stmtMu.Unlock()

	c.mu.Lock()
	connected := c.conn != nil
	c.mu.Unlock()
	if connected {
		return nil
	}

	conn, err := connect(ctx, c.cfg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.closing = false
	c.mu.Unlock()
	return nil
}

// RunQuery runs query on the session. A pgx.Conn is not safe for concurrent
// use, so queries are serialized.
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

	result, err := runOn(ctx, conn, query, c.cfg.MaxRows)

	c.mu.Lock()
	c.running = false
	closeNow := c.closing
	if closeNow {
		c.conn = nil
		c.closing = false
	}
	c.mu.Unlock()

	if closeNow {
		closeCtx, cancel := context.WithTimeout(context.Background(), deferredCloseTimeout)
		_ = conn.Close(closeCtx)
		cancel()
	}
	return result, err
}

func runOn(ctx context.Context, conn *pgx.Conn, query string, maxRows int) (*datasource.RawResult, error) {
	rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return collectRows(rows, maxRows)
}

// Disconnect closes the session, bounded by ctx. When a query is running the
// session is marked closing and RunQuery closes it on return; Disconnect does
// not wait for it.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn == nil || c.closing {
		c.mu.Unlock()
		return nil
	}
	if c.running {
		c.closing = true
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	return conn.Close(ctx)
}
