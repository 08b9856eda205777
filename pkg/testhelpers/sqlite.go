// Package testhelpers provides utilities for testing querypad components.
package testhelpers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/ekaya-inc/querypad/pkg/models"
)

// SQLiteFixture is a seeded SQLite database file in a per-test temp dir.
//
// Tables: users (3 rows), orders (5 rows). View: big_orders.
type SQLiteFixture struct {
	Path string
}

const fixtureSchema = `
CREATE TABLE users (
  id INTEGER PRIMARY KEY,
  email TEXT NOT NULL,
  name TEXT
);
CREATE TABLE orders (
  id INTEGER PRIMARY KEY,
  user_id INTEGER NOT NULL REFERENCES users(id),
  amount REAL NOT NULL
);
CREATE VIEW big_orders AS SELECT * FROM orders WHERE amount > 50;
INSERT INTO users (id, email, name) VALUES
  (1, 'ada@example.com', 'Ada'),
  (2, 'bob@example.com', 'Bob'),
  (3, 'cy@example.com', NULL);
INSERT INTO orders (id, user_id, amount) VALUES
  (1, 1, 10.5),
  (2, 1, 99.0),
  (3, 2, 42.0),
  (4, 2, 51.25),
  (5, 3, 7.0);
`

// NewSQLiteFixture creates and seeds a fresh SQLite database for t.
func NewSQLiteFixture(t *testing.T) *SQLiteFixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.db")
	db, err := sqlx.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(context.Background(), fixtureSchema)
	require.NoError(t, err)

	return &SQLiteFixture{Path: path}
}

// Connection returns a sqlite connection definition for the fixture.
func (f *SQLiteFixture) Connection(id string) models.ConnectionConfig {
	return models.ConnectionConfig{
		ID:     id,
		Name:   "fixture",
		Driver: "sqlite",
		Fields: map[string]any{"filename": f.Path},
	}
}
