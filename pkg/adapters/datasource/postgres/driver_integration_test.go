//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/querypad/pkg/testhelpers"
)

func TestDriver_Integration_RunQueryAndSchema(t *testing.T) {
	pg := testhelpers.GetTestPostgres(t)
	d := &Driver{}
	ctx := context.Background()
	conn := pg.Connection("pg")

	require.NoError(t, d.TestConnection(ctx, conn))

	result, err := d.RunQuery(ctx, "SELECT 1 AS one", conn)
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, result.Columns)
	assert.EqualValues(t, 1, result.Rows[0]["one"])

	conn.MaxRows = 1
	result, err = d.RunQuery(ctx, "SELECT email FROM users ORDER BY id", conn)
	require.NoError(t, err)
	assert.Len(t, result.Rows, 1)
	assert.True(t, result.Incomplete)

	tree, err := d.GetSchema(ctx, conn)
	require.NoError(t, err)
	require.Contains(t, tree, "public")
	assert.Equal(t, "BASE TABLE", tree["public"]["users"][0].TableType)
	assert.Equal(t, "VIEW", tree["public"]["user_emails"][0].TableType)
}

func TestClient_Integration_TransactionSpansCalls(t *testing.T) {
	pg := testhelpers.GetTestPostgres(t)
	d := &Driver{}
	ctx := context.Background()

	client := d.NewClient(pg.Connection("pg"))
	require.NoError(t, client.Connect(ctx))
	defer client.Disconnect(ctx)

	_, err := client.RunQuery(ctx, "BEGIN")
	require.NoError(t, err)
	_, err = client.RunQuery(ctx, "CREATE TEMP TABLE scratch (n int); INSERT INTO scratch VALUES (1), (2)")
	require.NoError(t, err)

	result, err := client.RunQuery(ctx, "SELECT count(*) AS n FROM scratch")
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.Rows[0]["n"])

	_, err = client.RunQuery(ctx, "ROLLBACK")
	require.NoError(t, err)

	_, err = client.RunQuery(ctx, "SELECT count(*) FROM scratch")
	assert.Error(t, err)
}

func TestClient_Integration_DisconnectDuringRunningQuery(t *testing.T) {
	pg := testhelpers.GetTestPostgres(t)
	d := &Driver{}

	client, ok := d.NewClient(pg.Connection("pg")).(*Client)
	require.True(t, ok)
	require.NoError(t, client.Connect(context.Background()))

	done := make(chan error, 1)
	go func() {
		_, err := client.RunQuery(context.Background(), "SELECT 1 AS one FROM pg_sleep(2)")
		done <- err
	}()

	require.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.running
	}, 5*time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	require.NoError(t, client.Disconnect(ctx))
	assert.Less(t, time.Since(start), time.Second)

	require.NoError(t, <-done)

	client.mu.Lock()
	assert.Nil(t, client.conn)
	client.mu.Unlock()
}
