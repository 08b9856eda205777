package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ekaya-inc/querypad/pkg/models"
)

// PostgresTestImage is the image used for postgres driver integration tests.
const PostgresTestImage = "postgres:16-alpine"

// TestPostgres holds a shared PostgreSQL container.
type TestPostgres struct {
	Container testcontainers.Container
	Host      string
	Port      int
	ConnStr   string
}

// Connection returns a postgres connection definition pointing at the container.
func (p *TestPostgres) Connection(id string) models.ConnectionConfig {
	return models.ConnectionConfig{
		ID:     id,
		Name:   "test postgres",
		Driver: "postgres",
		Fields: map[string]any{
			"host":     p.Host,
			"port":     p.Port,
			"user":     "querypad",
			"password": "test_password",
			"database": "test_data",
			"ssl_mode": "disable",
		},
	}
}

var (
	sharedPostgres     *TestPostgres
	sharedPostgresOnce sync.Once
	sharedPostgresErr  error
)

// GetTestPostgres returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetTestPostgres(t *testing.T) *TestPostgres {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedPostgresOnce.Do(func() {
		sharedPostgres, sharedPostgresErr = setupTestPostgres()
	})

	if sharedPostgresErr != nil {
		t.Fatalf("Failed to setup test postgres: %v", sharedPostgresErr)
	}

	return sharedPostgres
}

func setupTestPostgres() (*TestPostgres, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresTestImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "test_data",
			"POSTGRES_USER":     "querypad",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://querypad:test_password@%s:%s/test_data?sslmode=disable",
		host, port.Port())

	// Verify connection with retry
	var conn *pgx.Conn
	for i := 0; i < 10; i++ {
		conn, err = pgx.Connect(ctx, connStr)
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test container: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (id SERIAL PRIMARY KEY, email TEXT NOT NULL, name TEXT);
		CREATE OR REPLACE VIEW user_emails AS SELECT email FROM users;
		INSERT INTO users (email, name) VALUES ('ada@example.com', 'Ada'), ('bob@example.com', 'Bob');
	`); err != nil {
		return nil, fmt.Errorf("failed to seed test container: %w", err)
	}

	return &TestPostgres{
		Container: container,
		Host:      host,
		Port:      port.Int(),
		ConnStr:   connStr,
	}, nil
}
