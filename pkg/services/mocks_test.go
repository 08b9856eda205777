package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/querypad/pkg/adapters/datasource"
	"github.com/ekaya-inc/querypad/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/querypad/pkg/models"
)

// countingDriver records how many sessions each mode opens.
type countingDriver struct {
	id string

	mu            sync.Mutex
	oneShotRuns   int
	clientsMade   int
	connects      int
	disconnects   int
	schemaMaxRows []int
	queryErr      error
	connectErr    error
	schema        models.SchemaTree
	schemaCalls   int

	// When schemaGate is set, GetSchema signals schemaStarted and blocks
	// until the gate closes or ctx is done.
	schemaGate      chan struct{}
	schemaStarted   chan struct{}
	schemaCancelled int
}

func (d *countingDriver) ID() string                     { return d.id }
func (d *countingDriver) Name() string                   { return "Counting" }
func (d *countingDriver) Fields() []datasource.FieldSpec { return nil }

func (d *countingDriver) ValidateConnection(cfg models.ConnectionConfig) (models.ConnectionConfig, error) {
	return cfg, nil
}

func (d *countingDriver) TestConnection(ctx context.Context, cfg models.ConnectionConfig) error {
	return d.connectErr
}

func (d *countingDriver) GetSchema(ctx context.Context, cfg models.ConnectionConfig) (models.SchemaTree, error) {
	if d.schemaGate != nil {
		d.schemaStarted <- struct{}{}
		select {
		case <-d.schemaGate:
		case <-ctx.Done():
			d.mu.Lock()
			d.schemaCancelled++
			d.mu.Unlock()
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.schemaCalls++
	d.schemaMaxRows = append(d.schemaMaxRows, cfg.MaxRows)
	return d.schema, nil
}

func (d *countingDriver) RunQuery(ctx context.Context, query string, cfg models.ConnectionConfig) (*datasource.RawResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.oneShotRuns++
	if d.queryErr != nil {
		return nil, d.queryErr
	}
	return &datasource.RawResult{Columns: []string{"mode"}, Rows: []map[string]any{{"mode": "one-shot"}}}, nil
}

func (d *countingDriver) counts() (oneShot, made, connects, disconnects int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.oneShotRuns, d.clientsMade, d.connects, d.disconnects
}

// countingPersistentDriver adds a session factory to countingDriver.
type countingPersistentDriver struct {
	*countingDriver
}

func (d countingPersistentDriver) NewClient(cfg models.ConnectionConfig) datasource.Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clientsMade++
	return &countingClient{driver: d.countingDriver}
}

type countingClient struct {
	driver    *countingDriver
	connected bool
	queries   int
}

func (c *countingClient) Connect(ctx context.Context) error {
	c.driver.mu.Lock()
	defer c.driver.mu.Unlock()
	if c.driver.connectErr != nil {
		return c.driver.connectErr
	}
	c.driver.connects++
	c.connected = true
	return nil
}

func (c *countingClient) Disconnect(ctx context.Context) error {
	c.driver.mu.Lock()
	defer c.driver.mu.Unlock()
	c.driver.disconnects++
	c.connected = false
	return errors.New("socket already closed")
}

func (c *countingClient) RunQuery(ctx context.Context, query string) (*datasource.RawResult, error) {
	c.driver.mu.Lock()
	defer c.driver.mu.Unlock()
	if !c.connected {
		return nil, datasource.ErrNotConnected
	}
	if c.driver.queryErr != nil {
		return nil, c.driver.queryErr
	}
	c.queries++
	return &datasource.RawResult{Columns: []string{"mode"}, Rows: []map[string]any{{"mode": "persistent"}}}, nil
}

// manualScheduler runs scheduled functions only when Tick is called.
type manualScheduler struct {
	mu    sync.Mutex
	tasks map[int]func()
	next  int

	// activeAtEvery records len(tasks) at the start of each Every call.
	activeAtEvery []int
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{tasks: make(map[int]func())}
}

func (s *manualScheduler) Every(interval time.Duration, fn func()) CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeAtEvery = append(s.activeAtEvery, len(s.tasks))
	id := s.next
	s.next++
	s.tasks[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.tasks, id)
	}
}

func (s *manualScheduler) Tick() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.tasks))
	for _, fn := range s.tasks {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (s *manualScheduler) ActiveAtEvery() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.activeAtEvery...)
}

func (s *manualScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testDeps returns deps with the sqlite driver and both counting drivers registered.
func testDeps(t *testing.T) (ClientDeps, *countingDriver, *countingDriver) {
	t.Helper()

	oneShot := &countingDriver{id: "oneshot"}
	persistent := &countingDriver{id: "persistent"}

	drivers := datasource.NewRegistry()
	drivers.Register(&sqlite.Driver{})
	drivers.Register(oneShot)
	drivers.Register(countingPersistentDriver{persistent})

	return ClientDeps{
		Drivers:   drivers,
		Scheduler: newManualScheduler(),
		Logger:    zaptest.NewLogger(t),
	}, oneShot, persistent
}

func testUser(id, role string) *models.User {
	return &models.User{ID: id, Email: id + "@example.com", Name: id, Role: role}
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}
