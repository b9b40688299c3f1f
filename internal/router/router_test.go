package router

import (
	"context"
	"testing"
	"time"

	"github.com/boltstream/gobolt/internal/db"
	"github.com/boltstream/gobolt/log"
)

// fakeRoutingConn answers Route with a canned table or error, keyed by
// address, mimicking the teacher's fake-server test doubles.
type fakeRoutingConn struct {
	address string
	table   *db.RoutingTable
	err     error
}

func (c *fakeRoutingConn) Connect(context.Context, map[string]any, string, map[string]string, any) error {
	return nil
}
func (c *fakeRoutingConn) TxBegin(context.Context, db.TxConfig) error { return nil }
func (c *fakeRoutingConn) TxCommit(context.Context) (string, error)  { return "", nil }
func (c *fakeRoutingConn) TxRollback(context.Context) error          { return nil }
func (c *fakeRoutingConn) Run(context.Context, string, map[string]any, db.TxConfig) (db.StreamHandle, []string, error) {
	return nil, nil, nil
}
func (c *fakeRoutingConn) Next(context.Context, db.StreamHandle) (*db.Record, *db.Summary, error) {
	return nil, nil, nil
}
func (c *fakeRoutingConn) Discard(context.Context, db.StreamHandle, int64) (*db.Summary, error) {
	return nil, nil
}
func (c *fakeRoutingConn) Pull(context.Context, db.StreamHandle, int64) error { return nil }
func (c *fakeRoutingConn) Reset(context.Context) error                       { return nil }
func (c *fakeRoutingConn) Close(context.Context)                            {}
func (c *fakeRoutingConn) IsAlive() bool                                    { return true }
func (c *fakeRoutingConn) Birthdate() time.Time                             { return time.Now() }
func (c *fakeRoutingConn) IdleDuration() time.Duration                      { return 0 }
func (c *fakeRoutingConn) ResetIdleTimer()                                  {}
func (c *fakeRoutingConn) ServerVersion() string                            { return "fake/1.0" }
func (c *fakeRoutingConn) ServerAddress() string                           { return c.address }
func (c *fakeRoutingConn) Version() (int, int)                             { return 5, 4 }
func (c *fakeRoutingConn) ConnId() string                                  { return c.address }
func (c *fakeRoutingConn) SetBoltLogger(db.BoltLogger)                     {}
func (c *fakeRoutingConn) IsStale() bool                                   { return false }
func (c *fakeRoutingConn) MarkStale()                                      {}
func (c *fakeRoutingConn) SetBroken()                                      {}
func (c *fakeRoutingConn) RecvTimeoutHint() time.Duration                  { return 0 }
func (c *fakeRoutingConn) Route(context.Context, map[string]string, []string, string, string) (*db.RoutingTable, error) {
	return c.table, c.err
}

// fakeConnector hands back a scripted connection per address.
type fakeConnector struct {
	conns map[string]*fakeRoutingConn
}

func (f *fakeConnector) Acquire(ctx context.Context, address string) (db.Connection, error) {
	c, ok := f.conns[address]
	if !ok {
		return nil, errTestNoRoute
	}
	return c, nil
}
func (f *fakeConnector) Release(ctx context.Context, conn db.Connection, needsReset bool) error {
	return nil
}

var errTestNoRoute = &testErr{"no route configured for address"}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }

func TestServerForReturnsRoundRobinReaders(t *testing.T) {
	connector := &fakeConnector{conns: map[string]*fakeRoutingConn{
		"router1:7687": {
			address: "router1:7687",
			table: &db.RoutingTable{
				TTLSecs: 300,
				Routers: []string{"router1:7687"},
				Readers: []string{"r1:7687", "r2:7687"},
				Writers: []string{"w1:7687"},
			},
		},
	}}
	r := New(Config{InitialRouters: []string{"router1:7687"}, Connector: connector, Log: log.Void{}})

	first, err := r.ServerFor(context.Background(), "neo4j", db.ReadMode, nil, "")
	if err != nil {
		t.Fatalf("ServerFor: %v", err)
	}
	second, err := r.ServerFor(context.Background(), "neo4j", db.ReadMode, nil, "")
	if err != nil {
		t.Fatalf("ServerFor: %v", err)
	}
	if first == second {
		t.Fatalf("expected round-robin across readers, got %s twice", first)
	}
}

func TestServerForWriteUsesWriter(t *testing.T) {
	connector := &fakeConnector{conns: map[string]*fakeRoutingConn{
		"router1:7687": {
			address: "router1:7687",
			table: &db.RoutingTable{
				TTLSecs: 300,
				Routers: []string{"router1:7687"},
				Readers: []string{"r1:7687"},
				Writers: []string{"w1:7687"},
			},
		},
	}}
	r := New(Config{InitialRouters: []string{"router1:7687"}, Connector: connector, Log: log.Void{}})

	addr, err := r.ServerFor(context.Background(), "neo4j", db.WriteMode, nil, "")
	if err != nil {
		t.Fatalf("ServerFor: %v", err)
	}
	if addr != "w1:7687" {
		t.Fatalf("expected writer w1:7687, got %s", addr)
	}
}

func TestServerForFallsBackToNextRouterOnFailure(t *testing.T) {
	connector := &fakeConnector{conns: map[string]*fakeRoutingConn{
		"router2:7687": {
			address: "router2:7687",
			table: &db.RoutingTable{
				TTLSecs: 300,
				Routers: []string{"router2:7687"},
				Readers: []string{"r1:7687"},
				Writers: []string{"w1:7687"},
			},
		},
	}}
	r := New(Config{InitialRouters: []string{"router1:7687", "router2:7687"}, Connector: connector, Log: log.Void{}})

	addr, err := r.ServerFor(context.Background(), "neo4j", db.ReadMode, nil, "")
	if err != nil {
		t.Fatalf("expected fallback to router2 to succeed, got err: %v", err)
	}
	if addr != "r1:7687" {
		t.Fatalf("expected r1:7687, got %s", addr)
	}
}

func TestServerForNoWritersReturnsWriteServiceUnavailable(t *testing.T) {
	connector := &fakeConnector{conns: map[string]*fakeRoutingConn{
		"router1:7687": {
			address: "router1:7687",
			table: &db.RoutingTable{
				TTLSecs: 300,
				Routers: []string{"router1:7687"},
				Readers: []string{"r1:7687"},
				Writers: nil,
			},
		},
	}}
	r := New(Config{InitialRouters: []string{"router1:7687"}, Connector: connector, Log: log.Void{}})

	_, err := r.ServerFor(context.Background(), "neo4j", db.WriteMode, nil, "")
	if err == nil {
		t.Fatal("expected error when no writers are available")
	}
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	calls := 0
	connector := &countingConnector{onAcquire: func() {}, table: &db.RoutingTable{
		TTLSecs: 0,
		Routers: []string{"router1:7687"},
		Readers: []string{"r1:7687"},
		Writers: []string{"w1:7687"},
	}}
	connector.onAcquire = func() { calls++ }
	r := New(Config{InitialRouters: []string{"router1:7687"}, Connector: connector, Log: log.Void{}})

	if _, err := r.ServerFor(context.Background(), "neo4j", db.ReadMode, nil, ""); err != nil {
		t.Fatalf("ServerFor: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := r.ServerFor(context.Background(), "neo4j", db.ReadMode, nil, ""); err != nil {
		t.Fatalf("ServerFor: %v", err)
	}
	if calls < 2 {
		t.Fatalf("expected a refresh (>=2 ROUTE calls) once the zero-TTL table expired, got %d", calls)
	}
}

type countingConnector struct {
	onAcquire func()
	table     *db.RoutingTable
}

func (c *countingConnector) Acquire(ctx context.Context, address string) (db.Connection, error) {
	c.onAcquire()
	return &fakeRoutingConn{address: address, table: c.table}, nil
}
func (c *countingConnector) Release(ctx context.Context, conn db.Connection, needsReset bool) error {
	return nil
}
