package gobolt

import (
	"context"
	"time"

	"github.com/boltstream/gobolt/internal/db"
	"github.com/boltstream/gobolt/internal/errorutil"
	"github.com/boltstream/gobolt/internal/pool"
	"github.com/boltstream/gobolt/internal/retry"
)

// fakeRun is one scripted Run's worth of records and closing summary, in the
// teacher's hand-rolled fake-connection style (see internal/pool's
// pool_test.go fakeConn).
type fakeRun struct {
	keys            []string
	records         [][]any
	summary         *db.Summary
	pos             int
	summaryReturned bool
}

func newFakeRun(keys []string, records [][]any) *fakeRun {
	return &fakeRun{keys: keys, records: records, summary: &db.Summary{}}
}

func newFakeRunWithBookmark(keys []string, records [][]any, bookmark string) *fakeRun {
	return &fakeRun{keys: keys, records: records, summary: &db.Summary{Bookmark: bookmark}}
}

func (r *fakeRun) drained() bool {
	return r.pos >= len(r.records) && r.summaryReturned
}

// fakeConn is a minimal db.Connection double that enforces the same
// "no RUN while a stream is still open" rule the real FSM enforces
// (internal/bolt/fsm.go's canSend), so a test can tell whether a caller
// drained its previous result before issuing another RUN.
type fakeConn struct {
	address string

	runs   []*fakeRun
	active int // index into runs of the not-yet-drained stream, -1 if none

	lastTxBegin db.TxConfig
	txBegins    int
	committed   bool
	rolledBack  bool
	bookmarkOut string

	broken bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{address: "fake:7687", active: -1}
}

func (c *fakeConn) script(r *fakeRun) { c.runs = append(c.runs, r) }

func (c *fakeConn) Connect(context.Context, map[string]any, string, map[string]string, any) error {
	return nil
}

func (c *fakeConn) TxBegin(ctx context.Context, cfg db.TxConfig) error {
	c.txBegins++
	c.lastTxBegin = cfg
	return nil
}

func (c *fakeConn) TxCommit(context.Context) (string, error) {
	c.committed = true
	return c.bookmarkOut, nil
}

func (c *fakeConn) TxRollback(context.Context) error {
	c.rolledBack = true
	return nil
}

func (c *fakeConn) Run(ctx context.Context, cypher string, params map[string]any, cfg db.TxConfig) (db.StreamHandle, []string, error) {
	if c.active >= 0 && !c.runs[c.active].drained() {
		return nil, nil, errorutil.NewProtocolError("illegal transition: RUN sent while a prior stream is still open")
	}
	if c.active+1 >= len(c.runs) {
		return nil, nil, errorutil.NewProtocolError("fakeConn: no scripted run left")
	}
	c.active++
	r := c.runs[c.active]
	return c.active, r.keys, nil
}

func (c *fakeConn) Next(ctx context.Context, h db.StreamHandle) (*db.Record, *db.Summary, error) {
	r := c.runs[h.(int)]
	if r.pos < len(r.records) {
		vals := r.records[r.pos]
		r.pos++
		return &db.Record{Keys: r.keys, Values: vals}, nil, nil
	}
	r.summaryReturned = true
	return nil, r.summary, nil
}

func (c *fakeConn) Discard(ctx context.Context, h db.StreamHandle, n int64) (*db.Summary, error) {
	r := c.runs[h.(int)]
	r.pos = len(r.records)
	r.summaryReturned = true
	return r.summary, nil
}

func (c *fakeConn) Pull(context.Context, db.StreamHandle, int64) error { return nil }
func (c *fakeConn) Reset(context.Context) error                       { return nil }
func (c *fakeConn) Close(context.Context)                             {}

func (c *fakeConn) IsAlive() bool                  { return !c.broken }
func (c *fakeConn) Birthdate() time.Time           { return time.Now() }
func (c *fakeConn) IdleDuration() time.Duration    { return 0 }
func (c *fakeConn) ResetIdleTimer()                {}
func (c *fakeConn) ServerVersion() string          { return "fake/1.0" }
func (c *fakeConn) ServerAddress() string          { return c.address }
func (c *fakeConn) Version() (int, int)            { return 5, 4 }
func (c *fakeConn) ConnId() string                 { return "fake-1" }
func (c *fakeConn) SetBoltLogger(db.BoltLogger)    {}
func (c *fakeConn) IsStale() bool                  { return false }
func (c *fakeConn) MarkStale()                     {}
func (c *fakeConn) SetBroken()                     { c.broken = true }
func (c *fakeConn) RecvTimeoutHint() time.Duration { return 0 }
func (c *fakeConn) Route(context.Context, map[string]string, []string, string, string) (*db.RoutingTable, error) {
	return nil, nil
}

func dialerFor(conn db.Connection) func(ctx context.Context, address string) (db.Connection, error) {
	return func(ctx context.Context, address string) (db.Connection, error) {
		return conn, nil
	}
}

// newTestDriver builds a direct (non-routed), non-networked Driver whose
// pool dials straight into conn, for exercising Session/Transaction/Result
// without a real socket.
func newTestDriver(conn db.Connection) *Driver {
	cfg := defaultConfig()
	return &Driver{
		target: &parsedTarget{address: "fake:7687"},
		config: cfg,
		pool: pool.New(pool.Config{
			MaxSize:            4,
			AcquisitionTimeout: time.Second,
			Dial:               dialerFor(conn),
			Log:                cfg.Log,
		}),
		retryOrch: retry.New(retry.Config{MaxRetryTime: time.Second, Log: cfg.Log}),
	}
}
