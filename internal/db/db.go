// Package db declares the interfaces shared between the Bolt connection
// engine (internal/bolt), the connection pool (internal/pool), the router
// (internal/router) and the public gobolt package. Keeping them here lets
// every layer depend on narrow interfaces instead of each other's concrete
// types, mirroring the teacher driver's internal/db package.
package db

import (
	"context"
	"time"
)

// AccessMode selects which cluster role the router should pick a server
// from. It has no effect on a direct (non-routed) connection.
type AccessMode int

const (
	ReadMode AccessMode = iota
	WriteMode
)

func (m AccessMode) String() string {
	if m == WriteMode {
		return "WRITE"
	}
	return "READ"
}

// StreamHandle addresses one RUN's result stream on a connection that may be
// multiplexing several (explicit transactions with several statements). It
// wraps the server-assigned qid (spec §3 "qid").
type StreamHandle any

// TxHandle identifies an open transaction on a connection.
type TxHandle any

// Summary is the metadata returned by the final SUCCESS of a result stream:
// bookmark, counters, notifications, timings. Decoding of the full
// structure is left to the caller; Summary only carries the fields the core
// needs to drive bookmarks and routing.
type Summary struct {
	Bookmark      string
	Database      string
	QueryType     string
	TFirst        int64
	TLast         int64
	Metadata      map[string]any
	Notifications []any
}

// Record is one row of a result, values already decoded from PackStream.
type Record struct {
	Keys   []string
	Values []any
}

// TxConfig carries the optional metadata a BEGIN or auto-commit RUN may
// attach: timeout, custom metadata, transaction-level notification filters.
type TxConfig struct {
	Timeout               time.Duration
	Metadata              map[string]any
	NotificationFilters   any
	Mode                  AccessMode
	Bookmarks             []string
	ImpersonatedUser      string
	Database              string
}

// Connection is the interface the pool hands out and the session/transaction
// layer drives. It is implemented per Bolt protocol version by the internal
// bolt package (bolt3, bolt4, bolt5) behind a single shared type so callers
// never branch on protocol version themselves.
type Connection interface {
	// Connect performs HELLO/LOGON; must be called exactly once right after
	// the version handshake succeeds.
	Connect(ctx context.Context, auth map[string]any, userAgent string, routingContext map[string]string, notificationFilters any) error

	TxBegin(ctx context.Context, cfg TxConfig) error
	TxCommit(ctx context.Context) (string, error) // returns new bookmark
	TxRollback(ctx context.Context) error

	// Run starts a (possibly auto-commit) statement. qid is db.StreamHandle;
	// for an auto-commit run outside any BEGIN, qid is ignored by the
	// server (pre-multiplex versions) or returned as -1.
	Run(ctx context.Context, cypher string, params map[string]any, cfg TxConfig) (StreamHandle, []string, error)

	// Next returns the next buffered record for the given stream, or a nil
	// record and the summary once the stream is complete. It never pulls:
	// nil record and nil summary mean the caller must Pull more.
	Next(ctx context.Context, stream StreamHandle) (*Record, *Summary, error)

	// Discard abandons the remaining records of a stream (server DISCARD).
	Discard(ctx context.Context, stream StreamHandle, n int64) (*Summary, error)

	// Pull requests up to n more records (server PULL); n < 0 means all.
	Pull(ctx context.Context, stream StreamHandle, n int64) error

	Reset(ctx context.Context) error
	Close(ctx context.Context)

	IsAlive() bool
	Birthdate() time.Time
	IdleDuration() time.Duration
	ResetIdleTimer()

	ServerVersion() string
	ServerAddress() string
	Version() (major, minor int)
	ConnId() string

	// SetBoltLogger installs a per-call wire-trace sink (spec §6 BoltLogger).
	SetBoltLogger(logger BoltLogger)

	// Stale machinery (spec §4.4)
	IsStale() bool
	MarkStale()

	// SetBroken marks the connection DEFUNCT; never returned to a pool.
	SetBroken()

	// RecvTimeoutHint returns the connection.recv_timeout_seconds hint sent
	// by the server in HELLO's SUCCESS, 0 if none/ignored (pre-v4, spec §4.3).
	RecvTimeoutHint() time.Duration

	// Route sends ROUTE (or, on servers too old to have it, falls back to
	// the legacy getRoutingTable procedure via RUN/PULL, SPEC_FULL §5.4) and
	// returns the decoded routing table (spec §4.5).
	Route(ctx context.Context, routingContext map[string]string, bookmarks []string, database string, impersonatedUser string) (*RoutingTable, error)
}

// RoutingTable is the decoded reply to a ROUTE call (spec §3 "Routing table").
type RoutingTable struct {
	Database string
	TTLSecs  int64
	Routers  []string
	Readers  []string
	Writers  []string
}

// BoltLogger receives raw wire-trace lines (spec §6).
type BoltLogger interface {
	LogClientMessage(context string, msg string, args ...any)
	LogServerMessage(context string, msg string, args ...any)
}
