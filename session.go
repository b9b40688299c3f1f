package gobolt

import (
	"context"

	"github.com/boltstream/gobolt/internal/db"
	"github.com/boltstream/gobolt/log"
)

// SessionConfig configures a new Session (spec §6).
type SessionConfig struct {
	// AccessMode used by Session.Run and explicit transactions; ExecuteRead
	// and ExecuteWrite pick their own mode regardless of this setting.
	AccessMode AccessMode
	// Bookmarks seeds causal consistency. Bookmarks from BookmarkManager, if
	// one is set, are sent alongside them whether or not this is empty.
	Bookmarks Bookmarks
	// DatabaseName selects the database to run against. Empty resolves to
	// the server's (or impersonated user's) default database.
	DatabaseName string
	// FetchSize overrides the driver-wide default PULL batch size.
	FetchSize int
	// ImpersonatedUser runs every statement as this user (spec §4.3).
	ImpersonatedUser string
	// BoltLogger receives a wire-trace for every message this session
	// sends/receives (spec §6 "BoltLogger").
	BoltLogger log.BoltLogger
	// BookmarkManager, if set, augments the bookmarks this session sends
	// with a cross-session set and folds this session's own commits back
	// into it (spec §6 "bookmark_manager"). It never affects what
	// LastBookmarks reports for this session (spec §4.6, §8).
	BookmarkManager BookmarkManager
}

// Session is a logical connection to the server, not tied to any one
// physical connection until a transaction or auto-commit Run is in flight
// (spec §3 "Session"). A Session is not safe for concurrent use.
type Session struct {
	driver           *Driver
	defaultMode      db.AccessMode
	databaseName     string
	impersonatedUser string
	fetchSize        int64
	boltLogger       log.BoltLogger
	bookmarkManager  BookmarkManager

	// ownBookmarks is the bookmark set produced by this session's own
	// committed transactions (seeded from the caller-supplied
	// SessionConfig.Bookmarks). LastBookmarks reports exactly this field,
	// never anything contributed only by bookmarkManager (spec §4.6, §8).
	ownBookmarks []string

	explicitTx    *Transaction
	pendingResult *Result
}

func newSession(d *Driver, cfg SessionConfig) *Session {
	fetchSize := d.config.FetchSize
	if cfg.FetchSize != FetchDefault {
		fetchSize = cfg.FetchSize
	}
	return &Session{
		driver:           d,
		defaultMode:      cfg.AccessMode.internal(),
		ownBookmarks:     cleanupBookmarks(cfg.Bookmarks),
		databaseName:     cfg.DatabaseName,
		impersonatedUser: cfg.ImpersonatedUser,
		fetchSize:        int64(fetchSize),
		boltLogger:       cfg.BoltLogger,
		bookmarkManager:  cfg.BookmarkManager,
	}
}

// LastBookmarks returns the bookmark produced by the most recently
// completed transaction run through this session, or its initial set if
// none has completed yet. It never includes bookmarks this session only
// observed via a shared BookmarkManager (spec §4.6, §8).
func (s *Session) LastBookmarks() Bookmarks {
	return append(Bookmarks(nil), s.ownBookmarks...)
}

// wireBookmarks is what gets sent to the server: this session's own
// bookmarks, augmented with the shared manager's view (if any) of the same
// database.
func (s *Session) wireBookmarks() []string {
	if s.bookmarkManager == nil {
		return s.ownBookmarks
	}
	return CombineBookmarks(Bookmarks(s.ownBookmarks), Bookmarks(s.bookmarkManager.GetBookmarks(s.databaseName)))
}

func (s *Session) updateBookmarks(newBookmarks []string) {
	previous := s.ownBookmarks
	s.ownBookmarks = newBookmarks
	if s.bookmarkManager != nil {
		s.bookmarkManager.UpdateBookmarks(s.databaseName, previous, newBookmarks)
	}
}

func (s *Session) getConnection(ctx context.Context, mode db.AccessMode) (db.Connection, error) {
	addr, err := s.driver.pickServer(ctx, mode, s.databaseName)
	if err != nil {
		return nil, err
	}
	conn, err := s.driver.pool.Acquire(ctx, addr)
	if err != nil {
		return nil, err
	}
	if s.boltLogger != nil {
		conn.SetBoltLogger(s.boltLogger)
	}
	return conn, nil
}

func (s *Session) releaseConnection(ctx context.Context, conn db.Connection, needsReset bool) {
	if err := s.driver.pool.Release(ctx, conn, needsReset); err != nil {
		s.driver.config.Log.Warnf("session", "", "release connection: %v", err)
	}
}

func (s *Session) txConfig(mode db.AccessMode, cfg TransactionConfig) db.TxConfig {
	txCfg := db.TxConfig{
		Mode:             mode,
		Bookmarks:        s.wireBookmarks(),
		Metadata:         cfg.Metadata,
		ImpersonatedUser: s.impersonatedUser,
		Database:         s.databaseName,
	}
	if cfg.Timeout != unsetTimeout {
		txCfg.Timeout = cfg.Timeout
	}
	return txCfg
}

// BeginTransaction starts a new explicit transaction on this session
// (spec §4.6). Exactly one explicit transaction may be open at a time.
func (s *Session) BeginTransaction(ctx context.Context, configurers ...func(*TransactionConfig)) (*Transaction, error) {
	if s.explicitTx != nil {
		return nil, &UsageError{Message: "session already has a pending transaction"}
	}
	cfg := defaultTransactionConfig()
	for _, c := range configurers {
		c(&cfg)
	}
	if err := validateTransactionConfig(cfg); err != nil {
		return nil, err
	}

	conn, err := s.getConnection(ctx, s.defaultMode)
	if err != nil {
		return nil, wrapError(err)
	}
	if err := conn.TxBegin(ctx, s.txConfig(s.defaultMode, cfg)); err != nil {
		s.releaseConnection(ctx, conn, true)
		return nil, wrapError(err)
	}

	tx := newTransaction(conn, s.fetchSize, func(committed bool, bookmark string) {
		if bookmark != "" {
			s.updateBookmarks([]string{bookmark})
		}
		s.releaseConnection(ctx, conn, !committed)
		s.explicitTx = nil
	})
	s.explicitTx = tx
	return tx, nil
}

// ExecuteRead executes work in a read transaction, retrying it per spec
// §4.8's classification and backoff policy.
func (s *Session) ExecuteRead(ctx context.Context, work ManagedTransactionWork, configurers ...func(*TransactionConfig)) (any, error) {
	return s.runRetriable(ctx, db.ReadMode, work, configurers...)
}

// ExecuteWrite executes work in a write transaction, retrying it per spec
// §4.8's classification and backoff policy.
func (s *Session) ExecuteWrite(ctx context.Context, work ManagedTransactionWork, configurers ...func(*TransactionConfig)) (any, error) {
	return s.runRetriable(ctx, db.WriteMode, work, configurers...)
}

func (s *Session) runRetriable(ctx context.Context, mode db.AccessMode, work ManagedTransactionWork, configurers ...func(*TransactionConfig)) (any, error) {
	if s.explicitTx != nil {
		return nil, &UsageError{Message: "session already has a pending explicit transaction"}
	}
	cfg := defaultTransactionConfig()
	for _, c := range configurers {
		c(&cfg)
	}
	if err := validateTransactionConfig(cfg); err != nil {
		return nil, err
	}

	result, err := s.driver.retryOrch.Run(ctx, func(ctx context.Context) (any, error) {
		return s.runOnce(ctx, mode, cfg, work)
	})
	if err != nil {
		return nil, wrapError(err)
	}
	return result, nil
}

func (s *Session) runOnce(ctx context.Context, mode db.AccessMode, cfg TransactionConfig, work ManagedTransactionWork) (any, error) {
	conn, err := s.getConnection(ctx, mode)
	if err != nil {
		return nil, err
	}
	if err := conn.TxBegin(ctx, s.txConfig(mode, cfg)); err != nil {
		s.releaseConnection(ctx, conn, true)
		return nil, err
	}

	committed := false
	defer func() {
		// Whatever work() left open, RESET-on-release aborts it; a bare
		// rollback here would race a connection the pool is about to reset
		// anyway (spec §4.4 release algorithm).
		s.releaseConnection(ctx, conn, !committed)
	}()

	tx := newTransaction(conn, s.fetchSize, nil)
	result, workErr := work(tx)
	if workErr != nil {
		return nil, workErr
	}

	bookmark, err := conn.TxCommit(ctx)
	if err != nil {
		return nil, err
	}
	committed = true
	if bookmark != "" {
		s.updateBookmarks([]string{bookmark})
	}
	return result, nil
}

// Run executes an auto-commit statement and returns a streaming Result
// (spec §4.6).
func (s *Session) Run(ctx context.Context, cypher string, params map[string]any, configurers ...func(*TransactionConfig)) (*Result, error) {
	if s.explicitTx != nil {
		return nil, &UsageError{Message: "cannot run an auto-commit statement while an explicit transaction is open"}
	}
	if s.pendingResult != nil {
		_, _ = s.pendingResult.Consume(ctx)
		s.pendingResult = nil
	}

	cfg := defaultTransactionConfig()
	for _, c := range configurers {
		c(&cfg)
	}
	if err := validateTransactionConfig(cfg); err != nil {
		return nil, err
	}

	conn, err := s.getConnection(ctx, s.defaultMode)
	if err != nil {
		return nil, wrapError(err)
	}

	stream, keys, err := conn.Run(ctx, cypher, params, s.txConfig(s.defaultMode, cfg))
	if err != nil {
		s.releaseConnection(ctx, conn, true)
		return nil, wrapError(err)
	}

	result := newResult(conn, stream, keys, s.fetchSize)
	result.onDone = func(ctx context.Context, summary *db.Summary) {
		if summary != nil && summary.Bookmark != "" {
			s.updateBookmarks([]string{summary.Bookmark})
		}
		s.releaseConnection(ctx, conn, summary == nil)
		s.pendingResult = nil
	}
	s.pendingResult = result
	return result, nil
}

// Close releases any connection still held by this session: an open
// explicit transaction is rolled back, and an unconsumed auto-commit
// result is discarded.
func (s *Session) Close(ctx context.Context) error {
	if s.explicitTx != nil {
		if err := s.explicitTx.Close(ctx); err != nil {
			return err
		}
	}
	if s.pendingResult != nil {
		if _, err := s.pendingResult.Consume(ctx); err != nil {
			return err
		}
	}
	return nil
}
