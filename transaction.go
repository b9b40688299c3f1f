package gobolt

import (
	"context"
	"math"
	"time"

	"github.com/boltstream/gobolt/internal/db"
)

// TransactionConfig configures an explicit or managed transaction
// (spec §6 "timeout", "metadata").
type TransactionConfig struct {
	Timeout  time.Duration
	Metadata map[string]any
}

// unsetTimeout marks TransactionConfig.Timeout as "use the server default",
// distinguishing it from an explicit zero timeout.
const unsetTimeout = time.Duration(math.MinInt64)

func defaultTransactionConfig() TransactionConfig {
	return TransactionConfig{Timeout: unsetTimeout}
}

func validateTransactionConfig(cfg TransactionConfig) error {
	if cfg.Timeout != unsetTimeout && cfg.Timeout < 0 {
		return &UsageError{Message: "transaction timeout must not be negative"}
	}
	return nil
}

// ManagedTransaction is the restricted view of Transaction handed to a
// ManagedTransactionWork: commit/rollback is driven by the retry
// orchestrator, not by the work function itself (spec §4.8).
type ManagedTransaction interface {
	Run(ctx context.Context, cypher string, params map[string]any) (*Result, error)
}

// ManagedTransactionWork is the unit of work passed to Session.ExecuteRead /
// ExecuteWrite. Returning an error aborts the transaction and, if the error
// is classified retryable, triggers another attempt (spec §4.8).
type ManagedTransactionWork func(tx ManagedTransaction) (any, error)

// Transaction is an explicit or managed transaction bound to a single
// pooled connection (spec §3 "Transaction").
type Transaction struct {
	conn      db.Connection
	fetchSize int64
	closed    bool
	onClosed  func(committed bool, bookmark string)

	// pendingResult is the Result of the most recent Run on this
	// transaction that hasn't been fully consumed yet. The connection FSM
	// only accepts a RUN from TX_READY, not TX_STREAMING (spec §4.3), so a
	// second Run first reads its remaining records into its buffer (spec §4.7
	// "multiple statements").
	pendingResult *Result
}

func newTransaction(conn db.Connection, fetchSize int64, onClosed func(committed bool, bookmark string)) *Transaction {
	return &Transaction{conn: conn, fetchSize: fetchSize, onClosed: onClosed}
}

// Run executes a statement within this transaction and returns a streaming
// Result. Any previous Run's result on this transaction is drained first so
// its records are buffered rather than lost (spec §4.7).
func (tx *Transaction) Run(ctx context.Context, cypher string, params map[string]any) (*Result, error) {
	if tx.closed {
		return nil, &UsageError{Message: "transaction is already closed"}
	}
	if pr := tx.pendingResult; pr != nil {
		for pr.summary == nil && pr.err == nil {
			held := pr.buffered
			pr.buffered = nil
			pr.fill(ctx)
			pr.buffered = append(held, pr.buffered...)
		}
		tx.pendingResult = nil
		if pr.err != nil {
			return nil, wrapError(pr.err)
		}
	}
	stream, keys, err := tx.conn.Run(ctx, cypher, params, db.TxConfig{})
	if err != nil {
		return nil, wrapError(err)
	}
	result := newResult(tx.conn, stream, keys, tx.fetchSize)
	tx.pendingResult = result
	return result, nil
}

// Commit commits the transaction.
func (tx *Transaction) Commit(ctx context.Context) error {
	if tx.closed {
		return &UsageError{Message: "transaction is already closed"}
	}
	tx.closed = true
	bookmark, err := tx.conn.TxCommit(ctx)
	if tx.onClosed != nil {
		tx.onClosed(err == nil, bookmark)
	}
	return wrapError(err)
}

// Rollback rolls the transaction back.
func (tx *Transaction) Rollback(ctx context.Context) error {
	if tx.closed {
		return &UsageError{Message: "transaction is already closed"}
	}
	tx.closed = true
	err := tx.conn.TxRollback(ctx)
	if tx.onClosed != nil {
		tx.onClosed(false, "")
	}
	return wrapError(err)
}

// Close rolls the transaction back if it was not already committed or
// rolled back, so `defer tx.Close(ctx)` is always safe.
func (tx *Transaction) Close(ctx context.Context) error {
	if tx.closed {
		return nil
	}
	return tx.Rollback(ctx)
}
