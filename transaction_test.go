package gobolt

import (
	"context"
	"testing"
)

// TestTransactionRunDrainsPreviousResultBeforeSecondRun is the spec §4.7
// regression: a second Run on the same transaction must not hit the FSM's
// "RUN not allowed mid-stream" rejection, because Transaction.Run drains the
// prior statement's remaining records first.
func TestTransactionRunDrainsPreviousResultBeforeSecondRun(t *testing.T) {
	conn := newFakeConn()
	conn.script(newFakeRun([]string{"n"}, [][]any{{int64(1)}, {int64(2)}}))
	conn.script(newFakeRun([]string{"m"}, [][]any{{int64(3)}}))

	tx := newTransaction(conn, -1, nil)

	if _, err := tx.Run(context.Background(), "RETURN 1", nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	// Deliberately leave the first result unconsumed: Run must drain it.
	r2, err := tx.Run(context.Background(), "RETURN 2", nil)
	if err != nil {
		t.Fatalf("second run should have drained the first automatically: %v", err)
	}
	rec, err := r2.Single(context.Background())
	if err != nil {
		t.Fatalf("single: %v", err)
	}
	if v, _ := rec.Get("m"); v != int64(3) {
		t.Errorf("expected the second run's record, got %v", v)
	}
}

func TestTransactionCommitCapturesBookmarkAndNotifiesOnClosed(t *testing.T) {
	conn := newFakeConn()
	conn.bookmarkOut = "bm-x"
	var gotCommitted bool
	var gotBookmark string
	tx := newTransaction(conn, -1, func(committed bool, bookmark string) {
		gotCommitted = committed
		gotBookmark = bookmark
	})
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !gotCommitted || gotBookmark != "bm-x" {
		t.Fatalf("expected onClosed(true, %q), got (%v, %q)", "bm-x", gotCommitted, gotBookmark)
	}
	if err := tx.Commit(context.Background()); err == nil {
		t.Error("expected error committing an already-closed transaction")
	}
}

func TestTransactionCloseRollsBackIfNotClosed(t *testing.T) {
	conn := newFakeConn()
	tx := newTransaction(conn, -1, nil)
	if err := tx.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !conn.rolledBack {
		t.Error("expected Close to roll back an unclosed transaction")
	}
	// Close is idempotent once the transaction is already closed.
	if err := tx.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
