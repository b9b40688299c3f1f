package gobolt

import (
	"context"
	"testing"

	"github.com/boltstream/gobolt/internal/db"
)

func TestResultPeekDoesNotConsume(t *testing.T) {
	conn := newFakeConn()
	conn.script(newFakeRun([]string{"n"}, [][]any{{int64(1)}, {int64(2)}}))
	stream, keys, err := conn.Run(context.Background(), "RETURN n", nil, db.TxConfig{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	result := newResult(conn, stream, keys, -1)

	first, ok := result.Peek(context.Background())
	if !ok {
		t.Fatal("expected a peeked record")
	}
	if v, _ := first.Get("n"); v != int64(1) {
		t.Fatalf("expected 1, got %v", v)
	}

	// Peeking again must return the same record, not advance past it.
	again, ok := result.Peek(context.Background())
	if !ok {
		t.Fatal("expected a peeked record on the second call")
	}
	if v, _ := again.Get("n"); v != int64(1) {
		t.Fatalf("peek must not advance: expected 1 again, got %v", v)
	}

	if !result.Next(context.Background()) {
		t.Fatalf("expected Next to succeed: %v", result.Err())
	}
	if v, _ := result.Record().Get("n"); v != int64(1) {
		t.Fatalf("expected Next to return the peeked record, got %v", v)
	}

	second, ok := result.Peek(context.Background())
	if !ok {
		t.Fatal("expected to peek the second record")
	}
	if v, _ := second.Get("n"); v != int64(2) {
		t.Fatalf("expected 2, got %v", v)
	}
}

func TestResultPeekAtEndOfStreamReturnsFalse(t *testing.T) {
	conn := newFakeConn()
	conn.script(newFakeRun([]string{"n"}, nil))
	stream, keys, err := conn.Run(context.Background(), "RETURN n", nil, db.TxConfig{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	result := newResult(conn, stream, keys, -1)

	if _, ok := result.Peek(context.Background()); ok {
		t.Fatal("expected no record from an empty stream")
	}
	if err := result.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestResultSingleRejectsMultipleRecords(t *testing.T) {
	conn := newFakeConn()
	conn.script(newFakeRun([]string{"n"}, [][]any{{int64(1)}, {int64(2)}}))
	stream, keys, err := conn.Run(context.Background(), "RETURN n", nil, db.TxConfig{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	result := newResult(conn, stream, keys, -1)

	if _, err := result.Single(context.Background()); err == nil {
		t.Fatal("expected Single to reject a stream with more than one record")
	}
}

func TestResultConsumeReturnsSummaryAndStopsStreaming(t *testing.T) {
	conn := newFakeConn()
	conn.script(newFakeRunWithBookmark([]string{"n"}, [][]any{{int64(1)}, {int64(2)}}, "bm"))
	stream, keys, err := conn.Run(context.Background(), "RETURN n", nil, db.TxConfig{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	result := newResult(conn, stream, keys, -1)

	summary, err := result.Consume(context.Background())
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if summary == nil {
		t.Fatal("expected a non-nil summary")
	}
	if result.Next(context.Background()) {
		t.Fatal("expected no further records after Consume")
	}
}
