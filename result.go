package gobolt

import (
	"context"

	"github.com/boltstream/gobolt/internal/db"
)

// Result streams the records produced by Run, pulling more from the server
// in FetchSize-sized batches as the caller consumes them (spec §4.7).
type Result struct {
	conn      db.Connection
	stream    db.StreamHandle
	keys      []string
	fetchSize int64

	buffered []*db.Record
	record   *Record
	summary  *db.Summary
	err      error

	// onDone, if set, fires exactly once when streaming finishes for any
	// reason - the closing SUCCESS observed, or an error - so the owning
	// Session can release the connection and fold in the resulting
	// bookmark. summary is nil if streaming ended in error.
	onDone   func(ctx context.Context, summary *db.Summary)
	notified bool
}

func newResult(conn db.Connection, stream db.StreamHandle, keys []string, fetchSize int64) *Result {
	return &Result{conn: conn, stream: stream, keys: keys, fetchSize: fetchSize}
}

func (r *Result) noteDone(ctx context.Context) {
	if r.notified || (r.summary == nil && r.err == nil) {
		return
	}
	r.notified = true
	if r.onDone != nil {
		r.onDone(ctx, r.summary)
	}
}

// Keys returns the result's column names.
func (r *Result) Keys() []string { return r.keys }

// fill ensures r.buffered holds at least one record, unless the stream has
// reached its summary or an error, pulling further batches as needed.
func (r *Result) fill(ctx context.Context) {
	for len(r.buffered) == 0 && r.summary == nil && r.err == nil {
		rec, sum, err := r.conn.Next(ctx, r.stream)
		if err != nil {
			r.err = err
			r.noteDone(ctx)
			return
		}
		switch {
		case rec != nil:
			r.buffered = append(r.buffered, rec)
		case sum != nil:
			r.summary = sum
			r.noteDone(ctx)
		default:
			// Buffer drained but stream not complete: fetch the next batch.
			if err := r.conn.Pull(ctx, r.stream, r.fetchSize); err != nil {
				r.err = err
				r.noteDone(ctx)
				return
			}
		}
	}
}

// Next advances to the next record, returning false at end-of-stream or on
// error (check Err afterwards).
func (r *Result) Next(ctx context.Context) bool {
	if r.err != nil {
		return false
	}
	r.fill(ctx)
	if len(r.buffered) == 0 {
		return false
	}
	rec := r.buffered[0]
	r.buffered = r.buffered[1:]
	r.record = newRecord(rec)
	return true
}

// Peek returns the next record without advancing past it: a following Next
// or Peek sees the same record again first (spec §4.7 "peek()"). It returns
// false at end-of-stream or on error (check Err afterwards).
func (r *Result) Peek(ctx context.Context) (*Record, bool) {
	if r.err != nil {
		return nil, false
	}
	r.fill(ctx)
	if len(r.buffered) == 0 {
		return nil, false
	}
	return newRecord(r.buffered[0]), true
}

// Record returns the record most recently advanced to by Next.
func (r *Result) Record() *Record { return r.record }

// Err returns the first error encountered while streaming, if any.
func (r *Result) Err() error { return wrapError(r.err) }

// Consume discards any remaining records and returns the stream's summary.
func (r *Result) Consume(ctx context.Context) (*ResultSummary, error) {
	for r.summary == nil && r.err == nil {
		sum, err := r.conn.Discard(ctx, r.stream, -1)
		if err != nil {
			r.err = err
			break
		}
		r.summary = sum
	}
	r.noteDone(ctx)
	if r.err != nil {
		return nil, wrapError(r.err)
	}
	return newResultSummary(r.summary, r.conn), nil
}

// Collect drains the entire stream into memory and returns every record.
func (r *Result) Collect(ctx context.Context) ([]*Record, error) {
	var out []*Record
	for r.Next(ctx) {
		out = append(out, r.Record())
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Single returns the stream's one expected record, failing if the stream
// produced zero or more than one (spec §4.7 "single()" convenience).
func (r *Result) Single(ctx context.Context) (*Record, error) {
	if !r.Next(ctx) {
		if err := r.Err(); err != nil {
			return nil, err
		}
		return nil, &UsageError{Message: "result contained no records"}
	}
	rec := r.Record()
	if r.Next(ctx) {
		return nil, &UsageError{Message: "result contained more than one record"}
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return rec, nil
}
