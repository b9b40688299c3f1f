// Package retry implements spec component C9: the managed-transaction retry
// orchestrator, exponential backoff with jitter bounded by a total retry
// time budget, and the retryable/non-retryable error classification used by
// gobolt's ExecuteRead/ExecuteWrite.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/boltstream/gobolt/internal/errorutil"
	"github.com/boltstream/gobolt/log"
)

// Work is one attempt at the managed transaction body. It returns the
// transaction's result plus any error; a nil error commits the attempt.
type Work func(ctx context.Context) (any, error)

// Config carries spec §6's max_transaction_retry_time plus the teacher's
// logging hook.
type Config struct {
	MaxRetryTime time.Duration
	Log          log.Logger
}

// Orchestrator runs Work, retrying on classified-retryable failures with
// exponential backoff and jitter until MaxRetryTime elapses (spec §4.8).
type Orchestrator struct {
	cfg Config
}

func New(cfg Config) *Orchestrator {
	if cfg.MaxRetryTime <= 0 {
		cfg.MaxRetryTime = 30 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = log.Void{}
	}
	return &Orchestrator{cfg: cfg}
}

// Run executes work, retrying according to spec §4.8/§7's classification:
// ServiceUnavailable, SessionExpired, and server TransientErrors (other than
// explicit termination) are retried; everything else is returned as-is.
func (o *Orchestrator) Run(ctx context.Context, work Work) (any, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = o.cfg.MaxRetryTime

	bctx := backoff.WithContext(b, ctx)

	var result any
	attempt := 0
	var lastErr error
	op := func() error {
		attempt++
		r, err := work(ctx)
		if err == nil {
			result = r
			return nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		o.cfg.Log.Warnf("retry", "", "attempt %d failed, retrying: %v", attempt, err)
		return err
	}

	if err := backoff.Retry(op, bctx); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return nil, permanent.Err
		}
		return nil, errorutil.NewDriverError(errorutil.KindServiceUnavailable,
			"transaction failed after exhausting retry time budget", lastErr)
	}
	return result, nil
}

// IsRetryable classifies err per spec §4.8: local ServiceUnavailable /
// SessionExpired DriverErrors, and server TransientErrors other than an
// explicit user/administrator termination.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errorutil.IsRetryableDriverError(err) {
		return true
	}
	var serr *errorutil.ServerError
	if errors.As(err, &serr) {
		return serr.IsRetryable()
	}
	return false
}
