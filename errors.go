package gobolt

import (
	"errors"
	"fmt"

	"github.com/boltstream/gobolt/internal/errorutil"
)

// UsageError signals the caller broke an API contract (e.g. two concurrent
// transactions on one session); never retried, never a server round trip.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return e.Message }

// ConnectivityError wraps a failure to reach, authenticate against, or keep
// talking to the server (spec §7's ServiceUnavailable/SessionExpired/
// AuthError surfaced to the application).
type ConnectivityError struct {
	Message string
	Cause   error

	retryable bool
}

func (e *ConnectivityError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ConnectivityError) Unwrap() error { return e.Cause }

// Neo4jError surfaces a server-returned failure verbatim, preserving its
// Bolt status code for classification by the caller (spec §3, §7).
type Neo4jError struct {
	Code    string
	Message string
}

func (e *Neo4jError) Error() string { return fmt.Sprintf("[%s] %s", e.Code, e.Message) }

// TransactionExecutionLimitError is returned by ExecuteRead/ExecuteWrite when
// the retry budget is exhausted (spec §4.8).
type TransactionExecutionLimitError struct {
	Errors []error
}

func (e *TransactionExecutionLimitError) Error() string {
	if len(e.Errors) == 0 {
		return "transaction retry limit reached"
	}
	return fmt.Sprintf("transaction retry limit reached, last error: %v", e.Errors[len(e.Errors)-1])
}

// wrapError translates the internal error taxonomy (internal/errorutil) into
// the public error types applications are expected to type-switch on.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var cfgErr *errorutil.ConfigurationError
	if errors.As(err, &cfgErr) {
		return &UsageError{Message: cfgErr.Msg}
	}
	var drvErr *errorutil.DriverError
	if errors.As(err, &drvErr) {
		return &ConnectivityError{Message: drvErr.Msg, Cause: drvErr.Err, retryable: errorutil.IsRetryableDriverError(drvErr)}
	}
	var srvErr *errorutil.ServerError
	if errors.As(err, &srvErr) {
		return &Neo4jError{Code: srvErr.Code, Message: srvErr.Message}
	}
	var protoErr *errorutil.BoltProtocolError
	if errors.As(err, &protoErr) {
		return &ConnectivityError{Message: protoErr.Msg}
	}
	return err
}

// IsRetryable reports whether an error returned from ExecuteRead/
// ExecuteWrite or a raw Run/commit call would have been retried, useful for
// callers driving their own retry loop around single-use sessions.
func IsRetryable(err error) bool {
	var srvErr *Neo4jError
	if errors.As(err, &srvErr) {
		return (&errorutilServerErrorAdapter{srvErr}).IsRetryable()
	}
	var connErr *ConnectivityError
	return errors.As(err, &connErr) && connErr.retryable
}

type errorutilServerErrorAdapter struct{ e *Neo4jError }

func (a *errorutilServerErrorAdapter) IsRetryable() bool {
	se := &errorutil.ServerError{Code: a.e.Code, Message: a.e.Message}
	return se.IsRetryable()
}
