// Package errorutil implements the error taxonomy from spec §7: local
// configuration errors, the DriverError family, server errors classified by
// code, and the BoltProtocolError that marks a connection defunct.
package errorutil

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigurationError is local and fatal: bad URI, conflicting encryption
// settings, invalid bookmarks, invalid parameter types. Never retried.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return "configuration error: " + e.Msg }

func NewConfigurationError(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// DriverError is the parent of ServiceUnavailable, SessionExpired,
// AuthError, TransactionError, ResultConsumed and ResultNotSingle.
type DriverError struct {
	Kind string // one of the constants below
	Msg  string
	Err  error // wrapped cause, if any
}

const (
	KindServiceUnavailable = "ServiceUnavailable"
	KindSessionExpired     = "SessionExpired"
	KindAuthError          = "AuthError"
	KindTransactionError   = "TransactionError"
	KindResultConsumed     = "ResultConsumed"
	KindResultNotSingle    = "ResultNotSingle"
	KindConnectionBroken   = "ConnectionBroken"
)

func (e *DriverError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *DriverError) Unwrap() error { return e.Err }

func NewDriverError(kind, msg string, cause error) error {
	return &DriverError{Kind: kind, Msg: msg, Err: cause}
}

// IsRetryableDriverError reports whether a *DriverError of this kind should
// be retried by the orchestrator (spec §4.8, §7).
func IsRetryableDriverError(err error) bool {
	var de *DriverError
	if !errors.As(err, &de) {
		return false
	}
	switch de.Kind {
	case KindServiceUnavailable, KindSessionExpired:
		return true
	default:
		return false
	}
}

// ServerError carries the server's code and message (spec §3, §7),
// classified into Client/Transient/Database buckets by the Neo.*.*.* code
// namespace convention.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error [%s]: %s", e.Code, e.Message)
}

// classification matches "Neo.<Classification>.<Category>.<Title>".
func (e *ServerError) classification() string {
	parts := strings.SplitN(e.Code, ".", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func (e *ServerError) IsClientError() bool    { return e.classification() == "ClientError" }
func (e *ServerError) IsDatabaseError() bool  { return e.classification() == "DatabaseError" }
func (e *ServerError) IsTransientError() bool { return e.classification() == "TransientError" }

// explicitTerminationSubcodes are TransientError subcodes the spec excludes
// from retry (user explicitly terminated the transaction/query).
var explicitTerminationSubcodes = map[string]bool{
	"Neo.TransientError.Transaction.Terminated":       true,
	"Neo.TransientError.Transaction.LockClientStopped": true,
}

// IsRetryable implements spec §4.8/§7's retryable classification for server
// errors: TransientError except explicit-termination subcodes.
func (e *ServerError) IsRetryable() bool {
	if explicitTerminationSubcodes[e.Code] {
		return false
	}
	return e.IsTransientError()
}

// IsAuthError reports a server-side authentication failure (non-retryable,
// surfaced immediately per spec §4.5/§7).
func (e *ServerError) IsAuthError() bool {
	return strings.Contains(e.Code, "Security.Unauthorized") ||
		strings.Contains(e.Code, "Security.AuthenticationRateLimit") ||
		strings.Contains(e.Code, "Security.CredentialsExpired")
}

// routing-specific classifications used by internal/router (spec §4.5).
func (e *ServerError) IsForbiddenOnReadReplica() bool {
	return strings.Contains(e.Code, "Forbidden") && strings.Contains(e.Code, "read replica")
}

func (e *ServerError) IsNotALeader() bool {
	return e.Code == "Neo.ClientError.Cluster.NotALeader"
}

func (e *ServerError) IsClusterNotAvailable() bool {
	return e.Code == "Neo.ClientError.General.ClusterNotAvailable" ||
		e.Code == "Neo.TransientError.General.ClusterNotAvailable"
}

// BoltProtocolError signals a malformed message or an illegal FSM
// transition; the owning connection must be marked DEFUNCT (spec §4.3, §7).
type BoltProtocolError struct {
	Msg string
}

func (e *BoltProtocolError) Error() string { return "bolt protocol error: " + e.Msg }

func NewProtocolError(format string, args ...any) error {
	return &BoltProtocolError{Msg: fmt.Sprintf(format, args...)}
}

// ErrWriteServiceUnavailable is returned by the router when no writer is
// available even after a refresh (spec §4.5).
var ErrWriteServiceUnavailable = NewDriverError(KindServiceUnavailable, "no writers available", nil)
