package gobolt

import (
	"crypto/tls"
	"time"

	"github.com/boltstream/gobolt/log"
)

// FetchAll turns off fetching records in batches: PULL requests all
// remaining records in one round trip.
const FetchAll = -1

// FetchDefault lets the driver choose the PULL batch size (spec §6).
const FetchDefault = 0

// Config carries every driver-wide knob from spec §6, configured through
// functional options passed to NewDriver (SPEC_FULL §3.3: this module
// follows the teacher's own options-struct convention rather than reaching
// for a flag/env parsing library, since driver construction is an
// in-process API call, not a CLI surface).
type Config struct {
	// MaxConnectionPoolSize bounds live connections per server address.
	MaxConnectionPoolSize int
	// MaxConnectionLifetime discards a pooled connection once it has been
	// alive this long, regardless of use. Negative disables the check.
	MaxConnectionLifetime time.Duration
	// ConnectionAcquisitionTimeout bounds how long Acquire waits for a free
	// slot before failing. Zero uses the pool's own default.
	ConnectionAcquisitionTimeout time.Duration
	// SocketConnectTimeout bounds the TCP connect + TLS handshake + Bolt
	// version handshake.
	SocketConnectTimeout time.Duration
	// SocketKeepalive enables TCP keepalive probes on pooled sockets.
	SocketKeepalive bool
	// TLSConfig, if non-nil, enables encryption using these settings. It is
	// never populated from the URI; a +s / +ssc scheme builds its own TLS
	// settings and is rejected when TLSConfig is also set (see uri.go).
	TLSConfig *tls.Config
	// UserAgent sent in HELLO. Defaults to a gobolt/<version> string.
	UserAgent string
	// FetchSize is the default PULL batch size for sessions that don't
	// override it (spec §6).
	FetchSize int
	// MaxTransactionRetryTime bounds ExecuteRead/ExecuteWrite's retry loop.
	MaxTransactionRetryTime time.Duration
	// Log receives structured driver diagnostics (SPEC_FULL §3.1). Defaults
	// to a no-op logger.
	Log log.Logger
	// RoutingTableCacheSize bounds the router's per-database table cache.
	RoutingTableCacheSize int
}

func defaultConfig() *Config {
	return &Config{
		MaxConnectionPoolSize:        100,
		MaxConnectionLifetime:        1 * time.Hour,
		ConnectionAcquisitionTimeout: 60 * time.Second,
		SocketConnectTimeout:         5 * time.Second,
		SocketKeepalive:              true,
		UserAgent:                    "gobolt/0.1",
		FetchSize:                    1000,
		MaxTransactionRetryTime:      30 * time.Second,
		Log:                          log.Void{},
		RoutingTableCacheSize:        100,
	}
}
