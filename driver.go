// Package gobolt is a client library for graph databases speaking the Bolt
// binary protocol. It provides connection pooling, cluster-aware routing,
// and managed-transaction retry on top of the Bolt wire protocol engine in
// internal/bolt (spec §1 OVERVIEW).
package gobolt

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/boltstream/gobolt/internal/address"
	"github.com/boltstream/gobolt/internal/bolt"
	"github.com/boltstream/gobolt/internal/db"
	"github.com/boltstream/gobolt/internal/errorutil"
	"github.com/boltstream/gobolt/internal/pool"
	"github.com/boltstream/gobolt/internal/resolver"
	"github.com/boltstream/gobolt/internal/retry"
	"github.com/boltstream/gobolt/internal/router"
	"github.com/boltstream/gobolt/internal/transport"
)

// Driver is the top-level entry point: one per application process,
// owning the connection pool and, for neo4j:// targets, the routing layer
// (spec §3 "Driver").
type Driver struct {
	target    *parsedTarget
	config    *Config
	pool      *pool.Pool
	router    *router.Router // nil for direct (bolt://) targets
	retryOrch *retry.Orchestrator
	auth      AuthToken
	id        string
}

// NewDriver builds a Driver for uri (a bolt://, bolt+s://, bolt+ssc://,
// neo4j://, neo4j+s:// or neo4j+ssc:// target, spec §6). It never dials
// eagerly; the first session to need a server triggers the first connect.
func NewDriver(uri string, auth AuthToken, configurers ...func(*Config)) (*Driver, error) {
	cfg := defaultConfig()
	for _, c := range configurers {
		c(cfg)
	}
	target, err := parseTarget(uri, cfg)
	if err != nil {
		return nil, err
	}

	transportCfg := transport.Config{
		ConnectTimeout: cfg.SocketConnectTimeout,
		KeepAlive:      cfg.SocketKeepalive,
		TLSConfig:      target.tlsConfig,
	}

	dial := func(ctx context.Context, addr string) (db.Connection, error) {
		conn, err := bolt.Dial(ctx, addr, transportCfg)
		if err != nil {
			return nil, fmt.Errorf("gobolt: dial %s: %w", addr, err)
		}
		if err := conn.Connect(ctx, auth.asMap(), cfg.UserAgent, target.routingContext, nil); err != nil {
			conn.Close(ctx)
			return nil, err
		}
		return conn, nil
	}

	p := pool.New(pool.Config{
		MaxSize:               cfg.MaxConnectionPoolSize,
		MaxConnectionLifetime: cfg.MaxConnectionLifetime,
		AcquisitionTimeout:    cfg.ConnectionAcquisitionTimeout,
		Dial:                  dial,
		Log:                   cfg.Log,
	})

	d := &Driver{
		target:    target,
		config:    cfg,
		pool:      p,
		retryOrch: retry.New(retry.Config{MaxRetryTime: cfg.MaxTransactionRetryTime, Log: cfg.Log}),
		auth:      auth,
		id:        uuid.NewString(),
	}

	if target.routed {
		seedAddr, err := address.Parse(target.address, 7687)
		if err != nil {
			return nil, errorutil.NewConfigurationError("parsing initial router address: %v", err)
		}
		resolved, err := address.Resolve(resolver.DNS(nil), []address.Address{seedAddr})
		if err != nil {
			return nil, errorutil.NewConfigurationError("resolving initial router address: %v", err)
		}
		seeds := make([]string, 0, len(resolved))
		for _, a := range resolved {
			seeds = append(seeds, a.String())
		}
		d.router = router.New(router.Config{
			InitialRouters: seeds,
			RoutingContext: target.routingContext,
			MaxCacheSize:   cfg.RoutingTableCacheSize,
			Connector:      p,
			Log:            cfg.Log,
		})
	}

	return d, nil
}

// NewSession opens a logical session against this driver (spec §3
// "Session"). Sessions are not safe for concurrent use by more than one
// goroutine at a time, matching the single-in-flight-request FSM beneath
// them.
func (d *Driver) NewSession(config SessionConfig) *Session {
	return newSession(d, config)
}

// VerifyConnectivity acquires a connection to one server from the pool and
// releases it again, returning any connectivity or authentication failure
// (SPEC_FULL §5.2). It may reuse an idle pooled connection, and a newly
// dialed one is left idle in the pool.
func (d *Driver) VerifyConnectivity(ctx context.Context) error {
	addr, err := d.pickServer(ctx, db.ReadMode, "")
	if err != nil {
		return wrapError(err)
	}
	conn, err := d.pool.Acquire(ctx, addr)
	if err != nil {
		return wrapError(err)
	}
	return wrapError(d.pool.Release(ctx, conn, false))
}

// VerifyAuthentication checks that auth is accepted by the server without
// disturbing the driver's configured credentials (SPEC_FULL §5.2).
func (d *Driver) VerifyAuthentication(ctx context.Context, auth AuthToken) error {
	addr, err := d.pickServer(ctx, db.ReadMode, "")
	if err != nil {
		return wrapError(err)
	}
	conn, err := bolt.Dial(ctx, addr, transport.Config{
		ConnectTimeout: d.config.SocketConnectTimeout,
		KeepAlive:      d.config.SocketKeepalive,
		TLSConfig:      d.target.tlsConfig,
	})
	if err != nil {
		return wrapError(fmt.Errorf("gobolt: dial %s: %w", addr, err))
	}
	defer conn.Close(ctx)
	return wrapError(conn.Connect(ctx, auth.asMap(), d.config.UserAgent, d.target.routingContext, nil))
}

// GetServerInfo returns address/agent/protocol information for one server
// reachable from this driver (spec §4.7).
func (d *Driver) GetServerInfo(ctx context.Context) (ServerInfo, error) {
	addr, err := d.pickServer(ctx, db.ReadMode, "")
	if err != nil {
		return nil, wrapError(err)
	}
	conn, err := d.pool.Acquire(ctx, addr)
	if err != nil {
		return nil, wrapError(err)
	}
	defer d.pool.Release(ctx, conn, false)
	major, minor := conn.Version()
	return &serverInfo{address: conn.ServerAddress(), agent: conn.ServerVersion(), major: major, minor: minor}, nil
}

// Close shuts down the connection pool, closing every pooled connection.
func (d *Driver) Close(ctx context.Context) error {
	return wrapError(d.pool.Shutdown(ctx, 5*d.config.SocketConnectTimeout))
}

func (d *Driver) pickServer(ctx context.Context, mode db.AccessMode, database string) (string, error) {
	if d.router == nil {
		return d.target.address, nil
	}
	return d.router.ServerFor(ctx, database, mode, nil, "")
}

