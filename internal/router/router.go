package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/boltstream/gobolt/internal/db"
	"github.com/boltstream/gobolt/internal/errorutil"
	"github.com/boltstream/gobolt/log"
)

// RouteConnector obtains a short-lived connection suitable for issuing a
// ROUTE call: typically the pool's Acquire/Release pair around one of the
// current router addresses.
type RouteConnector interface {
	Acquire(ctx context.Context, address string) (db.Connection, error)
	Release(ctx context.Context, conn db.Connection, needsReset bool) error
}

// Config carries the router's static knobs (spec §6).
type Config struct {
	InitialRouters  []string
	RoutingContext  map[string]string
	MaxCacheSize    int
	Connector       RouteConnector
	Log             log.Logger
}

// Router resolves READ/WRITE server addresses by database, refreshing its
// cached routing tables via ROUTE (spec §4.5). It is the neo4j:// scheme's
// server-selection layer; direct bolt:// connections bypass it entirely.
type Router struct {
	cfg Config

	mu             sync.Mutex
	initialRouters []string
	cache          *cache
}

func New(cfg Config) *Router {
	return &Router{
		cfg:            cfg,
		initialRouters: append([]string(nil), cfg.InitialRouters...),
		cache:          newCache(cfg.MaxCacheSize),
	}
}

// ServerFor returns one server address for the given (database, mode),
// refreshing the routing table from the cluster if the cached one is
// missing, expired, or (for WriteMode) has no writers left.
func (r *Router) ServerFor(ctx context.Context, database string, mode db.AccessMode, bookmarks []string, impersonatedUser string) (string, error) {
	now := time.Now()
	t := r.cache.get(database, now)
	if t == nil || (mode == db.WriteMode && !t.hasWriters()) {
		var err error
		t, err = r.refresh(ctx, database, bookmarks, impersonatedUser)
		if err != nil {
			return "", err
		}
	}
	var addr string
	var ok bool
	if mode == db.WriteMode {
		addr, ok = t.pickWriter()
	} else {
		addr, ok = t.pickReader()
	}
	if !ok {
		if mode == db.WriteMode {
			return "", errorutil.ErrWriteServiceUnavailable
		}
		return "", errorutil.NewDriverError(errorutil.KindServiceUnavailable, "no readers available", nil)
	}
	return addr, nil
}

// Forget removes addr from every cached table (spec §4.5: connection failure
// against a routing table entry invalidates it). The initial router list is
// left unchanged.
func (r *Router) Forget(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.cache.tables {
		t.removeServer(addr)
	}
}

// refresh tries each candidate router in turn (current table's routers
// first, falling back to the initial seed list) until one successfully
// answers ROUTE (spec §4.5 "try next router on failure").
func (r *Router) refresh(ctx context.Context, database string, bookmarks []string, impersonatedUser string) (*table, error) {
	candidates := r.routerCandidates(database)
	var lastErr error
	for _, addr := range candidates {
		rt, err := r.routeVia(ctx, addr, database, bookmarks, impersonatedUser)
		if err != nil {
			r.cfg.Log.Warnf("router", "", "ROUTE via %s failed: %v", addr, err)
			r.Forget(addr)
			lastErr = err
			continue
		}
		t := newTable(rt, time.Now())
		r.cache.put(database, t)
		return t, nil
	}
	if lastErr == nil {
		lastErr = errorutil.NewDriverError(errorutil.KindServiceUnavailable, "no routers configured", nil)
	}
	return nil, fmt.Errorf("router: unable to obtain routing table for database %q: %w", database, lastErr)
}

func (r *Router) routerCandidates(database string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	if t := r.cache.tables[database]; t != nil {
		out = append(out, t.routers...)
	}
	out = append(out, r.initialRouters...)
	return dedupe(out)
}

func dedupe(addrs []string) []string {
	seen := make(map[string]bool, len(addrs))
	out := addrs[:0]
	for _, a := range addrs {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

func (r *Router) routeVia(ctx context.Context, addr, database string, bookmarks []string, impersonatedUser string) (*db.RoutingTable, error) {
	conn, err := r.cfg.Connector.Acquire(ctx, addr)
	if err != nil {
		return nil, err
	}
	rt, err := conn.Route(ctx, r.cfg.RoutingContext, bookmarks, database, impersonatedUser)
	releaseErr := r.cfg.Connector.Release(ctx, conn, err != nil)
	if err != nil {
		return nil, err
	}
	if releaseErr != nil {
		r.cfg.Log.Warnf("router", "", "release after ROUTE: %v", releaseErr)
	}
	if rt == nil {
		return nil, errorutil.NewProtocolError("ROUTE returned no routing table")
	}
	return rt, nil
}
