// Package router implements spec component C6: routing table caching and
// role-based server selection for the neo4j:// URI scheme (spec §4.5).
package router

import (
	"sync"
	"time"

	"github.com/boltstream/gobolt/internal/db"
)

// table is a routing table with the wall-clock deadline it expires at,
// mirroring the teacher driver's router.go routingTable struct.
type table struct {
	database string
	expiresAt time.Time
	routers  []string
	readers  []string
	writers  []string

	// roundRobin cursors, one per role, for fair server selection.
	readerCursor int
	writerCursor int
	routerCursor int
}

func newTable(rt *db.RoutingTable, now time.Time) *table {
	return &table{
		database:  rt.Database,
		expiresAt: now.Add(time.Duration(rt.TTLSecs) * time.Second),
		routers:   append([]string(nil), rt.Routers...),
		readers:   append([]string(nil), rt.Readers...),
		writers:   append([]string(nil), rt.Writers...),
	}
}

func (t *table) expired(now time.Time) bool { return !now.Before(t.expiresAt) }

func (t *table) hasWriters() bool { return len(t.writers) > 0 }

func nextRoundRobin(addrs []string, cursor *int) (string, bool) {
	if len(addrs) == 0 {
		return "", false
	}
	addr := addrs[*cursor%len(addrs)]
	*cursor++
	return addr, true
}

func (t *table) pickReader() (string, bool) { return nextRoundRobin(t.readers, &t.readerCursor) }
func (t *table) pickWriter() (string, bool) { return nextRoundRobin(t.writers, &t.writerCursor) }
func (t *table) pickRouter() (string, bool) { return nextRoundRobin(t.routers, &t.routerCursor) }

// removeServer drops addr from every role list, used when a routed
// connection attempt fails against it (spec §4.5 "remove and retry").
func (t *table) removeServer(addr string) {
	t.routers = remove(t.routers, addr)
	t.readers = remove(t.readers, addr)
	t.writers = remove(t.writers, addr)
}

func remove(addrs []string, target string) []string {
	out := addrs[:0]
	for _, a := range addrs {
		if a != target {
			out = append(out, a)
		}
	}
	return out
}

// cache holds one table per database name, LRU-evicted to a bounded size
// (spec §4.5 "routing table cache keyed by database, LRU bounded").
type cache struct {
	mu       sync.Mutex
	maxSize  int
	order    []string // most-recently-used last
	tables   map[string]*table
}

func newCache(maxSize int) *cache {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &cache{maxSize: maxSize, tables: make(map[string]*table)}
}

func (c *cache) get(database string, now time.Time) *table {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[database]
	if !ok {
		return nil
	}
	if t.expired(now) {
		return nil
	}
	c.touch(database)
	return t
}

func (c *cache) put(database string, t *table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tables[database]; !exists && len(c.tables) >= c.maxSize {
		c.evictOldest()
	}
	c.tables[database] = t
	c.touch(database)
}

func (c *cache) touch(database string) {
	for i, d := range c.order {
		if d == database {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, database)
}

func (c *cache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.tables, oldest)
}
