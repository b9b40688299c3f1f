// Package bolt implements spec component C4: the per-connection Bolt state
// machine and message dispatch for protocol versions 3, 4.x and 5.x, built
// on top of internal/transport (framing) and internal/bolt/packstream
// (wire codec).
package bolt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boltstream/gobolt/internal/bolt/packstream"
	"github.com/boltstream/gobolt/internal/db"
	"github.com/boltstream/gobolt/internal/errorutil"
	"github.com/boltstream/gobolt/internal/transport"
)

// stream tracks one RUN's buffered keys and whether more records are
// expected, addressed by qid (spec §3 "Result stream", §4.7 multi-statement
// buffering).
type stream struct {
	qid      int64
	keys     []string
	pending  []*db.Record
	hasMore  bool
	complete bool
	summary  *db.Summary
}

// Connection implements db.Connection for Bolt 3/4.x/5.x. One Connection
// owns exactly one transport.Conn and is never shared between concurrent
// callers (spec §3 invariant: "never shared between sessions concurrently").
type Connection struct {
	mu sync.Mutex

	tr      *transport.Conn
	enc     *packstream.Encoder
	version ProtocolVersion
	st      state

	address     string
	connID      string
	serverAgent string
	birth       time.Time
	lastUsed    time.Time

	broken bool
	stale  bool

	recvTimeoutHint time.Duration
	boltLogger      db.BoltLogger

	// streams indexed by qid; qid -1 is used pre-multiplexing (bolt3/4.0-4.2
	// implicit single stream, addressed with db.StreamHandle(int64(-1))).
	streams    map[int64]*stream
	txMetadata db.TxConfig
}

// New wraps an already version-negotiated transport.Conn.
func New(address string, tr *transport.Conn, version ProtocolVersion) *Connection {
	now := time.Now()
	return &Connection{
		tr:       tr,
		enc:      packstream.NewEncoder(),
		version:  version,
		st:       stateNegotiating,
		address:  address,
		connID:   uuid.NewString(),
		birth:    now,
		lastUsed: now,
		streams:  make(map[int64]*stream),
	}
}

func (c *Connection) trace(client bool, msgName string, args ...any) {
	if c.boltLogger == nil {
		return
	}
	if client {
		c.boltLogger.LogClientMessage(msgName, "%v", args)
	} else {
		c.boltLogger.LogServerMessage(msgName, "%v", args)
	}
}

func (c *Connection) SetBoltLogger(l db.BoltLogger) { c.boltLogger = l }

func (c *Connection) Version() (int, int) { return c.version.Major, c.version.Minor }

func (c *Connection) ServerVersion() string { return c.serverAgent }
func (c *Connection) ServerAddress() string { return c.address }
func (c *Connection) ConnId() string        { return c.connID }
func (c *Connection) Birthdate() time.Time  { return c.birth }

func (c *Connection) IdleDuration() time.Duration { return time.Since(c.lastUsed) }
func (c *Connection) ResetIdleTimer()              { c.lastUsed = time.Now() }

func (c *Connection) IsAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.broken && c.st != stateDefunct
}

func (c *Connection) IsStale() bool { return c.stale }
func (c *Connection) MarkStale()    { c.stale = true }
func (c *Connection) SetBroken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broken = true
	c.st = stateDefunct
}
func (c *Connection) RecvTimeoutHint() time.Duration { return c.recvTimeoutHint }

// sendStructure encodes and writes one Bolt message, validating the FSM
// transition first (spec §4.3: illegal transitions rejected before bytes
// reach the wire where possible).
func (c *Connection) sendStructure(tag byte, fields []any) error {
	if err := canSend(c.st, tag); err != nil {
		return err
	}
	c.enc.Reset()
	if err := c.enc.Encode(&packstream.Structure{Tag: tag, Fields: fields}); err != nil {
		return err
	}
	if err := c.tr.WriteMessage(c.enc.Bytes()); err != nil {
		c.SetBroken()
		return fmt.Errorf("bolt: write failed, connection defunct: %w", err)
	}
	c.st = next(c.st, tag)
	return nil
}

// recvStructure reads and decodes exactly one reply message. Any transport
// error marks the connection DEFUNCT per spec §4.3/§5 (cancellation
// mid-response leaves the connection unsafe to resume). On v4+, once HELLO
// has reported a connection.recv_timeout_seconds hint, the read is bounded
// by that deadline so a server that stops responding mid-stream defuncts the
// connection instead of hanging the caller forever (spec §4.3/§8).
func (c *Connection) recvStructure() (*packstream.Structure, error) {
	if c.recvTimeoutHint > 0 {
		if err := c.tr.SetReadDeadline(time.Now().Add(c.recvTimeoutHint)); err != nil {
			c.SetBroken()
			return nil, fmt.Errorf("bolt: set read deadline: %w", err)
		}
		defer c.tr.SetReadDeadline(time.Time{})
	}
	raw, err := c.tr.ReadMessage()
	if err != nil {
		c.SetBroken()
		return nil, fmt.Errorf("bolt: read failed, connection defunct: %w", err)
	}
	v, err := packstream.NewDecoder(raw).Decode()
	if err != nil {
		c.SetBroken()
		return nil, err
	}
	s, ok := v.(*packstream.Structure)
	if !ok {
		c.SetBroken()
		return nil, errorutil.NewProtocolError("reply is not a structure")
	}
	return s, nil
}

func asStringMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

// sendAndReceive writes one request and reads exactly one reply, folding it
// into the FSM. A FAILURE reply is returned as a *errorutil.ServerError
// (never nil-error-but-failed) so callers can classify it.
func (c *Connection) sendAndReceive(tag byte, fields []any) (*packstream.Structure, error) {
	if err := c.sendStructure(tag, fields); err != nil {
		return nil, err
	}
	reply, err := c.recvStructure()
	if err != nil {
		return nil, err
	}
	switch reply.Tag {
	case msgSuccess:
		switch tag {
		case msgReset:
			c.st = stateReady
		case msgRun:
			// RUN's SUCCESS opens the stream; only PULL/DISCARD close it.
		default:
			c.st = applyReply(c.st, msgSuccess, false)
		}
		return reply, nil
	case msgFailure:
		c.st = applyReply(c.st, msgFailure, false)
		meta := asStringMap(reply.Fields[0])
		return reply, &errorutil.ServerError{Code: asString(meta["code"]), Message: asString(meta["message"])}
	case msgIgnored:
		return reply, errorutil.NewProtocolError("message was IGNORED while connection was FAILED")
	default:
		return reply, errorutil.NewProtocolError("unexpected reply tag 0x%02X", reply.Tag)
	}
}

// Connect performs HELLO (+ LOGON for v5.1+) and
// transitions NEGOTIATING -> AUTHENTICATING -> READY.
func (c *Connection) Connect(ctx context.Context, auth map[string]any, userAgent string, routingContext map[string]string, notificationFilters any) error {
	c.st = stateAuthenticating
	meta := map[string]any{"user_agent": userAgent}
	rc := make(map[string]any, len(routingContext))
	for k, v := range routingContext {
		rc[k] = v
	}
	if len(rc) > 0 {
		meta["routing"] = rc
	}
	if notificationFilters != nil {
		meta["notification_filter"] = notificationFilters
	}
	splitAuth := c.version.atLeast(5, 1)
	if !splitAuth {
		for k, v := range auth {
			meta[k] = v
		}
	}
	reply, err := c.sendAndReceive(msgHello, []any{meta})
	if err != nil {
		return err
	}
	helloMeta := asStringMap(reply.Fields[0])
	c.serverAgent = asString(helloMeta["server"])
	if cid, ok := helloMeta["connection_id"]; ok {
		c.connID = asString(cid)
	}
	if hints := asStringMap(helloMeta["hints"]); hints != nil {
		if secs, ok := hints["connection.recv_timeout_seconds"]; ok && c.version.atLeast(4, 0) {
			c.recvTimeoutHint = time.Duration(asInt64(secs)) * time.Second
		}
	}
	if splitAuth {
		authFields := map[string]any{}
		for k, v := range auth {
			authFields[k] = v
		}
		if _, err := c.sendAndReceive(msgLogon, []any{authFields}); err != nil {
			return err
		}
	}
	c.st = stateReady
	return nil
}

// databaseMetadata applies spec §4.3's pre-v4 rule: a non-default database
// MUST be rejected locally, before any bytes are sent.
func (c *Connection) databaseMetadata(database string) (map[string]any, error) {
	m := map[string]any{}
	if database == "" {
		return m, nil
	}
	if !c.version.atLeast(4, 0) {
		return nil, errorutil.NewConfigurationError("database selection requires Bolt >= 4.0, connection negotiated %d.%d", c.version.Major, c.version.Minor)
	}
	m["db"] = database
	return m, nil
}

func (c *Connection) TxBegin(ctx context.Context, cfg db.TxConfig) error {
	meta, err := c.databaseMetadata(cfg.Database)
	if err != nil {
		return err
	}
	if len(cfg.Bookmarks) > 0 {
		meta["bookmarks"] = toAnySlice(cfg.Bookmarks)
	}
	if cfg.Mode == db.WriteMode {
		// "w" is implicit/default; explicit only for read.
	} else {
		meta["mode"] = "r"
	}
	if cfg.ImpersonatedUser != "" {
		meta["imp_user"] = cfg.ImpersonatedUser
	}
	if cfg.Timeout > 0 {
		meta["tx_timeout"] = cfg.Timeout.Milliseconds()
	}
	if len(cfg.Metadata) > 0 {
		meta["tx_metadata"] = cfg.Metadata
	}
	c.txMetadata = cfg
	_, err = c.sendAndReceive(msgBegin, []any{meta})
	return err
}

func (c *Connection) TxCommit(ctx context.Context) (string, error) {
	reply, err := c.sendAndReceive(msgCommit, []any{})
	if err != nil {
		return "", err
	}
	meta := asStringMap(reply.Fields[0])
	return asString(meta["bookmark"]), nil
}

func (c *Connection) TxRollback(ctx context.Context) error {
	_, err := c.sendAndReceive(msgRollback, []any{})
	return err
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

const implicitQid int64 = -1

// Run sends RUN and returns the stream handle (qid) and field keys.
func (c *Connection) Run(ctx context.Context, cypher string, params map[string]any, cfg db.TxConfig) (db.StreamHandle, []string, error) {
	meta, err := c.databaseMetadata(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	autoCommit := c.st == stateReady
	if autoCommit {
		if len(cfg.Bookmarks) > 0 {
			meta["bookmarks"] = toAnySlice(cfg.Bookmarks)
		}
		if cfg.Mode == db.ReadMode {
			meta["mode"] = "r"
		}
		if cfg.ImpersonatedUser != "" {
			meta["imp_user"] = cfg.ImpersonatedUser
		}
		if cfg.Timeout > 0 {
			meta["tx_timeout"] = cfg.Timeout.Milliseconds()
		}
		if len(cfg.Metadata) > 0 {
			meta["tx_metadata"] = cfg.Metadata
		}
	}
	if params == nil {
		params = map[string]any{}
	}
	reply, err := c.sendAndReceive(msgRun, []any{cypher, params, meta})
	if err != nil {
		return nil, nil, err
	}
	runMeta := asStringMap(reply.Fields[0])
	keysAny := asSlice(runMeta["fields"])
	keys := make([]string, len(keysAny))
	for i, k := range keysAny {
		keys[i] = asString(k)
	}
	qid := implicitQid
	if c.version.atLeast(4, 0) {
		if q, ok := runMeta["qid"]; ok {
			qid = asInt64(q)
		}
	}
	c.streams[qid] = &stream{qid: qid, keys: keys, hasMore: true}
	return qid, keys, nil
}

func (c *Connection) qidOf(h db.StreamHandle) int64 {
	if h == nil {
		return implicitQid
	}
	if q, ok := h.(int64); ok {
		return q
	}
	return implicitQid
}

func (c *Connection) pullOrDiscardMeta(qid int64, n int64) []any {
	meta := map[string]any{"n": n}
	if c.version.atLeast(4, 0) && qid != implicitQid {
		meta["qid"] = qid
	}
	return []any{meta}
}

// Pull sends PULL for n records (n<0 meaning "all", spec §4.7).
func (c *Connection) Pull(ctx context.Context, h db.StreamHandle, n int64) error {
	qid := c.qidOf(h)
	st := c.streams[qid]
	if st == nil {
		return errorutil.NewProtocolError("pull on unknown stream qid=%d", qid)
	}
	return c.streamMessages(msgPull, qid, st, n)
}

// Discard sends DISCARD for n records (spec §4.7 consume()).
func (c *Connection) Discard(ctx context.Context, h db.StreamHandle, n int64) (*db.Summary, error) {
	qid := c.qidOf(h)
	st := c.streams[qid]
	if st == nil {
		return nil, errorutil.NewProtocolError("discard on unknown stream qid=%d", qid)
	}
	if err := c.streamMessages(msgDiscard, qid, st, n); err != nil {
		return nil, err
	}
	return st.summary, nil
}

// streamMessages drives one PULL or DISCARD to completion for the n
// requested (n<0 = all), buffering RECORDs until the closing SUCCESS/FAILURE
// (spec §4.3 STREAMING/TX_STREAMING handling, §4.7 fetch_size semantics).
func (c *Connection) streamMessages(tag byte, qid int64, st *stream, n int64) error {
	if err := c.sendStructure(tag, c.pullOrDiscardMeta(qid, n)); err != nil {
		return err
	}
	for {
		reply, err := c.recvStructure()
		if err != nil {
			return err
		}
		switch reply.Tag {
		case msgRecord:
			values := asSlice(reply.Fields[0])
			st.pending = append(st.pending, &db.Record{Keys: st.keys, Values: values})
		case msgSuccess:
			meta := asStringMap(reply.Fields[0])
			hasMore := asBool(meta["has_more"])
			c.st = applyReply(c.st, msgSuccess, hasMore)
			st.hasMore = hasMore
			if !hasMore {
				st.complete = true
				st.summary = summaryFromMeta(meta)
			}
			return nil
		case msgFailure:
			c.st = applyReply(c.st, msgFailure, false)
			meta := asStringMap(reply.Fields[0])
			return &errorutil.ServerError{Code: asString(meta["code"]), Message: asString(meta["message"])}
		default:
			return errorutil.NewProtocolError("unexpected message 0x%02X while streaming", reply.Tag)
		}
	}
}

func summaryFromMeta(meta map[string]any) *db.Summary {
	s := &db.Summary{Metadata: meta}
	if bm, ok := meta["bookmark"]; ok {
		s.Bookmark = asString(bm)
	}
	if d, ok := meta["db"]; ok {
		s.Database = asString(d)
	}
	if tFirst, ok := meta["t_first"]; ok {
		s.TFirst = asInt64(tFirst)
	}
	if tLast, ok := meta["t_last"]; ok {
		s.TLast = asInt64(tLast)
	}
	if n, ok := meta["notifications"]; ok {
		s.Notifications = asSlice(n)
	}
	return s
}

// Next returns the next buffered record, or nil+summary once the stream is
// exhausted. It does not itself issue PULL; callers (the result stream
// layer) call Pull first per spec §4.7's server-paced streaming.
func (c *Connection) Next(ctx context.Context, h db.StreamHandle) (*db.Record, *db.Summary, error) {
	qid := c.qidOf(h)
	st := c.streams[qid]
	if st == nil {
		return nil, nil, errorutil.NewProtocolError("next on unknown stream qid=%d", qid)
	}
	if len(st.pending) > 0 {
		r := st.pending[0]
		st.pending = st.pending[1:]
		return r, nil, nil
	}
	if st.complete {
		delete(c.streams, qid)
		return nil, st.summary, nil
	}
	return nil, nil, nil // caller must Pull for more
}

func (c *Connection) Reset(ctx context.Context) error {
	_, err := c.sendAndReceive(msgReset, []any{})
	if err == nil {
		c.streams = make(map[int64]*stream)
	}
	return err
}

func (c *Connection) Close(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken || c.st == stateDefunct {
		_ = c.tr.Close()
		return
	}
	_ = c.sendStructure(msgGoodbye, []any{})
	_ = c.tr.Close()
	c.st = stateDisconnected
}

// Route implements spec §4.5: ROUTE on 4.3+, legacy getRoutingTable
// procedure call otherwise (SPEC_FULL §5.4).
func (c *Connection) Route(ctx context.Context, routingContext map[string]string, bookmarks []string, database string, impersonatedUser string) (*db.RoutingTable, error) {
	rc := make(map[string]any, len(routingContext))
	for k, v := range routingContext {
		rc[k] = v
	}
	dbField := map[string]any{}
	if database != "" {
		dbField["db"] = database
	}
	if impersonatedUser != "" {
		dbField["imp_user"] = impersonatedUser
	}
	if c.version.atLeast(4, 3) {
		reply, err := c.sendAndReceive(msgRoute, []any{rc, toAnySlice(bookmarks), dbField})
		if err != nil {
			return nil, err
		}
		meta := asStringMap(reply.Fields[0])
		rt := asStringMap(meta["rt"])
		return decodeRoutingTable(rt), nil
	}
	return c.legacyRoute(ctx, routingContext, bookmarks, database)
}

// legacyRoute calls dbms.cluster.routing.getRoutingTable via an ordinary
// RUN/PULL on pre-4.3 servers (SPEC_FULL §5.4).
func (c *Connection) legacyRoute(ctx context.Context, routingContext map[string]string, bookmarks []string, database string) (*db.RoutingTable, error) {
	rc := map[string]any{}
	for k, v := range routingContext {
		rc[k] = v
	}
	params := map[string]any{"context": rc}
	if database != "" {
		params["database"] = database
	}
	cfg := db.TxConfig{Bookmarks: bookmarks, Mode: db.ReadMode}
	qid, _, err := c.Run(ctx, "CALL dbms.cluster.routing.getRoutingTable($context, $database)", params, cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Pull(ctx, qid, -1); err != nil {
		return nil, err
	}
	var rec *db.Record
	for rec == nil {
		r, _, err := c.Next(ctx, qid)
		if err != nil {
			return nil, err
		}
		rec = r
		break
	}
	if rec == nil || len(rec.Values) < 2 {
		return nil, errorutil.NewProtocolError("legacy routing procedure returned no row")
	}
	ttl := asInt64(rec.Values[0])
	servers := asSlice(rec.Values[1])
	rt := &db.RoutingTable{TTLSecs: ttl, Database: database}
	for _, s := range servers {
		m := asStringMap(s)
		role := asString(m["role"])
		addrs := asSlice(m["addresses"])
		list := make([]string, len(addrs))
		for i, a := range addrs {
			list[i] = asString(a)
		}
		switch role {
		case "ROUTE":
			rt.Routers = list
		case "READ":
			rt.Readers = list
		case "WRITE":
			rt.Writers = list
		}
	}
	return rt, nil
}

func decodeRoutingTable(meta map[string]any) *db.RoutingTable {
	rt := &db.RoutingTable{}
	if ttl, ok := meta["ttl"]; ok {
		rt.TTLSecs = asInt64(ttl)
	}
	if d, ok := meta["db"]; ok {
		rt.Database = asString(d)
	}
	for _, s := range asSlice(meta["servers"]) {
		m := asStringMap(s)
		role := asString(m["role"])
		addrs := asSlice(m["addresses"])
		list := make([]string, len(addrs))
		for i, a := range addrs {
			list[i] = asString(a)
		}
		switch role {
		case "ROUTE":
			rt.Routers = list
		case "READ":
			rt.Readers = list
		case "WRITE":
			rt.Writers = list
		}
	}
	return rt
}
