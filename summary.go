package gobolt

import "github.com/boltstream/gobolt/internal/db"

// ResultSummary carries the counters, timings, and notifications attached
// to a result stream's closing SUCCESS (spec §4.7 "Summary").
type ResultSummary struct {
	Database      string
	QueryType     string
	Bookmark      string
	ResultAvailableAfter int64
	ResultConsumedAfter  int64
	Metadata      map[string]any
	Notifications []any
	Server        ServerInfo
}

func newResultSummary(s *db.Summary, conn db.Connection) *ResultSummary {
	if s == nil {
		return nil
	}
	major, minor := conn.Version()
	return &ResultSummary{
		Database:             s.Database,
		QueryType:            s.QueryType,
		Bookmark:             s.Bookmark,
		ResultAvailableAfter: s.TFirst,
		ResultConsumedAfter:  s.TLast,
		Metadata:             s.Metadata,
		Notifications:        s.Notifications,
		Server:               &serverInfo{address: conn.ServerAddress(), agent: conn.ServerVersion(), major: major, minor: minor},
	}
}
