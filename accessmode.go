package gobolt

import "github.com/boltstream/gobolt/internal/db"

// AccessMode tells the router which cluster role to pick a server from. It
// has no effect against a direct (bolt://) connection (spec §3, §4.5).
type AccessMode int

const (
	AccessModeWrite AccessMode = AccessMode(db.WriteMode)
	AccessModeRead  AccessMode = AccessMode(db.ReadMode)
)

func (m AccessMode) internal() db.AccessMode { return db.AccessMode(m) }
