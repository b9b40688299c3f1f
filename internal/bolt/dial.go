package bolt

import (
	"context"

	"github.com/boltstream/gobolt/internal/transport"
)

// Dial performs the TCP/TLS connect and the Bolt version handshake, then
// wraps the result in a Connection ready for Connect() (HELLO/LOGON). It is
// the single entry point the connection pool uses to create a new physical
// connection (spec §4.4 "connect+handshake+authenticate outside any lock").
func Dial(ctx context.Context, address string, cfg transport.Config) (*Connection, error) {
	tr, selected, err := transport.Dial(ctx, address, cfg, defaultProposals())
	if err != nil {
		return nil, err
	}
	version := versionFromUint32(selected)
	return New(address, tr, version), nil
}
