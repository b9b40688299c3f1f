package gobolt

import "fmt"

// ServerInfo describes the server a connection or query landed on
// (spec §4.7 "GetServerInfo").
type ServerInfo interface {
	Address() string
	Agent() string
	ProtocolVersion() (major, minor int)
}

type serverInfo struct {
	address     string
	agent       string
	major, minor int
}

func (s *serverInfo) Address() string { return s.address }
func (s *serverInfo) Agent() string   { return s.agent }
func (s *serverInfo) ProtocolVersion() (int, int) { return s.major, s.minor }
func (s *serverInfo) String() string {
	return fmt.Sprintf("%s (%s, bolt/%d.%d)", s.address, s.agent, s.major, s.minor)
}
