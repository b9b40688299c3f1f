// Package transport implements spec component C2: a framed TCP (optionally
// TLS) socket with chunked Bolt message I/O and read/write deadlines, plus
// the version-negotiation handshake described in spec §4.2/§6.
package transport

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

// magicPreamble is the 4-byte Bolt handshake preamble.
var magicPreamble = [4]byte{0x60, 0x60, 0xB0, 0x17}

// maxChunkSize is the largest payload a single chunk may carry; the u16
// length prefix caps it at 65535 regardless.
const maxChunkSize = 0xFFFF

// Config carries the dial-time knobs from spec §6: connection_timeout
// governs TCP connect + TLS + handshake; keep_alive toggles TCP keepalive.
type Config struct {
	ConnectTimeout time.Duration
	KeepAlive      bool
	TLSConfig      *tls.Config // nil = no TLS
}

// Conn wraps a net.Conn with Bolt chunked framing. Not safe for concurrent
// use by more than one reader and one writer at a time (matches the FSM's
// single in-flight request/response pairing, spec §5 Ordering).
type Conn struct {
	nc           net.Conn
	readBuf      []byte // accumulated message bytes from readMessage
	chunkScratch [2]byte
}

// Wrap adapts an already-established net.Conn (e.g. a net.Pipe() end in
// tests, or a connection handed over by a custom dialer) to the chunked
// framing layer, skipping the handshake.
func Wrap(nc net.Conn) *Conn {
	return &Conn{nc: nc}
}

// Dial performs TCP connect (+TLS if cfg.TLSConfig != nil) and the Bolt
// magic handshake, proposing the four versions in order (highest first,
// spec §4.2/§6). It returns the server's raw u32 version selection.
func Dial(ctx context.Context, address string, cfg Config, proposals [4]uint32) (*Conn, uint32, error) {
	d := net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: -1}
	if cfg.KeepAlive {
		d.KeepAlive = 30 * time.Second
	}
	nc, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, 0, fmt.Errorf("transport: dial %s: %w", address, err)
	}
	if cfg.TLSConfig != nil {
		tlsConn := tls.Client(nc, cfg.TLSConfig)
		if deadline, ok := ctx.Deadline(); ok {
			_ = tlsConn.SetDeadline(deadline)
		}
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			nc.Close()
			return nil, 0, fmt.Errorf("transport: tls handshake %s: %w", address, err)
		}
		nc = tlsConn
	}
	c := &Conn{nc: nc}
	selected, err := c.handshake(proposals)
	if err != nil {
		nc.Close()
		return nil, 0, err
	}
	return c, selected, nil
}

func (c *Conn) handshake(proposals [4]uint32) (uint32, error) {
	buf := make([]byte, 0, 20)
	buf = append(buf, magicPreamble[:]...)
	for _, p := range proposals {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], p)
		buf = append(buf, b[:]...)
	}
	if _, err := c.nc.Write(buf); err != nil {
		return 0, fmt.Errorf("transport: write handshake: %w", err)
	}
	var resp [4]byte
	if _, err := io.ReadFull(c.nc, resp[:]); err != nil {
		return 0, fmt.Errorf("transport: read handshake response: %w", err)
	}
	selected := binary.BigEndian.Uint32(resp[:])
	if selected == 0 {
		return 0, ErrUnsupportedProtocolVersion
	}
	return selected, nil
}

// ErrUnsupportedProtocolVersion is returned when the server replies with a
// zero version selection (spec §4.2).
var ErrUnsupportedProtocolVersion = fmt.Errorf("transport: server does not support any proposed protocol version")

// SetDeadline applies cfg.socket_timeout / hints.recv_timeout to the
// underlying socket for the next read/write (spec §4.2, §4.3).
func (c *Conn) SetDeadline(t time.Time) error      { return c.nc.SetDeadline(t) }
func (c *Conn) SetReadDeadline(t time.Time) error  { return c.nc.SetReadDeadline(t) }
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.nc.SetWriteDeadline(t) }

// Close closes the underlying socket. Best-effort; errors are not
// actionable once a connection is being discarded.
func (c *Conn) Close() error { return c.nc.Close() }

// WriteMessage frames payload into u16-length-prefixed chunks terminated by
// a zero-length chunk (spec §4.2). Each chunk header, chunk body and the
// terminator go out in separate Write calls, and all of them are written
// before it returns, so a single writer never interleaves chunks of
// different messages.
func (c *Conn) WriteMessage(payload []byte) error {
	for len(payload) > 0 {
		n := len(payload)
		if n > maxChunkSize {
			n = maxChunkSize
		}
		chunk := payload[:n]
		payload = payload[n:]
		var header [2]byte
		binary.BigEndian.PutUint16(header[:], uint16(n))
		if _, err := c.nc.Write(header[:]); err != nil {
			return fmt.Errorf("transport: write chunk header: %w", err)
		}
		if _, err := c.nc.Write(chunk); err != nil {
			return fmt.Errorf("transport: write chunk: %w", err)
		}
	}
	// Zero-length terminator chunk.
	if _, err := c.nc.Write([]byte{0, 0}); err != nil {
		return fmt.Errorf("transport: write terminator: %w", err)
	}
	return nil
}

// ReadMessage reassembles one logical message from its chunks, reading
// until the zero-length terminator (spec §4.2).
func (c *Conn) ReadMessage() ([]byte, error) {
	var msg []byte
	for {
		if _, err := io.ReadFull(c.nc, c.chunkScratch[:]); err != nil {
			return nil, fmt.Errorf("transport: read chunk header: %w", err)
		}
		n := binary.BigEndian.Uint16(c.chunkScratch[:])
		if n == 0 {
			if msg == nil {
				return nil, nil
			}
			return msg, nil
		}
		chunk := make([]byte, n)
		if _, err := io.ReadFull(c.nc, chunk); err != nil {
			return nil, fmt.Errorf("transport: read chunk body: %w", err)
		}
		msg = append(msg, chunk...)
	}
}
