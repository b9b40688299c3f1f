package transport

import (
	"bytes"
	"net"
	"testing"
	"time"
)

func pipeConns(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	a, b := net.Pipe()
	return &Conn{nc: a}, &Conn{nc: b}
}

func TestChunkedRoundTripSingleChunk(t *testing.T) {
	a, b := pipeConns(t)
	payload := []byte("hello bolt")
	go func() {
		if err := a.WriteMessage(payload); err != nil {
			t.Error(err)
		}
	}()
	got, err := b.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("got %q want %q", got, payload)
	}
}

func TestChunkedRoundTripMultiChunk(t *testing.T) {
	a, b := pipeConns(t)
	payload := bytes.Repeat([]byte{0xAB}, maxChunkSize+100)
	go func() {
		if err := a.WriteMessage(payload); err != nil {
			t.Error(err)
		}
	}()
	got, err := b.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("multi-chunk round trip mismatch, got len %d want %d", len(got), len(payload))
	}
}

func TestReadDeadlineTimesOut(t *testing.T) {
	_, b := pipeConns(t)
	if err := b.SetReadDeadline(time.Now().Add(10 * time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	_, err := b.ReadMessage()
	if err == nil {
		t.Fatal("expected timeout error")
	}
}
