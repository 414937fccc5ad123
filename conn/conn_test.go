package conn

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/udt-go/udt/udt"
)

func testConfig() *udt.Config {
	cfg := udt.DefaultConfig()
	cfg.ConnectTimeout = 2 * time.Second
	return cfg
}

func TestDialListenRoundTrip(t *testing.T) {
	ln, err := Listen("udp4", "127.0.0.1:0", testConfig())
	if err != nil {
		t.Fatalf("Listen: %s", err)
	}
	defer ln.Close()

	accepted := make(chan *Connection, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			t.Errorf("Accept: %s", err)
			close(accepted)
			return
		}
		accepted <- c
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, "udp4", ln.Addr().String(), testConfig())
	if err != nil {
		t.Fatalf("Dial: %s", err)
	}
	defer client.Close()

	server, ok := <-accepted
	if !ok {
		t.Fatal("server never accepted a connection")
	}
	defer server.Close()

	if client.ID() == server.ID() {
		t.Error("client and server connections share a correlation ID")
	}
	if client.RemoteAddr() == nil || server.RemoteAddr() == nil {
		t.Error("expected both sides to report a remote address")
	}

	msg := []byte("hello over udt")
	if _, err := client.Write(msg); err != nil {
		t.Fatalf("Write: %s", err)
	}

	buf := make([]byte, len(msg))
	if _, err := io.ReadFull(server, buf); err != nil {
		t.Fatalf("ReadFull: %s", err)
	}
	if string(buf) != string(msg) {
		t.Errorf("got %q, want %q", buf, msg)
	}
}

func TestDialTimeoutWithNoListener(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// 127.0.0.1:1 is reserved and nothing answers the handshake there, so the
	// dial should time out via the context rather than hang.
	_, err := Dial(ctx, "udp4", "127.0.0.1:1", testConfig())
	if err == nil {
		t.Fatal("expected Dial to fail when nothing answers the handshake")
	}
}
