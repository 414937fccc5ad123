package netudp

import "testing"

func TestListenReuseAddr(t *testing.T) {
	c1, err := Listen("udp4", "127.0.0.1:0", Options{ReuseAddr: true})
	if err != nil {
		t.Fatalf("first listen: %s", err)
	}
	defer c1.Close()

	c2, err := Listen("udp4", c1.LocalAddr().String(), Options{ReuseAddr: true})
	if err != nil {
		t.Fatalf("second listen on same address with ReuseAddr: %s", err)
	}
	defer c2.Close()
}

func TestListenNoReuseAddr(t *testing.T) {
	c1, err := Listen("udp4", "127.0.0.1:0", Options{})
	if err != nil {
		t.Fatalf("listen: %s", err)
	}
	defer c1.Close()

	if c1.LocalAddr() == nil {
		t.Fatal("expected a local address")
	}
}

func TestNewTTLSetter(t *testing.T) {
	conn, err := Listen("udp4", "127.0.0.1:0", Options{})
	if err != nil {
		t.Fatalf("listen: %s", err)
	}
	defer conn.Close()

	ttl := NewTTLSetter(conn)
	if err := ttl.SetTTL(32); err != nil {
		t.Fatalf("SetTTL: %s", err)
	}
}
