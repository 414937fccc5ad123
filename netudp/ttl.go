package netudp

import (
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// TTLSetter narrows ipv4.PacketConn/ipv6.PacketConn down to the one control
// UDT's keep-alive and rendezvous probes need: capping outbound hop count so
// a probe doesn't escape the local network segment when that's undesirable.
type TTLSetter interface {
	SetTTL(hops int) error
}

type v4TTL struct{ pc *ipv4.PacketConn }

func (t v4TTL) SetTTL(hops int) error { return t.pc.SetTTL(hops) }

type v6TTL struct{ pc *ipv6.PacketConn }

func (t v6TTL) SetTTL(hops int) error { return t.pc.SetHopLimit(hops) }

// NewTTLSetter wraps conn for TTL/hop-limit control, picking the IPv4 or
// IPv6 control surface based on the bound local address family.
func NewTTLSetter(conn *net.UDPConn) TTLSetter {
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok && addr.IP.To4() == nil && addr.IP.To16() != nil {
		return v6TTL{pc: ipv6.NewPacketConn(conn)}
	}
	return v4TTL{pc: ipv4.NewPacketConn(conn)}
}
