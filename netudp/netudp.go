// Package netudp opens the OS UDP sockets that package conn bridges to the
// udt engine's byte channels. The engine itself never imports this package;
// it talks only to a pair of byte channels.
package netudp

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// Options controls how the bound socket is configured.
type Options struct {
	// ReuseAddr sets SO_REUSEADDR (and SO_REUSEPORT where the platform
	// supports it) before binding, letting multiple processes or multiple
	// listen calls share one address:port.
	ReuseAddr bool
}

// Listen resolves addr on the given network ("udp", "udp4", "udp6") and
// returns a bound *net.UDPConn, honoring opts.ReuseAddr via a Control
// function on net.ListenConfig.
func Listen(network, addr string, opts Options) (*net.UDPConn, error) {
	lc := net.ListenConfig{}
	if opts.ReuseAddr {
		lc.Control = controlReuseAddr
	}

	pc, err := lc.ListenPacket(nil, network, addr)
	if err != nil {
		return nil, err
	}
	return pc.(*net.UDPConn), nil
}

// Dial resolves raddr and returns a *net.UDPConn connected to it, so the OS
// filters out datagrams from any other peer before they ever reach Go. If
// laddr is non-empty the socket binds there first (honoring opts.ReuseAddr);
// otherwise the OS picks an ephemeral local port.
func Dial(network, laddr, raddr string, opts Options) (*net.UDPConn, error) {
	ra, err := net.ResolveUDPAddr(network, raddr)
	if err != nil {
		return nil, err
	}

	if laddr == "" {
		return net.DialUDP(network, nil, ra)
	}

	la, err := net.ResolveUDPAddr(network, laddr)
	if err != nil {
		return nil, err
	}

	d := net.Dialer{}
	if opts.ReuseAddr {
		d.Control = controlReuseAddr
	}
	d.LocalAddr = la

	c, err := d.Dial(network, ra.String())
	if err != nil {
		return nil, err
	}
	return c.(*net.UDPConn), nil
}

// controlReuseAddr sets SO_REUSEADDR and, where available, SO_REUSEPORT on
// the socket's file descriptor before bind. Run from net.ListenConfig.Control
// so it executes between socket() and bind().
func controlReuseAddr(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if sockErr != nil {
			return
		}
		sockErr = setReusePort(int(fd))
	})
	if err != nil {
		return err
	}
	return sockErr
}
