// Package conn is the application-facing connection façade: it resolves an
// address, wires a real OS UDP socket (via package netudp) into the udt
// engine's channel-based transport, and returns a Connection a caller can
// Read/Write/Close like any net.Conn. The engine itself never imports this
// package or net — see udt.DialUDT/udt.ListenUDT, which only consume a pair
// of byte channels, following the split the source this engine is adapted
// from already draws between its UDT transport and whatever carries its
// bytes (there, a peer-to-peer virtual connection; here, a real socket).
package conn

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/udt-go/udt/netudp"
	"github.com/udt-go/udt/udt"
	"github.com/udt-go/udt/uerr"
)

// Connection adapts an engine socket to a byte-stream contract, tagging it
// with a correlation ID a caller can log or export in metrics.
type Connection struct {
	net.Conn
	id     uuid.UUID
	laddr  net.Addr
	raddr  net.Addr
	bridge closer
}

type closer interface {
	shutdown()
}

// ID returns a per-connection correlation identifier, stable for the life
// of the Connection, independent of anything the wire protocol carries.
func (c *Connection) ID() uuid.UUID { return c.id }

// LocalAddr returns the address the underlying UDP socket is bound to.
func (c *Connection) LocalAddr() net.Addr { return c.laddr }

// RemoteAddr returns the address this connection is talking to. A dialed
// connection reports the address observed by the real socket; an accepted
// one reports the IP claimed in the peer's handshake, with no port.
func (c *Connection) RemoteAddr() net.Addr { return c.raddr }

// Close calls the UDT socket's Close, which only marks it closed and sends
// no Shutdown control packet, and then releases the connection's bridge: for
// a dialed connection, the UDP socket and its pump goroutines; for an
// accepted one, nothing (it shares the listener's socket).
func (c *Connection) Close() error {
	err := c.Conn.Close()
	c.bridge.shutdown()
	return err
}

// Dial resolves addr (trying each resolved endpoint in order, succeeding on
// the first that completes a handshake) and returns a Connection to it. A
// nil config uses udt.DefaultConfig().
func Dial(ctx context.Context, network, addr string, config *udt.Config) (*Connection, error) {
	return BindAndConnect(ctx, network, "", addr, config)
}

// BindAndConnect is Dial with an explicit local bind address (e.g. to pin
// the outbound source port behind a NAT mapping already punched).
func BindAndConnect(ctx context.Context, network, laddr, addr string, config *udt.Config) (*Connection, error) {
	if config == nil {
		config = udt.DefaultConfig()
	}

	addrs, err := resolveAll(network, addr)
	if err != nil {
		return nil, uerr.Wrap(uerr.InvalidInput, "resolving "+addr, err)
	}

	var lastErr error
	for _, candidate := range addrs {
		c, err := dialOne(ctx, network, laddr, candidate, config)
		if err == nil {
			return c, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func dialOne(ctx context.Context, network, laddr, raddr string, config *udt.Config) (*Connection, error) {
	udpConn, err := netudp.Dial(network, laddr, raddr, netudp.Options{ReuseAddr: config.ReuseAddr})
	if err != nil {
		return nil, uerr.Wrap(uerr.InvalidInput, "dialing "+raddr, err)
	}

	br := newDialBridge(udpConn)

	type result struct {
		sock net.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		sock, err := udt.DialUDT(config, br, br.incomingData, br.outgoingData, br.terminationSignal, config.Stream)
		done <- result{sock, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			br.shutdown()
			udpConn.Close()
			return nil, r.err
		}
		return &Connection{
			Conn:   r.sock,
			id:     uuid.New(),
			laddr:  udpConn.LocalAddr(),
			raddr:  udpConn.RemoteAddr(),
			bridge: br,
		}, nil
	case <-ctx.Done():
		br.shutdown()
		udpConn.Close()
		return nil, uerr.Wrap(uerr.TimedOut, "connect canceled", ctx.Err())
	}
}

// resolveAll resolves addr to every candidate endpoint address string,
// preserving resolver order so the caller can try each in turn.
func resolveAll(network, addr string) ([]string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	ips, err := net.DefaultResolver.LookupIPAddr(context.Background(), host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, uerr.New(uerr.InvalidInput, "address resolved to no endpoints")
	}

	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		out = append(out, net.JoinHostPort(ip.String(), port))
	}
	return out, nil
}

// DialTimeout is a convenience wrapper over Dial using a plain deadline
// instead of a caller-managed context.
func DialTimeout(network, addr string, timeout time.Duration, config *udt.Config) (*Connection, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return Dial(ctx, network, addr, config)
}
