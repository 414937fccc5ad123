package conn

import (
	"log"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/udt-go/udt/netudp"
	"github.com/udt-go/udt/udt"
	"github.com/udt-go/udt/udt/packet"
)

// Listener accepts Connections over one bound UDP socket shared by however
// many clients are mid-handshake or already connected, exactly as the
// engine's own multiplexer already allows (distinct sockets keyed by
// socket ID, demultiplexed off a single datagram stream) — this only adds
// the real-socket plumbing the engine's channel interface doesn't itself
// provide.
type Listener struct {
	udtListener net.Listener
	sb          *serverBridge
}

// Listen binds laddr and returns a Listener that accepts UDT connections
// arriving on it. A nil config uses udt.DefaultConfig().
func Listen(network, laddr string, config *udt.Config) (*Listener, error) {
	if config == nil {
		config = udt.DefaultConfig()
	}

	udpConn, err := netudp.Listen(network, laddr, netudp.Options{ReuseAddr: config.ReuseAddr})
	if err != nil {
		return nil, err
	}

	sb := newServerBridge(udpConn)
	udtListener := udt.ListenUDT(config, sb, sb.incomingData, sb.outgoingData, sb.terminationSignal)

	return &Listener{udtListener: udtListener, sb: sb}, nil
}

// Accept blocks until a peer completes a handshake, then returns a
// Connection tagged with the remote address the handshake claims (IP only).
func (l *Listener) Accept() (*Connection, error) {
	c, err := l.udtListener.Accept()
	if err != nil {
		return nil, err
	}
	return &Connection{
		Conn:   c,
		id:     uuid.New(),
		laddr:  l.sb.udpConn.LocalAddr(),
		raddr:  c.RemoteAddr(),
		bridge: noopCloser{},
	}, nil
}

// Addr returns the address the listener's socket is bound to.
func (l *Listener) Addr() net.Addr { return l.sb.udpConn.LocalAddr() }

// Close stops accepting new connections and releases the underlying UDP
// socket. Connections already accepted share that socket, so they stop
// sending and receiving as well.
func (l *Listener) Close() error {
	err := l.udtListener.Close()
	l.sb.shutdown()
	return err
}

type noopCloser struct{}

func (noopCloser) shutdown() {}

// serverBridge fans one bound *net.UDPConn out to every socket the engine's
// multiplexer and listener track, all sharing the one incoming/outgoing
// channel pair the engine expects. The engine's wire format never repeats a
// packet's own socket ID (only its destination), so the remote address for
// an established connection is learned once, off the advertised socket ID
// in that peer's handshake (packet.HandshakePacket.SockID), and reused for
// every later write addressed to that same destination socket ID.
type serverBridge struct {
	udpConn *net.UDPConn

	incomingData chan []byte
	outgoingData chan []byte

	terminationSignal chan struct{}
	closeOnce         sync.Once
	reason            int

	mu    sync.Mutex
	peers map[uint32]*net.UDPAddr
}

func newServerBridge(udpConn *net.UDPConn) *serverBridge {
	b := &serverBridge{
		udpConn:           udpConn,
		incomingData:      make(chan []byte, 256),
		outgoingData:      make(chan []byte, 256),
		terminationSignal: make(chan struct{}),
		peers:             make(map[uint32]*net.UDPAddr),
	}
	go b.readLoop()
	go b.writeLoop()
	return b
}

func (b *serverBridge) readLoop() {
	buf := make([]byte, 65536)
	for {
		n, addr, err := b.udpConn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])

		if hs, ok := decodeHandshake(pkt); ok {
			b.mu.Lock()
			b.peers[hs.SockID] = addr
			b.mu.Unlock()
		}

		select {
		case b.incomingData <- pkt:
		case <-b.terminationSignal:
			return
		default:
			// receiver backlogged; drop, same as a lossy link would
		}
	}
}

func (b *serverBridge) writeLoop() {
	for {
		select {
		case data := <-b.outgoingData:
			b.send(data)
		case <-b.terminationSignal:
			return
		}
	}
}

func (b *serverBridge) send(data []byte) {
	destSockID, ok := decodeDestSockID(data)
	if !ok {
		return
	}

	b.mu.Lock()
	addr := b.peers[destSockID]
	b.mu.Unlock()
	if addr == nil {
		log.Printf("conn: dropping outbound packet for unknown peer (sock=%d)", destSockID)
		return
	}
	b.udpConn.WriteToUDP(data, addr)
}

func decodeHandshake(data []byte) (*packet.HandshakePacket, bool) {
	p, err := packet.DecodePacket(data)
	if err != nil {
		return nil, false
	}
	hs, ok := p.(*packet.HandshakePacket)
	return hs, ok
}

func decodeDestSockID(data []byte) (uint32, bool) {
	p, err := packet.DecodePacket(data)
	if err != nil {
		return 0, false
	}
	return p.SocketID(), true
}

// Close implements udt.Closer. Every socket the listener accepts shares
// this one multiplexer and therefore this one Closer (see
// udtSocket.shutdown, which calls s.m.closer.Close on every socket's
// shutdown, not only the listener's) — so this must not tear down the
// shared transport just because a single accepted connection closed.
// Only Listener.Close does that, via shutdown below.
func (b *serverBridge) Close(reason int) error {
	return nil
}

// CloseLinger implements udt.Closer. Same reasoning as Close: a no-op so
// one connection's linger doesn't affect any other connection sharing
// this bridge.
func (b *serverBridge) CloseLinger(reason int) error {
	return nil
}

func (b *serverBridge) shutdownReason(reason int) error {
	b.closeOnce.Do(func() {
		b.reason = reason
		close(b.terminationSignal)
	})
	return nil
}

func (b *serverBridge) shutdown() {
	b.shutdownReason(b.reason)
	b.udpConn.Close()
}
