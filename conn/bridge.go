package conn

import (
	"net"
	"sync"
)

// dialBridge pumps datagrams between one connected *net.UDPConn and the
// pair of byte channels udt.DialUDT consumes. Because the socket is
// connected (net.DialUDP or netudp.Dial), the OS itself discards any
// datagram not from the one peer we dialed, so no address bookkeeping is
// needed here — unlike serverBridge, which fans a single socket out to
// many simultaneously-handshaking peers.
//
// Modeled on the engine's own source's virtual-connection bridge (a
// channel pair plus a termination signal and a Closer the engine calls
// back into), with the OS socket standing in for that source's upstream
// peer-to-peer transport.
type dialBridge struct {
	udpConn *net.UDPConn

	incomingData chan []byte
	outgoingData chan []byte

	terminationSignal chan struct{}
	closeOnce         sync.Once
	reason            int
}

func newDialBridge(udpConn *net.UDPConn) *dialBridge {
	b := &dialBridge{
		udpConn:           udpConn,
		incomingData:      make(chan []byte, 256),
		outgoingData:      make(chan []byte, 256),
		terminationSignal: make(chan struct{}),
	}
	go b.readLoop()
	go b.writeLoop()
	return b
}

func (b *dialBridge) readLoop() {
	buf := make([]byte, 65536)
	for {
		n, err := b.udpConn.Read(buf)
		if err != nil {
			return
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		select {
		case b.incomingData <- pkt:
		case <-b.terminationSignal:
			return
		default:
			// receiver backlogged; drop, same as a lossy link would
		}
	}
}

func (b *dialBridge) writeLoop() {
	for {
		select {
		case data := <-b.outgoingData:
			b.udpConn.Write(data)
		case <-b.terminationSignal:
			return
		}
	}
}

// Close implements udt.Closer, called when the socket has fully shut down.
func (b *dialBridge) Close(reason int) error {
	return b.shutdownReason(reason)
}

// CloseLinger implements udt.Closer, called when the socket has begun
// lingering (draining retransmits) before its final close.
func (b *dialBridge) CloseLinger(reason int) error {
	b.reason = reason
	return nil
}

func (b *dialBridge) shutdownReason(reason int) error {
	b.closeOnce.Do(func() {
		b.reason = reason
		close(b.terminationSignal)
	})
	return nil
}

func (b *dialBridge) shutdown() {
	b.shutdownReason(b.reason)
	b.udpConn.Close()
}
