package udt

import (
	"container/heap"
	"encoding/binary"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/udt-go/udt/udt/packet"
)

var (
	endianness = binary.BigEndian
)

/*
Listener implements the net.Listener interface for UDT.
*/
type listener struct {
	m              *multiplexer
	accept         chan *udtSocket
	closed         chan struct{}
	acceptHist     acceptSockHeap
	acceptHistProt sync.Mutex
	config         *Config
	cookies        *cookieJar
	localAddr      net.Addr
}

func (l *listener) Accept() (net.Conn, error) {
	socket, ok := <-l.accept
	if ok {
		return socket, nil
	}
	return nil, errors.New("Listener closed")
}

func (l *listener) Close() (err error) {
	a := l.accept
	c := l.closed
	l.accept = nil
	l.closed = nil
	if a == nil || c == nil {
		return errors.New("Listener closed")
	}
	close(a)
	close(c)

	l.m.unlistenUDT(l)
	return nil
}

func (l *listener) Addr() net.Addr {
	return l.localAddr
}

// checkValidHandshake checks to see if we want to accept a new connection with this handshake.
func (l *listener) checkValidHandshake(m *multiplexer, p *packet.HandshakePacket) bool {
	return true
}

func (l *listener) rejectHandshake(m *multiplexer, hsPacket *packet.HandshakePacket) {
	m.sendPacket(hsPacket.SockID, 0, &packet.HandshakePacket{
		UdtVer:   hsPacket.UdtVer,
		SockType: hsPacket.SockType,
		ReqType:  packet.HsRefused,
	})
}

// peerAddr derives a net.Addr for cookie derivation from the handshake's own
// claimed address, since the channel-based transport this engine consumes
// doesn't carry a sender address out of band. A real net.PacketConn-backed
// deployment (see package netudp) can supply the wire-observed address
// instead by constructing the HandshakePacket.SockAddr field from it before
// decode, which is exactly what net.UDPAddr round-trips as.
func peerAddr(p *packet.HandshakePacket) net.Addr {
	return &net.UDPAddr{IP: p.SockAddr}
}

func (l *listener) readHandshake(m *multiplexer, hsPacket *packet.HandshakePacket) bool {
	now := time.Now()

	if hsPacket.ReqType == packet.HsRendezvous {
		// Rendezvous mode: both peers initiate simultaneously, neither is a
		// "pure" listener for this exchange. Treat exactly like an accepted
		// connection, skipping the cookie round-trip.
		return l.acceptSocket(m, hsPacket, now)
	}

	if hsPacket.ReqType == packet.HsRequest {
		if hsPacket.SynCookie == 0 {
			// First contact: mint a cookie and echo the handshake back with it,
			// without creating any per-attempt state.
			cookie := l.cookies.cookieFor(peerAddr(hsPacket), now)
			m.sendPacket(hsPacket.SockID, 0, &packet.HandshakePacket{
				UdtVer:     hsPacket.UdtVer,
				SockType:   hsPacket.SockType,
				InitPktSeq: hsPacket.InitPktSeq,
				ReqType:    packet.HsRequest,
				SynCookie:  cookie,
			})
			return true
		}

		// Cookie echoed back (connection_type still 1, but cookie non-zero):
		// validate it before doing any per-connection work.
		if !l.cookies.valid(peerAddr(hsPacket), hsPacket.SynCookie, now) {
			l.rejectHandshake(m, hsPacket)
			return false
		}
		return l.acceptSocket(m, hsPacket, now)
	}

	if hsPacket.ReqType == packet.HsResponse {
		// Cookie-confirmed request: the client echoes the cookie it was
		// handed, re-sent with connection_type = -1 per the handshake
		// protocol's cookie-confirmed convention.
		if !l.cookies.valid(peerAddr(hsPacket), hsPacket.SynCookie, now) {
			l.rejectHandshake(m, hsPacket)
			return false
		}
		return l.acceptSocket(m, hsPacket, now)
	}

	l.rejectHandshake(m, hsPacket)
	return false
}

func (l *listener) acceptSocket(m *multiplexer, hsPacket *packet.HandshakePacket, now time.Time) bool {
	if !l.checkValidHandshake(m, hsPacket) {
		l.rejectHandshake(m, hsPacket)
		return false
	}

	l.acceptHistProt.Lock()
	if l.acceptHist != nil {
		replayWindow := l.config.ListenReplayWindow
		if replayWindow <= 0 {
			replayWindow = DefaultConfig().ListenReplayWindow
		}
		l.acceptHist.Prune(now.Add(-replayWindow))
		s, idx := l.acceptHist.Find(hsPacket.SockID, hsPacket.InitPktSeq)
		if s != nil {
			l.acceptHist[idx].lastTouch = now
			l.acceptHistProt.Unlock()
			return s.readHandshake(m, hsPacket)
		}
	}
	l.acceptHistProt.Unlock()

	if !l.config.CanAcceptDgram && hsPacket.SockType == packet.TypeDGRAM {
		l.rejectHandshake(m, hsPacket)
		return false
	}
	if !l.config.CanAcceptStream && hsPacket.SockType == packet.TypeSTREAM {
		l.rejectHandshake(m, hsPacket)
		return false
	}
	if l.config.CanAccept != nil {
		if err := l.config.CanAccept(hsPacket); err != nil {
			l.rejectHandshake(m, hsPacket)
			return false
		}
	}

	s := l.m.newSocket(l.config, true, hsPacket.SockType == packet.TypeDGRAM)
	l.acceptHistProt.Lock()
	if l.acceptHist == nil {
		l.acceptHist = []acceptSockInfo{{
			sockID:    hsPacket.SockID,
			initSeqNo: hsPacket.InitPktSeq,
			lastTouch: now,
			sock:      s,
		}}
		heap.Init(&l.acceptHist)
	} else {
		heap.Push(&l.acceptHist, acceptSockInfo{
			sockID:    hsPacket.SockID,
			initSeqNo: hsPacket.InitPktSeq,
			lastTouch: now,
			sock:      s,
		})
	}
	l.acceptHistProt.Unlock()
	if !s.checkValidHandshake(m, hsPacket) {
		l.rejectHandshake(m, hsPacket)
		return false
	}
	if !s.readHandshake(m, hsPacket) {
		l.rejectHandshake(m, hsPacket)
		return false
	}

	l.accept <- s
	return true
}

// ListenUDT listens for incoming UDT connections using the existing provided packet connection. It creates a UDT server.
func ListenUDT(config *Config, closer Closer, incomingData <-chan []byte, outgoingData chan<- []byte, terminationSignal <-chan struct{}) net.Listener {
	m := newMultiplexer(closer, config.MaxPacketSize, incomingData, outgoingData, terminationSignal, config.Metrics)

	l := &listener{
		m:       m,
		accept:  make(chan *udtSocket, 100),
		closed:  make(chan struct{}, 1),
		config:  config,
		cookies: newCookieJar(),
	}

	m.listenSock = l

	return l
}
