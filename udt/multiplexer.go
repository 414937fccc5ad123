package udt

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/udt-go/udt/udt/packet"

	"github.com/udt-go/udt/metrics"
)

// A multiplexer demultiplexes inbound datagrams to the socket they're
// addressed to by destination socket id, and multiplexes every registered
// socket's outbound packets onto a single outgoing channel (in production,
// a single UDP PacketConn). The registry holds the strong references; the
// multiplexer only ever looks sockets up by id, so a closed socket is
// dropped here automatically once the registry forgets it.
type multiplexer struct {
	reg               *registry
	listenSock        *listener // the server socket listening to incoming connections, if there is one. Set by caller.
	maxPacketSize     uint      // the Maximum Transmission Unit of packets sent from this address
	pktOut            chan packet.Packet
	sync.Mutex
	incomingData      <-chan []byte
	outgoingData      chan<- []byte
	terminationSignal <-chan struct{}
	closer            Closer
	logger            *log.Logger
	metrics           *metrics.Registry
	queue             *sendQueue // pacing scheduler shared by every socket this multiplexer owns
}

// The closer is called when the socket/listener closes. The terminationSignal is an external (upstream) signal to watch for.
func newMultiplexer(closer Closer, maxPacketSize uint, incomingData <-chan []byte, outgoingData chan<- []byte, terminationSignal <-chan struct{}, metricsReg *metrics.Registry) (m *multiplexer) {
	if metricsReg == nil {
		metricsReg = metrics.Noop()
	}
	m = &multiplexer{
		reg:               newRegistry(),
		maxPacketSize:     maxPacketSize,
		pktOut:            make(chan packet.Packet, 100),
		closer:            closer,
		incomingData:      incomingData,
		outgoingData:      outgoingData,
		terminationSignal: terminationSignal,
		logger:            log.Default(),
		metrics:           metricsReg,
	}
	m.queue = newSendQueue(m.dispatchPacing)

	go m.goRead()
	go m.goWrite()
	go m.queue.run()
	go func() {
		<-terminationSignal
		m.queue.close()
	}()

	return
}

// dispatchPacing is the send queue's dispatch callback: it wakes the owning
// socket's send loop to let it re-evaluate and pace its own next packet,
// rather than mutating any socket-internal state here. The socket's own
// goroutine reinserts into the queue (via sendDataPacket) the next time it
// computes a pacing delay, so this always returns false: the queue entry is
// one-shot per wake.
func (m *multiplexer) dispatchPacing(sockID uint32, due time.Time) (time.Time, bool) {
	s, ok := m.reg.get(sockID)
	if !ok {
		return time.Time{}, false
	}
	select {
	case s.send.schedWake <- struct{}{}:
	default:
	}
	return time.Time{}, false
}

// unlistenUDT is the closeListen equivalent
func (m *multiplexer) unlistenUDT(l *listener) {
	m.Lock()
	defer m.Unlock()

	if m.listenSock == nil {
		return
	}

	m.listenSock = nil
	m.closer.Close(TerminateReasonListenerClosed)
}

// newSocket creates and registers a new socket with a fresh random id, used
// both by an outbound Dial and by a listener accepting an inbound handshake.
func (m *multiplexer) newSocket(config *Config, isServer bool, isDatagram bool) (s *udtSocket) {
	sockID := rand.Uint32()
	for {
		if _, exists := m.reg.get(sockID); !exists && sockID != 0 {
			break
		}
		sockID = rand.Uint32()
	}
	s = newSocket(m, config, sockID, isServer, isDatagram)
	m.reg.add(s)
	m.metrics.ActiveSockets.Set(float64(m.reg.count()))
	return
}

// closeSocket unregisters a socket; the multiplexer and its queues hold no
// further reference to it after this returns.
func (m *multiplexer) closeSocket(sockID uint32) {
	m.reg.remove(sockID)
	m.queue.remove(sockID)
	m.metrics.ActiveSockets.Set(float64(m.reg.count()))
}

// goRead runs in a goroutine, decodes each inbound datagram, and dispatches
// it by destination socket id to the owning socket's receive path — or, for
// an unrouted handshake, to the listener. Decode errors are counted and the
// datagram dropped; they never tear down the reader.
func (m *multiplexer) goRead() {
	for {
		var buf []byte
		select {
		case buf = <-m.incomingData:
		case <-m.terminationSignal:
			return
		}

		p, err := packet.DecodePacket(buf)
		if err != nil {
			m.metrics.DecodeErrors.Inc()
			m.logger.Printf("udt: dropping malformed datagram: %s", err)
			continue
		}
		m.metrics.PacketsReceived.WithLabelValues(packet.PacketTypeName(p.PacketType())).Inc()

		sockID := p.SocketID()
		if sockID == 0 {
			hsPacket, ok := p.(*packet.HandshakePacket)
			if !ok {
				m.logger.Printf("udt: received non-handshake packet with destination socket = 0")
				continue
			}
			m.Lock()
			ls := m.listenSock
			m.Unlock()
			if ls != nil {
				ls.readHandshake(m, hsPacket)
			}
			continue
		}

		if s, ok := m.reg.get(sockID); ok {
			s.readPacket(m, p)
		}
		// unrouted packet for an id we don't (or no longer) recognize: dropped silently.
	}
}

// goWrite runs in a goroutine and writes every socket's outbound packets to
// the shared outgoing channel, in the order they arrive on pktOut — this is
// the "single UDP sender" that every registered socket multiplexes through.
func (m *multiplexer) goWrite() {
	for pkt := range m.pktOut {
		buf := make([]byte, m.maxPacketSize)
		plen, err := pkt.WriteTo(buf) // encode
		if err != nil {
			m.logger.Printf("udt: error encoding outbound packet: %s", err)
			continue
		}
		m.metrics.PacketsSent.WithLabelValues(packet.PacketTypeName(pkt.PacketType())).Inc()

		select {
		case m.outgoingData <- buf[0:plen]:
		case <-m.terminationSignal:
			return
		}
	}
}

func (m *multiplexer) sendPacket(destSockID uint32, ts uint32, p packet.Packet) {
	p.SetHeader(destSockID, ts)
	if destSockID == 0 {
		if _, ok := p.(*packet.HandshakePacket); !ok {
			m.logger.Printf("udt: refusing to send non-handshake packet with destination socket = 0")
			return
		}
	}
	m.pktOut <- p
}
