package udt

import (
	"time"

	"github.com/udt-go/udt/udt/packet"
)

// udtSocketCc serializes every congestion-control callback behind a single
// goroutine so a CongestionControl implementation never needs to worry about
// concurrent access from the send and receive sides. Each public method here
// just enqueues a closure that performs the actual call against s.congestion
// (and, where relevant, updates the cached fields GetSndCurrSeqNo/
// GetCongestionWindowSize/GetPacketSendPeriod read back out); goCongestionEvent
// runs them strictly in arrival order.
type udtSocketCc struct {
	sockClosed <-chan struct{} // closed when socket is closed
	socket     *udtSocket
	congestion CongestionControl // congestion control object for this socket
	actions    chan func()

	sendPktSeq packet.PacketID // packetID of most recently sent packet
	congWindow uint            // size of congestion window (in packets)
	sndPeriod  time.Duration   // delay between sending packets
}

func newUdtSocketCc(s *udtSocket) *udtSocketCc {
	newCongestion := s.Config.CongestionForSocket
	if newCongestion == nil {
		newCongestion = DefaultConfig().CongestionForSocket
	}

	sc := &udtSocketCc{
		socket:     s,
		sockClosed: s.sockClosed,
		congestion: newCongestion(s),
		actions:    make(chan func(), 100),
	}
	go sc.goCongestionEvent()
	return sc
}

// goCongestionEvent drains queued actions until either the channel is closed
// or the socket closes out from under it.
func (s *udtSocketCc) goCongestionEvent() {
	for {
		select {
		case action, ok := <-s.actions:
			if !ok {
				return
			}
			action()
		case <-s.sockClosed:
			return
		}
	}
}

// enqueue hands a closure to the actor goroutine, run there in order.
func (s *udtSocketCc) enqueue(action func()) {
	s.actions <- action
}

// init is called (only) at the start of a UDT connection.
func (s *udtSocketCc) init(sendPktSeq packet.PacketID) {
	s.enqueue(func() {
		s.sendPktSeq = sendPktSeq
		s.congestion.Init(s, s.socket.Config.SynTime)
	})
}

// close is called when a UDT connection is closed.
func (s *udtSocketCc) close() {
	s.enqueue(func() {
		s.congestion.Close(s)
	})
}

// onACK is called when an ACK packet is received
func (s *udtSocketCc) onACK(pktID packet.PacketID) {
	s.enqueue(func() {
		s.congestion.OnACK(s, pktID)
	})
}

// onNAK is called when a loss report is received
func (s *udtSocketCc) onNAK(loss []packet.PacketID) {
	ourLoss := make([]packet.PacketID, len(loss))
	copy(ourLoss, loss)

	s.enqueue(func() {
		s.congestion.OnNAK(s, ourLoss)
	})
}

// onTimeout is called when a timeout event occurs
func (s *udtSocketCc) onTimeout() {
	s.enqueue(func() {
		s.congestion.OnTimeout(s)
	})
}

// onDataPktSent is called when a data packet has been queued for sending
func (s *udtSocketCc) onDataPktSent(pktID packet.PacketID) {
	s.enqueue(func() {
		s.sendPktSeq = pktID
	})
}

// onPktSent is called when any packet is sent
func (s *udtSocketCc) onPktSent(p packet.Packet) {
	s.enqueue(func() {
		s.congestion.OnPktSent(s, p)
	})
}

// onPktRecv is called when a data packet is received
func (s *udtSocketCc) onPktRecv(p packet.DataPacket) {
	s.enqueue(func() {
		s.congestion.OnPktRecv(s, p)
	})
}

// onCustomMsg processes a user-defined packet
func (s *udtSocketCc) onCustomMsg(p packet.UserDefControlPacket) {
	s.enqueue(func() {
		s.congestion.OnCustomMsg(s, p)
	})
}

// GetSndCurrSeqNo is the most recently sent packet ID
func (s *udtSocketCc) GetSndCurrSeqNo() packet.PacketID {
	return s.sendPktSeq
}

// SetCongestionWindowSize sets the size of the congestion window (in packets)
func (s *udtSocketCc) SetCongestionWindowSize(pkt uint) {
	s.congWindow = pkt
	s.socket.send.congestWindow.set(uint32(pkt))
}

// GetCongestionWindowSize gets the size of the congestion window (in packets)
func (s *udtSocketCc) GetCongestionWindowSize() uint {
	return s.congWindow
}

// GetPacketSendPeriod gets the current delay between sending packets
func (s *udtSocketCc) GetPacketSendPeriod() time.Duration {
	return s.sndPeriod
}

// SetPacketSendPeriod sets the current delay between sending packets
func (s *udtSocketCc) SetPacketSendPeriod(snd time.Duration) {
	s.sndPeriod = snd
	s.socket.send.SetPacketSendPeriod(snd)
}

// GetMaxFlowWindow is the largest number of unacknowledged packets we can receive (in packets)
func (s *udtSocketCc) GetMaxFlowWindow() uint {
	return s.socket.maxFlowWinSize
}

// GetReceiveRates is the current calculated receive rate and bandwidth (in packets/sec)
func (s *udtSocketCc) GetReceiveRates() (uint, uint) {
	return s.socket.getRcvSpeeds()
}

// GetRTT is the current calculated roundtrip time between peers
func (s *udtSocketCc) GetRTT() time.Duration {
	rtt, _ := s.socket.getRTT()
	return time.Duration(rtt) * time.Microsecond
}

// GetMSS is the largest packet size we can currently send (in bytes)
func (s *udtSocketCc) GetMSS() uint {
	return uint(s.socket.maxPacketSize)
}

// SetACKPeriod sets the time between ACKs sent to the peer
func (s *udtSocketCc) SetACKPeriod(ack time.Duration) {
	s.socket.recv.ackPeriod.set(ack)
}

// SetACKInterval sets the number of packets sent to the peer before sending an ACK
func (s *udtSocketCc) SetACKInterval(ack uint) {
	s.socket.recv.ackInterval.set(uint32(ack))
}

// SetRTOPeriod overrides the default EXP timeout calculations waiting for data from the peer
func (s *udtSocketCc) SetRTOPeriod(rto time.Duration) {
	s.socket.send.rtoPeriod.set(rto)
}
