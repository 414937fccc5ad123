package udt

import (
	"container/heap"
	"time"

	"github.com/udt-go/udt/udt/packet"
)

const (
	ackSelfClockInterval = 64

	// a data packet's sequence number probes the link every probeStride
	// packets, per the "1/16" packet-pair sampling scheme
	probeStride = 16

	recvHistoryDepth = 16 // depth of the packet/probe interval windows

	// compressed loss-list encoding: a range is announced as two entries,
	// the first with lossRangeBit set and the second (the range's end)
	// with the bit clear; a lone loss is announced with the bit clear.
	lossRangeBit uint32 = 0x80000000
	lossSeqMask  uint32 = 0x7fffffff

	medianBandShift = 3 // +/- 8x band around the filtering median
)

type udtSocketRecv struct {
	// channels
	sockClosed <-chan struct{}      // closed when socket is closed
	recvEvent  <-chan recvPktEvent  // receiver: ingest the specified packet. Sender is readPacket, receiver is goReceiveEvent
	messageIn  chan<- []byte        // inbound messages. Sender is goReceiveEvent->ingestData, Receiver is client caller (Read)
	sendPacket chan<- packet.Packet // send a packet out on the wire
	socket     *udtSocket

	farNextPktSeq      packet.PacketID // the peer's next largest packet ID expected.
	farRecdPktSeq      packet.PacketID // the peer's last "received" packet ID (before any loss events)
	lastACK            uint32          // last ACK packet we've sent
	largestACK         uint32          // largest ACK packet we've sent that has been acknowledged (by an ACK2).
	recvPktPend        dataPacketHeap  // list of packets that are waiting to be processed.
	recvLossList       receiveLossHeap // loss list.
	ackHistory         ackHistoryHeap  // list of sent ACKs.
	sentAck            packet.PacketID // largest packetID we've sent an ACK regarding
	recvAck2           packet.PacketID // largest packetID we've received an ACK2 from
	recvLastArrival    time.Time       // time of the most recent data packet arrival
	recvLastProbe      time.Time       // time of the most recent data packet probe packet
	ackPeriod          atomicDuration  // (set by congestion control) delay between sending ACKs
	ackInterval        atomicUint32    // (set by congestion control) number of data packets to send before sending an ACK
	unackPktCount      uint            // number of packets we've received that we haven't sent an ACK for
	lightAckCount      uint            // number of "light ACK" packets we've sent since the last ACK
	recvPktHistory     []time.Duration // list of recently received packets.
	recvPktPairHistory []time.Duration // probing packet window.

	// timers
	ackSentEvent2 <-chan time.Time // if an ACK packet has recently sent, don't include link information in the next one
	ackSentEvent  <-chan time.Time // if an ACK packet has recently sent, wait before resending it
}

func newUdtSocketRecv(s *udtSocket) *udtSocketRecv {
	sr := &udtSocketRecv{
		socket:     s,
		sockClosed: s.sockClosed,
		recvEvent:  s.recvEvent,
		messageIn:  s.messageIn,
		sendPacket: s.sendPacket,
	}
	go sr.goReceiveEvent()
	return sr
}

func (s *udtSocketRecv) configureHandshake(p *packet.HandshakePacket) {
	s.farNextPktSeq = p.InitPktSeq
	s.farRecdPktSeq = p.InitPktSeq.Add(-1)
	s.sentAck = p.InitPktSeq
	s.recvAck2 = p.InitPktSeq
}

// goReceiveEvent is the socket's single receive-side goroutine: every
// incoming control/data packet and every ACK-resend timer fires through
// here, one at a time.
func (s *udtSocketRecv) goReceiveEvent() {
	for {
		select {
		case evt, ok := <-s.recvEvent:
			if !ok {
				return
			}
			s.dispatchRecvEvent(evt)
		case <-s.sockClosed:
			return
		case <-s.ackSentEvent:
			s.ackSentEvent = nil
		case <-s.ackSentEvent2:
			s.ackSentEvent2 = nil
		}
	}
}

func (s *udtSocketRecv) dispatchRecvEvent(evt recvPktEvent) {
	switch sp := evt.pkt.(type) {
	case *packet.Ack2Packet:
		s.ingestAck2(sp, evt.now)
	case *packet.MsgDropReqPacket:
		s.ingestMsgDropReq(sp, evt.now)
	case *packet.DataPacket:
		s.ingestData(sp, evt.now)
	case *packet.ErrPacket:
		s.ingestError(sp)
	}
}

/*
ACK is used to trigger an acknowledgement (ACK). Its period is set by
   the congestion control module. However, UDT will send an ACK no
   longer than every 0.01 second, even though the congestion control
   does not need timer-based ACK. Here, 0.01 second is defined as the
   SYN time, or synchronization time, and it affects many of the other
   timers used in UDT.

   NAK is used to trigger a negative acknowledgement (NAK). Its period
   is dynamically updated to 4 * RTT_+ RTTVar + SYN, where RTTVar is the
   variance of RTT samples.

   EXP is used to trigger data packets retransmission and maintain
   connection status. Its period is dynamically updated to N * (4 * RTT
   + RTTVar + SYN), where N is the number of continuous timeouts. To
   avoid unnecessary timeout, a minimum threshold (e.g., 0.5 second)
   should be used in the implementation.
*/

// ingestAck2 is called to process an ACK2 packet
func (s *udtSocketRecv) ingestAck2(p *packet.Ack2Packet, now time.Time) {
	if s.ackHistory == nil {
		return // no ACKs to search
	}

	ackSeq := p.AckSeqNo
	ackHistEntry, ackIdx := s.ackHistory.Find(ackSeq)
	if ackHistEntry == nil {
		return // this ACK not found
	}
	if s.recvAck2.BlindDiff(ackHistEntry.lastPacket) < 0 {
		s.recvAck2 = ackHistEntry.lastPacket
	}
	heap.Remove(&s.ackHistory, ackIdx)

	// Update the largest ACK number ever been acknowledged.
	if s.largestACK < ackSeq {
		s.largestACK = ackSeq
	}

	s.socket.applyRTT(uint(now.Sub(ackHistEntry.sendTime) / time.Microsecond))
}

// ingestMsgDropReq is called to process a message drop request packet
func (s *udtSocketRecv) ingestMsgDropReq(p *packet.MsgDropReqPacket, now time.Time) {
	s.discardDroppedRange(p.FirstSeq, p.LastSeq)

	stopSeq := p.LastSeq.Add(1)
	if p.FirstSeq == s.farRecdPktSeq.Add(1) {
		s.farRecdPktSeq = p.LastSeq
	}
	if s.recvLossList != nil && len(s.recvLossList) == 0 {
		s.farRecdPktSeq = s.farNextPktSeq.Add(-1)
		s.recvLossList = nil
	}
	if s.recvPktPend != nil && len(s.recvPktPend) == 0 {
		s.recvPktPend = nil
	}

	// try to push any pending packets out, now that we have dropped any blocking packets
	for s.recvPktPend != nil && stopSeq != s.farNextPktSeq {
		nextPkt, _ := s.recvPktPend.Min(stopSeq, s.farNextPktSeq)
		if nextPkt == nil || !s.attemptProcessPacket(nextPkt, false) {
			break
		}
	}
}

// discardDroppedRange removes every packet ID in [first, last] from both the
// loss list and the reassembly-pending heap.
func (s *udtSocketRecv) discardDroppedRange(first, last packet.PacketID) {
	stopSeq := last.Add(1)
	for pktID := first; pktID != stopSeq; pktID.Incr() {
		if s.recvLossList != nil {
			if lossEntry, idx := s.recvLossList.Find(pktID); lossEntry != nil {
				heap.Remove(&s.recvLossList, idx)
			}
		}
		if s.recvPktPend != nil {
			if pendEntry, idx := s.recvPktPend.Find(pktID); pendEntry != nil {
				heap.Remove(&s.recvPktPend, idx)
			}
		}
	}
}

// recordInterval appends a newly observed interval to a rolling sample
// window, keeping only the most recent recvHistoryDepth entries.
func recordInterval(hist *[]time.Duration, sample time.Duration) {
	if *hist == nil {
		*hist = []time.Duration{sample}
		return
	}
	*hist = append(*hist, sample)
	if len(*hist) > recvHistoryDepth {
		*hist = (*hist)[len(*hist)-recvHistoryDepth:]
	}
}

// ingestData is called to process a data packet
func (s *udtSocketRecv) ingestData(p *packet.DataPacket, now time.Time) {
	s.socket.cong.onPktRecv(*p)
	s.socket.m.metrics.BytesReceived.Add(float64(len(p.Data)))

	seq := p.Seq

	// every probeStride'th packet samples the inter-packet gap for
	// bandwidth estimation (the "packet pair" window).
	if (seq.Seq-1)%probeStride == 0 {
		if !s.recvLastProbe.IsZero() {
			recordInterval(&s.recvPktPairHistory, now.Sub(s.recvLastProbe))
		}
		s.recvLastProbe = now
	}

	if !s.recvLastArrival.IsZero() {
		recordInterval(&s.recvPktHistory, now.Sub(s.recvLastArrival))
	}
	s.recvLastArrival = now

	s.reconcileSequence(p, seq)

	s.attemptProcessPacket(p, true)
}

// reconcileSequence updates the loss list/high-water mark against the newly
// arrived sequence number: packets beyond what's expected open a new loss
// range and trigger a NAK; packets that fill a gap close it.
func (s *udtSocketRecv) reconcileSequence(p *packet.DataPacket, seq packet.PacketID) {
	seqDiff := seq.BlindDiff(s.farNextPktSeq)
	switch {
	case seqDiff > 0:
		s.socket.m.logger.Printf("udt: out-of-order data packet, expected %v got %v", s.farNextPktSeq, seq)
		newLoss := make(receiveLossHeap, 0, seqDiff)
		for idx := s.farNextPktSeq; idx != seq; idx.Incr() {
			newLoss = append(newLoss, recvLossEntry{packetID: idx})
		}

		if s.recvLossList == nil {
			s.recvLossList = newLoss
			heap.Init(&s.recvLossList)
		} else {
			for idx := s.farNextPktSeq; idx != seq; idx.Incr() {
				heap.Push(&s.recvLossList, recvLossEntry{packetID: idx})
			}
			heap.Init(&newLoss)
		}

		s.sendNAK(newLoss)
		s.farNextPktSeq = seq.Add(1)

	case seqDiff < 0:
		// a previously lost packet has arrived; drop it from the loss list.
		if !s.recvLossList.Remove(seq) {
			return // already previously received packet -- ignore
		}

		if len(s.recvLossList) == 0 {
			s.farRecdPktSeq = s.farNextPktSeq.Add(-1)
			s.recvLossList = nil
		} else {
			minLoss, _ := s.recvLossList.Min(s.farRecdPktSeq, s.farNextPktSeq)
			s.farRecdPktSeq = minLoss.Add(-1)
		}

	default:
		s.farNextPktSeq = seq.Add(1)
	}
}

func (s *udtSocketRecv) attemptProcessPacket(p *packet.DataPacket, isNew bool) bool {
	seq := p.Seq

	// can we process this packet?
	boundary, mustOrder, msgID := p.GetMessageData()
	if s.recvLossList != nil && mustOrder && s.farRecdPktSeq.Add(1) != seq {
		// we're required to order these packets and we're missing prior packets, so push and return
		s.deferPacket(p, isNew)
		return false
	}

	pieces, cannotContinue := s.assembleMessage(p, seq, boundary, msgID)

	// we've received a data packet, do we need to send an ACK for it?
	s.unackPktCount++
	ackInterval := uint(s.ackInterval.get())
	if (ackInterval > 0) && (ackInterval <= s.unackPktCount) {
		// ACK interval is reached
		s.ackEvent()
	} else if ackSelfClockInterval*s.lightAckCount <= s.unackPktCount {
		//send a "light" ACK
		s.sendLightACK()
		s.lightAckCount++
	}

	if cannotContinue {
		// we need to wait for more packets, store and return
		s.deferPacket(p, isNew)
		return false
	}

	// we have a message, pull it from the pending heap (if necessary), assemble it into a message, and return it
	if s.recvPktPend != nil {
		for _, piece := range pieces {
			s.recvPktPend.Remove(piece.Seq)
		}
		if len(s.recvPktPend) == 0 {
			s.recvPktPend = nil
		}
	}

	msg := make([]byte, 0)
	for _, piece := range pieces {
		msg = append(msg, piece.Data...)
	}
	s.messageIn <- msg
	return true
}

// deferPacket stashes a freshly-seen packet in the reassembly-pending heap
// so it can be matched up with its siblings once they arrive.
func (s *udtSocketRecv) deferPacket(p *packet.DataPacket, isNew bool) {
	if !isNew {
		return
	}
	if s.recvPktPend == nil {
		s.recvPktPend = dataPacketHeap{p}
		heap.Init(&s.recvPktPend)
		return
	}
	heap.Push(&s.recvPktPend, p)
}

// assembleMessage walks backward and forward from p through the pending
// heap looking for the rest of its message's fragments. cannotContinue is
// true when a needed fragment is missing or still lost, meaning the caller
// must hold p and retry once more data arrives.
func (s *udtSocketRecv) assembleMessage(p *packet.DataPacket, seq packet.PacketID, boundary packet.MessageBoundary, msgID uint32) (pieces []*packet.DataPacket, cannotContinue bool) {
	pieces = make([]*packet.DataPacket, 0)

	if boundary == packet.MbLast || boundary == packet.MbMiddle {
		// we need prior packets, let's make sure we have them
		if s.recvPktPend != nil {
			pieceSeq := seq.Add(-1)
			for {
				prevPiece, _ := s.recvPktPend.Find(pieceSeq)
				if prevPiece == nil {
					if s.recvLossList != nil {
						if lossEntry, _ := s.recvLossList.Find(pieceSeq); lossEntry != nil {
							cannotContinue = true
						}
					}
					s.socket.m.logger.Printf("udt: message %d missing a leading fragment", msgID)
					break
				}
				prevBoundary, _, prevMsg := prevPiece.GetMessageData()
				if prevMsg != msgID {
					s.socket.m.logger.Printf("udt: message %d appears to be a broken fragment", msgID)
					break
				}
				pieces = append([]*packet.DataPacket{prevPiece}, pieces...)
				if prevBoundary == packet.MbFirst {
					break
				}
				pieceSeq.Decr()
			}
		}
	}
	if cannotContinue {
		return pieces, true
	}

	pieces = append(pieces, p)

	if boundary == packet.MbFirst || boundary == packet.MbMiddle {
		// we need following packets, let's make sure we have them
		if s.recvPktPend != nil {
			pieceSeq := seq.Add(1)
			for {
				nextPiece, _ := s.recvPktPend.Find(pieceSeq)
				if nextPiece == nil {
					if pieceSeq == s.farNextPktSeq {
						// hasn't been received yet
						cannotContinue = true
					} else if s.recvLossList != nil {
						if lossEntry, _ := s.recvLossList.Find(pieceSeq); lossEntry != nil {
							cannotContinue = true
						}
					} else {
						s.socket.m.logger.Printf("udt: message %d appears to be a broken fragment", msgID)
					}
					break
				}
				nextBoundary, _, nextMsg := nextPiece.GetMessageData()
				if nextMsg != msgID {
					s.socket.m.logger.Printf("udt: message %d appears to be a broken fragment", msgID)
					break
				}
				pieces = append(pieces, nextPiece)
				if nextBoundary == packet.MbLast {
					break
				}
				pieceSeq.Incr()
			}
		}
	}

	return pieces, cannotContinue
}

// nextAckTarget is the packet ID we'd acknowledge right now: the next
// expected sequence number if nothing is outstanding, else the lowest
// sequence number still in the loss list.
func (s *udtSocketRecv) nextAckTarget() packet.PacketID {
	if s.recvLossList == nil {
		return s.farNextPktSeq
	}
	return s.farRecdPktSeq.Add(1)
}

func (s *udtSocketRecv) sendLightACK() {
	// to save time on buffer processing and bandwidth/AS measurement, a
	// lite ACK only feeds back an ACK number
	if ack := s.nextAckTarget(); ack != s.recvAck2 {
		s.sendPacket <- &packet.LightAckPacket{PktSeqHi: ack}
	}
}

// medianBand finds the median of samples (via order statistics rather than a
// full sort) and band-filters the set to the entries within an 8x multiple
// of it above and below, returning the filtered count and sum alongside the
// median itself.
func medianBand(samples []time.Duration) (median time.Duration, count int, sum time.Duration) {
	ordered := make(sortableDurnArray, len(samples))
	copy(ordered, samples)
	cutPos := len(ordered) / 2
	FloydRivestBuckets(ordered, cutPos)
	median = ordered[cutPos]

	upper := median << medianBandShift
	lower := median >> medianBandShift
	for _, v := range ordered {
		if v < upper && v > lower {
			count++
			sum += v
		}
	}
	return median, count, sum
}

func (s *udtSocketRecv) getRcvSpeeds() (recvSpeed, bandwidth int) {
	// packet arrival rate: only trust the filtered sample if the band kept
	// a majority of the window, else report no estimate.
	if s.recvPktHistory != nil {
		_, count, sum := medianBand(s.recvPktHistory)
		if count > len(s.recvPktHistory)>>1 {
			recvSpeed = int(time.Second * time.Duration(count) / sum)
		}
	}

	// packet-pair probe bandwidth: the median itself always seeds the
	// accumulator, so this is reported unconditionally.
	if s.recvPktPairHistory != nil {
		median, count, sum := medianBand(s.recvPktPairHistory)
		count++
		sum += median
		bandwidth = int(time.Second * time.Duration(count) / sum)
	}

	return
}

func (s *udtSocketRecv) sendACK() {
	ack := s.nextAckTarget()
	if ack == s.recvAck2 {
		return
	}

	// only send out an ACK if we either are saying something new or the ackSentEvent has expired
	if ack == s.sentAck && s.ackSentEvent != nil {
		return
	}
	s.sentAck = ack

	s.lastACK++
	ackHist := &ackHistoryEntry{
		ackID:      s.lastACK,
		lastPacket: ack,
		sendTime:   time.Now(),
	}
	if s.ackHistory == nil {
		s.ackHistory = ackHistoryHeap{ackHist}
		heap.Init(&s.ackHistory)
	} else {
		heap.Push(&s.ackHistory, ackHist)
	}

	rtt, rttVar := s.socket.getRTT()

	numPendPackets := int(s.farNextPktSeq.BlindDiff(s.farRecdPktSeq) - 1)
	availWindow := int(s.socket.maxFlowWinSize) - numPendPackets
	if availWindow < 2 {
		availWindow = 2
	}

	p := &packet.AckPacket{
		AckSeqNo:  s.lastACK,
		PktSeqHi:  ack,
		Rtt:       uint32(rtt),
		RttVar:    uint32(rttVar),
		BuffAvail: uint32(availWindow),
	}
	if s.ackSentEvent2 == nil {
		recvSpeed, bandwidth := s.getRcvSpeeds()
		p.IncludeLink = true
		p.PktRecvRate = uint32(recvSpeed)
		p.EstLinkCap = uint32(bandwidth)
		s.ackSentEvent2 = time.After(s.socket.Config.SynTime)
	}
	s.sendPacket <- p
	s.ackSentEvent = time.After(time.Duration(rtt+4*rttVar) * time.Microsecond)
}

// sendNAK reports a loss list to the peer, compressing consecutive runs of
// lost sequence numbers into a single (start, end) pair.
func (s *udtSocketRecv) sendNAK(rl receiveLossHeap) {
	lossInfo := make([]uint32, 0)

	hi := s.farRecdPktSeq
	for _, e := range rl {
		if hi.LessThan(e.packetID) {
			hi = e.packetID
		}
	}
	curPkt := s.farRecdPktSeq
	for {
		rangeStart, idx := rl.Min(curPkt, hi)
		if idx < 0 {
			break
		}

		rangeEnd := rangeStart
		for {
			nextPkt := rangeEnd.Add(1)
			_, idx = rl.Find(nextPkt)
			if idx < 0 {
				break
			}
			rangeEnd = nextPkt
		}

		if rangeEnd == rangeStart {
			lossInfo = append(lossInfo, rangeStart.Seq&lossSeqMask)
		} else {
			lossInfo = append(lossInfo, rangeStart.Seq|lossRangeBit, rangeEnd.Seq&lossSeqMask)
		}
		curPkt = rangeEnd.Add(1)
	}

	s.socket.m.metrics.NAKsSent.Inc()
	s.sendPacket <- &packet.NakPacket{CmpLossInfo: lossInfo}
}

// ingestError handles an (undocumented by the UDT draft) out-of-band error packet.
func (s *udtSocketRecv) ingestError(p *packet.ErrPacket) {
	// TODO: the wire format for this packet's payload isn't specified anywhere
	// we could find; nothing to act on yet beyond having received it.
}

// ackEvent fires when some condition requires sending an ACK now (the ACK
// timer expired, or the ACK interval was reached): send it and reset the
// counters that gate the next one.
func (s *udtSocketRecv) ackEvent() {
	s.sendACK()
	s.unackPktCount = 0
	s.lightAckCount = 1
}
