package packet

// Structure of packets and functions for writing/reading them

import (
	"errors"
)

const msgDropReqLen = controlHeaderLen + 8 // header + FirstSeq/LastSeq

// MsgDropReqPacket is a UDT packet notifying the peer of expired packets not worth trying to send
type MsgDropReqPacket struct {
	controlHeader
	MsgID    uint32   // Message ID
	FirstSeq PacketID // First sequence number in the message
	LastSeq  PacketID // Last sequence number in the message
}

// WriteTo writes this packet to the provided buffer, returning the length of the packet
func (p *MsgDropReqPacket) WriteTo(buf []byte) (uint, error) {
	if len(buf) < msgDropReqLen {
		return 0, errors.New("packet too small")
	}

	if _, err := p.encodeControlHeader(buf, ptMsgDropReq, p.MsgID); err != nil {
		return 0, err
	}

	endianness.PutUint32(buf[16:20], p.FirstSeq.Seq)
	endianness.PutUint32(buf[20:24], p.LastSeq.Seq)

	return msgDropReqLen, nil
}

func (p *MsgDropReqPacket) readFrom(data []byte) (err error) {
	if len(data) < msgDropReqLen {
		return errors.New("packet too small")
	}
	if p.MsgID, err = p.decodeControlHeader(data); err != nil {
		return err
	}
	p.FirstSeq = PacketID{endianness.Uint32(data[16:20])}
	p.LastSeq = PacketID{endianness.Uint32(data[20:24])}
	return nil
}

// PacketType returns the packetType associated with this packet
func (p *MsgDropReqPacket) PacketType() PacketType {
	return ptMsgDropReq
}
