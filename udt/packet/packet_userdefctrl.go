package packet

import "errors"

// Structure of packets and functions for writing/reading them

// UserDefControlPacket is a UDT user-defined packet
type UserDefControlPacket struct {
	controlHeader
	msgType   uint16 // user-defined message type
	addtlInfo uint32
	data      []byte
}

// WriteTo writes this packet to the provided buffer, returning the length of the packet
func (p *UserDefControlPacket) WriteTo(buf []byte) (uint, error) {
	ol := controlHeaderLen + len(p.data)
	if len(buf) < ol {
		return 0, errors.New("packet too small")
	}

	if _, err := p.encodeControlHeader(buf, ptUserDefPkt, p.addtlInfo); err != nil {
		return 0, err
	}
	// the reserved half-word normally left zero carries this packet's
	// caller-chosen message type instead.
	endianness.PutUint16(buf[2:4], p.msgType)

	copy(buf[controlHeaderLen:], p.data)

	return uint(ol), nil
}

func (p *UserDefControlPacket) readFrom(data []byte) (err error) {
	if p.addtlInfo, err = p.decodeControlHeader(data); err != nil {
		return err
	}
	p.data = data[controlHeaderLen:]

	return nil
}

// PacketType returns the packetType associated with this packet
func (p *UserDefControlPacket) PacketType() PacketType {
	return ptUserDefPkt
}
