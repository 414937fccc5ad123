package packet

// Structure of packets and functions for writing/reading them

import (
	"errors"
)

// NakPacket is a UDT packet notifying the peer of lost packets
type NakPacket struct {
	controlHeader
	CmpLossInfo []uint32 // integer array of compressed loss information
}

// WriteTo writes this packet to the provided buffer, returning the length of the packet
func (p *NakPacket) WriteTo(buf []byte) (uint, error) {
	off, err := p.encodeControlHeader(buf, ptNak, 0)
	if err != nil {
		return 0, err
	}

	need := off + uint(4*len(p.CmpLossInfo))
	if uint(len(buf)) < need {
		return 0, errors.New("packet too small")
	}

	for _, entry := range p.CmpLossInfo {
		endianness.PutUint32(buf[off:off+4], entry)
		off += 4
	}

	return off, nil
}

func (p *NakPacket) readFrom(data []byte) error {
	if _, err := p.decodeControlHeader(data); err != nil {
		return err
	}

	count := (len(data) - controlHeaderLen) / 4
	p.CmpLossInfo = make([]uint32, count)
	for idx := range p.CmpLossInfo {
		start := controlHeaderLen + 4*idx
		p.CmpLossInfo[idx] = endianness.Uint32(data[start : start+4])
	}
	return nil
}

// PacketType returns the packetType associated with this packet
func (p *NakPacket) PacketType() PacketType {
	return ptNak
}
