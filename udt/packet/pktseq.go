package packet

import "math/rand"

// PacketID represents a UDT packet ID sequence
type PacketID struct {
	Seq uint32
}

// RandomPacketSequence returns an initial sequence number drawn uniformly
// from the 31-bit sequence space, for use as a socket's ISN when the caller
// hasn't pinned one.
func RandomPacketSequence() PacketID {
	return PacketID{Seq: rand.Uint32() & 0x7FFFFFFF}
}

// Incr increments this packet ID
func (p *PacketID) Incr() {
	p.Seq = (p.Seq + 1) & 0x7FFFFFFF
}

// Decr decrements this packet ID
func (p *PacketID) Decr() {
	p.Seq = (p.Seq - 1) & 0x7FFFFFFF
}

// Add returns a packet ID after adding the specified offset
func (p PacketID) Add(off int32) PacketID {
	newSeq := (p.Seq + uint32(off)) & 0x7FFFFFFF
	return PacketID{newSeq}
}

// LessThan reports whether p precedes rhs in circular sequence order,
// per the wrap-safe comparison: p < rhs iff (rhs - p) mod 2^31 lies in (0, 2^30).
func (p PacketID) LessThan(rhs PacketID) bool {
	diff := (rhs.Seq - p.Seq) & 0x7FFFFFFF
	return diff != 0 && diff < 0x40000000
}

// BlindDiff attempts to return the difference after subtracting the argument from itself
func (p PacketID) BlindDiff(rhs PacketID) int32 {
	result := (p.Seq - rhs.Seq) & 0x7FFFFFFF
	if result&0x40000000 != 0 {
		result = result | 0x80000000
	}
	return int32(result)
}
