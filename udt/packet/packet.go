// Package packet implements the UDT wire codec: encoding and decoding of
// the data and control packet layouts used on the wire.
package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// ctrlFlag marks the leading bit of the first 32-bit word as belonging
	// to a control packet; a data packet's first word is a plain sequence
	// number and never has this bit set (sequence numbers only use 31
	// bits, see PacketID).
	ctrlFlag uint32 = 1 << 31
	// ctrlTypeFlag marks the leading bit of the first 16-bit half-word,
	// set redundantly alongside ctrlFlag within the same word.
	ctrlTypeFlag uint16 = 1 << 15

	// controlHeaderLen is the size, in bytes, of the fixed header shared by
	// every control packet: type/reserved word, additional-info word,
	// timestamp, destination socket id.
	controlHeaderLen = 16
)

// SocketType describes the kind of socket this is (i.e. streaming vs message)
type SocketType uint16

const (
	// TypeSTREAM describes a reliable streaming protocol (e.g. TCP)
	TypeSTREAM SocketType = 1
	// TypeDGRAM describes a partially-reliable messaging protocol
	TypeDGRAM SocketType = 2
)

// PacketType describes the type of UDP packet we're dealing with
type PacketType uint16

const (
	// Control packet types
	ptHandshake  PacketType = 0x0
	ptKeepalive  PacketType = 0x1
	ptAck        PacketType = 0x2
	ptNak        PacketType = 0x3
	ptCongestion PacketType = 0x4 // unused in ver4
	ptShutdown   PacketType = 0x5
	ptAck2       PacketType = 0x6
	ptMsgDropReq PacketType = 0x7
	ptSpecialErr PacketType = 0x8 // undocumented but reference implementation seems to use it
	ptUserDefPkt PacketType = 0x7FFF
	ptData       PacketType = 0x8000 // not found in any control packet, but used to identify data packets
)

var packetTypeNames = map[PacketType]string{
	ptHandshake:  "handshake",
	ptKeepalive:  "keep-alive",
	ptAck:        "ack",
	ptNak:        "nak",
	ptCongestion: "congestion",
	ptShutdown:   "shutdown",
	ptAck2:       "ack2",
	ptMsgDropReq: "msg-drop",
	ptSpecialErr: "error",
	ptUserDefPkt: "user-defined",
	ptData:       "data",
}

// PacketTypeName returns a name describing the specified packet type
func PacketTypeName(pt PacketType) string {
	if name, ok := packetTypeNames[pt]; ok {
		return name
	}
	return fmt.Sprintf("packet-type-%d", int(pt))
}

var endianness = binary.BigEndian

// Packet represents a UDT packet, either control or data.
type Packet interface {
	// SocketID retrieves the destination socket id of a packet
	SocketID() (sockID uint32)

	// SendTime retrieves the timestamp of the packet
	SendTime() (ts uint32)

	// WriteTo writes this packet to the provided buffer, returning the length of the packet
	WriteTo(buf []byte) (uint, error)

	// readFrom reads the packet from a decoded buffer
	readFrom(data []byte) (err error)

	SetHeader(destSockID uint32, ts uint32)

	PacketType() PacketType
}

// controlHeader holds the fields common to every control packet: the
// destination socket id and the send timestamp. Each control packet type
// embeds it and supplies its own type-specific additional-info word and
// payload.
type controlHeader struct {
	ts        uint32
	DstSockID uint32
}

func (h *controlHeader) SocketID() (sockID uint32) {
	return h.DstSockID
}

func (h *controlHeader) SendTime() (ts uint32) {
	return h.ts
}

func (h *controlHeader) SetHeader(destSockID uint32, ts uint32) {
	h.DstSockID = destSockID
	h.ts = ts
}

// encodeControlHeader writes the 16-byte control header for msgType into
// buf, carrying info in the additional-info word, and returns the header
// length for the caller to continue writing type-specific fields after.
func (h *controlHeader) encodeControlHeader(buf []byte, msgType PacketType, info uint32) (uint, error) {
	if len(buf) < controlHeaderLen {
		return 0, errors.New("ctrl packet too small")
	}

	endianness.PutUint16(buf[0:2], uint16(msgType)|ctrlTypeFlag)
	endianness.PutUint16(buf[2:4], 0) // reserved

	endianness.PutUint32(buf[4:8], info)
	endianness.PutUint32(buf[8:12], h.ts)
	endianness.PutUint32(buf[12:16], h.DstSockID)

	return controlHeaderLen, nil
}

// decodeControlHeader reads the 16-byte control header from data, returning
// the additional-info word for the caller to interpret.
func (h *controlHeader) decodeControlHeader(data []byte) (addtlInfo uint32, err error) {
	if len(data) < controlHeaderLen {
		return 0, errors.New("ctrl packet too small")
	}
	addtlInfo = endianness.Uint32(data[4:8])
	h.ts = endianness.Uint32(data[8:12])
	h.DstSockID = endianness.Uint32(data[12:16])
	return
}

// controlPacketFor returns a freshly-allocated, empty packet value for the
// given control message type, or nil if msgType isn't recognized.
func controlPacketFor(msgType PacketType, addtlInfo16 uint16) Packet {
	switch msgType {
	case ptHandshake:
		return &HandshakePacket{}
	case ptKeepalive:
		return &KeepAlivePacket{}
	case ptAck:
		return &AckPacket{}
	case ptNak:
		return &NakPacket{}
	case ptCongestion:
		return &CongestionPacket{}
	case ptShutdown:
		return &ShutdownPacket{}
	case ptAck2:
		return &Ack2Packet{}
	case ptMsgDropReq:
		return &MsgDropReqPacket{}
	case ptSpecialErr:
		return &ErrPacket{}
	case ptUserDefPkt:
		return &UserDefControlPacket{msgType: addtlInfo16}
	default:
		return nil
	}
}

// DecodePacket takes the contents of a UDP packet and decodes it into a UDT packet
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < 4 {
		return nil, errors.New("packet too small to carry a header")
	}

	lead := endianness.Uint32(data[0:4])
	if lead&ctrlFlag == 0 {
		// top bit clear: this is a data packet, and the leading word is its
		// sequence number.
		p := &DataPacket{Seq: PacketID{lead}}
		return p, p.readFrom(data)
	}

	// top bit set: a control packet, whose message type occupies the upper
	// 16 bits of the same leading word (with the flag bit masked off).
	msgType := PacketType((lead &^ ctrlFlag) >> 16)
	p := controlPacketFor(msgType, uint16(lead&0xffff))
	if p == nil {
		return nil, fmt.Errorf("unknown control packet type: %x", msgType)
	}
	if msgType == ptAck && len(data) == lightAckLen {
		p = &LightAckPacket{}
	}
	return p, p.readFrom(data)
}
