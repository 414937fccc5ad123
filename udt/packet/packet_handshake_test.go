package packet

import (
	"net"
	"testing"
)

func TestHandshakePacket(t *testing.T) {
	pkt := &HandshakePacket{
		UdtVer:         4,
		SockType:       TypeDGRAM,
		InitPktSeq:     PacketID{Seq: 12345},
		MaxPktSize:     1500,
		MaxFlowWinSize: 8192,
		ReqType:        HsRequest,
		SockID:         42,
		SynCookie:      0xdeadbeef,
		SockAddr:       net.IPv4(127, 0, 0, 1),
	}
	pkt.SetHeader(59, 100)
	testPacket(pkt, t)
}

func TestHandshakePacketIPv6(t *testing.T) {
	pkt := &HandshakePacket{
		UdtVer:         4,
		SockType:       TypeSTREAM,
		InitPktSeq:     PacketID{Seq: 1},
		MaxPktSize:     1500,
		MaxFlowWinSize: 8192,
		ReqType:        HsResponse,
		SockID:         7,
		SynCookie:      0,
		SockAddr:       net.ParseIP("2001:db8::1"),
	}
	pkt.SetHeader(1, 1)
	testPacket(pkt, t)
}
