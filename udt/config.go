package udt

import (
	"time"

	"github.com/udt-go/udt/metrics"
	"github.com/udt-go/udt/udt/packet"
)

// Config controls behavior of sockets created with it
type Config struct {
	CanAcceptDgram     bool          // can this listener accept datagrams?
	CanAcceptStream    bool          // can this listener accept streams?
	ListenReplayWindow time.Duration // length of time to wait for repeated incoming connections
	MaxPacketSize      uint          // Upper limit on maximum packet size, i.e. MSS; sizes every packet buffer (0 is not treated as unlimited)
	MaxBandwidth       uint64        // Maximum bandwidth to take with this connection (in bytes/sec, 0 = unlimited)
	LingerTime         time.Duration // time to wait for retransmit requests after connection shutdown
	MaxFlowWinSize     uint          // maximum number of unacknowledged packets to permit (minimum 32)
	SynTime            time.Duration // SynTime

	SendBufferSize uint   // send buffer size, in packets
	RecvBufferSize uint   // receive buffer size, in packets
	FlightFlagSize uint   // flight-flag size, in packets; caps in-flight unacked packets
	Rendezvous     bool   // use rendezvous (no listener) handshake mode
	InitialSeqNum  *int32 // fixed initial sequence number; random if nil
	ReuseAddr      bool   // set SO_REUSEADDR (and SO_REUSEPORT where available) on the underlying socket

	ConnectTimeout time.Duration // how long startConnect retries the handshake before giving up (0 = DefaultConfig's 3s)
	Stream         bool          // this socket behaves as STREAM (ordered byte stream) rather than DGRAM (message-oriented)

	CanAccept           func(hsPacket *packet.HandshakePacket) error // can this listener accept this connection?
	CongestionForSocket func(sock *udtSocket) CongestionControl      // create or otherwise return the CongestionControl for this socket

	Metrics *metrics.Registry // where to report packet/byte/RTT counters; a private Noop registry if nil
}

// DefaultConfig constructs a Config with default values
func DefaultConfig() *Config {
	return &Config{
		CanAcceptDgram:     true,
		CanAcceptStream:    true,
		ListenReplayWindow: 5 * time.Minute,
		LingerTime:         180 * time.Second,
		MaxFlowWinSize:     64,
		MaxBandwidth:       0,
		MaxPacketSize:      1500,
		SynTime:            10000 * time.Microsecond,
		SendBufferSize:     8192,
		RecvBufferSize:     8192,
		FlightFlagSize:     25600,
		Rendezvous:         false,
		ReuseAddr:          false,
		ConnectTimeout:     3 * time.Second,
		Stream:             true,
		CongestionForSocket: func(sock *udtSocket) CongestionControl {
			return &NativeCongestionControl{}
		},
	}
}
