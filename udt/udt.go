package udt

/*
Package udt provides a pure Go implementation of the UDT protocol per
http://udt.sourceforge.net/doc/draft-gg-udt-03.txt.

It covers packet framing, the connection handshake (including the listener's
SYN-cookie exchange and rendezvous mode), the sender and receiver state
machines, loss detection and retransmission, RTT estimation, rate and flow
control, and a pacing scheduler for multiplexing many sockets over a single
datagram transport. The engine talks to its transport through a pair of byte
channels rather than a concrete net.PacketConn; package conn (in this
module's top level) bridges those channels to a real OS UDP socket opened
through package netudp.

udt does not implement all of the spec.  In particular, the following are not
implemented:

- STREAM mode framing beyond what DGRAM already provides
- encryption or congestion fairness guarantees against other transports
*/

// Closer provides a status code indicating why the closing happens.
type Closer interface {
	Close(reason int) error       // Close is called when the socket is actually closed.
	CloseLinger(reason int) error // CloseLinger is called when the socket indicates to be closed soon, after the linger time.
}

// The termination reason is passed on to the close function
const (
	TerminateReasonListenerClosed     = 1000 // Listener: The listener.Close function was called.
	TerminateReasonLingerTimerExpired = 1001 // Socket: The linger timer expired. Use CloseLinger to know the actual closing reason.
	TerminateReasonConnectTimeout     = 1002 // Socket: The connection timed out when sending the initial handshake.
	TerminateReasonRemoteSentShutdown = 1003 // Remote peer sent a shutdown message.
	TerminateReasonSocketClosed       = 1004 // Send: Socket closed. Called udtSocket.Close().
	TerminateReasonInvalidPacketIDAck = 1005 // Send: Invalid packet ID received in ACK message.
	TerminateReasonInvalidPacketIDNak = 1006 // Send: Invalid packet ID received in NAK message.
	TerminateReasonCorruptPacketNak   = 1007 // Send: Invalid NAK packet received.
	TerminateReasonSignal             = 1008 // Send: Terminate signal. Called udtSocket.Terminate().
)

// DialUDT establishes an outbound UDT connection using the existing provided packet connection. It creates a UDT client.
func DialUDT(config *Config, closer Closer, incomingData <-chan []byte, outgoingData chan<- []byte, terminationSignal <-chan struct{}, isStream bool) (*udtSocket, error) {
	m := newMultiplexer(closer, config.MaxPacketSize, incomingData, outgoingData, terminationSignal, config.Metrics)

	s := m.newSocket(config, false, !isStream)
	err := s.startConnect()

	return s, err
}
