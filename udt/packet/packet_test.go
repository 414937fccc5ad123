package packet

import (
	"testing"

	"github.com/go-test/deep"
)

func testPacket(p Packet, t *testing.T) (read Packet) {
	buf := make([]byte, 1500)
	n, err := p.WriteTo(buf)
	if err != nil {
		t.Errorf("Unable to write packet: %s", err)
	}
	if p2, err := DecodePacket(buf[0:n]); err != nil {
		t.Errorf("Unable to read packet: %s", err)
	} else {
		if diff := deep.Equal(p, p2); diff != nil {
			t.Errorf("Read did not match written: %v", diff)
		}
		read = p2
	}
	return
}
