package packet

import "testing"

func TestPacketIDAdd(t *testing.T) {
	p := PacketID{Seq: 10}
	if got := p.Add(5); got.Seq != 15 {
		t.Errorf("Add(5) = %d, want 15", got.Seq)
	}
	if got := p.Add(-3); got.Seq != 7 {
		t.Errorf("Add(-3) = %d, want 7", got.Seq)
	}

	wrap := PacketID{Seq: 0x7FFFFFFF}
	if got := wrap.Add(1); got.Seq != 0 {
		t.Errorf("Add(1) at wrap boundary = %d, want 0", got.Seq)
	}
}

func TestPacketIDLessThan(t *testing.T) {
	a := PacketID{Seq: 10}
	b := PacketID{Seq: 20}
	c := PacketID{Seq: 30}
	if !a.LessThan(b) || !b.LessThan(c) || !a.LessThan(c) {
		t.Error("expected a < b < c")
	}
	if a.LessThan(a) {
		t.Error("a should not be less than itself")
	}

	// wrap-around: a sequence just before the modulus is "less than" a
	// small sequence just after wrap.
	near := PacketID{Seq: 0x7FFFFFFF - 1}
	wrapped := PacketID{Seq: 2}
	if !near.LessThan(wrapped) {
		t.Error("expected wrap-around sequence to compare as less than")
	}
}
