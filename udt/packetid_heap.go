package udt

import (
	"github.com/udt-go/udt/udt/packet"
)

// packetIDHeap defines a list of heap-ordered packet IDs
type packetIDHeap []packet.PacketID

func (h packetIDHeap) Len() int {
	return len(h)
}

func (h packetIDHeap) Less(i, j int) bool {
	return h[i].Seq < h[j].Seq
}

func (h packetIDHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *packetIDHeap) Push(x interface{}) { // Push and Pop use pointer receivers because they modify the slice's length, not just its contents.
	*h = append(*h, x.(packet.PacketID))
}

func (h *packetIDHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// Min scans the heap for the entry that is first in circular sequence order
// within the closed window [greaterEqual, lessEqual]. Loss lists stay
// small (bounded by the flight window), so a linear scan is cheap and, unlike
// a binary search keyed on raw Seq, it actually respects wraparound.
func (h packetIDHeap) Min(greaterEqual packet.PacketID, lessEqual packet.PacketID) (packet.PacketID, int) {
	if len(h) == 0 { // none available!
		return packet.PacketID{Seq: 0}, -1
	}

	best := -1
	for i, pid := range h {
		if pid.LessThan(greaterEqual) || lessEqual.LessThan(pid) {
			continue
		}
		if best == -1 || pid.LessThan(h[best]) {
			best = i
		}
	}
	if best == -1 {
		return packet.PacketID{Seq: 0}, -1
	}
	return h[best], best
}

// Find does a linear search of the heap for the specified packetID, which is
// returned along with its index. Loss lists are small enough that this beats
// maintaining a parallel index structure.
func (h packetIDHeap) Find(pktID packet.PacketID) (*packet.PacketID, int) {
	for n := 0; n < len(h); n++ {
		if h[n].Seq == pktID.Seq {
			return &h[n], n
		}
	}
	return nil, -1
}
