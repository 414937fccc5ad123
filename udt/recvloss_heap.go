package udt

import (
	"container/heap"
	"time"

	"github.com/udt-go/udt/udt/packet"
)

type recvLossEntry struct {
	packetID     packet.PacketID
	lastFeedback time.Time
	numNAK       uint
}

// receiveLossHeap defines a list of recvLossEntry records heap-ordered by their packet ID
type receiveLossHeap []recvLossEntry

func (h receiveLossHeap) Len() int {
	return len(h)
}

func (h receiveLossHeap) Less(i, j int) bool {
	return h[i].packetID.Seq < h[j].packetID.Seq
}

func (h receiveLossHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *receiveLossHeap) Push(x interface{}) { // Push and Pop use pointer receivers because they modify the slice's length, not just its contents.
	*h = append(*h, x.(recvLossEntry))
}

func (h *receiveLossHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// Min scans the heap for the entry whose packetID is first in circular
// sequence order within the closed window [greaterEqual, lessEqual]. The
// underlying slice is a container/heap array (heap-ordered, not sorted), so
// only a linear scan can honor the circular window correctly.
func (h receiveLossHeap) Min(greaterEqual packet.PacketID, lessEqual packet.PacketID) (packet.PacketID, int) {
	if len(h) == 0 { // none available!
		return packet.PacketID{Seq: 0}, -1
	}

	best := -1
	for i, e := range h {
		pid := e.packetID
		if pid.LessThan(greaterEqual) || lessEqual.LessThan(pid) {
			continue
		}
		if best == -1 || pid.LessThan(h[best].packetID) {
			best = i
		}
	}
	if best == -1 {
		return packet.PacketID{Seq: 0}, -1
	}
	return h[best].packetID, best
}

// Find does a linear search of the heap for the specified packetID.
func (h receiveLossHeap) Find(packetID packet.PacketID) (*recvLossEntry, int) {
	for n := 0; n < len(h); n++ {
		if h[n].packetID == packetID {
			return &h[n], n
		}
	}
	return nil, -1
}

// Remove finds and removes the entry with the specified packetID.
func (h *receiveLossHeap) Remove(packetID packet.PacketID) bool {
	for idx, e := range *h {
		if e.packetID == packetID {
			heap.Remove(h, idx)
			return true
		}
	}
	return false
}
