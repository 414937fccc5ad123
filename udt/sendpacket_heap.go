package udt

import (
	"container/heap"
	"time"

	"github.com/udt-go/udt/udt/packet"
)

type sendPacketEntry struct {
	pkt *packet.DataPacket
	tim time.Time
	ttl time.Duration
}

// sendPacketHeap defines a list of sendPacketEntry records heap-ordered by their packet ID
type sendPacketHeap []sendPacketEntry

func (h sendPacketHeap) Len() int {
	return len(h)
}

func (h sendPacketHeap) Less(i, j int) bool {
	return h[i].pkt.Seq.Seq < h[j].pkt.Seq.Seq
}

func (h sendPacketHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *sendPacketHeap) Push(x interface{}) { // Push and Pop use pointer receivers because they modify the slice's length, not just its contents.
	*h = append(*h, x.(sendPacketEntry))
}

func (h *sendPacketHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// Find does a linear search of the heap for the specified packetID.
func (h sendPacketHeap) Find(packetID packet.PacketID) (*sendPacketEntry, int) {
	for idx := range h {
		if h[idx].pkt.Seq == packetID {
			return &h[idx], idx
		}
	}
	return nil, -1
}

// Min scans the heap for the entry whose sequence is first in circular
// order within the closed window [greaterEqual, lessEqual].
func (h sendPacketHeap) Min(greaterEqual packet.PacketID, lessEqual packet.PacketID) (*packet.DataPacket, int) {
	best := -1
	for i, e := range h {
		pid := e.pkt.Seq
		if pid.LessThan(greaterEqual) || lessEqual.LessThan(pid) {
			continue
		}
		if best == -1 || pid.LessThan(h[best].pkt.Seq) {
			best = i
		}
	}
	if best == -1 {
		return nil, -1
	}
	return h[best].pkt, best
}

// Remove finds and removes the entry with the specified packetID.
func (h *sendPacketHeap) Remove(packetID packet.PacketID) bool {
	for idx, e := range *h {
		if e.pkt.Seq == packetID {
			heap.Remove(h, idx)
			return true
		}
	}
	return false
}
