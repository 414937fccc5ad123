package udt

import (
	"container/heap"

	"github.com/udt-go/udt/udt/packet"
)

// dataPacketHeap defines a list of data packets heap-ordered by their sequence number
type dataPacketHeap []*packet.DataPacket

func (h dataPacketHeap) Len() int {
	return len(h)
}

func (h dataPacketHeap) Less(i, j int) bool {
	return h[i].Seq.Seq < h[j].Seq.Seq
}

func (h dataPacketHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *dataPacketHeap) Push(x interface{}) { // Push and Pop use pointer receivers because they modify the slice's length, not just its contents.
	*h = append(*h, x.(*packet.DataPacket))
}

func (h *dataPacketHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// Find does a linear search of the heap for the specified packetID.
func (h dataPacketHeap) Find(packetID packet.PacketID) (*packet.DataPacket, int) {
	for idx := range h {
		if h[idx].Seq == packetID {
			return h[idx], idx
		}
	}
	return nil, -1
}

// Min scans the heap for the entry whose sequence is first in circular
// order within the closed window [greaterEqual, lessEqual].
func (h dataPacketHeap) Min(greaterEqual packet.PacketID, lessEqual packet.PacketID) (*packet.DataPacket, int) {
	best := -1
	for i, dp := range h {
		if dp.Seq.LessThan(greaterEqual) || lessEqual.LessThan(dp.Seq) {
			continue
		}
		if best == -1 || dp.Seq.LessThan(h[best].Seq) {
			best = i
		}
	}
	if best == -1 {
		return nil, -1
	}
	return h[best], best
}

// Remove finds and removes the entry with the specified packetID.
func (h *dataPacketHeap) Remove(packetID packet.PacketID) bool {
	for idx, dp := range *h {
		if dp.Seq == packetID {
			heap.Remove(h, idx)
			return true
		}
	}
	return false
}
