package udt

import (
	"container/heap"
	"time"

	"github.com/udt-go/udt/udt/packet"
)

type acceptSockInfo struct {
	sockID    uint32
	initSeqNo packet.PacketID
	lastTouch time.Time
	sock      *udtSocket
}

// acceptSockHeap defines a list of acceptSockInfo records heap-ordered by their peer socketID and initial sequence number
type acceptSockHeap []acceptSockInfo

func (h acceptSockHeap) Len() int {
	return len(h)
}

func (h acceptSockHeap) Less(i, j int) bool {
	if h[i].sockID != h[j].sockID {
		return h[i].sockID < h[j].sockID
	}
	return h[i].initSeqNo.Seq < h[j].initSeqNo.Seq
}

func (h acceptSockHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *acceptSockHeap) Push(x interface{}) { // Push and Pop use pointer receivers because they modify the slice's length, not just its contents.
	*h = append(*h, x.(acceptSockInfo))
}

func (h *acceptSockHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// Find does a linear search of the heap for the entry matching sockID and
// initSeqNo. The heap array is heap-ordered (parent <= children), not
// sorted, so only a linear scan finds an arbitrary entry correctly.
func (h acceptSockHeap) Find(sockID uint32, initSeqNo packet.PacketID) (*udtSocket, int) {
	for idx := range h {
		if h[idx].sockID == sockID && h[idx].initSeqNo.Seq == initSeqNo.Seq {
			return h[idx].sock, idx
		}
	}
	return nil, -1
}

// Prune removes any entries that have a lastTouched before the specified time
func (h *acceptSockHeap) Prune(pruneBefore time.Time) {
	for {
		l := len(*h)
		foundOne := false
		for idx := 0; idx < l; idx++ {
			if (*h)[idx].lastTouch.Before(pruneBefore) {
				foundOne = true
				heap.Remove(h, idx)
				break
			}
		}
		if !foundOne {
			// nothing left to prune
			return
		}
	}
}
