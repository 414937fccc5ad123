package udt

import (
	"sync"
	"time"

	"github.com/udt-go/udt/udt/packet"
)

type ackHistoryEntry struct {
	ackID      uint32
	lastPacket packet.PacketID
	sendTime   time.Time
}

// ackHistoryHeap is a log of sent ACKs awaiting an ACK2 confirmation,
// indexed by the ACK sequence number rather than the data sequence number.
// Despite the name it's a flat list, not a container/heap: entries are
// few and short-lived, so a linear scan to remove one is cheap enough.
type ackHistoryHeap struct {
	list []ackHistoryEntry

	sync.RWMutex
}

func createHistoryHeap() (heap *ackHistoryHeap) {
	return &ackHistoryHeap{}
}

// Add appends an entry to the log. Deduplication is not performed.
func (heap *ackHistoryHeap) Add(newEntry ackHistoryEntry) {
	heap.Lock()
	defer heap.Unlock()

	heap.list = append(heap.list, newEntry)
}

// Remove deletes every entry whose ackID matches sequence, compacting the
// list in place, and returns the last matching entry found (if any).
func (heap *ackHistoryHeap) Remove(sequence uint32) (found *ackHistoryEntry) {
	heap.Lock()
	defer heap.Unlock()

	kept := heap.list[:0]
	for n := range heap.list {
		if heap.list[n].ackID == sequence {
			entry := heap.list[n]
			found = &entry
			continue
		}
		kept = append(kept, heap.list[n])
	}
	heap.list = kept

	return found
}

// Count returns the number of entries currently logged.
func (heap *ackHistoryHeap) Count() (count int) {
	heap.RLock()
	defer heap.RUnlock()

	return len(heap.list)
}
