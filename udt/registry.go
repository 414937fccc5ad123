package udt

import "sync"

// registry is a multiplexer's table of active sockets, keyed by local
// socket id. It holds the sole strong reference to each socket; the send
// queue and receive queue reach sockets only by looking them up here, so
// they never keep a closed socket alive.
//
// Not a singleton: each multiplexer constructs its own registry, so multiple
// isolated engines can run in one process without sharing state.
type registry struct {
	mu      sync.RWMutex
	sockets map[uint32]*udtSocket
}

func newRegistry() *registry {
	return &registry{sockets: make(map[uint32]*udtSocket)}
}

// add registers s under its local socket id. Overwrites any previous entry
// with the same id (the caller is responsible for id uniqueness).
func (r *registry) add(s *udtSocket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sockets[s.sockID] = s
}

// get looks up a socket by id. Returns nil, false if it is not (or is no
// longer) registered — the canonical "dead weak reference" case the send
// queue and receive queue must tolerate.
func (r *registry) get(sockID uint32) (*udtSocket, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sockets[sockID]
	return s, ok
}

// remove drops a socket from the registry, e.g. on transition to CLOSED.
func (r *registry) remove(sockID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sockets, sockID)
}

// count reports the number of currently registered sockets.
func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sockets)
}

// all returns a snapshot slice of every registered socket, safe to range
// over without holding the registry lock.
func (r *registry) all() []*udtSocket {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*udtSocket, 0, len(r.sockets))
	for _, s := range r.sockets {
		out = append(out, s)
	}
	return out
}
