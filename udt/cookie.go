package udt

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"
	"net"
	"time"
)

// cookieBucket is the granularity at which a listener's SYN cookie secret
// rotates. A cookie is valid across two adjacent buckets so a client whose
// handshake straddles a rotation isn't spuriously rejected.
const cookieBucket = 64 * time.Second

// cookieJar derives SYN cookies for a listener from the peer address and a
// periodically-rotated secret, so a listener never needs to hold per-attempt
// state for an unconfirmed handshake.
type cookieJar struct {
	secret uint64
}

func newCookieJar() *cookieJar {
	return &cookieJar{secret: rand.Uint64()}
}

func (j *cookieJar) bucket(t time.Time, offset int) uint64 {
	return uint64(t.Add(time.Duration(offset)*cookieBucket).UnixNano() / int64(cookieBucket))
}

// cookieFor computes the SYN cookie a listener should issue to addr at time t.
func (j *cookieJar) cookieFor(addr net.Addr, t time.Time) uint32 {
	return j.cookieAtBucket(addr, j.bucket(t, 0))
}

func (j *cookieJar) cookieAtBucket(addr net.Addr, bucket uint64) uint32 {
	h := fnv.New64a()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], j.secret)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], bucket)
	h.Write(buf[:])
	h.Write([]byte(addr.String()))
	sum := h.Sum64()
	return uint32(sum) ^ uint32(sum>>32)
}

// valid reports whether cookie is one this jar would have issued to addr in
// the current or immediately preceding bucket.
func (j *cookieJar) valid(addr net.Addr, cookie uint32, t time.Time) bool {
	if cookie == j.cookieAtBucket(addr, j.bucket(t, 0)) {
		return true
	}
	return cookie == j.cookieAtBucket(addr, j.bucket(t, -1))
}
