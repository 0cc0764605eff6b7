// Package pcs implements the PIT/CS union table (spec §4.4): a pending
// interest and the content that eventually satisfies it share one
// hashtable entry keyed by the exact name (including any Chunk
// component), transitioning in place from a PIT entry (interest pending,
// collecting the faces that asked for it) to a CS entry (content cached)
// without a second lookup or a second allocation. Content-store entries
// additionally live on an intrusive doubly-linked LRU, threaded through
// the hashtable's node indices, so eviction needs no separate data
// structure walk.
package pcs

import (
	"github.com/cicnx/icnfwd/pkg/clock"
	"github.com/cicnx/icnfwd/pkg/hashtable"
	"github.com/cicnx/icnfwd/pkg/icnerr"
)

// Kind distinguishes the two states a union entry can be in; Absent is
// never stored, only returned by Find for a miss.
type Kind int

const (
	Absent Kind = iota
	KindPIT
	KindCS
)

const maxRxFaces = 16

type value struct {
	kind Kind

	createTime uint16
	expireTime uint16
	res        clock.Resolution

	// PIT fields.
	rxFaces [maxRxFaces]uint32
	rxCount int
	fibFace uint32 // the next hop the interest was actually sent to, 0 = not yet forwarded

	// CS fields.
	csFace  uint32
	payload []byte

	// Intrusive LRU linkage, CS entries only; 0 = no link.
	lruPrev, lruNext int
}

// PCS is the PIT/CS union table plus its content-store LRU.
type PCS struct {
	table *hashtable.Table[value]

	lruHead, lruTail int
	lruMax           int

	pitCount int
	csCount  int
}

// New constructs a PCS with room for capacity live entries (PIT + CS
// combined) and a content-store LRU capped at lruMax entries.
func New(capacity, lruMax int) *PCS {
	return &PCS{
		table:  hashtable.New[value](capacity/4+1, capacity, true),
		lruMax: lruMax,
	}
}

// PITCount and CSCount report the live entry counts in each state.
func (p *PCS) PITCount() int { return p.pitCount }
func (p *PCS) CSCount() int  { return p.csCount }

// Find reports the state of the entry named by (hash, key), if any.
func (p *PCS) Find(hash uint64, key []byte) (idx int, kind Kind, ok bool) {
	idx, ok = p.table.Lookup(hash, key)
	if !ok {
		return 0, Absent, false
	}
	return idx, p.table.Value(idx).kind, true
}

// InsertInterest records an arriving interest. If no entry exists, a new
// PIT entry is created with rxFace as its sole pending face. If a PIT
// entry already exists, rxFace is aggregated onto it (spec's interest
// aggregation) and its expiry is extended to whichever is later. If a CS
// entry already exists, InsertInterest returns it unmodified with
// aggregated=false so the caller can serve it as a cache hit instead.
func (p *PCS) InsertInterest(hash uint64, key []byte, rxFace uint32, now, expiry uint16, res clock.Resolution) (idx int, kind Kind, aggregated bool, err error) {
	idx, ok := p.table.Lookup(hash, key)
	if ok {
		v := p.table.Value(idx)
		if v.kind == KindCS {
			return idx, KindCS, false, nil
		}
		if v.rxCount < maxRxFaces {
			if !containsFace(v.rxFaces[:v.rxCount], rxFace) {
				v.rxFaces[v.rxCount] = rxFace
				v.rxCount++
			}
		}
		if clock.Before(v.expireTime, expiry) {
			v.expireTime = expiry
		}
		p.table.SetExpiry(idx, v.expireTime)
		return idx, KindPIT, true, nil
	}

	v := value{kind: KindPIT, createTime: now, expireTime: expiry, res: res}
	v.rxFaces[0] = rxFace
	v.rxCount = 1
	idx, err = p.table.Insert(hash, key, v)
	if err != nil {
		return 0, Absent, false, err
	}
	p.table.SetExpiry(idx, expiry)
	p.pitCount++
	return idx, KindPIT, false, nil
}

func containsFace(faces []uint32, f uint32) bool {
	for _, x := range faces {
		if x == f {
			return true
		}
	}
	return false
}

// SetTxFace records which face a PIT entry's interest was forwarded to.
func (p *PCS) SetTxFace(idx int, faceID uint32) {
	p.table.Value(idx).fibFace = faceID
}

// RxFaces returns the faces currently pending on a PIT entry.
func (p *PCS) RxFaces(idx int) []uint32 {
	v := p.table.Value(idx)
	return append([]uint32(nil), v.rxFaces[:v.rxCount]...)
}

// PitToCS converts a PIT entry into a CS entry in place, per
// cicn_pit_to_cs: the same node index and hashtable slot are reused, the
// PIT-only fields are cleared, and the entry is pushed onto the head of
// the content-store LRU.
func (p *PCS) PitToCS(idx int, payload []byte, csFace uint32, now, expiry uint16) {
	v := p.table.Value(idx)
	v.kind = KindCS
	v.rxCount = 0
	v.fibFace = 0
	v.csFace = csFace
	v.payload = payload
	v.createTime = now
	v.expireTime = expiry
	p.table.SetExpiry(idx, expiry)

	p.pitCount--
	p.csCount++
	p.lruInsertHead(idx)
	p.trimLRU()
}

// TouchCS moves a content-store hit to the head of the LRU, marking it
// most recently used.
func (p *PCS) TouchCS(idx int) {
	p.lruRemove(idx)
	p.lruInsertHead(idx)
}

// Payload returns a CS entry's cached bytes.
func (p *PCS) Payload(idx int) []byte {
	return p.table.Value(idx).payload
}

func (p *PCS) lruInsertHead(idx int) {
	v := p.table.Value(idx)
	v.lruPrev = 0
	v.lruNext = p.lruHead
	if p.lruHead != 0 {
		p.table.Value(p.lruHead).lruPrev = idx
	}
	p.lruHead = idx
	if p.lruTail == 0 {
		p.lruTail = idx
	}
}

func (p *PCS) lruRemove(idx int) {
	v := p.table.Value(idx)
	if v.lruPrev != 0 {
		p.table.Value(v.lruPrev).lruNext = v.lruNext
	} else if p.lruHead == idx {
		p.lruHead = v.lruNext
	}
	if v.lruNext != 0 {
		p.table.Value(v.lruNext).lruPrev = v.lruPrev
	} else if p.lruTail == idx {
		p.lruTail = v.lruPrev
	}
	v.lruPrev, v.lruNext = 0, 0
}

// trimLRU evicts from the tail until the content store is back within
// lruMax, matching cicn_pcs's bulk-trim-on-insert policy.
func (p *PCS) trimLRU() {
	for p.lruMax > 0 && p.csCount > p.lruMax {
		tail := p.lruTail
		if tail == 0 {
			return
		}
		p.deleteCS(tail)
	}
}

func (p *PCS) deleteCS(idx int) {
	p.lruRemove(idx)
	p.table.RemoveByIndex(idx)
	p.csCount--
}

// Delete removes any entry (PIT or CS) by node index, decrementing the
// appropriate counter and unlinking it from the LRU if necessary.
func (p *PCS) Delete(idx int) error {
	v := p.table.Value(idx)
	switch v.kind {
	case KindPIT:
		p.table.RemoveByIndex(idx)
		p.pitCount--
	case KindCS:
		p.deleteCS(idx)
	default:
		return icnerr.New(icnerr.NotFound, "no such pcs entry")
	}
	return nil
}

// SweepExpired walks every live entry and deletes those whose expiry (at
// their own resolution) has passed under the wrap-safe comparison,
// invoking onExpired for each one before it is removed so the forwarder
// can emit timeouts/NAKs. This mirrors the bulk sweep the original runs
// off its coarse clock ticks rather than a timer per entry.
func (p *PCS) SweepExpired(fastNow, slowNow uint16, onExpired func(idx int, kind Kind)) {
	var expired []int
	cur := hashtable.Cursor{}
	for {
		idx, next, ok := p.table.Next(cur)
		if !ok {
			break
		}
		cur = next
		v := p.table.Value(idx)
		now := fastNow
		if v.res == clock.Slow {
			now = slowNow
		}
		if clock.Expired(now, v.expireTime) {
			expired = append(expired, idx)
		}
	}
	for _, idx := range expired {
		kind := p.table.Value(idx).kind
		if onExpired != nil {
			onExpired(idx, kind)
		}
		_ = p.Delete(idx)
	}
}
