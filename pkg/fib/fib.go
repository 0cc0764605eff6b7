// Package fib implements the longest-prefix-match forwarding table
// (spec §4.3) on top of pkg/hashtable: each name prefix is a key, and
// lookup probes the table from the full name down to the empty prefix
// until it finds a non-virtual entry with at least one live next hop.
//
// Ancestor prefixes that were never explicitly routed but are needed to
// track a descendant's existence are stored as "virtual" entries with no
// next hops and a refcount of dependent descendants; once that refcount
// reaches zero the virtual entry is deleted and the cascade continues
// upward, mirroring cicn_fib_entry_t's fe_refcount/virtual-flag bookkeeping.
package fib

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/cicnx/icnfwd/pkg/hashtable"
	"github.com/cicnx/icnfwd/pkg/icnerr"
	"github.com/cicnx/icnfwd/pkg/siphash"
	"github.com/cicnx/icnfwd/pkg/wire"
)

const (
	flagVirtual = iota
	flagDeleted
)

// NextHop is one weighted egress face for a route.
type NextHop struct {
	FaceID uint32
	Weight int // >=1; relative share of traffic under smooth weighted round-robin
}

type nhState struct {
	NextHop
	current int
}

type entry struct {
	flags    *bitset.BitSet
	refcount int
	nextHops []nhState
	parent   int // node index of the immediate ancestor prefix's entry, 0 = root
}

func newEntry(virtual bool, parent int) entry {
	f := bitset.New(2)
	if virtual {
		f.Set(flagVirtual)
	}
	return entry{flags: f, parent: parent}
}

func (e *entry) isVirtual() bool { return e.flags.Test(flagVirtual) }
func (e *entry) isDeleted() bool { return e.flags.Test(flagDeleted) }

// FIB is the longest-prefix-match forwarding table.
type FIB struct {
	key         [16]byte
	table       *hashtable.Table[entry]
	maxComps    int
	rootNextHop []nhState // the zero-length-prefix default route, if any
}

// New constructs a FIB. capacity bounds the number of live prefix entries
// (real + virtual ancestors); maxComponents bounds how deep a route's
// name prefix may be, matching the original's fib_max_comps guard.
func New(key [16]byte, capacity, maxComponents int) *FIB {
	return &FIB{
		key:      key,
		table:    hashtable.New[entry](capacity/4+1, capacity, true),
		maxComps: maxComponents,
	}
}

func prefixKey(components []wire.Component, upto int) []byte {
	var n int
	for i := 0; i < upto; i++ {
		n += components[i].Length
	}
	buf := make([]byte, 0, n)
	for i := 0; i < upto; i++ {
		c := components[i]
		buf = append(buf, byte(c.Type>>8), byte(c.Type), byte(len(c.Value)>>8), byte(len(c.Value)))
		buf = append(buf, c.Value...)
	}
	return buf
}

func (f *FIB) prefixHashes(components []wire.Component) []uint64 {
	spans := make([]siphash.ComponentSpan, len(components))
	var raw []byte
	for i, c := range components {
		tlv := wire.PutTLV(nil, c.Type, c.Value)
		raw = append(raw, tlv...)
		spans[i] = siphash.ComponentSpan{Length: len(tlv)}
	}
	return siphash.HashPrefixes(f.key, raw, spans).Hashes
}

// Insert adds nh as a next hop for the route named by components (which
// must not include a trailing Chunk component — routes are over name
// prefixes, not individual segments). Ancestor prefixes that do not yet
// have an entry are created as virtual placeholders.
func (f *FIB) Insert(components []wire.Component, nh NextHop) error {
	if len(components) == 0 {
		return f.insertRoot(nh)
	}
	if len(components) > f.maxComps {
		return icnerr.New(icnerr.InvalidArgument, "route prefix exceeds max components")
	}
	hashes := f.prefixHashes(components)

	parent := 0
	for depth := 1; depth < len(components); depth++ {
		key := prefixKey(components, depth)
		idx, ok := f.table.Lookup(hashes[depth-1], key)
		if !ok {
			e := newEntry(true, parent)
			var err error
			idx, err = f.table.Insert(hashes[depth-1], key, e)
			if err != nil {
				return err
			}
			f.bumpAncestorRefcounts(parent, +1)
		}
		parent = idx
	}

	fullKey := prefixKey(components, len(components))
	fullHash := hashes[len(components)-1]
	idx, ok := f.table.Lookup(fullHash, fullKey)
	if !ok {
		e := newEntry(false, parent)
		var err error
		idx, err = f.table.Insert(fullHash, fullKey, e)
		if err != nil {
			return err
		}
		f.bumpAncestorRefcounts(parent, +1)
	}
	v := f.table.Value(idx)
	v.flags.Clear(flagVirtual)
	v.flags.Clear(flagDeleted)
	v.nextHops = mergeNextHop(v.nextHops, nh)
	return nil
}

func (f *FIB) insertRoot(nh NextHop) error {
	f.rootNextHop = mergeNextHop(f.rootNextHop, nh)
	return nil
}

func mergeNextHop(hops []nhState, nh NextHop) []nhState {
	for i := range hops {
		if hops[i].FaceID == nh.FaceID {
			hops[i].Weight = nh.Weight
			return hops
		}
	}
	return append(hops, nhState{NextHop: nh})
}

func (f *FIB) bumpAncestorRefcounts(nodeIdx int, delta int) {
	for nodeIdx != 0 {
		v := f.table.Value(nodeIdx)
		v.refcount += delta
		if v.refcount <= 0 && v.isVirtual() {
			parent := v.parent
			f.table.RemoveByIndex(nodeIdx)
			nodeIdx = parent
			continue
		}
		return
	}
}

// DeleteNextHop removes nh's face from the route named by components. If
// no next hops remain, an entry that descendants still depend on is
// demoted to virtual; otherwise the entry is deleted and its ancestors'
// refcounts are decremented.
func (f *FIB) DeleteNextHop(components []wire.Component, faceID uint32) error {
	if len(components) == 0 {
		f.rootNextHop = removeFace(f.rootNextHop, faceID)
		return nil
	}
	hashes := f.prefixHashes(components)
	fullKey := prefixKey(components, len(components))
	idx, ok := f.table.Lookup(hashes[len(components)-1], fullKey)
	if !ok {
		return icnerr.New(icnerr.NotFound, "route not found")
	}
	v := f.table.Value(idx)
	v.nextHops = removeFace(v.nextHops, faceID)
	if len(v.nextHops) == 0 {
		if v.refcount > 0 {
			// Descendants still depend on this prefix existing (as their
			// ancestor), so it can't be freed outright: demote it to a
			// virtual placeholder, same as an entry that was never
			// explicitly routed.
			v.flags.Set(flagVirtual)
		} else {
			parent := v.parent
			f.table.RemoveByIndex(idx)
			f.bumpAncestorRefcounts(parent, -1)
		}
	}
	return nil
}

func removeFace(hops []nhState, faceID uint32) []nhState {
	out := hops[:0]
	for _, h := range hops {
		if h.FaceID != faceID {
			out = append(out, h)
		}
	}
	return out
}

// Lookup performs longest-prefix-match over components, skipping virtual
// (routeless) ancestor entries, and returns a next hop chosen by smooth
// weighted round-robin among the matching entry's live next hops.
func (f *FIB) Lookup(components []wire.Component) (NextHop, bool) {
	if len(components) > 0 {
		hashes := f.prefixHashes(components)
		for depth := len(components); depth >= 1; depth-- {
			key := prefixKey(components, depth)
			idx, ok := f.table.Lookup(hashes[depth-1], key)
			if !ok {
				continue
			}
			v := f.table.Value(idx)
			if v.isVirtual() || v.isDeleted() || len(v.nextHops) == 0 {
				continue
			}
			return selectWeighted(v.nextHops), true
		}
	}
	if len(f.rootNextHop) > 0 {
		return selectWeighted(f.rootNextHop), true
	}
	return NextHop{}, false
}

// selectWeighted implements smooth weighted round-robin: each call
// advances every next hop's running counter by its weight, then returns
// (and discounts by the total weight) whichever counter is largest, so a
// next hop with weight w is picked roughly w times out of every
// sum(weights) calls, evenly spread rather than bursted.
func selectWeighted(hops []nhState) NextHop {
	if len(hops) == 1 {
		return hops[0].NextHop
	}
	total := 0
	best := -1
	for i := range hops {
		hops[i].current += hops[i].Weight
		total += hops[i].Weight
		if best == -1 || hops[i].current > hops[best].current {
			best = i
		}
	}
	hops[best].current -= total
	return hops[best].NextHop
}
