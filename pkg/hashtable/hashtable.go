// Package hashtable implements the open-addressed hashtable substrate
// shared by the FIB and the PIT/CS (spec §4.2). Rows hold a fixed number
// of entries; a row that fills chains to an overflow row rather than
// growing, and every stored value lives in a fixed pool addressed by a
// stable integer index (0 is a reserved sentinel meaning "no node"), so
// callers — the FIB's virtual-ancestor links, the PCS's intrusive LRU —
// can hold that index as a foreign key instead of a pointer.
//
// The node pool size is fixed at construction time, matching the
// original's preallocated-pool design: insertion past capacity fails with
// icnerr.OutOfMemory rather than growing. Overflow rows are allocated on
// demand and reused once freed.
package hashtable

import (
	"bytes"

	"github.com/cicnx/icnfwd/pkg/icnerr"
)

// MaxKeyBytes mirrors CICN_HASH_KEY_BYTES: the longest key this table
// accepts, matching the longest name prefix the dataplane ever hashes.
const MaxKeyBytes = 128

// entriesPerRow is the row width. In UseSeven mode one slot is reserved
// for overflow bookkeeping (see Table.useSeven), leaving 7 usable slots;
// unlike the C original this Go port always carries an explicit overflow
// field per row rather than repurposing the 8th entry's storage, since Go
// has no flexible array members to exploit for that trick. UseSeven is
// kept as a capacity policy (7 vs 8 usable slots per row) so FIB/PCS sizing
// math carries over unchanged from the original tuning.
const entriesPerRow = 8

type entry struct {
	inUse bool
	hash  uint64
	node  int
}

type row struct {
	entries  [entriesPerRow]entry
	overflow int // index into rows, 0 = none
}

type node[V any] struct {
	inUse  bool
	hash   uint64
	key    []byte
	value  V
	expiry uint16
	rowIdx int
	slot   int
}

// Table is a generic open-addressed hashtable keyed by arbitrary byte
// strings, with a precomputed 64-bit hash supplied by the caller (spec
// §4.1's siphash prefix hasher feeds this table directly).
type Table[V any] struct {
	buckets  []int // bucket id -> row index, 0 = empty bucket
	mask     uint64
	rows     []row // index 0 unused sentinel
	freeRows []int

	nodes     []node[V] // index 0 unused sentinel
	freeNodes []int

	useSeven bool
	count    int
}

// New constructs a Table with rowCount buckets (rounded up to a power of
// two) and room for nodeCapacity live entries. useSeven selects the
// 7-usable-slots-per-row capacity policy.
func New[V any](rowCount, nodeCapacity int, useSeven bool) *Table[V] {
	n := 1
	for n < rowCount {
		n <<= 1
	}
	return &Table[V]{
		buckets:  make([]int, n),
		mask:     uint64(n - 1),
		rows:     make([]row, 1, nodeCapacity/4+2),
		nodes:    make([]node[V], 1, nodeCapacity+1),
		useSeven: useSeven,
	}
}

func (t *Table[V]) capacityPerRow() int {
	if t.useSeven {
		return entriesPerRow - 1
	}
	return entriesPerRow
}

func (t *Table[V]) allocRow() int {
	if len(t.freeRows) > 0 {
		idx := t.freeRows[len(t.freeRows)-1]
		t.freeRows = t.freeRows[:len(t.freeRows)-1]
		t.rows[idx] = row{}
		return idx
	}
	t.rows = append(t.rows, row{})
	return len(t.rows) - 1
}

func (t *Table[V]) allocNode() (int, error) {
	if len(t.freeNodes) > 0 {
		idx := t.freeNodes[len(t.freeNodes)-1]
		t.freeNodes = t.freeNodes[:len(t.freeNodes)-1]
		return idx, nil
	}
	if cap(t.nodes) > 0 && len(t.nodes) >= cap(t.nodes) {
		return 0, icnerr.New(icnerr.OutOfMemory, "hashtable node pool exhausted")
	}
	t.nodes = append(t.nodes, node[V]{})
	return len(t.nodes) - 1, nil
}

// Count returns the number of live entries.
func (t *Table[V]) Count() int { return t.count }

// Insert adds (hash, key) -> value and returns its stable node index. If
// an entry with the same hash and key bytes already exists, Insert returns
// icnerr.Exists.
func (t *Table[V]) Insert(hash uint64, key []byte, value V) (int, error) {
	if len(key) > MaxKeyBytes {
		return 0, icnerr.New(icnerr.InvalidArgument, "key exceeds MaxKeyBytes")
	}
	if _, ok := t.Lookup(hash, key); ok {
		return 0, icnerr.New(icnerr.Exists, "key already present")
	}

	b := hash & t.mask
	rIdx := t.buckets[b]
	if rIdx == 0 {
		rIdx = t.allocRow()
		t.buckets[b] = rIdx
	}
	rowCap := t.capacityPerRow()
	for {
		r := &t.rows[rIdx]
		for slot := 0; slot < rowCap; slot++ {
			if !r.entries[slot].inUse {
				nodeIdx, err := t.allocNode()
				if err != nil {
					return 0, err
				}
				keyCopy := append([]byte(nil), key...)
				t.nodes[nodeIdx] = node[V]{
					inUse:  true,
					hash:   hash,
					key:    keyCopy,
					value:  value,
					rowIdx: rIdx,
					slot:   slot,
				}
				r.entries[slot] = entry{inUse: true, hash: hash, node: nodeIdx}
				t.count++
				return nodeIdx, nil
			}
		}
		if r.overflow == 0 {
			newRow := t.allocRow()
			t.rows[rIdx].overflow = newRow
			rIdx = newRow
			continue
		}
		rIdx = r.overflow
	}
}

// Lookup finds the node index for (hash, key).
func (t *Table[V]) Lookup(hash uint64, key []byte) (int, bool) {
	b := hash & t.mask
	rIdx := t.buckets[b]
	rowCap := t.capacityPerRow()
	for rIdx != 0 {
		r := &t.rows[rIdx]
		for slot := 0; slot < rowCap; slot++ {
			e := r.entries[slot]
			if e.inUse && e.hash == hash && bytes.Equal(t.nodes[e.node].key, key) {
				return e.node, true
			}
		}
		rIdx = r.overflow
	}
	return 0, false
}

// Value returns a pointer to the stored value for a node index, allowing
// in-place mutation of caller-owned payload fields (e.g. PCS's LRU links).
func (t *Table[V]) Value(nodeIdx int) *V {
	return &t.nodes[nodeIdx].value
}

// Key returns the key bytes stored at a node index.
func (t *Table[V]) Key(nodeIdx int) []byte {
	return t.nodes[nodeIdx].key
}

// Expiry returns the expiry stamp stored at a node index.
func (t *Table[V]) Expiry(nodeIdx int) uint16 {
	return t.nodes[nodeIdx].expiry
}

// SetExpiry updates the expiry stamp stored at a node index.
func (t *Table[V]) SetExpiry(nodeIdx int, expiry uint16) {
	t.nodes[nodeIdx].expiry = expiry
}

// Remove deletes the entry for (hash, key), if present.
func (t *Table[V]) Remove(hash uint64, key []byte) bool {
	nodeIdx, ok := t.Lookup(hash, key)
	if !ok {
		return false
	}
	t.RemoveByIndex(nodeIdx)
	return true
}

// RemoveByIndex deletes the entry at a known node index in O(1), for
// callers (FIB, PCS/LRU) that already hold the index as a foreign key.
func (t *Table[V]) RemoveByIndex(nodeIdx int) {
	n := t.nodes[nodeIdx]
	if !n.inUse {
		return
	}
	t.rows[n.rowIdx].entries[n.slot] = entry{}
	var zero V
	t.nodes[nodeIdx] = node[V]{value: zero}
	t.freeNodes = append(t.freeNodes, nodeIdx)
	t.count--

	t.reclaimRowIfEmpty(n.hash, n.rowIdx)
}

// rowEmpty reports whether a row has no live entries left.
func (t *Table[V]) rowEmpty(rIdx int) bool {
	r := &t.rows[rIdx]
	for i := range r.entries {
		if r.entries[i].inUse {
			return false
		}
	}
	return true
}

// reclaimRowIfEmpty unlinks rIdx from its bucket's overflow chain and
// returns it to freeRows once it has become empty, per spec §4.2: walk
// from the bucket's head row to find rIdx's predecessor, then relink the
// predecessor's overflow pointer to rIdx's successor. The head row itself
// is addressed directly from t.buckets rather than from a predecessor's
// overflow field, so it is never unlinked or freed here, even when empty.
func (t *Table[V]) reclaimRowIfEmpty(hash uint64, rIdx int) {
	head := t.buckets[hash&t.mask]
	if rIdx == head || !t.rowEmpty(rIdx) {
		return
	}
	prev := head
	for prev != 0 {
		r := &t.rows[prev]
		if r.overflow == rIdx {
			r.overflow = t.rows[rIdx].overflow
			t.rows[rIdx] = row{}
			t.freeRows = append(t.freeRows, rIdx)
			return
		}
		prev = r.overflow
	}
}

// Cursor is an opaque iteration position. The zero Cursor starts a walk
// from the beginning, mirroring CICN_HASH_WALK_CTX_INITIAL.
type Cursor struct {
	bucket int
	row    int
	slot   int
}

// Next returns the next live node index at or after cur, and the cursor
// to resume from. ok is false once iteration is exhausted.
func (t *Table[V]) Next(cur Cursor) (int, Cursor, bool) {
	rowCap := t.capacityPerRow()
	bucket, rIdx, slot := cur.bucket, cur.row, cur.slot

	for bucket < len(t.buckets) {
		if rIdx == 0 {
			rIdx = t.buckets[bucket]
			slot = 0
		}
		for rIdx != 0 {
			r := &t.rows[rIdx]
			for ; slot < rowCap; slot++ {
				e := r.entries[slot]
				if e.inUse {
					next := Cursor{bucket: bucket, row: rIdx, slot: slot + 1}
					return e.node, next, true
				}
			}
			rIdx = r.overflow
			slot = 0
		}
		bucket++
		rIdx = 0
	}
	return 0, Cursor{bucket: bucket}, false
}
