// Package face implements the fixed-capacity face table (spec §4.5): the
// set of links the forwarder can receive interests from or send content
// on. Liveness is tracked in a bitset so "which faces are up" scans are
// O(words) rather than O(faces), and per-face counters are exposed as
// Prometheus gauge funcs over plain atomic counters so the hot path never
// touches the Prometheus registry.
package face

import (
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cicnx/icnfwd/pkg/icnerr"
)

// ID identifies a face. 0 is reserved and never assigned.
type ID uint32

// Stats holds the plain atomic counters backing a face's Prometheus
// gauge funcs.
type Stats struct {
	RxPackets uint64
	TxPackets uint64
	RxBytes   uint64
	TxBytes   uint64
}

// Face is one registered link.
type Face struct {
	ID   ID
	Addr string

	// HelloDown is an input-only liveness flag: an external collaborator
	// (not implemented here — the hello wire sub-protocol is out of
	// scope) sets this when it observes the peer failing liveness checks.
	HelloDown atomic.Bool

	stats Stats
}

// StatsSnapshot returns a snapshot of the face's counters.
func (f *Face) StatsSnapshot() Stats {
	return Stats{
		RxPackets: atomic.LoadUint64(&f.stats.RxPackets),
		TxPackets: atomic.LoadUint64(&f.stats.TxPackets),
		RxBytes:   atomic.LoadUint64(&f.stats.RxBytes),
		TxBytes:   atomic.LoadUint64(&f.stats.TxBytes),
	}
}

// Table is the fixed-capacity face registry.
type Table struct {
	mu       sync.RWMutex
	capacity int
	faces    map[ID]*Face
	byAddr   map[string]ID
	up       *bitset.BitSet
	nextID   ID

	reg prometheus.Registerer
}

// NewTable constructs a face table with room for capacity faces. Per-face
// counters are registered against reg (may be nil to skip registration,
// e.g. in tests).
func NewTable(capacity int, reg prometheus.Registerer) *Table {
	return &Table{
		capacity: capacity,
		faces:    make(map[ID]*Face, capacity),
		byAddr:   make(map[string]ID, capacity),
		up:       bitset.New(uint(capacity) + 1),
		reg:      reg,
	}
}

// Add registers a new face for addr and returns it. The face starts up.
func (t *Table) Add(addr string) (*Face, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byAddr[addr]; exists {
		return nil, icnerr.New(icnerr.Exists, "face already registered for address")
	}
	if len(t.faces) >= t.capacity {
		return nil, icnerr.New(icnerr.CapacityExceeded, "face table full")
	}
	t.nextID++
	id := t.nextID
	f := &Face{ID: id, Addr: addr}
	t.faces[id] = f
	t.byAddr[addr] = id
	t.up.Set(uint(id))
	t.registerMetrics(f)
	return f, nil
}

func (t *Table) registerMetrics(f *Face) {
	if t.reg == nil {
		return
	}
	labels := prometheus.Labels{"face_id": idLabel(f.ID)}
	reg := func(name, help string, read func() float64) {
		g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "icnfwd_face_" + name,
			Help:        help,
			ConstLabels: labels,
		}, read)
		t.reg.Register(g) //nolint:errcheck // duplicate registration is not expected here
	}
	reg("rx_packets", "packets received on this face", func() float64 { return float64(atomic.LoadUint64(&f.stats.RxPackets)) })
	reg("tx_packets", "packets sent on this face", func() float64 { return float64(atomic.LoadUint64(&f.stats.TxPackets)) })
	reg("rx_bytes", "bytes received on this face", func() float64 { return float64(atomic.LoadUint64(&f.stats.RxBytes)) })
	reg("tx_bytes", "bytes sent on this face", func() float64 { return float64(atomic.LoadUint64(&f.stats.TxBytes)) })
}

func idLabel(id ID) string {
	const digits = "0123456789"
	if id == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for id > 0 {
		i--
		buf[i] = digits[id%10]
		id /= 10
	}
	return string(buf[i:])
}

// Remove unregisters a face.
func (t *Table) Remove(id ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.faces[id]
	if !ok {
		return icnerr.New(icnerr.NotFound, "no such face")
	}
	delete(t.faces, id)
	delete(t.byAddr, f.Addr)
	t.up.Clear(uint(id))
	return nil
}

// FindByID looks up a face by ID.
func (t *Table) FindByID(id ID) (*Face, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.faces[id]
	return f, ok
}

// FindByAddr looks up a face by its registered address.
func (t *Table) FindByAddr(addr string) (*Face, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byAddr[addr]
	if !ok {
		return nil, false
	}
	return t.faces[id], true
}

// SetUp marks a face up or down in the fast-scan bitset.
func (t *Table) SetUp(id ID, up bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if up {
		t.up.Set(uint(id))
	} else {
		t.up.Clear(uint(id))
	}
}

// IsUp reports whether a face is currently marked up.
func (t *Table) IsUp(id ID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.up.Test(uint(id))
}

// UpFaces returns the IDs of every face currently marked up, in ID order.
func (t *Table) UpFaces() []ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]ID, 0, t.up.Count())
	for i, ok := t.up.NextSet(1); ok; i, ok = t.up.NextSet(i + 1) {
		out = append(out, ID(i))
	}
	return out
}

// RecordRx accounts for a packet received on a face.
func (t *Table) RecordRx(id ID, bytes int) {
	t.mu.RLock()
	f, ok := t.faces[id]
	t.mu.RUnlock()
	if !ok {
		return
	}
	atomic.AddUint64(&f.stats.RxPackets, 1)
	atomic.AddUint64(&f.stats.RxBytes, uint64(bytes))
}

// RecordTx accounts for a packet sent on a face.
func (t *Table) RecordTx(id ID, bytes int) {
	t.mu.RLock()
	f, ok := t.faces[id]
	t.mu.RUnlock()
	if !ok {
		return
	}
	atomic.AddUint64(&f.stats.TxPackets, 1)
	atomic.AddUint64(&f.stats.TxBytes, uint64(bytes))
}

// StatsAggregate sums counters across every registered face.
func (t *Table) StatsAggregate() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out Stats
	for _, f := range t.faces {
		s := f.StatsSnapshot()
		out.RxPackets += s.RxPackets
		out.TxPackets += s.TxPackets
		out.RxBytes += s.RxBytes
		out.TxBytes += s.TxBytes
	}
	return out
}
