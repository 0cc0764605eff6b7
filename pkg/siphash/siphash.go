// Package siphash implements an incremental SipHash-2-4 engine and the
// name-prefix hasher built on top of it (spec §4.1). The hasher feeds a
// name's component bytes in order and can checkpoint a hash of everything
// seen so far without disturbing the running state, so it produces one
// hash per prefix in a single left-to-right pass.
package siphash

import "encoding/binary"

const (
	k0init = 0x736f6d6570736575
	k1init = 0x646f72616e646f6d
	k2init = 0x6c7967656e657261
	k3init = 0x7465646279746573
)

// Vector is the four 64-bit SipHash compression words.
type Vector [4]uint64

func rotl(x uint64, b uint) uint64 { return x<<b | x>>(64-b) }

func round(v *Vector) {
	v[0] += v[1]
	v[2] += v[3]
	v[1] = rotl(v[1], 13)
	v[3] = rotl(v[3], 16)
	v[1] ^= v[0]
	v[3] ^= v[2]
	v[0] = rotl(v[0], 32)
	v[2] += v[1]
	v[0] += v[3]
	v[1] = rotl(v[1], 17)
	v[3] = rotl(v[3], 21)
	v[1] ^= v[2]
	v[3] ^= v[0]
	v[2] = rotl(v[2], 32)
}

func compress(v *Vector, m uint64) {
	v[3] ^= m
	round(v)
	round(v)
	v[0] ^= m
}

func initVector(k0, k1 uint64) Vector {
	return Vector{k0init ^ k0, k1init ^ k1, k2init ^ k0, k3init ^ k1}
}

// Hasher is an incremental SipHash-2-4 engine. Feed bytes with Write; call
// Checkpoint to obtain the hash of everything written so far, without
// mutating the running compression state, so Write can continue from where
// it left off.
type Hasher struct {
	v      Vector
	buf    [8]byte
	bufLen int
	total  int
}

// New constructs a Hasher keyed by a 16-byte SipHash key.
func New(key [16]byte) *Hasher {
	k0 := binary.LittleEndian.Uint64(key[0:8])
	k1 := binary.LittleEndian.Uint64(key[8:16])
	return &Hasher{v: initVector(k0, k1)}
}

// Reset returns the Hasher to its just-constructed state with the same key.
func (h *Hasher) Reset(key [16]byte) {
	k0 := binary.LittleEndian.Uint64(key[0:8])
	k1 := binary.LittleEndian.Uint64(key[8:16])
	h.v = initVector(k0, k1)
	h.bufLen = 0
	h.total = 0
}

// Write feeds p into the running hash, compressing every complete 8-byte
// block and buffering any trailing partial block for the next call.
func (h *Hasher) Write(p []byte) {
	h.total += len(p)
	if h.bufLen > 0 {
		need := 8 - h.bufLen
		if need > len(p) {
			copy(h.buf[h.bufLen:], p)
			h.bufLen += len(p)
			return
		}
		copy(h.buf[h.bufLen:], p[:need])
		compress(&h.v, binary.LittleEndian.Uint64(h.buf[:]))
		p = p[need:]
		h.bufLen = 0
	}
	for len(p) >= 8 {
		compress(&h.v, binary.LittleEndian.Uint64(p))
		p = p[8:]
	}
	h.bufLen = copy(h.buf[:], p)
}

// Checkpoint finalizes a scratch copy of the current running state over a
// trailing partial block (per SipHash's final-block convention: the total
// byte count of the message hashed so far, not the offset within the
// current block, goes in the top byte) and the four SipHash-2-4 finalization
// rounds, returning a hash of every byte written since New/Reset. The
// running state itself is untouched, so Write can resume afterward.
func (h *Hasher) Checkpoint() uint64 {
	scratch := h.v
	var b uint64 = uint64(byte(h.total)) << 56
	for i := 0; i < h.bufLen; i++ {
		b |= uint64(h.buf[i]) << (8 * uint(i))
	}
	compress(&scratch, b)
	scratch[2] ^= 0xff
	round(&scratch)
	round(&scratch)
	round(&scratch)
	round(&scratch)
	return scratch[0] ^ scratch[1] ^ scratch[2] ^ scratch[3]
}

// Sum computes the one-shot SipHash-2-4 of data under key.
func Sum(key [16]byte, data []byte) uint64 {
	h := New(key)
	h.Write(data)
	return h.Checkpoint()
}

// PrefixHashes is the result of hashing every prefix of a name: Hashes[i]
// is the hash of the name truncated after its i-th component (inclusive),
// and Whole is the hash of the full byte range fed in (equal to
// Hashes[len(Hashes)-1] when every component was counted).
type PrefixHashes struct {
	Hashes []uint64
	Whole  uint64
}

// ComponentSpan describes one name component's byte extent within the
// buffer passed to HashPrefixes, decoupling this package from pkg/wire.
type ComponentSpan struct {
	Length int // number of bytes this component contributes, from the current cursor
}

// HashPrefixes walks name component-by-component, checkpointing a hash
// after each one, so FIB lookups can probe longest-prefix-match candidates
// without re-hashing the name from scratch for every candidate length. The
// final checkpoint (after all spans) is also returned as Whole.
func HashPrefixes(key [16]byte, data []byte, spans []ComponentSpan) PrefixHashes {
	h := New(key)
	out := PrefixHashes{Hashes: make([]uint64, len(spans))}
	cursor := 0
	for i, s := range spans {
		end := cursor + s.Length
		h.Write(data[cursor:end])
		cursor = end
		out.Hashes[i] = h.Checkpoint()
	}
	if len(out.Hashes) > 0 {
		out.Whole = out.Hashes[len(out.Hashes)-1]
	} else {
		out.Whole = h.Checkpoint()
	}
	return out
}
