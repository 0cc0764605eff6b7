// Package wire implements the bytes the core actually reads and writes:
// the fixed packet header, TLVs, and name-component TLVs described in
// spec §6. It deliberately does not implement a complete CCNx 1.x TLV
// grammar — only the shape the dataplane and transport packages consume.
package wire

import (
	"encoding/binary"

	"github.com/cicnx/icnfwd/pkg/icnerr"
)

// Packet types (spec §6).
const (
	PacketInterest        uint8 = 0
	PacketContent         uint8 = 1
	PacketNak             uint8 = 2
	PacketControlRequest  uint8 = 0xA5
	PacketControlReply    uint8 = 0xA6
)

// Message TLV types.
const (
	MessageInterest uint16 = 1
	MessageContent  uint16 = 2
)

// Hop-by-hop header TLV types.
const (
	HbhInterestLifetime     uint16 = 1 // variable-length integer, <=8 bytes, ms
	HbhRecommendedCacheTime uint16 = 2 // fixed 8 bytes, ms
)

// Message inner TLV types.
const (
	TlvName          uint16 = 0
	TlvPayload       uint16 = 1
	TlvPayloadType   uint16 = 5
	TlvMessageExpiry uint16 = 6
)

// Name-component types.
const (
	CompGeneric uint16 = 1
	CompChunk   uint16 = 16 // terminates the LPM prefix chain
)

// NAK error codes.
const (
	NakNoRoute           uint8 = 1
	NakHopLimitExceeded  uint8 = 2
	NakResourceExhausted uint8 = 3
	NakCongestion        uint8 = 6
	NakMTUExceeded       uint8 = 7
)

// SupportedVersion is the only protocol version accepted or emitted.
const SupportedVersion uint8 = 1

const (
	headerLen  = 8
	tlvHdrLen  = 4
	// CICNPacketMinLen = header + message TLV(4) + name TLV(4) + one
	// name-component TLV(>=3).
	CICNPacketMinLen = headerLen + tlvHdrLen + tlvHdrLen + 3
	MaxTLVLength     = 0xFFFF
)

// Header is the fixed 8-byte packet header, network byte order.
type Header struct {
	Version      uint8
	Type         uint8
	TotalLength  uint16
	HopLimit     uint8
	ReservedOrNackCode uint8
	Flags        uint8
	HdrLength    uint8
}

// ParseHeader reads the fixed 8-byte packet header from b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < headerLen {
		return Header{}, icnerr.New(icnerr.InvalidPacket, "short header")
	}
	h := Header{
		Version:            b[0],
		Type:                b[1],
		TotalLength:         binary.BigEndian.Uint16(b[2:4]),
		HopLimit:            b[4],
		ReservedOrNackCode:  b[5],
		Flags:               b[6],
		HdrLength:           b[7],
	}
	if h.Version != SupportedVersion {
		return Header{}, icnerr.New(icnerr.InvalidPacket, "unsupported version")
	}
	return h, nil
}

// PutHeader serializes h into b (which must have len >= 8).
func PutHeader(b []byte, h Header) {
	b[0] = h.Version
	b[1] = h.Type
	binary.BigEndian.PutUint16(b[2:4], h.TotalLength)
	b[4] = h.HopLimit
	b[5] = h.ReservedOrNackCode
	b[6] = h.Flags
	b[7] = h.HdrLength
}

// TLV is a type/length/value record; Value aliases the input buffer.
type TLV struct {
	Type   uint16
	Length uint16
	Value  []byte
}

// ParseTLV reads one TLV from the front of b, returning it and the number
// of bytes consumed (header + value).
func ParseTLV(b []byte) (TLV, int, error) {
	if len(b) < tlvHdrLen {
		return TLV{}, 0, icnerr.New(icnerr.InvalidPacket, "short tlv header")
	}
	typ := binary.BigEndian.Uint16(b[0:2])
	length := binary.BigEndian.Uint16(b[2:4])
	if int(length) > len(b)-tlvHdrLen {
		return TLV{}, 0, icnerr.New(icnerr.InvalidPacket, "tlv length overruns buffer")
	}
	return TLV{Type: typ, Length: length, Value: b[tlvHdrLen : tlvHdrLen+int(length)]}, tlvHdrLen + int(length), nil
}

// PutTLV appends a TLV for (typ, value) to dst and returns the result.
func PutTLV(dst []byte, typ uint16, value []byte) []byte {
	var hdr [tlvHdrLen]byte
	binary.BigEndian.PutUint16(hdr[0:2], typ)
	binary.BigEndian.PutUint16(hdr[2:4], uint16(len(value)))
	dst = append(dst, hdr[:]...)
	dst = append(dst, value...)
	return dst
}

// Component is one parsed name-component TLV.
type Component struct {
	Type   uint16
	Value  []byte
	Offset int // byte offset of this component's TLV header within the name's byte range
	Length int // total TLV length (header + value) of this component
}

// IsSegment reports whether c is the chunk-number component that
// terminates LPM prefixing.
func (c Component) IsSegment() bool { return c.Type == CompChunk }

// ChunkNumber decodes a Chunk component's big-endian value as a uint64.
func (c Component) ChunkNumber() uint64 {
	var v uint64
	for _, by := range c.Value {
		v = v<<8 | uint64(by)
	}
	return v
}

// PutSegment appends a Chunk name-component TLV for segment n to dst.
func PutSegment(dst []byte, n uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	i := 0
	for i < 7 && buf[i] == 0 {
		i++
	}
	return PutTLV(dst, CompChunk, buf[i:])
}

// PutGeneric appends a Generic name-component TLV to dst.
func PutGeneric(dst []byte, value []byte) []byte {
	return PutTLV(dst, CompGeneric, value)
}

// ComponentIter walks a byte range of consecutive name-component TLVs.
type ComponentIter struct {
	data []byte
	pos  int
}

// NewComponentIter constructs an iterator over a name's component bytes.
func NewComponentIter(data []byte) *ComponentIter {
	return &ComponentIter{data: data}
}

// Next returns the next component, or ok=false at end of data.
func (it *ComponentIter) Next() (Component, bool, error) {
	if it.pos >= len(it.data) {
		return Component{}, false, nil
	}
	tlv, n, err := ParseTLV(it.data[it.pos:])
	if err != nil {
		return Component{}, false, err
	}
	c := Component{Type: tlv.Type, Value: tlv.Value, Offset: it.pos, Length: n}
	it.pos += n
	return c, true, nil
}

// Name is an ordered sequence of typed components.
type Name struct {
	Components []Component
	// Raw is the whole byte range passed to ParseName (no Name TLV
	// wrapper), including any bytes after a Chunk component that ended
	// parsing; used for whole/prefix hashing.
	Raw []byte
}

// ParseName parses a concatenation of name-component TLVs (the value of a
// Name TLV, not the Name TLV header itself). Parsing stops after the first
// Chunk component.
func ParseName(b []byte) (Name, error) {
	it := NewComponentIter(b)
	n := Name{Raw: b}
	for {
		c, ok, err := it.Next()
		if err != nil {
			return Name{}, err
		}
		if !ok {
			break
		}
		n.Components = append(n.Components, c)
		if c.IsSegment() {
			break
		}
	}
	return n, nil
}

// FrameHeader is the local-forwarder framing header used by the portal
// (spec §4.9, §6): version(1), type(1), total_length(2), plus 4 reserved
// bytes rounding the header to 8 bytes total.
type FrameHeader struct {
	Version     uint8
	Type        uint8
	TotalLength uint16
}

const FrameHeaderLen = 8

// ParseFrameHeader reads the local-forwarder framing header from b.
func ParseFrameHeader(b []byte) (FrameHeader, error) {
	if len(b) < FrameHeaderLen {
		return FrameHeader{}, icnerr.New(icnerr.InvalidPacket, "short frame header")
	}
	fh := FrameHeader{
		Version:     b[0],
		Type:        b[1],
		TotalLength: binary.BigEndian.Uint16(b[2:4]),
	}
	if fh.Version != SupportedVersion {
		return FrameHeader{}, icnerr.New(icnerr.InvalidPacket, "unsupported frame version")
	}
	return fh, nil
}

// PutFrameHeader serializes fh into b (len(b) >= FrameHeaderLen).
func PutFrameHeader(b []byte, fh FrameHeader) {
	b[0] = fh.Version
	b[1] = fh.Type
	binary.BigEndian.PutUint16(b[2:4], fh.TotalLength)
	b[4], b[5], b[6], b[7] = 0, 0, 0, 0
}
