package forwarder

import (
	"encoding/binary"

	"github.com/cicnx/icnfwd/pkg/icnerr"
	"github.com/cicnx/icnfwd/pkg/wire"
)

// Message is a decoded packet: the fixed header plus whichever inner TLVs
// spec §6 names (Name, Payload, PayloadType, MessageExpiry) and the
// hop-by-hop InterestLifetime, flattened out of their TLV nesting so the
// dataplane does not re-walk TLVs on every field access.
type Message struct {
	Header      wire.Header
	Name        wire.Name
	Payload     []byte
	PayloadType uint8
	LifetimeMs  uint64 // from the InterestLifetime hop-by-hop TLV, 0 if absent
	ExpiryMs    uint64 // from the MessageExpiry inner TLV, 0 if absent
}

// ParsePacket decodes a full wire packet: 8-byte header, HdrLength bytes
// of hop-by-hop TLVs, then one message TLV (Interest or Content) carrying
// the inner TLVs.
func ParsePacket(b []byte) (Message, error) {
	if len(b) < wire.CICNPacketMinLen {
		return Message{}, icnerr.New(icnerr.InvalidPacket, "packet shorter than minimum")
	}
	h, err := wire.ParseHeader(b)
	if err != nil {
		return Message{}, err
	}
	if int(h.TotalLength) > len(b) {
		return Message{}, icnerr.New(icnerr.InvalidPacket, "total_length overruns buffer")
	}
	body := b[8:h.TotalLength]

	hopLen := int(h.HdrLength)
	if hopLen > len(body) {
		return Message{}, icnerr.New(icnerr.InvalidPacket, "hdr_length overruns body")
	}
	msg := Message{Header: h}
	if err := parseHopByHop(body[:hopLen], &msg); err != nil {
		return Message{}, err
	}
	rest := body[hopLen:]

	if h.Type == wire.PacketNak {
		// A NAK carries the correlated name directly as its body, with no
		// enclosing message TLV (it is neither an Interest nor Content).
		n, err := wire.ParseName(rest)
		if err != nil {
			return Message{}, err
		}
		msg.Name = n
		return msg, nil
	}

	tlv, _, err := wire.ParseTLV(rest)
	if err != nil {
		return Message{}, err
	}
	if tlv.Type != wire.MessageInterest && tlv.Type != wire.MessageContent {
		return Message{}, icnerr.New(icnerr.InvalidPacket, "unexpected message tlv type")
	}
	if err := parseMessageBody(tlv.Value, &msg); err != nil {
		return Message{}, err
	}
	if msg.Name.Raw == nil {
		return Message{}, icnerr.New(icnerr.InvalidPacket, "message missing name")
	}
	return msg, nil
}

func parseHopByHop(b []byte, msg *Message) error {
	for len(b) > 0 {
		tlv, n, err := wire.ParseTLV(b)
		if err != nil {
			return err
		}
		switch tlv.Type {
		case wire.HbhInterestLifetime:
			msg.LifetimeMs = decodeVarUint(tlv.Value)
		case wire.HbhRecommendedCacheTime:
			if len(tlv.Value) == 8 {
				msg.LifetimeMs = binary.BigEndian.Uint64(tlv.Value)
			}
		}
		b = b[n:]
	}
	return nil
}

func parseMessageBody(b []byte, msg *Message) error {
	for len(b) > 0 {
		tlv, n, err := wire.ParseTLV(b)
		if err != nil {
			return err
		}
		switch tlv.Type {
		case wire.TlvName:
			name, err := wire.ParseName(tlv.Value)
			if err != nil {
				return err
			}
			msg.Name = name
		case wire.TlvPayload:
			msg.Payload = tlv.Value
		case wire.TlvPayloadType:
			if len(tlv.Value) == 1 {
				msg.PayloadType = tlv.Value[0]
			}
		case wire.TlvMessageExpiry:
			msg.ExpiryMs = decodeVarUint(tlv.Value)
		}
		b = b[n:]
	}
	return nil
}

func decodeVarUint(b []byte) uint64 {
	var v uint64
	for _, by := range b {
		v = v<<8 | uint64(by)
	}
	return v
}

// fibComponents returns the components FIB routes are keyed on: the full
// name with any trailing Chunk component stripped, since routes are over
// name prefixes and Chunk always terminates the LPM chain (spec §4.3).
func fibComponents(n wire.Name) []wire.Component {
	if len(n.Components) > 0 && n.Components[len(n.Components)-1].IsSegment() {
		return n.Components[:len(n.Components)-1]
	}
	return n.Components
}

// buildContent serializes a Content packet carrying name and payload.
func buildContent(name wire.Name, payload []byte, payloadType uint8, hopLimit uint8) []byte {
	var inner []byte
	inner = wire.PutTLV(inner, wire.TlvName, name.Raw)
	inner = wire.PutTLV(inner, wire.TlvPayload, payload)
	inner = wire.PutTLV(inner, wire.TlvPayloadType, []byte{payloadType})

	var body []byte
	body = wire.PutTLV(body, wire.MessageContent, inner)

	out := make([]byte, 8, 8+len(body))
	wire.PutHeader(out, wire.Header{
		Version:     wire.SupportedVersion,
		Type:        wire.PacketContent,
		TotalLength: uint16(8 + len(body)),
		HopLimit:    hopLimit,
	})
	return append(out, body...)
}

// buildInterestForward re-serializes msg as an Interest packet for the
// next hop, decrementing hop limit's remaining budget by one.
func buildInterestForward(msg Message, hopLimit uint8) []byte {
	remaining := msg.Header.HopLimit
	if remaining == 0 || remaining > hopLimit {
		remaining = hopLimit
	}
	if remaining > 0 {
		remaining--
	}

	var hopByHop []byte
	if msg.LifetimeMs > 0 {
		hopByHop = wire.PutTLV(hopByHop, wire.HbhInterestLifetime, encodeVarUint(msg.LifetimeMs))
	}

	var inner []byte
	inner = wire.PutTLV(inner, wire.TlvName, msg.Name.Raw)

	var body []byte
	body = wire.PutTLV(body, wire.MessageInterest, inner)

	out := make([]byte, 8, 8+len(hopByHop)+len(body))
	wire.PutHeader(out, wire.Header{
		Version:     wire.SupportedVersion,
		Type:        wire.PacketInterest,
		TotalLength: uint16(8 + len(hopByHop) + len(body)),
		HopLimit:    remaining,
		HdrLength:   uint8(len(hopByHop)),
	})
	out = append(out, hopByHop...)
	out = append(out, body...)
	return out
}

func encodeVarUint(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	i := 0
	for i < 7 && buf[i] == 0 {
		i++
	}
	return buf[i:]
}

// buildNak serializes a NAK packet for name, carrying code in the header's
// reserved/nack_code byte and the correlated name as its body.
func buildNak(name wire.Name, code uint8) []byte {
	out := make([]byte, 8, 8+len(name.Raw))
	wire.PutHeader(out, wire.Header{
		Version:            wire.SupportedVersion,
		Type:               wire.PacketNak,
		TotalLength:        uint16(8 + len(name.Raw)),
		ReservedOrNackCode: code,
	})
	return append(out, name.Raw...)
}
