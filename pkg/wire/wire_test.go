package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrips(t *testing.T) {
	h := Header{Version: SupportedVersion, Type: PacketInterest, TotalLength: 42, HopLimit: 7, HdrLength: 3}
	buf := make([]byte, 8)
	PutHeader(buf, h)
	got, err := ParseHeader(buf)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestParseHeaderRejectsBadVersion(t *testing.T) {
	buf := make([]byte, 8)
	buf[0] = 9
	_, err := ParseHeader(buf)
	require.Error(t, err)
}

func TestTLVRoundTrips(t *testing.T) {
	buf := PutTLV(nil, 7, []byte("hello"))
	tlv, n, err := ParseTLV(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, uint16(7), tlv.Type)
	require.Equal(t, []byte("hello"), tlv.Value)
}

func TestParseTLVRejectsOverrun(t *testing.T) {
	buf := PutTLV(nil, 1, []byte("xy"))
	_, _, err := ParseTLV(buf[:len(buf)-1])
	require.Error(t, err)
}

func TestParseNameStopsAtChunk(t *testing.T) {
	var raw []byte
	raw = PutGeneric(raw, []byte("a"))
	raw = PutGeneric(raw, []byte("b"))
	raw = PutSegment(raw, 5)
	raw = PutGeneric(raw, []byte("ignored-after-chunk"))

	n, err := ParseName(raw)
	require.NoError(t, err)
	require.Len(t, n.Components, 3)
	require.True(t, n.Components[2].IsSegment())
	require.Equal(t, uint64(5), n.Components[2].ChunkNumber())
}

func TestParseURIAndBack(t *testing.T) {
	n, err := ParseURI("ccnx:/icn/test")
	require.NoError(t, err)
	require.Len(t, n.Components, 2)
	require.Equal(t, []byte("icn"), n.Components[0].Value)
	require.Equal(t, "ccnx:/icn/test", n.URI())
}

func TestParseURIAllowsEmptyTrailingSegment(t *testing.T) {
	n, err := ParseURI("ccnx:/icn/test/")
	require.NoError(t, err)
	require.Len(t, n.Components, 2)
}

func TestParseURIRejectsMissingScheme(t *testing.T) {
	_, err := ParseURI("/icn/test")
	require.Error(t, err)
}

func TestParseURIDecodesPercentEncoding(t *testing.T) {
	n, err := ParseURI("ccnx:/a%2Fb")
	require.NoError(t, err)
	require.Equal(t, []byte("a/b"), n.Components[0].Value)
}

func TestFrameHeaderRoundTrips(t *testing.T) {
	fh := FrameHeader{Version: SupportedVersion, Type: PacketControlRequest, TotalLength: 64}
	buf := make([]byte, FrameHeaderLen)
	PutFrameHeader(buf, fh)
	got, err := ParseFrameHeader(buf)
	require.NoError(t, err)
	require.Equal(t, fh, got)
}
