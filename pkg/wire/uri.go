package wire

import (
	"net/url"
	"strings"

	"github.com/cicnx/icnfwd/pkg/icnerr"
)

// uriScheme is the prefix every name URI must carry (spec §6): used only
// at the boundary with CLIs/configs, never in the hot path.
const uriScheme = "ccnx:/"

// ParseURI parses a name URI ("ccnx:/" segment ("/" segment)*, each
// segment percent-encoded) into a Generic-component Name. An empty
// trailing segment is allowed and simply yields no trailing component.
func ParseURI(uri string) (Name, error) {
	if !strings.HasPrefix(uri, uriScheme) {
		return Name{}, icnerr.New(icnerr.InvalidArgument, "name uri must start with ccnx:/")
	}
	rest := strings.TrimPrefix(uri, uriScheme)
	var raw []byte
	if rest != "" {
		for _, seg := range strings.Split(rest, "/") {
			if seg == "" {
				continue
			}
			decoded, err := url.PathUnescape(seg)
			if err != nil {
				return Name{}, icnerr.Wrap(icnerr.InvalidArgument, "bad percent-encoding in name uri segment", err)
			}
			raw = PutGeneric(raw, []byte(decoded))
		}
	}
	return ParseName(raw)
}

func formatUint(v uint64) string {
	if v == 0 {
		return "0"
	}
	const digits = "0123456789"
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v%10]
		v /= 10
	}
	return string(buf[i:])
}

// URI renders n back to its textual form.
func (n Name) URI() string {
	var b strings.Builder
	b.WriteString(uriScheme)
	for i, c := range n.Components {
		if i > 0 {
			b.WriteByte('/')
		}
		if c.IsSegment() {
			b.WriteString(formatUint(c.ChunkNumber()))
			continue
		}
		b.WriteString(url.PathEscape(string(c.Value)))
	}
	return b.String()
}
