// Package metrics defines the forwarder-wide Prometheus counters named in
// spec §7: the public stat surface a data-plane worker increments when a
// packet is dropped for a structured reason, plus the NAK and traffic
// counters supplementing the CICN/Metis original. Counters are built
// around an injected prometheus.Registerer rather than the global
// registry, matching caddy's preference for constructor-scoped metrics
// over promauto package-level singletons.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "icnfwd"
	subsystem = "dataplane"
)

// Dataplane holds the counters a forwarder worker increments on the hot
// path. One instance is shared by all shards since prometheus counters
// are already safe for concurrent use.
type Dataplane struct {
	NoRoute          prometheus.Counter
	NoPIT            prometheus.Counter
	CSExpired        prometheus.Counter
	InvalidPacket    prometheus.Counter
	CapacityExceeded prometheus.Counter
	NaksSent         *prometheus.CounterVec // labeled by nak code
	InterestsRx      prometheus.Counter
	ContentRx        prometheus.Counter
	CacheHits        prometheus.Counter
}

// NewDataplane constructs and registers a Dataplane's counters against
// reg. reg may be nil, in which case the counters are created but never
// registered (useful in tests that do not care about scraping).
func NewDataplane(reg prometheus.Registerer) *Dataplane {
	d := &Dataplane{
		NoRoute: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "no_route_total",
			Help: "Interests dropped because longest-prefix-match found no route.",
		}),
		NoPIT: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "no_pit_total",
			Help: "Content objects dropped because no PIT entry matched.",
		}),
		CSExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "cs_expired_total",
			Help: "Content-store entries removed by the bulk expiry sweep.",
		}),
		InvalidPacket: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "invalid_packet_total",
			Help: "Packets dropped for failing wire parsing.",
		}),
		CapacityExceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "capacity_exceeded_total",
			Help: "Operations rejected because a hashtable/FIB/PIT bound was reached.",
		}),
		NaksSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "naks_sent_total",
			Help: "NAKs emitted, labeled by NAK error code.",
		}, []string{"code"}),
		InterestsRx: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "interests_received_total",
			Help: "Interests received across all faces.",
		}),
		ContentRx: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "content_received_total",
			Help: "Content objects received across all faces.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "cache_hits_total",
			Help: "Interests satisfied directly from the content store.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			d.NoRoute, d.NoPIT, d.CSExpired, d.InvalidPacket, d.CapacityExceeded,
			d.NaksSent, d.InterestsRx, d.ContentRx, d.CacheHits,
		)
	}
	return d
}
