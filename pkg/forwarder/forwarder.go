// Package forwarder implements the per-worker dataplane (spec §5): each
// worker owns a single FIB, a single PCS, and a share of the face table,
// and runs parse -> hash -> PIT/CS/FIB -> stats entirely without locking,
// per the "no entry is ever mutated by two agents at once" rule. Workers
// are sharded upstream by name hash, not by locking a shared structure.
package forwarder

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	internalmetrics "github.com/cicnx/icnfwd/internal/metrics"
	"github.com/cicnx/icnfwd/pkg/clock"
	"github.com/cicnx/icnfwd/pkg/config"
	"github.com/cicnx/icnfwd/pkg/face"
	"github.com/cicnx/icnfwd/pkg/fib"
	"github.com/cicnx/icnfwd/pkg/icnerr"
	"github.com/cicnx/icnfwd/pkg/pcs"
	"github.com/cicnx/icnfwd/pkg/siphash"
	"github.com/cicnx/icnfwd/pkg/wire"
)

// Sender writes raw packet bytes out a face, e.g. over the local
// forwarder's transport; injected so the dataplane has no I/O dependency
// of its own and can be driven directly in tests.
type Sender func(faceID uint32, raw []byte) error

// WorkerConfig constructs one shard's dataplane.
type WorkerConfig struct {
	FIB     *fib.FIB
	PCS     *pcs.PCS
	Faces   *face.Table
	Clock   *clock.Clock
	Metrics *internalmetrics.Dataplane
	Logger  *zap.Logger
	Send    Sender

	SiphashKey [16]byte
	// HopLimit is stamped on content replies and caps forwarded interests:
	// an inbound hop limit of 0 or above HopLimit is replaced by HopLimit,
	// then decremented by one. An interest whose hop limit runs out is
	// still forwarded (with hop limit 0); no HopLimitExceeded NAK is sent.
	HopLimit uint8
	// DefaultExpiryMs is used for interests with no InterestLifetime TLV.
	DefaultExpiryMs uint64

	// Generation, if non-nil, is the shared config-generation counter
	// (spec §5): the worker compares it against its own last-observed
	// value at frame boundaries and calls Reload when it has advanced.
	Generation *config.Generation
	Reload     func() error
}

// Worker is one shard of the dataplane.
type Worker struct {
	fib     *fib.FIB
	pcs     *pcs.PCS
	faces   *face.Table
	clock   *clock.Clock
	metrics *internalmetrics.Dataplane
	logger  *zap.Logger
	send    Sender

	hopLimit        uint8
	defaultExpiryMs uint64
	siphashKey      [16]byte

	generation *config.Generation
	lastGen    uint64
	reload     func() error
}

// NewWorker constructs a Worker from cfg, defaulting a nil Logger to a
// no-op logger and zero HopLimit/DefaultExpiryMs to sane values.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hopLimit := cfg.HopLimit
	if hopLimit == 0 {
		hopLimit = 32
	}
	defaultExpiry := cfg.DefaultExpiryMs
	if defaultExpiry == 0 {
		defaultExpiry = 4000
	}
	return &Worker{
		fib: cfg.FIB, pcs: cfg.PCS, faces: cfg.Faces, clock: cfg.Clock,
		metrics: cfg.Metrics, logger: logger, send: cfg.Send,
		hopLimit: hopLimit, defaultExpiryMs: defaultExpiry,
		siphashKey: cfg.SiphashKey,
		generation: cfg.Generation, reload: cfg.Reload,
	}
}

// checkGeneration reloads the worker's config snapshot if the shared
// generation counter has advanced since it last observed it, per spec
// §5's lock-free config-reload design: workers notice a new generation at
// frame boundaries rather than taking a lock on every packet.
func (w *Worker) checkGeneration() {
	if w.generation == nil || w.reload == nil {
		return
	}
	if cur := w.generation.Value(); cur != w.lastGen {
		if err := w.reload(); err != nil {
			w.logger.Warn("config reload failed", zap.Error(err))
			return
		}
		w.lastGen = cur
	}
}

// HandleInbound decodes raw and dispatches it to HandleInterest,
// HandleContent, or a no-op for an already-terminal NAK, incrementing
// InvalidPacket on parse failure.
func (w *Worker) HandleInbound(rxFace uint32, raw []byte) error {
	w.checkGeneration()
	msg, err := ParsePacket(raw)
	if err != nil {
		w.metrics.InvalidPacket.Inc()
		w.logger.Debug("dropping unparseable packet", zap.Uint32("rx_face", rxFace), zap.Error(err))
		return err
	}
	if faceObj, ok := w.faces.FindByID(face.ID(rxFace)); ok {
		w.faces.RecordRx(faceObj.ID, len(raw))
	}
	switch msg.Header.Type {
	case wire.PacketInterest:
		w.metrics.InterestsRx.Inc()
		return w.HandleInterest(rxFace, msg)
	case wire.PacketContent:
		w.metrics.ContentRx.Inc()
		return w.HandleContent(rxFace, msg)
	default:
		return nil // NAKs and control traffic are terminal at this worker
	}
}

// HandleInterest implements the interest-arrival path: aggregate onto an
// existing PIT entry, serve directly from the content store, or perform
// a FIB lookup and forward (NAKing with NoRoute on a miss).
func (w *Worker) HandleInterest(rxFace uint32, msg Message) error {
	hash := siphash.Sum(w.siphashKey, msg.Name.Raw)
	expiry := w.clock.Stamp(clock.Fast, expiryTicks(msg.LifetimeMs, w.defaultExpiryMs))

	idx, kind, aggregated, err := w.pcs.InsertInterest(hash, msg.Name.Raw, rxFace, w.clock.Now(clock.Fast), expiry, clock.Fast)
	if err != nil {
		w.metrics.CapacityExceeded.Inc()
		return err
	}
	if kind == pcs.KindCS {
		return w.serveFromCache(rxFace, idx, msg.Name)
	}
	if aggregated {
		return nil // interest aggregation: a PIT entry already covers this name
	}

	nh, ok := w.fib.Lookup(fibComponents(msg.Name))
	if !ok {
		w.metrics.NoRoute.Inc()
		w.metrics.NaksSent.WithLabelValues("1").Inc()
		_ = w.pcs.Delete(idx)
		return w.sendNak(rxFace, msg.Name, wire.NakNoRoute)
	}
	w.pcs.SetTxFace(idx, nh.FaceID)
	return w.send(nh.FaceID, buildInterestForward(msg, w.hopLimit))
}

// HandleContent implements the content-arrival path: convert the
// matching PIT entry into a CS entry and fan the payload out to every
// face that was waiting on it, or drop with NoPIT if nothing matched.
func (w *Worker) HandleContent(rxFace uint32, msg Message) error {
	hash := siphash.Sum(w.siphashKey, msg.Name.Raw)
	idx, kind, ok := w.pcs.Find(hash, msg.Name.Raw)
	if !ok || kind != pcs.KindPIT {
		w.metrics.NoPIT.Inc()
		return icnerr.New(icnerr.NotFound, "no pit entry for content object")
	}
	waiting := w.pcs.RxFaces(idx)
	now := w.clock.Now(clock.Fast)
	expiry := w.clock.Stamp(clock.Fast, expiryTicks(msg.ExpiryMs, w.defaultExpiryMs))
	w.pcs.PitToCS(idx, msg.Payload, rxFace, now, expiry)

	out := buildContent(msg.Name, msg.Payload, msg.PayloadType, w.hopLimit)
	for _, faceID := range waiting {
		if err := w.send(faceID, out); err != nil {
			w.logger.Warn("forwarding content failed", zap.Uint32("face_id", faceID), zap.Error(err))
		}
	}
	return nil
}

// serveFromCache answers rxFace directly from a content-store hit,
// touching the LRU so the entry counts as recently used.
func (w *Worker) serveFromCache(rxFace uint32, idx int, name wire.Name) error {
	payload := w.pcs.Payload(idx)
	w.pcs.TouchCS(idx)
	w.metrics.CacheHits.Inc()
	return w.send(rxFace, buildContent(name, payload, 0, w.hopLimit))
}

// Sweep runs one bulk expiry pass over the PCS, removing stale entries
// without sending NAKs. It is meant to be called periodically off the clock's fast
// tick, matching the original's "bulk sweep on coarse clock tick" design
// rather than a per-entry timer.
func (w *Worker) Sweep() {
	w.checkGeneration()
	fastNow := w.clock.Now(clock.Fast)
	slowNow := w.clock.Now(clock.Slow)
	w.pcs.SweepExpired(fastNow, slowNow, func(idx int, kind pcs.Kind) {
		if kind == pcs.KindCS {
			w.metrics.CSExpired.Inc()
		}
	})
}

func expiryTicks(ms uint64, defaultMs uint64) uint16 {
	if ms == 0 {
		ms = defaultMs
	}
	ticks := ms / 1000
	if ticks == 0 {
		ticks = 1
	}
	if ticks > 0xFFFF {
		ticks = 0xFFFF
	}
	return uint16(ticks)
}

func (w *Worker) sendNak(faceID uint32, name wire.Name, code uint8) error {
	return w.send(faceID, buildNak(name, code))
}

// Forwarder supervises a fixed set of shards and the background sweep
// loop each one needs, plus config-generation reload (spec §5's "coarse
// configuration generation counter").
type Forwarder struct {
	workers []*Worker
	clock   *clock.Clock
	logger  *zap.Logger

	sweepInterval time.Duration
}

// New constructs a Forwarder over a fixed set of shards. Each Worker
// carries its own reference to the shared config.Generation (if any) via
// WorkerConfig, so Forwarder itself holds no config state.
func New(workers []*Worker, clk *clock.Clock, logger *zap.Logger) *Forwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Forwarder{workers: workers, clock: clk, logger: logger, sweepInterval: time.Second}
}

// ShardFor picks the worker index a given name hash routes to, so
// dispatch upstream of the workers can shard without any worker-side
// locking.
func (f *Forwarder) ShardFor(nameHash uint64) int {
	if len(f.workers) == 0 {
		return 0
	}
	return int(nameHash % uint64(len(f.workers)))
}

// Worker returns the i-th shard.
func (f *Forwarder) Worker(i int) *Worker { return f.workers[i] }

// Run drives the clock and every worker's periodic sweep loop until ctx
// is canceled, supervised by an errgroup so one shard's sweep loop
// returning an error (it never does today, but the shape is load-bearing
// for future per-shard work) brings the whole forwarder down cleanly.
func (f *Forwarder) Run(ctx context.Context) error {
	go f.clock.Run()
	defer f.clock.Stop()

	g, ctx := errgroup.WithContext(ctx)
	for _, worker := range f.workers {
		worker := worker
		g.Go(func() error {
			ticker := time.NewTicker(f.sweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					worker.Sweep()
				}
			}
		})
	}
	return g.Wait()
}
