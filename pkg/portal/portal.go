// Package portal implements the local-forwarder connector (spec §4.9): a
// single-threaded cooperative event loop that owns one connection to the
// local forwarder process, reads and writes framed messages (pkg/wire's
// FrameHeader), and lets other goroutines submit work to the loop via an
// explicit post-to-loop primitive. SendInterest is the exception: it
// writes its request frame to the current connection from the caller's
// goroutine, and the loop delivers the response. Reconnection after a dropped connection is retried on a
// bounded schedule rather than immediately, so a forwarder restart does
// not turn into a reconnect storm.
package portal

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cicnx/icnfwd/pkg/icnerr"
	"github.com/cicnx/icnfwd/pkg/wire"
)

// DefaultConnectTimeout mirrors the original's 20-second connection timer.
const DefaultConnectTimeout = 20 * time.Second

const tokenLen = 12 // xid.ID is 12 bytes

// Dialer opens the connection to the local forwarder.
type Dialer func(ctx context.Context) (net.Conn, error)

type pendingCall struct {
	respCh chan []byte
}

// Portal owns one local-forwarder connection and its cooperative loop.
type Portal struct {
	dial           Dialer
	logger         *zap.Logger
	connectTimeout time.Duration
	reconnect      *rate.Limiter

	taskCh  chan func()
	closeCh chan struct{}
	closed  bool

	mu      sync.Mutex
	conn    net.Conn
	pending map[xid.ID]*pendingCall
}

// Option configures a Portal.
type Option func(*Portal)

// WithLogger sets the structured logger; nil keeps a no-op logger.
func WithLogger(l *zap.Logger) Option { return func(p *Portal) { p.logger = l } }

// WithConnectTimeout overrides DefaultConnectTimeout.
func WithConnectTimeout(d time.Duration) Option { return func(p *Portal) { p.connectTimeout = d } }

// WithReconnectRate bounds how often Run retries a failed dial, using a
// token-bucket limiter instead of a fixed sleep. The limiter only paces
// attempts: Run keeps retrying, with no overall deadline or attempt cap,
// until ctx is canceled or Close is called.
func WithReconnectRate(r rate.Limit, burst int) Option {
	return func(p *Portal) { p.reconnect = rate.NewLimiter(r, burst) }
}

// New constructs a Portal around dial. Run must be called to start the
// event loop before SendInterest/PostToLoop can make progress.
func New(dial Dialer, opts ...Option) *Portal {
	p := &Portal{
		dial:           dial,
		logger:         zap.NewNop(),
		connectTimeout: DefaultConnectTimeout,
		reconnect:      rate.NewLimiter(rate.Every(time.Second), 3),
		taskCh:         make(chan func(), 64),
		closeCh:        make(chan struct{}),
		pending:        make(map[xid.ID]*pendingCall),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// PostToLoop enqueues fn to run on the loop goroutine, the only
// cross-goroutine primitive callers should use to touch Portal state.
func (p *Portal) PostToLoop(fn func()) {
	select {
	case p.taskCh <- fn:
	case <-p.closeCh:
	}
}

// Close stops Run and releases the connection.
func (p *Portal) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	conn := p.conn
	p.mu.Unlock()

	close(p.closeCh)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Run drives the cooperative event loop until ctx is canceled or Close is
// called: it connects, reads frames, dispatches posted tasks, and
// reconnects (rate-limited) on connection loss.
func (p *Portal) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.closeCh:
			return nil
		default:
		}

		if err := p.reconnect.Wait(ctx); err != nil {
			return err
		}
		conn, err := p.connect(ctx)
		if err != nil {
			p.logger.Warn("local forwarder connect failed", zap.Error(err))
			continue
		}

		p.mu.Lock()
		p.conn = conn
		p.mu.Unlock()

		err = p.serve(ctx, conn)
		_ = conn.Close()
		p.failPending(err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.closeCh:
			return nil
		default:
		}
	}
}

func (p *Portal) connect(ctx context.Context) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, p.connectTimeout)
	defer cancel()
	return p.dial(dialCtx)
}

func (p *Portal) serve(ctx context.Context, conn net.Conn) error {
	frames := make(chan []byte, 16)
	readErr := make(chan error, 1)
	go readFrames(conn, frames, readErr)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.closeCh:
			return nil
		case fn := <-p.taskCh:
			fn()
		case frame, ok := <-frames:
			if !ok {
				return <-readErr
			}
			p.dispatch(frame)
		}
	}
}

func readFrames(conn net.Conn, out chan<- []byte, errCh chan<- error) {
	defer close(out)
	r := bufio.NewReader(conn)
	hdr := make([]byte, wire.FrameHeaderLen)
	for {
		if _, err := io.ReadFull(r, hdr); err != nil {
			errCh <- err
			return
		}
		fh, err := wire.ParseFrameHeader(hdr)
		if err != nil {
			errCh <- err
			return
		}
		body := make([]byte, fh.TotalLength)
		if _, err := io.ReadFull(r, body); err != nil {
			errCh <- err
			return
		}
		out <- body
	}
}

func (p *Portal) dispatch(body []byte) {
	if len(body) < tokenLen {
		return
	}
	var token xid.ID
	copy(token[:], body[:tokenLen])
	payload := body[tokenLen:]

	p.mu.Lock()
	call, ok := p.pending[token]
	if ok {
		delete(p.pending, token)
	}
	p.mu.Unlock()
	if ok {
		call.respCh <- payload
	}
}

func (p *Portal) failPending(err error) {
	if err == nil {
		err = errors.New("connection closed")
	}
	p.mu.Lock()
	pending := p.pending
	p.pending = make(map[xid.ID]*pendingCall)
	p.mu.Unlock()
	for _, call := range pending {
		close(call.respCh)
	}
}

// SendInterest writes a framed request carrying payload, tagged with a
// fresh correlation token, and blocks until the matching response frame
// arrives, ctx is done, or the connection drops.
func (p *Portal) SendInterest(ctx context.Context, payload []byte) ([]byte, error) {
	token := xid.New()
	call := &pendingCall{respCh: make(chan []byte, 1)}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, icnerr.New(icnerr.LinkDown, "portal closed")
	}
	conn := p.conn
	p.pending[token] = call
	p.mu.Unlock()

	if conn == nil {
		return nil, icnerr.New(icnerr.LinkDown, "no active local forwarder connection")
	}

	frame := make([]byte, 0, wire.FrameHeaderLen+tokenLen+len(payload))
	var hdr [wire.FrameHeaderLen]byte
	wire.PutFrameHeader(hdr[:], wire.FrameHeader{
		Version:     wire.SupportedVersion,
		Type:        wire.PacketControlRequest,
		TotalLength: uint16(tokenLen + len(payload)),
	})
	frame = append(frame, hdr[:]...)
	frame = append(frame, token[:]...)
	frame = append(frame, payload...)

	if _, err := conn.Write(frame); err != nil {
		p.mu.Lock()
		delete(p.pending, token)
		p.mu.Unlock()
		return nil, icnerr.Wrap(icnerr.LinkDown, "write to local forwarder failed", err)
	}

	select {
	case resp, ok := <-call.respCh:
		if !ok {
			return nil, icnerr.New(icnerr.LinkDown, "connection closed before response")
		}
		return resp, nil
	case <-ctx.Done():
		p.mu.Lock()
		delete(p.pending, token)
		p.mu.Unlock()
		return nil, ctx.Err()
	}
}
