// Package control implements the symbolic-name-addressed control plane the
// CLI drives: add/list/remove connections, listeners, and routes, plus the
// cache-policy toggles named in spec §6 (the debug toggle lives in
// internal/logr). It is the Go analogue of
// metis_SymbolicNameTable.c and the metisControl_* command family: every
// mutating command resolves a user-chosen symbolic name to a face or route
// and records the mapping so later commands (and `list`) can refer back to
// it by name instead of by numeric ID.
package control

import (
	"regexp"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/cicnx/icnfwd/pkg/face"
	"github.com/cicnx/icnfwd/pkg/fib"
	"github.com/cicnx/icnfwd/pkg/icnerr"
	"github.com/cicnx/icnfwd/pkg/wire"
)

// SymbolicNameRe is the pattern every user-assigned symbolic name must
// match (spec §6).
var SymbolicNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)

// ValidateSymbolicName returns an error if name does not match
// SymbolicNameRe.
func ValidateSymbolicName(name string) error {
	if !SymbolicNameRe.MatchString(name) {
		return icnerr.New(icnerr.InvalidArgument, "symbolic name must match [A-Za-z][A-Za-z0-9]*: "+name)
	}
	return nil
}

// ConnectionKind distinguishes an outbound connection from a listener,
// both of which occupy the same face table.
type ConnectionKind int

const (
	Connection ConnectionKind = iota
	Listener
)

func (k ConnectionKind) String() string {
	if k == Listener {
		return "listener"
	}
	return "connection"
}

type connEntry struct {
	name   string
	kind   ConnectionKind
	faceID face.ID
	addr   string
	connID uuid.UUID
}

type routeEntry struct {
	name   string
	prefix string // URI form, for display
	faceID uint32
}

// CachePolicy mirrors the `cache serve|store on|off` toggles: serve
// answers interests from the content store, store admits new content into
// it. Both default on.
type CachePolicy struct {
	Serve bool
	Store bool
}

// Controller holds the symbolic-name tables and cache policy a running
// forwarder exposes to its CLI. It does not itself implement the
// dataplane; it wraps a face.Table and fib.FIB that the dataplane shares.
type Controller struct {
	mu sync.Mutex

	// RunID identifies this controller's lifetime, independent of the
	// symbolic names and numeric face/route IDs it hands out, so an
	// operator can correlate logs from one control session across
	// restarts (spec §9's admin/control surface).
	RunID uuid.UUID

	faces *face.Table
	fib   *fib.FIB

	conns  map[string]*connEntry
	routes map[string]*routeEntry

	cache CachePolicy
}

// New constructs a Controller over an already-built face table and FIB.
func New(faces *face.Table, f *fib.FIB) *Controller {
	return &Controller{
		RunID:  uuid.New(),
		faces:  faces,
		fib:    f,
		conns:  make(map[string]*connEntry),
		routes: make(map[string]*routeEntry),
		cache:  CachePolicy{Serve: true, Store: true},
	}
}

// AddConnection registers addr as a new face under name, kind Connection
// or Listener.
func (c *Controller) AddConnection(name, addr string, kind ConnectionKind) (face.ID, error) {
	if err := ValidateSymbolicName(name); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.conns[name]; exists {
		return 0, icnerr.New(icnerr.Exists, "symbolic name already in use: "+name)
	}
	f, err := c.faces.Add(addr)
	if err != nil {
		return 0, err
	}
	c.conns[name] = &connEntry{name: name, kind: kind, faceID: f.ID, addr: addr, connID: uuid.New()}
	return f.ID, nil
}

// AddRoute registers a route from name to the face behind connName, for
// the given name-URI prefix.
func (c *Controller) AddRoute(name, prefix string, connName string, weight int) error {
	if err := ValidateSymbolicName(name); err != nil {
		return err
	}
	n, err := wire.ParseURI(prefix)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.routes[name]; exists {
		return icnerr.New(icnerr.Exists, "symbolic name already in use: "+name)
	}
	conn, ok := c.conns[connName]
	if !ok {
		return icnerr.New(icnerr.NotFound, "no such connection/listener: "+connName)
	}
	if err := c.fib.Insert(n.Components, fib.NextHop{FaceID: uint32(conn.faceID), Weight: weight}); err != nil {
		return err
	}
	c.routes[name] = &routeEntry{name: name, prefix: prefix, faceID: uint32(conn.faceID)}
	return nil
}

// RemoveConnection unregisters the face behind name.
func (c *Controller) RemoveConnection(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.conns[name]
	if !ok {
		return icnerr.New(icnerr.NotFound, "no such connection/listener: "+name)
	}
	if err := c.faces.Remove(conn.faceID); err != nil {
		return err
	}
	delete(c.conns, name)
	return nil
}

// RemoveRoute withdraws the route registered under name.
func (c *Controller) RemoveRoute(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	route, ok := c.routes[name]
	if !ok {
		return icnerr.New(icnerr.NotFound, "no such route: "+name)
	}
	n, err := wire.ParseURI(route.prefix)
	if err != nil {
		return err
	}
	if err := c.fib.DeleteNextHop(n.Components, route.faceID); err != nil {
		return err
	}
	delete(c.routes, name)
	return nil
}

// ConnectionInfo is one row of `list connections` / `list interfaces`.
type ConnectionInfo struct {
	Name   string
	Kind   ConnectionKind
	FaceID face.ID
	ConnID uuid.UUID
	Addr   string
	Up     bool
}

// ListConnections returns every registered connection/listener, sorted by
// symbolic name.
func (c *Controller) ListConnections() []ConnectionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ConnectionInfo, 0, len(c.conns))
	for _, conn := range c.conns {
		out = append(out, ConnectionInfo{
			Name: conn.name, Kind: conn.kind, FaceID: conn.faceID, ConnID: conn.connID,
			Addr: conn.addr, Up: c.faces.IsUp(conn.faceID),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RouteInfo is one row of `list routes`.
type RouteInfo struct {
	Name   string
	Prefix string
	FaceID uint32
}

// ListRoutes returns every registered route, sorted by symbolic name.
func (c *Controller) ListRoutes() []RouteInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RouteInfo, 0, len(c.routes))
	for _, r := range c.routes {
		out = append(out, RouteInfo{Name: r.name, Prefix: r.prefix, FaceID: r.faceID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetCacheServe toggles whether interests may be answered from the
// content store.
func (c *Controller) SetCacheServe(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Serve = on
}

// SetCacheStore toggles whether new content is admitted into the content
// store.
func (c *Controller) SetCacheStore(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Store = on
}

// Policy returns the current cache policy.
func (c *Controller) Policy() CachePolicy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache
}
