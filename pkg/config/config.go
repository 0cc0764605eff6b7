// Package config loads the forwarder's two configuration surfaces: a YAML
// bootstrap document describing faces, routes, and dataplane sizing, and
// the RAAQM plain-text directive file (spec §4.7), plus a generation
// counter whose Bump marks a completed reload so shards can detect and
// pick up new config without a restart.
package config

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cicnx/icnfwd/pkg/icnerr"
	"github.com/cicnx/icnfwd/pkg/transport"
)

// HashtableConfig sizes the FIB/PCS hashtable substrate.
type HashtableConfig struct {
	RowCount     int  `yaml:"row_count"`
	NodeCapacity int  `yaml:"node_capacity"`
	UseSeven     bool `yaml:"use_seven"`
}

// PCSConfig sizes the PIT/CS table and its content-store LRU.
type PCSConfig struct {
	Capacity int `yaml:"capacity"`
	LRUMax   int `yaml:"lru_max"`
}

// FaceConfig bootstraps one statically configured face.
type FaceConfig struct {
	Name string `yaml:"name"`
	Addr string `yaml:"addr"`
	Up   bool   `yaml:"up"`
}

// RouteConfig bootstraps one FIB route.
type RouteConfig struct {
	Prefix   string `yaml:"prefix"`
	FaceName string `yaml:"face"`
	Weight   int    `yaml:"weight"`
}

// Bootstrap is the forwarder's top-level YAML configuration document.
type Bootstrap struct {
	Shards    int             `yaml:"shards"`
	Hashtable HashtableConfig `yaml:"hashtable"`
	PCS       PCSConfig       `yaml:"pit_cs"`
	Faces     []FaceConfig    `yaml:"faces"`
	Routes    []RouteConfig   `yaml:"routes"`
}

// LoadBootstrap decodes a Bootstrap document and fills in defaults for
// anything left zero.
func LoadBootstrap(r io.Reader) (*Bootstrap, error) {
	var b Bootstrap
	if err := yaml.NewDecoder(r).Decode(&b); err != nil {
		return nil, icnerr.Wrap(icnerr.InvalidArgument, "decoding bootstrap config", err)
	}
	if b.Shards <= 0 {
		b.Shards = 1
	}
	if b.Hashtable.RowCount <= 0 {
		b.Hashtable.RowCount = 1024
	}
	if b.Hashtable.NodeCapacity <= 0 {
		b.Hashtable.NodeCapacity = 65536
	}
	if b.PCS.Capacity <= 0 {
		b.PCS.Capacity = 65536
	}
	if b.PCS.LRUMax <= 0 {
		b.PCS.LRUMax = b.PCS.Capacity
	}
	return &b, nil
}

// Generation is a reload counter: shards compare their last-observed
// value against Value() to notice a completed config reload.
type Generation struct {
	n atomic.Uint64
}

// Bump advances the generation and returns the new value.
func (g *Generation) Bump() uint64 { return g.n.Add(1) }

// Value returns the current generation.
func (g *Generation) Value() uint64 { return g.n.Load() }

// LoadRaaqmParams parses the RAAQM plain-text directive file: one
// "key value" pair per line (blank lines and lines starting with ';'
// ignored), applied in file order so a repeated key is last-writer-wins,
// matching icnet_transport_raaqm.cc's init() token loop.
func LoadRaaqmParams(r io.Reader) (transport.RaaqmParams, error) {
	p := transport.DefaultRaaqmParams()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return p, icnerr.New(icnerr.InvalidArgument, "malformed raaqm directive: "+line)
		}
		key, val := fields[0], fields[1]
		if err := applyDirective(&p, key, val); err != nil {
			return p, err
		}
	}
	if err := sc.Err(); err != nil {
		return p, icnerr.Wrap(icnerr.InvalidArgument, "reading raaqm config", err)
	}
	return p, nil
}

func applyDirective(p *transport.RaaqmParams, key, val string) error {
	asFloat := func() (float64, error) {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, icnerr.Wrap(icnerr.InvalidArgument, "parsing "+key, err)
		}
		return f, nil
	}
	asDuration := func() (time.Duration, error) {
		ms, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, icnerr.Wrap(icnerr.InvalidArgument, "parsing "+key, err)
		}
		return time.Duration(ms * float64(time.Millisecond)), nil
	}

	var err error
	switch key {
	case "autotune":
		p.Autotune = val == "1" || strings.EqualFold(val, "true")
	case "beta":
		p.Beta, err = asFloat()
	case "drop":
		p.Drop, err = asFloat()
	case "beta_wifi":
		p.BetaWifi, err = asFloat()
	case "drop_wifi":
		p.DropWifi, err = asFloat()
	case "beta_lte":
		p.BetaLTE, err = asFloat()
	case "drop_lte":
		p.DropLTE, err = asFloat()
	case "wifi_delay":
		p.WifiDelay, err = asDuration()
	case "lte_delay":
		p.LTEDelay, err = asDuration()
	case "alpha":
		p.Alpha, err = asFloat()
	case "lifetime", "retransmissions", "batching_parameter", "rate_estimator":
		// Recognized directives (interest lifetime, max retransmissions,
		// batching, rate estimator selection) that RaaqmParams has no
		// fields for; accepted and ignored so an otherwise-valid file does
		// not fail on them.
	default:
		return icnerr.New(icnerr.InvalidArgument, "unknown raaqm directive: "+key)
	}
	return err
}
