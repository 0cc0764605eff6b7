package main

import (
	"go.uber.org/zap/zapcore"

	"github.com/cicnx/icnfwd/internal/control"
	"github.com/cicnx/icnfwd/internal/logr"
	"github.com/cicnx/icnfwd/pkg/face"
	"github.com/cicnx/icnfwd/pkg/fib"
)

// app is the control-plane state one CLI session operates on: a face
// table and FIB (the same structures a forwarder process shares with its
// dataplane workers), a symbolic-name controller over them, and a logger
// whose level the debug verbs flip at runtime.
type app struct {
	ctrl   *control.Controller
	logger *logr.Logger
	quit   bool
}

func newApp() (*app, error) {
	faces := face.NewTable(256, nil)
	f := fib.New(fibKey(), 4096, 32)
	logger, err := logr.New(logr.Config{Format: logr.Console, Level: zapcore.InfoLevel})
	if err != nil {
		return nil, err
	}
	return &app{ctrl: control.New(faces, f), logger: logger}, nil
}

// fibKey is the SipHash key the control-plane's FIB hashes prefixes with.
// A fixed key is fine here: the FIB never shares state across processes,
// and varying it per run would only make `list routes` output harder to
// reason about when debugging.
func fibKey() [16]byte {
	return [16]byte{0x69, 0x63, 0x6e, 0x66, 0x77, 0x64, 0x2d, 0x63, 0x6c, 0x69, 0x2d, 0x6b, 0x65, 0x79, 0x00, 0x01}
}
