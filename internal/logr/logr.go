// Package logr constructs the forwarder's structured logger. It mirrors
// caddy's logging conventions (one zap.Logger built from a small typed
// config, sugared at call sites, JSON in production/console in
// development) without caddy's dynamic module-registration machinery,
// which this single-binary forwarder has no use for.
package logr

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format selects the zap encoder.
type Format int

const (
	Console Format = iota
	JSON
)

// Config describes how to build the forwarder's logger.
type Config struct {
	Format Format
	Level  zapcore.Level
	Debug  bool // overrides Level to Debug; Format is left as given
}

// Logger bundles a zap.Logger with the atomic level backing it, so the
// CLI's `set debug` / `unset debug` verbs (spec §6) can flip verbosity at
// runtime without rebuilding the logger or its core.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// New builds a Logger from cfg. Debug always starts the atomic level at
// Debug regardless of cfg.Level.
func New(cfg Config) (*Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Format == Console {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.DisableStacktrace = true
	}
	lvl := cfg.Level
	if cfg.Debug {
		lvl = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: l, level: zcfg.Level}, nil
}

// SetDebug flips the logger's level between Debug and Info at runtime.
func (l *Logger) SetDebug(on bool) {
	if on {
		l.level.SetLevel(zapcore.DebugLevel)
	} else {
		l.level.SetLevel(zapcore.InfoLevel)
	}
}
