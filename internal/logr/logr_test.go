package logr

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewDefaultsToConfiguredLevel(t *testing.T) {
	l, err := New(Config{Format: Console, Level: zapcore.WarnLevel})
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(zapcore.InfoLevel))
	require.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestNewDebugOverridesLevel(t *testing.T) {
	l, err := New(Config{Format: Console, Level: zapcore.ErrorLevel, Debug: true})
	require.NoError(t, err)
	require.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestSetDebugTogglesLevelAtRuntime(t *testing.T) {
	l, err := New(Config{Format: Console, Level: zapcore.InfoLevel})
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(zapcore.DebugLevel))

	l.SetDebug(true)
	require.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l.SetDebug(false)
	require.False(t, l.Core().Enabled(zapcore.DebugLevel))
	require.True(t, l.Core().Enabled(zapcore.InfoLevel))
}
