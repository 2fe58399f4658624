package xlog

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestZapLevelMapping(t *testing.T) {
	require.Equal(t, zapcore.InfoLevel, zapLevel(LevelInfo))
	require.Equal(t, zapcore.DebugLevel, zapLevel(LevelTrace))
	require.Equal(t, zapcore.DebugLevel, zapLevel(LevelAll))
	require.Equal(t, zapcore.ErrorLevel, zapLevel(LevelError))
}

func TestNewNoneLevelProducesNopLogger(t *testing.T) {
	l := New(LevelNone, "worker-0", "test")
	require.NotNil(t, l)
	l.Infof("this should be silent: %d", 1)
}

func TestWithChainsFields(t *testing.T) {
	l := New(LevelInfo, "island-1", "strategy")
	child := l.With("generation", 5)
	require.NotNil(t, child)
	child.Infof("generated genome %d", 5)
}
