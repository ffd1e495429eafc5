package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_BasicLevels(t *testing.T) {
	l := New("debug")
	require.NotNil(t, l)
	l.Debug("dbg", "k", 1)
	l.Info("info")
	l.Warn("warn")
	l.Error("err")
}

func TestLogger_WithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromCore(core).With("block_id", 7)
	l.Warn("block failed", "error", "boom")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "block failed", entries[0].Message)
	ctx := entries[0].ContextMap()
	assert.EqualValues(t, 7, ctx["block_id"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("bogus"))
}
