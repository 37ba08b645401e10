package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gitxandert/process-monitor/types"
)

func TestZapLogger_ImplementsInterface(t *testing.T) {
	t.Helper()
	var _ types.Logger = (*ZapLogger)(nil)
}

func TestNewZap(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	logger := NewZap(zap.New(core).Sugar())

	require.NotNil(t, logger)
	require.NotNil(t, logger.logger)
}

func TestZapLogger_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZap(zap.New(core).Sugar())

	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "process_id", "payments-1")
	logger.Warn("warn message")
	logger.Error("error message", "error", "timeout")

	entries := logs.All()
	require.Len(t, entries, 4)

	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "debug message", entries[0].Message)
	assert.Equal(t, "value", entries[0].ContextMap()["key"])

	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, "payments-1", entries[1].ContextMap()["process_id"])

	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestZapLogger_LevelFiltering(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := NewZap(zap.New(core).Sugar())

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "warn message", entries[0].Message)
}
