package container

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestKVLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	newKVLogger(logger, false).Info("Workflow started", "content_item_id", int64(7))
	newKVLogger(logger, true).Info("Handler registered", "handler_name", "journal")
	newKVLogger(logger, false).Error("Handler error", "error", errors.New("boom"))

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, int64(7), entries[0].ContextMap()["content_item_id"])

	assert.Equal(t, zapcore.DebugLevel, entries[1].Level, "quiet adapters log info at debug")

	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "boom", entries[2].ContextMap()["error"])
}
