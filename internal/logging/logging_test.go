package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLevels(t *testing.T) {
	logger, err := New("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = New(" WARN ")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))

	_, err = New("chatty")
	assert.Error(t, err)
}

func TestMustNewFallsBack(t *testing.T) {
	logger := MustNew("chatty")
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestTemporalLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	tl := NewTemporalLogger(zap.New(core))

	tl.Info("activity started", "layer", "staging")
	withLogger, ok := tl.(log.WithLogger)
	require.True(t, ok)
	withLogger.With("workflow", "lakehouse").Error("activity failed", "attempt", 2)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "activity started", entries[0].Message)
	assert.Equal(t, "staging", entries[0].ContextMap()["layer"])
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.Equal(t, "lakehouse", entries[1].ContextMap()["workflow"])
	assert.EqualValues(t, 2, entries[1].ContextMap()["attempt"])
}
