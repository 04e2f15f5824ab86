package logger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fastygo/todolog/pkg/logger"
)

func TestNewFallsBackToInfo(t *testing.T) {
	log, err := logger.New(logger.Config{Level: "verbose", Encoding: "console"})
	require.NoError(t, err)

	assert.False(t, log.Core().Enabled(zap.DebugLevel))
	assert.True(t, log.Core().Enabled(zap.InfoLevel))
}

func TestFromContextAddsFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := logger.ContextWithRequestID(context.Background(), "req-1")
	ctx = logger.ContextWithOwner(ctx, "alice")
	logger.FromContext(ctx, base).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "alice", fields["owner"])
}

func TestFromContextWithoutValues(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, logger.FromContext(context.Background(), base))
}
