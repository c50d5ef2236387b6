package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_PassesKeyValues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapLoggerFrom(zap.New(core))
	ctx := context.Background()

	l.Debug(ctx, "dbg")
	l.Info(ctx, "inf", "login_name", "alice")
	l.With("module", "http").Warn(ctx, "wrn", "status", 403)
	l.Error(ctx, "err")

	entries := logs.All()
	require.Len(t, entries, 4)

	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, "alice", entries[1].ContextMap()["login_name"])

	warn := entries[2].ContextMap()
	assert.Equal(t, "http", warn["module"])
	assert.EqualValues(t, 403, warn["status"])
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

type syncRecorder struct {
	Logger
	synced int
}

func (s *syncRecorder) Sync() error {
	s.synced++
	return nil
}

func TestSync(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	assert.NoError(t, Sync(NewZapLoggerFrom(zap.New(core))))
	assert.NoError(t, Sync(Nop()))

	rec := &syncRecorder{Logger: Nop()}
	require.NoError(t, Sync(rec))
	assert.Equal(t, 1, rec.synced)
}
