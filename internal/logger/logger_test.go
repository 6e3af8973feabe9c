package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	for _, mode := range []string{"dev", "prod", " Production ", ""} {
		l, err := New(mode)
		require.NoError(t, err, mode)
		assert.NotNil(t, l.SugaredLogger)
	}
}

func TestWith(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("request_id", "abc").Warn("slow KP", "kp", "BTE")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "slow KP", entries[0].Message)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Equal(t, map[string]interface{}{"request_id": "abc", "kp": "BTE"}, entries[0].ContextMap())
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Info("discarded")
	l.Sync()
}
