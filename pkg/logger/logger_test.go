package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestNopLoggerWith(t *testing.T) {
	l := NewNop().With(String("event_id", "evt-1"))
	assert.NotPanics(t, func() {
		l.Info("scheduler published", Int("published", 2))
		l.Warn("calendar delete failed", Error(assert.AnError))
	})
}
