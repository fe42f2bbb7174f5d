package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewNop_DoesNotPanic(t *testing.T) {
	log := NewNop()

	assert.NotPanics(t, func() {
		log.Debug("debug", "k", "v")
		log.Info("info")
		log.Warn("warn")
		log.Error("error")
		log.With("a", 1).Named("child").Info("nested")
		log.WithError(nil).Info("nil error is a no-op")
	})
}

func TestParseLevel_Fallback(t *testing.T) {
	assert.Equal(t, parseLevel("info").String(), parseLevel("bogus").String())
	assert.NotEqual(t, parseLevel("debug").String(), parseLevel("error").String())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Empty(t, cfg.File)
}
