package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"nnvts/internal/config"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		cfg     config.LoggingConfig
		verbose bool
		want    zapcore.Level
	}{
		{config.LoggingConfig{}, false, zapcore.InfoLevel},
		{config.LoggingConfig{Level: "warn", Encoding: "json"}, false, zapcore.WarnLevel},
		{config.LoggingConfig{Level: "error"}, true, zapcore.DebugLevel},
	}
	for _, tt := range tests {
		l, err := New(tt.cfg, tt.verbose)
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(tt.want))
		if tt.want > zapcore.DebugLevel {
			assert.False(t, l.Core().Enabled(tt.want-1))
		}
	}
}

func TestNewInvalid(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud"}, false)
	assert.Error(t, err)
	_, err = New(config.LoggingConfig{Encoding: "xml"}, false)
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
