package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{" warn ", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	for _, dev := range []bool{false, true} {
		logger, err := New("debug", dev)
		require.NoError(t, err)
		require.NotNil(t, logger)
		assert.True(t, logger.Desugar().Core().Enabled(zapcore.DebugLevel))
	}

	_, err := New("loud", false)
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	logger := Nop()
	logger.Infow("discarded", "key", "value")
	assert.False(t, logger.Desugar().Core().Enabled(zapcore.ErrorLevel))
}
