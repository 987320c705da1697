package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_DEV", "1")
	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, Config{Level: "debug", Dev: true}, ConfigFromEnv())

	t.Setenv("LOG_DEV", "")
	t.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, Config{Level: "warn"}, ConfigFromEnv())
}

func TestInit(t *testing.T) {
	l, err := Init(Config{Level: "error"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.ErrorLevel))
	assert.NotNil(t, OrNop(nil))
}
