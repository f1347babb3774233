package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zapcore"

	"github.com/Funclose/Ef-HomeWork/internal/config"
)

func TestBuildLevels(t *testing.T) {
	cases := []struct {
		level string
		want  zapcore.Level
	}{
		{level: "debug", want: zapcore.DebugLevel},
		{level: "WARN", want: zapcore.WarnLevel},
		{level: "", want: zapcore.InfoLevel},
		{level: "loud", want: zapcore.InfoLevel},
	}

	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			logger, err := Build(config.Observability{LogLevel: tc.level, ServiceName: "efshop"})
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tc.want))
			if tc.want > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tc.want-1))
			}
		})
	}
}

func TestBuildConsoleEncoding(t *testing.T) {
	logger, err := Build(config.Observability{LogEncoding: "console", LogLevel: "error"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNewRegistersLifecycle(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	logger, err := New(lc, config.Config{Observability: config.Observability{LogLevel: "info"}})
	require.NoError(t, err)
	require.NotNil(t, logger)

	lc.RequireStart()
	lc.RequireStop()
}
