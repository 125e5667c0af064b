package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfigureWritesFileAtLevel(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "lights.log")
	logger := New("logging-test")

	require.NoError(t, Configure("warn", logFile))
	t.Cleanup(func() {
		_ = Configure("info", "")
	})

	logger.Info("hidden info line")
	logger.Warn("visible warn line")
	require.NoError(t, Close())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "visible warn line")
	assert.NotContains(t, string(content), "hidden info line")
	assert.Contains(t, string(content), "logging-test")
}

func TestLevelerAppliesToLoggersCreatedLater(t *testing.T) {
	GetLeveler().SetAll(zap.ErrorLevel)
	t.Cleanup(func() {
		GetLeveler().SetAll(zap.InfoLevel)
	})

	_ = New("created-after")
	assert.Equal(t, zap.ErrorLevel, GetLeveler().GetLevel("created-after"))

	GetLeveler().SetLevel("created-after", zap.DebugLevel)
	assert.Equal(t, zap.DebugLevel, GetLeveler().GetLevel("created-after"))
	assert.Equal(t, zap.ErrorLevel, GetLeveler().GetLevel("never-created"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: "info"},
		{in: "DEBUG", want: "debug"},
		{in: "warn", want: "warn"},
		{in: "error", want: "error"},
		{in: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			lvl, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, lvl.String())
		})
	}
}

func TestDefaultFileConfig(t *testing.T) {
	cfg := DefaultFileConfig("/tmp/lights.log")
	assert.Equal(t, "/tmp/lights.log", cfg.Path)
	assert.Equal(t, 20, cfg.MaxSizeMB)
	assert.Equal(t, 3, cfg.MaxBackups)
	assert.True(t, cfg.Compress)
}
