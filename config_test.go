package introspection

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/st-keller/introspection-agent/listener"
)

// clearConfigEnv unsets the agent's variables; t.Setenv restores them.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"VASCO_PROCESS_NAME", "VASCO_SOCKET_DIR", "VASCO_LOG_DIR", "VASCO_LOG_LEVEL",
		"VASCO_LOG_BLACKLIST", "VASCO_WAIT_POLL", "VASCO_DRAIN_WINDOW",
		"VASCO_OTEL_ENDPOINT", "VASCO_OTEL_ENABLED",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("VASCO_PROCESS_NAME", "gallery")
	t.Setenv("TMPDIR", t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "gallery", cfg.ProcessName)
	assert.Equal(t, listener.DefaultDir, cfg.SocketDir)
	assert.Equal(t, time.Second, cfg.WaitPoll)
	assert.Equal(t, 50*time.Millisecond, cfg.DrainWindow)
	assert.Equal(t, DefaultBlacklist, cfg.Blacklist)
	assert.Empty(t, cfg.LogFile())
	assert.True(t, cfg.Telemetry.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("VASCO_PROCESS_NAME", "gallery")
	t.Setenv("VASCO_SOCKET_DIR", "/run/vasco")
	t.Setenv("VASCO_LOG_DIR", "/var/log/vasco")
	t.Setenv("VASCO_LOG_LEVEL", "debug")
	t.Setenv("VASCO_LOG_BLACKLIST", "propagateSizeHints|QXcbConnection")
	t.Setenv("VASCO_WAIT_POLL", "250ms")
	t.Setenv("VASCO_OTEL_ENDPOINT", "http://collector:4318")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/run/vasco", cfg.SocketDir)
	assert.Equal(t, filepath.Join("/var/log/vasco", "gallery-vasco.log"), cfg.LogFile())
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, []string{"propagateSizeHints", "QXcbConnection"}, cfg.Blacklist)
	assert.Equal(t, 250*time.Millisecond, cfg.WaitPoll)
	assert.Equal(t, "http://collector:4318", cfg.Telemetry.Endpoint)
	assert.Equal(t, "/run/vasco/gallery-IpcPipe", cfg.SocketPath())
	assert.Equal(t, cfg.SocketPath(), cfg.TelemetryTarget().SocketPath)
}

func TestLoadConfigFallsBackToExecutableName(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.ProcessName)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{ProcessName: "host", SocketDir: "/tmp", LogLevel: "info", WaitPoll: time.Second}
	require.NoError(t, valid.Validate())

	cfg := valid
	cfg.SocketDir = ""
	assert.EqualError(t, cfg.Validate(), "SocketDir required")

	cfg = valid
	cfg.WaitPoll = 0
	assert.EqualError(t, cfg.Validate(), "WaitPoll required (must be > 0)")

	cfg = valid
	cfg.LogLevel = "loud"
	assert.Error(t, cfg.Validate())
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}
