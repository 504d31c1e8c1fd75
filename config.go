package introspection

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/st-keller/introspection-agent/listener"
	"github.com/st-keller/introspection-agent/logging"
	"github.com/st-keller/introspection-agent/standard"
	"github.com/st-keller/introspection-agent/telemetry"
)

// Config holds agent configuration. LoadConfig fills it from VASCO_*
// environment variables.
type Config struct {
	// ProcessName defaults to the executable's base name.
	ProcessName string `env:"VASCO_PROCESS_NAME"`
	// SocketDir holds <ProcessName>-IpcPipe. Defaults to listener.DefaultDir.
	SocketDir string `env:"VASCO_SOCKET_DIR"`
	// LogDir enables the file mirror when set.
	LogDir   string `env:"VASCO_LOG_DIR"`
	LogLevel string `env:"VASCO_LOG_LEVEL" envDefault:"info"`
	// Blacklist lists substrings dropped from the mirrored copy.
	Blacklist []string `env:"VASCO_LOG_BLACKLIST" envSeparator:"|"`

	WaitPoll    time.Duration `env:"VASCO_WAIT_POLL" envDefault:"1s"`
	DrainWindow time.Duration `env:"VASCO_DRAIN_WINDOW" envDefault:"50ms"`

	Telemetry telemetry.Config
}

// DefaultBlacklist is the set of known-noisy toolkit messages kept out of the
// mirrored log file.
var DefaultBlacklist = []string{
	"propagateSizeHints",
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (Config, error) {
	cfg := Config{SocketDir: listener.DefaultDir, Blacklist: DefaultBlacklist}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.ProcessName == "" {
		cfg.ProcessName = standard.ProcessName()
	}
	return cfg, nil
}

// Validate checks if all required config fields are present.
func (c Config) Validate() error {
	if c.ProcessName == "" {
		return fmt.Errorf("ProcessName required")
	}
	if c.SocketDir == "" {
		return fmt.Errorf("SocketDir required")
	}
	if c.WaitPoll <= 0 {
		return fmt.Errorf("WaitPoll required (must be > 0)")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the parsed log level, falling back to info.
func (c Config) Level() slog.Level {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// LogFile returns the mirror path, or "" when mirroring is disabled.
func (c Config) LogFile() string {
	if c.LogDir == "" {
		return ""
	}
	return filepath.Join(c.LogDir, c.ProcessName+"-vasco.log")
}

// SocketPath returns the path the agent binds.
func (c Config) SocketPath() string {
	return filepath.Join(c.SocketDir, listener.PipeName(c.ProcessName))
}

// TelemetryTarget describes this host for trace resources.
func (c Config) TelemetryTarget() telemetry.Target {
	return telemetry.Target{
		Process:    c.ProcessName,
		SocketPath: c.SocketPath(),
		MaxPayload: listener.MaxPayload,
	}
}
