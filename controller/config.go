package controller

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/st-keller/introspection-agent/listener"
)

// Config holds controller settings.
type Config struct {
	SocketDir string        `mapstructure:"socket_dir"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// LoadConfig reads ~/.config/vasco/config.toml (or the file named by
// VASCO_CTL_CONFIG) and env. Env var overrides use prefix VASCO_CTL_.
func LoadConfig() (Config, error) {
	v := viper.New()

	v.SetDefault("socket_dir", listener.DefaultDir)
	v.SetDefault("timeout", DefaultTimeout.String())

	v.SetConfigType("toml")

	cfgPath := os.Getenv("VASCO_CTL_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "vasco"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("VASCO_CTL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// an explicitly named file must exist
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c, nil
}
