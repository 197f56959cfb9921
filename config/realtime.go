// Package config loads the realtime server configuration from an optional
// YAML file with environment-variable overrides (prefix REALTIME_).
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the realtime server configuration.
type Config struct {
	Port int `mapstructure:"port"`

	// MaxConnections bounds the number of simultaneous WebSocket
	// connections; upgrades beyond it are rejected at accept time.
	MaxConnections int `mapstructure:"max_connections"`

	// SendBufferSize is the per-connection outbound queue depth.
	SendBufferSize int `mapstructure:"send_buffer_size"`

	// DropPolicy is "drop_new" or "drop_oldest", applied when a
	// connection's outbound queue is full.
	DropPolicy string `mapstructure:"drop_policy"`

	PingInterval time.Duration `mapstructure:"ping_interval"`
	PongWait     time.Duration `mapstructure:"pong_wait"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	ReadLimit    int64         `mapstructure:"read_limit"`

	ReadBufferSize  int `mapstructure:"read_buffer_size"`
	WriteBufferSize int `mapstructure:"write_buffer_size"`
}

// Load reads realtime.yaml from the working directory or ./config if
// present, applies env overrides, and validates the result.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("realtime")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("REALTIME")
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("max_connections", 1000)
	v.SetDefault("send_buffer_size", 256)
	v.SetDefault("drop_policy", "drop_new")
	v.SetDefault("ping_interval", "30s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_timeout", "10s")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("read_buffer_size", 1024)
	v.SetDefault("write_buffer_size", 1024)

	// Config file is optional; defaults plus env are a complete config.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DropPolicy {
	case "drop_new", "drop_oldest":
	default:
		return fmt.Errorf("drop_policy must be drop_new or drop_oldest, got %q", c.DropPolicy)
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", c.MaxConnections)
	}
	if c.SendBufferSize <= 0 {
		return fmt.Errorf("send_buffer_size must be positive, got %d", c.SendBufferSize)
	}
	if c.PingInterval >= c.PongWait {
		return fmt.Errorf("ping_interval (%s) must be less than pong_wait (%s)", c.PingInterval, c.PongWait)
	}
	return nil
}
