package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	StatsDBPath        string        `mapstructure:"stats_db_path" yaml:"stats_db_path"`
	StatsFlushInterval time.Duration `mapstructure:"stats_flush_interval" yaml:"stats_flush_interval"`

	PingInterval    time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	MaxMessageBytes int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	FramesPerMinute int           `mapstructure:"frames_per_minute" yaml:"frames_per_minute"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8000",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",

		StatsDBPath:        "anochat-stats.db",
		StatsFlushInterval: 30 * time.Second,

		PingInterval:    30 * time.Second,
		MaxMessageBytes: 1 << 20,
		FramesPerMinute: 0, // unlimited
	}
}
