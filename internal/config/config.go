package config

import "time"

// Config holds server configuration values.
type Config struct {
	// Addr is the TCP listen address for the line protocol.
	Addr string `mapstructure:"addr" yaml:"addr"`
	// HTTPAddr serves the WebSocket endpoint and the status API.
	HTTPAddr string `mapstructure:"http_addr" yaml:"http_addr"`

	MaxClients     int `mapstructure:"max_clients" yaml:"max_clients"`
	MaxMessageLen  int `mapstructure:"max_message_len" yaml:"max_message_len"`
	MaxNicknameLen int `mapstructure:"max_nickname_len" yaml:"max_nickname_len"`
	MaxRoomNameLen int `mapstructure:"max_room_name_len" yaml:"max_room_name_len"`

	RateLimitMax    int           `mapstructure:"rate_limit_max" yaml:"rate_limit_max"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window" yaml:"rate_limit_window"`

	DefaultRooms []string `mapstructure:"default_rooms" yaml:"default_rooms"`
	AutoJoinRoom string   `mapstructure:"auto_join_room" yaml:"auto_join_room"`

	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":6667",
		HTTPAddr:          ":8080",
		MaxClients:        100,
		MaxMessageLen:     500,
		MaxNicknameLen:    20,
		MaxRoomNameLen:    30,
		RateLimitMax:      30,
		RateLimitWindow:   60 * time.Second,
		DefaultRooms:      []string{"general", "random", "help"},
		AutoJoinRoom:      "general",
		LogLevel:          "info",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}

// Sanitize clamps invalid values back to defaults so a bad config file
// cannot disable limits entirely.
func (c *Config) Sanitize() {
	def := Default()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = def.HTTPAddr
	}
	if c.MaxClients <= 0 {
		c.MaxClients = def.MaxClients
	}
	if c.MaxMessageLen <= 0 {
		c.MaxMessageLen = def.MaxMessageLen
	}
	if c.MaxNicknameLen <= 0 {
		c.MaxNicknameLen = def.MaxNicknameLen
	}
	if c.MaxRoomNameLen <= 0 {
		c.MaxRoomNameLen = def.MaxRoomNameLen
	}
	if c.RateLimitMax <= 0 {
		c.RateLimitMax = def.RateLimitMax
	}
	if c.RateLimitWindow <= 0 {
		c.RateLimitWindow = def.RateLimitWindow
	}
	if len(c.DefaultRooms) == 0 {
		c.DefaultRooms = def.DefaultRooms
	}
	if c.AutoJoinRoom == "" {
		c.AutoJoinRoom = def.AutoJoinRoom
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = def.ReadHeaderTimeout
	}
}
