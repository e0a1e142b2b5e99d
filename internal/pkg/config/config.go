package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Map       MapConfig       `mapstructure:"map"`
	Mask      MaskConfig      `mapstructure:"mask"`
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Sessions  SessionsConfig  `mapstructure:"sessions"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	StaticDir    string `mapstructure:"static_dir"`
	RateLimit    int    `mapstructure:"rate_limit"`
}

// AuthConfig enables HTTP basic auth when both fields are set.
type AuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

func (a AuthConfig) Enabled() bool {
	return a.Username != "" && a.Password != ""
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
	TTL     int    `mapstructure:"ttl"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MapConfig is the initial view of a newly created session.
type MapConfig struct {
	Width     int     `mapstructure:"width"`
	Height    int     `mapstructure:"height"`
	Zoom      float64 `mapstructure:"zoom"`
	CenterLat float64 `mapstructure:"center_lat"`
	CenterLon float64 `mapstructure:"center_lon"`
}

type MaskConfig struct {
	Margin        float64 `mapstructure:"margin"`
	BaseRadius    float64 `mapstructure:"base_radius"`
	ReferenceZoom float64 `mapstructure:"reference_zoom"`
	Fill          string  `mapstructure:"fill"`
	Opacity       float64 `mapstructure:"opacity"`
	PathColor     string  `mapstructure:"path_color"`
	PathWidth     float64 `mapstructure:"path_width"`
}

type TrackerConfig struct {
	MinStepMeters float64 `mapstructure:"min_step_meters"`
}

// SessionsConfig bounds how many sessions stay open and for how long.
type SessionsConfig struct {
	Max         int `mapstructure:"max"`
	IdleTimeout int `mapstructure:"idle_timeout"` // minutes, 0 disables eviction
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.static_dir", "./web/dist")
	v.SetDefault("server.rate_limit", 300)
	v.SetDefault("auth.username", "")
	v.SetDefault("auth.password", "")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", true)
	v.SetDefault("valkey.ttl", 30)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("map.width", 1280)
	v.SetDefault("map.height", 720)
	v.SetDefault("map.zoom", 15)
	v.SetDefault("map.center_lat", 34.702485)
	v.SetDefault("map.center_lon", 135.495951)
	v.SetDefault("mask.margin", 1000)
	v.SetDefault("mask.base_radius", 1)
	v.SetDefault("mask.reference_zoom", 10)
	v.SetDefault("mask.fill", "#1b1b2f")
	v.SetDefault("mask.opacity", 0.9)
	v.SetDefault("mask.path_color", "#e63946")
	v.SetDefault("mask.path_width", 3)
	v.SetDefault("tracker.min_step_meters", 0)
	v.SetDefault("sessions.max", 1000)
	v.SetDefault("sessions.idle_timeout", 60)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: FOGMAP_MASK_BASE_RADIUS → mask.base_radius
	v.SetEnvPrefix("FOGMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server.rate_limit must not be negative")
	}
	if (c.Auth.Username == "") != (c.Auth.Password == "") {
		errs = append(errs, "auth.username and auth.password must be set together")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required when nats is enabled")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required when valkey is enabled")
	}
	if c.Valkey.TTL < 0 {
		errs = append(errs, "valkey.ttl must not be negative")
	}
	if c.Map.Width <= 0 || c.Map.Height <= 0 {
		errs = append(errs, fmt.Sprintf("map size must be positive, got %dx%d", c.Map.Width, c.Map.Height))
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > 22 {
		errs = append(errs, fmt.Sprintf("map.zoom must be 0-22, got %g", c.Map.Zoom))
	}
	if c.Map.CenterLat < -90 || c.Map.CenterLat > 90 || c.Map.CenterLon < -180 || c.Map.CenterLon > 180 {
		errs = append(errs, "map center is out of range")
	}
	if c.Mask.BaseRadius <= 0 {
		errs = append(errs, "mask.base_radius must be positive")
	}
	if c.Mask.Margin < 0 {
		errs = append(errs, "mask.margin must not be negative")
	}
	if c.Mask.Opacity < 0 || c.Mask.Opacity > 1 {
		errs = append(errs, fmt.Sprintf("mask.opacity must be 0-1, got %g", c.Mask.Opacity))
	}
	if c.Tracker.MinStepMeters < 0 {
		errs = append(errs, "tracker.min_step_meters must not be negative")
	}
	if c.Sessions.Max < 0 {
		errs = append(errs, "sessions.max must not be negative")
	}
	if c.Sessions.IdleTimeout < 0 {
		errs = append(errs, "sessions.idle_timeout must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
