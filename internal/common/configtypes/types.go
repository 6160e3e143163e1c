package configtypes

import (
	"github.com/edgecomet/telemetry/pkg/types"
)

// Log level constants
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Log format constants
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
	LogFormatText    = "text"
)

// RecorderConfig is the root configuration of the eventrecd daemon
type RecorderConfig struct {
	RecorderID       string             `yaml:"recorder_id"`                   // Unique identifier for this recorder instance
	UploadEnabled    *bool              `yaml:"upload_enabled,omitempty"`      // Initial upload switch (default: true)
	MaxEventsPerPing int                `yaml:"max_events_per_ping,omitempty"` // Buffered events per ping before a flush (default: 500)
	HTTPApi          HTTPApiConfig      `yaml:"http_api"`
	Redis            RedisConfig        `yaml:"redis"`
	EventLogging     EventLoggingConfig `yaml:"event_logging"`
	Logging          LogConfig          `yaml:"logging"`
	Metrics          MetricsConfig      `yaml:"metrics"`
}

// HTTPApiConfig configures the recording bridge API
type HTTPApiConfig struct {
	Enabled        bool           `yaml:"enabled"`
	Listen         string         `yaml:"listen"`          // e.g. ":10080"
	AuthKey        string         `yaml:"auth_key"`        // Expected X-Internal-Auth value
	RequestTimeout types.Duration `yaml:"request_timeout"` // e.g. 10s
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LogConfig struct {
	Level   string           `yaml:"level"`
	Console ConsoleLogConfig `yaml:"console"`
	File    FileLogConfig    `yaml:"file"`
}

type ConsoleLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"`
	Level   string `yaml:"level,omitempty"`
}

type FileLogConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Path     string         `yaml:"path"`
	Format   string         `yaml:"format"`
	Level    string         `yaml:"level,omitempty"`
	Rotation RotationConfig `yaml:"rotation"`
}

type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`
	MaxAge     int  `yaml:"max_age"`
	MaxBackups int  `yaml:"max_backups"`
	Compress   bool `yaml:"compress"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// EventLoggingConfig configures where committed events are mirrored
type EventLoggingConfig struct {
	File  EventFileConfig  `yaml:"file"`
	Redis EventRedisConfig `yaml:"redis"`
}

// EventFilterConfig selects events by metric name (see pkg/pattern).
// Empty include means every event; exclude wins over include.
type EventFilterConfig struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// EventFileConfig configures file-based event logging
type EventFileConfig struct {
	Enabled  bool              `yaml:"enabled"`
	Path     string            `yaml:"path"`
	Template string            `yaml:"template"`
	Filter   EventFilterConfig `yaml:"filter"`
	Rotation RotationConfig    `yaml:"rotation"`
}

// EventRedisConfig configures Redis list event logging
type EventRedisConfig struct {
	Enabled   bool              `yaml:"enabled"`
	KeyPrefix string            `yaml:"key_prefix"` // default "events"
	MaxLen    int64             `yaml:"max_len"`    // Entries kept per ping list (0 = unbounded)
	TTL       types.Duration    `yaml:"ttl"`        // List expiry, refreshed on every push (0 = none)
	Filter    EventFilterConfig `yaml:"filter"`
}
