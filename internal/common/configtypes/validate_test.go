package configtypes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/edgecomet/telemetry/pkg/types"
)

func validRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		RecorderID:       "recorder-1",
		MaxEventsPerPing: 500,
		HTTPApi: HTTPApiConfig{
			Enabled:        true,
			Listen:         ":10080",
			AuthKey:        "secret",
			RequestTimeout: types.Duration(10 * time.Second),
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		EventLogging: EventLoggingConfig{
			File: EventFileConfig{
				Enabled: true,
				Path:    "/var/log/events.log",
				Filter:  EventFilterConfig{Include: []string{"vpn.*"}},
			},
			Redis: EventRedisConfig{
				Enabled: true,
				MaxLen:  1000,
				TTL:     types.Duration(24 * time.Hour),
			},
		},
		Logging: LogConfig{
			Level:   "info",
			Console: ConsoleLogConfig{Enabled: true, Format: "console"},
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Listen:    ":9090",
			Path:      "/metrics",
			Namespace: "telemetry",
		},
	}
}

func TestRecorderConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *RecorderConfig)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			mutate: func(c *RecorderConfig) {},
		},
		{
			name:    "missing recorder_id",
			mutate:  func(c *RecorderConfig) { c.RecorderID = "" },
			wantErr: true,
			errMsg:  "recorder_id is required",
		},
		{
			name:    "negative max_events_per_ping",
			mutate:  func(c *RecorderConfig) { c.MaxEventsPerPing = -1 },
			wantErr: true,
			errMsg:  "max_events_per_ping must be >= 0",
		},
		{
			name:    "http api without listen",
			mutate:  func(c *RecorderConfig) { c.HTTPApi.Listen = "" },
			wantErr: true,
			errMsg:  "http_api.listen",
		},
		{
			name:    "http api without auth key",
			mutate:  func(c *RecorderConfig) { c.HTTPApi.AuthKey = "" },
			wantErr: true,
			errMsg:  "http_api.auth_key is required",
		},
		{
			name: "disabled http api needs nothing",
			mutate: func(c *RecorderConfig) {
				c.HTTPApi = HTTPApiConfig{}
			},
		},
		{
			name:    "file logging without path",
			mutate:  func(c *RecorderConfig) { c.EventLogging.File.Path = "" },
			wantErr: true,
			errMsg:  "event_logging.file.path is required",
		},
		{
			name: "invalid filter pattern",
			mutate: func(c *RecorderConfig) {
				c.EventLogging.File.Filter.Exclude = []string{"~[broken"}
			},
			wantErr: true,
			errMsg:  "event_logging.file.filter.exclude",
		},
		{
			name:    "redis logging without redis addr",
			mutate:  func(c *RecorderConfig) { c.Redis.Addr = "" },
			wantErr: true,
			errMsg:  "redis.addr is required",
		},
		{
			name:    "negative redis max_len",
			mutate:  func(c *RecorderConfig) { c.EventLogging.Redis.MaxLen = -5 },
			wantErr: true,
			errMsg:  "max_len must be >= 0",
		},
		{
			name:    "metrics on api port",
			mutate:  func(c *RecorderConfig) { c.Metrics.Listen = "127.0.0.1:10080" },
			wantErr: true,
			errMsg:  "different port",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *RecorderConfig) { c.Logging.Level = "verbose" },
			wantErr: true,
			errMsg:  "logging.level must be one of",
		},
		{
			name: "file log without path",
			mutate: func(c *RecorderConfig) {
				c.Logging.File = FileLogConfig{Enabled: true, Format: "json"}
			},
			wantErr: true,
			errMsg:  "logging.file.path is required",
		},
		{
			name:    "invalid console format",
			mutate:  func(c *RecorderConfig) { c.Logging.Console.Format = "text" },
			wantErr: true,
			errMsg:  "logging.console.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validRecorderConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				if assert.Error(t, err) {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecorderConfig_ValidateNil(t *testing.T) {
	var cfg *RecorderConfig
	assert.NoError(t, cfg.Validate())
}
