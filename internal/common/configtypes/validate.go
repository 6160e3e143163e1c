package configtypes

import (
	"fmt"

	"github.com/edgecomet/telemetry/pkg/pattern"
)

// Validate validates recorder configuration
func (c *RecorderConfig) Validate() error {
	if c == nil {
		return nil
	}

	if c.RecorderID == "" {
		return fmt.Errorf("recorder_id is required")
	}

	if c.MaxEventsPerPing < 0 {
		return fmt.Errorf("max_events_per_ping must be >= 0, got %d", c.MaxEventsPerPing)
	}

	if c.HTTPApi.Enabled {
		if err := ValidateListenAddress(c.HTTPApi.Listen); err != nil {
			return fmt.Errorf("http_api.listen: %w", err)
		}
		if c.HTTPApi.AuthKey == "" {
			return fmt.Errorf("http_api.auth_key is required when http_api is enabled")
		}
		if c.HTTPApi.RequestTimeout < 0 {
			return fmt.Errorf("http_api.request_timeout must be >= 0")
		}
	}

	if err := c.EventLogging.validate(); err != nil {
		return err
	}

	if c.EventLogging.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when event_logging.redis is enabled")
	}

	if c.Metrics.Enabled {
		if err := ValidateListenAddress(c.Metrics.Listen); err != nil {
			return fmt.Errorf("metrics.listen: %w", err)
		}
		if c.HTTPApi.Enabled && samePort(c.Metrics.Listen, c.HTTPApi.Listen) {
			return fmt.Errorf("metrics.listen must use a different port than http_api.listen")
		}
	}

	return c.Logging.validate()
}

func (e *EventLoggingConfig) validate() error {
	if e.File.Enabled && e.File.Path == "" {
		return fmt.Errorf("event_logging.file.path is required when file logging is enabled")
	}
	if err := e.File.Filter.validate("event_logging.file.filter"); err != nil {
		return err
	}

	if e.Redis.MaxLen < 0 {
		return fmt.Errorf("event_logging.redis.max_len must be >= 0, got %d", e.Redis.MaxLen)
	}
	if e.Redis.TTL < 0 {
		return fmt.Errorf("event_logging.redis.ttl must be >= 0")
	}
	return e.Redis.Filter.validate("event_logging.redis.filter")
}

func (f *EventFilterConfig) validate(path string) error {
	if _, err := pattern.CompileAll(f.Include); err != nil {
		return fmt.Errorf("%s.include: %w", path, err)
	}
	if _, err := pattern.CompileAll(f.Exclude); err != nil {
		return fmt.Errorf("%s.exclude: %w", path, err)
	}
	return nil
}

func (l *LogConfig) validate() error {
	validLogLevels := map[string]bool{
		LogLevelDebug: true,
		LogLevelInfo:  true,
		LogLevelWarn:  true,
		LogLevelError: true,
	}
	if l.Level != "" && !validLogLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got '%s'", l.Level)
	}

	validConsoleFormats := map[string]bool{
		LogFormatJSON:    true,
		LogFormatConsole: true,
	}
	if l.Console.Enabled && l.Console.Format != "" && !validConsoleFormats[l.Console.Format] {
		return fmt.Errorf("logging.console.format must be 'json' or 'console', got '%s'", l.Console.Format)
	}

	if l.File.Enabled {
		if l.File.Path == "" {
			return fmt.Errorf("logging.file.path is required when file logging is enabled")
		}
		validFileFormats := map[string]bool{
			LogFormatJSON: true,
			LogFormatText: true,
		}
		if l.File.Format != "" && !validFileFormats[l.File.Format] {
			return fmt.Errorf("logging.file.format must be 'json' or 'text', got '%s'", l.File.Format)
		}
	}

	return nil
}
