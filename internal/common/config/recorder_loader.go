package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/telemetry/internal/common/configtypes"
	"github.com/edgecomet/telemetry/internal/common/redis"
	"github.com/edgecomet/telemetry/internal/common/yamlutil"
	"github.com/edgecomet/telemetry/internal/events"
	"github.com/edgecomet/telemetry/pkg/types"
)

const (
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "eventrecd"
	DefaultRequestTimeout   = 10 * time.Second
)

// applyRecorderDefaults applies default values to recorder configuration
func applyRecorderDefaults(config *configtypes.RecorderConfig) error {
	// If both outputs are disabled (zero values), enable console by default
	if !config.Logging.Console.Enabled && !config.Logging.File.Enabled {
		config.Logging.Console.Enabled = true
	}
	if config.Logging.Console.Format == "" {
		config.Logging.Console.Format = configtypes.LogFormatConsole
	}
	if config.Logging.File.Format == "" {
		config.Logging.File.Format = configtypes.LogFormatText
	}

	if config.UploadEnabled == nil {
		enabled := true
		config.UploadEnabled = &enabled
	}
	if config.MaxEventsPerPing == 0 {
		config.MaxEventsPerPing = events.DefaultMaxEventsPerPing
	}

	if config.HTTPApi.Enabled {
		listen, err := configtypes.NormalizeListen(config.HTTPApi.Listen)
		if err != nil {
			return fmt.Errorf("http_api.listen: %w", err)
		}
		config.HTTPApi.Listen = listen
		if config.HTTPApi.RequestTimeout == 0 {
			config.HTTPApi.RequestTimeout = types.Duration(DefaultRequestTimeout)
		}
	}

	if config.Metrics.Enabled {
		listen, err := configtypes.NormalizeListen(config.Metrics.Listen)
		if err != nil {
			return fmt.Errorf("metrics.listen: %w", err)
		}
		config.Metrics.Listen = listen
	}
	if config.Metrics.Path == "" {
		config.Metrics.Path = DefaultMetricsPath
	}
	if config.Metrics.Namespace == "" {
		config.Metrics.Namespace = DefaultMetricsNamespace
	}

	if config.EventLogging.Redis.KeyPrefix == "" {
		config.EventLogging.Redis.KeyPrefix = redis.DefaultEventKeyPrefix
	}

	return nil
}

// LoadRecorderConfig loads eventrecd configuration from YAML file
func LoadRecorderConfig(path string, logger *zap.Logger) (*configtypes.RecorderConfig, error) {
	logger.Info("Loading recorder configuration", zap.String("path", path))

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := ParseRecorderConfig(data)
	if err != nil {
		return nil, err
	}

	logger.Info("Recorder configuration loaded successfully",
		zap.String("recorder_id", config.RecorderID),
		zap.Bool("upload_enabled", *config.UploadEnabled),
		zap.Bool("http_api", config.HTTPApi.Enabled),
		zap.Bool("event_log_file", config.EventLogging.File.Enabled),
		zap.Bool("event_log_redis", config.EventLogging.Redis.Enabled))

	return config, nil
}

// ParseRecorderConfig decodes, validates and completes a YAML document
func ParseRecorderConfig(data []byte) (*configtypes.RecorderConfig, error) {
	var config configtypes.RecorderConfig
	if err := yamlutil.UnmarshalStrict(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if err := applyRecorderDefaults(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}
