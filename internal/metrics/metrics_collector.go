package metrics

import (
	"go.uber.org/zap"

	"github.com/edgecomet/telemetry/internal/registry"
	"github.com/edgecomet/telemetry/pkg/types"
)

// MetricsCollector centralizes recorder metrics and debug logging.
// It is the registry's Observer and the emitters' failure sink.
type MetricsCollector struct {
	prometheus *PrometheusMetrics
	logger     *zap.Logger
}

var _ registry.Observer = (*MetricsCollector)(nil)

// NewMetricsCollector creates a collector on the default Prometheus registry
func NewMetricsCollector(namespace string, logger *zap.Logger) *MetricsCollector {
	return NewMetricsCollectorWithPrometheus(NewPrometheusMetrics(namespace, logger), logger)
}

// NewMetricsCollectorWithPrometheus wraps existing instruments, mainly for tests
func NewMetricsCollectorWithPrometheus(pm *PrometheusMetrics, logger *zap.Logger) *MetricsCollector {
	return &MetricsCollector{
		prometheus: pm,
		logger:     logger,
	}
}

func (mc *MetricsCollector) EventRecorded(metric string) {
	mc.prometheus.RecordEvent(metric)
}

func (mc *MetricsCollector) RecordingFailed(metric string, errType registry.ErrorType) {
	mc.prometheus.RecordError(metric, string(errType))

	mc.logger.Debug("Recorded recording error metric",
		zap.String("metric", metric),
		zap.String("error_type", string(errType)))
}

func (mc *MetricsCollector) EventDiscarded(reason string) {
	mc.prometheus.RecordDiscard(reason)
}

func (mc *MetricsCollector) UploadEnabledChanged(enabled bool) {
	mc.prometheus.SetUploadEnabled(enabled)

	mc.logger.Info("Upload enabled changed", zap.Bool("enabled", enabled))
}

// PingFlushed is wired as the store's flush callback by the daemon
func (mc *MetricsCollector) PingFlushed(ping string, batch []types.RecordedEvent) {
	mc.prometheus.RecordPingFlush(ping, len(batch))

	mc.logger.Info("Ping buffer full, handed off events",
		zap.String("ping", ping),
		zap.Int("events", len(batch)))
}

// EmitFailed counts events an emitter backend could not write
func (mc *MetricsCollector) EmitFailed(backend string) {
	mc.prometheus.RecordEmitFailure(backend)
}

// Prometheus exposes the underlying instruments, e.g. for the metrics server
func (mc *MetricsCollector) Prometheus() *PrometheusMetrics {
	return mc.prometheus
}
