package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

const subsystem = "recorder"

// PrometheusMetrics holds the recorder's Prometheus instruments
type PrometheusMetrics struct {
	eventsRecordedTotal  *prometheus.CounterVec
	recordingErrorsTotal *prometheus.CounterVec
	metricErrorRatio     *prometheus.GaugeVec
	eventsDiscardedTotal *prometheus.CounterVec
	pingFlushesTotal     *prometheus.CounterVec
	pingFlushSize        *prometheus.HistogramVec
	emitFailuresTotal    *prometheus.CounterVec
	uploadEnabled        prometheus.Gauge

	logger      *zap.Logger
	httpHandler func(*fasthttp.RequestCtx)
}

// NewPrometheusMetrics registers on the default registry
func NewPrometheusMetrics(namespace string, logger *zap.Logger) *PrometheusMetrics {
	return NewPrometheusMetricsWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

// NewPrometheusMetricsWithRegistry registers on a custom registry
func NewPrometheusMetricsWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *PrometheusMetrics {
	pm := &PrometheusMetrics{
		logger: logger,
	}

	pm.eventsRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_recorded_total",
			Help:      "Total number of events committed",
		},
		[]string{"metric"},
	)

	pm.recordingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "recording_errors_total",
			Help:      "Total number of rejected recordings by metric and error type",
		},
		[]string{"metric", "error_type"},
	)

	pm.metricErrorRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "error_ratio",
			Help:      "Share of recording attempts rejected (0-1) per metric",
		},
		[]string{"metric"},
	)

	pm.eventsDiscardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_discarded_total",
			Help:      "Total number of recordings discarded before validation",
		},
		[]string{"reason"},
	)

	pm.pingFlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ping_flushes_total",
			Help:      "Total number of full ping buffers handed off",
		},
		[]string{"ping"},
	)

	pm.pingFlushSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ping_flush_events",
			Help:      "Number of events per ping flush",
			Buckets:   []float64{1, 10, 50, 100, 250, 500, 1000},
		},
		[]string{"ping"},
	)

	pm.emitFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "emit_failures_total",
			Help:      "Total number of events an emitter failed to write",
		},
		[]string{"backend"},
	)

	pm.uploadEnabled = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "upload_enabled",
			Help:      "1 when recording is enabled, 0 otherwise",
		},
	)

	registerer.MustRegister(
		pm.eventsRecordedTotal,
		pm.recordingErrorsTotal,
		pm.metricErrorRatio,
		pm.eventsDiscardedTotal,
		pm.pingFlushesTotal,
		pm.pingFlushSize,
		pm.emitFailuresTotal,
		pm.uploadEnabled,
	)

	// registries created with prometheus.NewRegistry are also Gatherers
	gatherer, ok := registerer.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	pm.httpHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	logger.Debug("Prometheus metrics initialized")
	return pm
}

func (pm *PrometheusMetrics) RecordEvent(metric string) {
	pm.eventsRecordedTotal.WithLabelValues(metric).Inc()
	pm.updateErrorRatio(metric)
}

func (pm *PrometheusMetrics) RecordError(metric, errorType string) {
	pm.recordingErrorsTotal.WithLabelValues(metric, errorType).Inc()
	pm.updateErrorRatio(metric)
}

func (pm *PrometheusMetrics) RecordDiscard(reason string) {
	pm.eventsDiscardedTotal.WithLabelValues(reason).Inc()
}

func (pm *PrometheusMetrics) RecordPingFlush(ping string, events int) {
	pm.pingFlushesTotal.WithLabelValues(ping).Inc()
	pm.pingFlushSize.WithLabelValues(ping).Observe(float64(events))
}

func (pm *PrometheusMetrics) RecordEmitFailure(backend string) {
	pm.emitFailuresTotal.WithLabelValues(backend).Inc()
}

func (pm *PrometheusMetrics) SetUploadEnabled(enabled bool) {
	if enabled {
		pm.uploadEnabled.Set(1)
	} else {
		pm.uploadEnabled.Set(0)
	}
}

// ServeHTTP serves Prometheus metrics via HTTP
func (pm *PrometheusMetrics) ServeHTTP(ctx *fasthttp.RequestCtx) {
	pm.httpHandler(ctx)
}

// updateErrorRatio recomputes errors / (errors + recorded) for metric
func (pm *PrometheusMetrics) updateErrorRatio(metric string) {
	recorded := pm.getCounterValue(pm.eventsRecordedTotal.WithLabelValues(metric))
	errors := pm.sumCounterVec(pm.recordingErrorsTotal, metric)

	if total := recorded + errors; total > 0 {
		pm.metricErrorRatio.WithLabelValues(metric).Set(errors / total)
	}
}

// sumCounterVec adds up every series of vec whose "metric" label equals metric
func (pm *PrometheusMetrics) sumCounterVec(vec *prometheus.CounterVec, metric string) float64 {
	ch := make(chan prometheus.Metric, 16)
	go func() {
		vec.Collect(ch)
		close(ch)
	}()

	var sum float64
	for m := range ch {
		out := &dto.Metric{}
		if err := m.Write(out); err != nil {
			pm.logger.Warn("Failed to read counter value", zap.Error(err))
			continue
		}
		for _, lp := range out.GetLabel() {
			if lp.GetName() == "metric" && lp.GetValue() == metric {
				sum += out.GetCounter().GetValue()
				break
			}
		}
	}
	return sum
}

func (pm *PrometheusMetrics) getCounterValue(counter prometheus.Counter) float64 {
	out := &dto.Metric{}
	if err := counter.Write(out); err != nil {
		pm.logger.Warn("Failed to read counter value", zap.Error(err))
		return 0
	}
	return out.GetCounter().GetValue()
}
