// Package recorder assembles the eventrecd daemon: registry, event log
// emitters, metrics and the HTTP API.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/edgecomet/telemetry/internal/common/configtypes"
	"github.com/edgecomet/telemetry/internal/common/metricsserver"
	"github.com/edgecomet/telemetry/internal/common/redis"
	"github.com/edgecomet/telemetry/internal/common/sessionid"
	"github.com/edgecomet/telemetry/internal/events"
	"github.com/edgecomet/telemetry/internal/metrics"
	"github.com/edgecomet/telemetry/internal/registry"
	"github.com/edgecomet/telemetry/internal/server"
	"github.com/edgecomet/telemetry/pkg/types"
)

// Table is a generated definition table with its fingerprint
type Table struct {
	Definitions []registry.Definition
	Fingerprint uint64
}

// Option customizes recorder assembly
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	clock      registry.Clock
}

// WithRegisterer registers metrics somewhere other than the default registry
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithClock sets the clock used for event timestamps
func WithClock(c registry.Clock) Option {
	return func(o *options) { o.clock = c }
}

// Recorder owns every long-lived component of the daemon
type Recorder struct {
	config    *configtypes.RecorderConfig
	sessionID string
	logger    *zap.Logger

	registry *registry.Registry
	metrics  *metrics.MetricsCollector
	emitter  *events.MultiEmitter
	redis    *redis.Client

	api           *server.Server
	apiListener   net.Listener
	apiErr        chan error
	metricsServer *metricsserver.Server
}

// New builds the recorder. Nothing listens until Start.
func New(cfg *configtypes.RecorderConfig, table Table, logger *zap.Logger, opts ...Option) (*Recorder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("recorder config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Recorder{
		config:    cfg,
		sessionID: sessionid.New(cfg.RecorderID),
		logger:    logger,
	}
	r.metrics = metrics.NewMetricsCollectorWithPrometheus(
		metrics.NewPrometheusMetricsWithRegistry(cfg.Metrics.Namespace, o.registerer, logger), logger)

	emitters, err := r.buildEmitters(table.Definitions)
	if err != nil {
		r.closeBackends()
		return nil, err
	}
	backends := 0
	if len(emitters) > 0 {
		r.emitter = events.NewMultiEmitter(emitters, logger)
		backends = r.emitter.Len()
	}

	uploadEnabled := true
	if cfg.UploadEnabled != nil {
		uploadEnabled = *cfg.UploadEnabled
	}

	regOpts := []registry.Option{
		registry.WithFingerprint(table.Fingerprint),
		registry.WithUploadEnabled(uploadEnabled),
		registry.WithStore(events.NewStore(cfg.MaxEventsPerPing, r.metrics.PingFlushed)),
		registry.WithObserver(r.metrics),
		registry.WithLogger(logger),
	}
	if r.emitter != nil {
		regOpts = append(regOpts, registry.WithEmitter(r.emitter))
	}
	if o.clock != nil {
		regOpts = append(regOpts, registry.WithClock(o.clock))
	}

	r.registry, err = registry.New(table.Definitions, regOpts...)
	if err != nil {
		r.closeBackends()
		return nil, fmt.Errorf("failed to build event registry: %w", err)
	}

	if cfg.HTTPApi.Enabled {
		r.api = server.New(server.Config{
			RecorderID:     cfg.RecorderID,
			AuthKey:        cfg.HTTPApi.AuthKey,
			RequestTimeout: cfg.HTTPApi.RequestTimeout.ToDuration(),
		}, r.registry, logger)
	}

	logger.Info("Recorder initialized",
		zap.String("session_id", r.sessionID),
		zap.Int("events", r.registry.Len()),
		zap.Int("emitters", backends),
		zap.Bool("upload_enabled", uploadEnabled))

	return r, nil
}

func (r *Recorder) buildEmitters(defs []registry.Definition) ([]events.EventEmitter, error) {
	var emitters []events.EventEmitter
	logCfg := r.config.EventLogging

	if logCfg.File.Enabled {
		fileEmitter, err := events.NewFileEmitter(logCfg.File, r.sessionID, r.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create event file emitter: %w", err)
		}
		fileEmitter.OnFailure(r.metrics.EmitFailed)

		filtered, err := events.NewFilteredEmitter(fileEmitter, logCfg.File.Filter)
		if err != nil {
			_ = fileEmitter.Close()
			return nil, err
		}
		emitters = append(emitters, filtered)
	}

	if logCfg.Redis.Enabled {
		client, err := redis.NewClient(&r.config.Redis, r.logger)
		if err != nil {
			closeAll(emitters)
			return nil, err
		}
		r.redis = client

		redisEmitter := events.NewRedisEmitter(client, logCfg.Redis, r.config.RecorderID, r.sessionID,
			pingResolver(defs), r.logger)
		redisEmitter.OnFailure(r.metrics.EmitFailed)

		filtered, err := events.NewFilteredEmitter(redisEmitter, logCfg.Redis.Filter)
		if err != nil {
			_ = redisEmitter.Close()
			closeAll(emitters)
			return nil, err
		}
		emitters = append(emitters, filtered)
	}

	return emitters, nil
}

func pingResolver(defs []registry.Definition) events.PingResolver {
	pings := make(map[types.EventID][]string, len(defs))
	for _, def := range defs {
		if len(def.SendInPings) > 0 {
			pings[def.ID] = append([]string(nil), def.SendInPings...)
		}
	}
	return func(id types.EventID) []string { return pings[id] }
}

func closeAll(emitters []events.EventEmitter) {
	for _, e := range emitters {
		_ = e.Close()
	}
}

// closeBackends releases what New opened before failing
func (r *Recorder) closeBackends() {
	if r.emitter != nil {
		_ = r.emitter.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
}

// Start binds the metrics and API listeners. Bind errors are returned synchronously.
func (r *Recorder) Start() error {
	metricsServer, err := metricsserver.StartMetricsServer(r.config.Metrics, r.metrics.Prometheus(), r.logger)
	if err != nil {
		return err
	}
	r.metricsServer = metricsServer

	if r.api == nil {
		r.logger.Warn("HTTP API is disabled in configuration")
		return nil
	}

	listener, err := net.Listen("tcp", r.config.HTTPApi.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", r.config.HTTPApi.Listen, err)
	}

	r.apiListener = listener
	r.apiErr = make(chan error, 1)
	go func() {
		r.apiErr <- r.api.Serve(listener)
	}()
	return nil
}

// APIErrors delivers the error the API server stopped with. Nil before Start or without API.
func (r *Recorder) APIErrors() <-chan error {
	return r.apiErr
}

// Shutdown stops servers, then drains and closes emitters
func (r *Recorder) Shutdown(ctx context.Context) error {
	r.logger.Info("Shutting down recorder")

	var errs []error
	if r.api != nil {
		if err := r.api.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http api: %w", err))
		}
	}
	if r.metricsServer != nil {
		if err := r.metricsServer.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}
	r.drainPings()

	if r.emitter != nil {
		if err := r.emitter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event emitters: %w", err))
		}
	}
	if r.redis != nil {
		if err := r.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}

	r.logger.Info("Recorder shutdown complete")
	return errors.Join(errs...)
}

// drainPings hands every partially filled ping to the flush callback
func (r *Recorder) drainPings() {
	store := r.registry.Store()
	for _, ping := range store.Pings() {
		if batch := store.Take(ping); len(batch) > 0 {
			r.metrics.PingFlushed(ping, batch)
		}
	}
}

// Registry returns the event registry
func (r *Recorder) Registry() *registry.Registry {
	return r.registry
}

// SessionID returns the identifier stamped on mirrored events
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// APIAddr returns the bound API address, empty before Start or when the API is disabled
func (r *Recorder) APIAddr() string {
	if r.apiListener == nil {
		return ""
	}
	return r.apiListener.Addr().String()
}

// MetricsAddr returns the bound metrics address, empty when metrics are disabled
func (r *Recorder) MetricsAddr() string {
	if r.metricsServer == nil {
		return ""
	}
	return r.metricsServer.Addr()
}
