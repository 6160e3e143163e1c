package metricsserver

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/telemetry/internal/common/configtypes"
)

// DefaultPath is used when metrics.path is empty
const DefaultPath = "/metrics"

// MetricsHandler is implemented by metrics collectors
type MetricsHandler interface {
	ServeHTTP(ctx *fasthttp.RequestCtx)
}

// Server is a running metrics endpoint
type Server struct {
	*fasthttp.Server
	listener net.Listener
}

// Addr returns the bound address
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// ShutdownWithContext stops serving. It also closes the listener, so a Serve
// goroutine that has not yet registered it with fasthttp still returns.
func (s *Server) ShutdownWithContext(ctx context.Context) error {
	err := s.Server.ShutdownWithContext(ctx)
	_ = s.listener.Close()
	return err
}

// StartMetricsServer starts a dedicated metrics listener.
// Returns nil, nil when metrics are disabled. Bind errors are returned synchronously.
func StartMetricsServer(config configtypes.MetricsConfig, metricsHandler MetricsHandler, logger *zap.Logger) (*Server, error) {
	if !config.Enabled {
		logger.Info("Metrics collection disabled")
		return nil, nil
	}

	path := config.Path
	if path == "" {
		path = DefaultPath
	}

	listener, err := net.Listen("tcp", config.Listen)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for metrics on %s: %w", config.Listen, err)
	}

	server := &Server{
		Server: &fasthttp.Server{
			Handler:            createMetricsHandler(path, metricsHandler),
			Name:               "EventRecorder-Metrics",
			ReadTimeout:        10 * time.Second,
			WriteTimeout:       10 * time.Second,
			MaxRequestBodySize: 1 * 1024,
			TCPKeepalive:       true,
			TCPKeepalivePeriod: 30 * time.Second,
			MaxConnsPerIP:      100,
			MaxRequestsPerConn: 1000,
			Concurrency:        100,
		},
		listener: listener,
	}

	go func() {
		logger.Info("Metrics server listening",
			zap.String("listen", server.Addr()),
			zap.String("path", path))

		if err := server.Serve(listener); err != nil {
			logger.Error("Metrics server stopped",
				zap.String("listen", config.Listen),
				zap.Error(err))
		}
	}()

	return server, nil
}

func createMetricsHandler(metricsPath string, metricsCollector MetricsHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) == metricsPath {
			metricsCollector.ServeHTTP(ctx)
			return
		}

		ctx.SetStatusCode(fasthttp.StatusNotFound)
		ctx.SetBodyString("Not Found")
	}
}
