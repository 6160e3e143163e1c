// Package server exposes the event registry over HTTP for host runtimes that
// cannot link the recorder directly.
package server

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/telemetry/internal/common/httputil"
	"github.com/edgecomet/telemetry/internal/registry"
	"github.com/edgecomet/telemetry/pkg/types"
)

// Path constants for API endpoints
const (
	PathEvents       = "/events"
	PathUpload       = "/upload"
	PathDefinitions  = "/definitions"
	PathStatus       = "/status"
	PathTestingReset = "/testing/reset"

	AuthHeader = "X-Internal-Auth"
)

// Config holds the server settings taken from http_api
type Config struct {
	RecorderID     string
	AuthKey        string
	RequestTimeout time.Duration
}

// Server handles recording requests
type Server struct {
	config    Config
	reg       *registry.Registry
	routes    map[string]map[string]fasthttp.RequestHandler // method -> path -> handler
	server    *fasthttp.Server
	logger    *zap.Logger
	startTime time.Time

	mu       sync.Mutex
	listener net.Listener
	stopped  bool
}

// New creates the server and registers every endpoint
func New(config Config, reg *registry.Registry, logger *zap.Logger) *Server {
	s := &Server{
		config:    config,
		reg:       reg,
		routes:    make(map[string]map[string]fasthttp.RequestHandler),
		logger:    logger,
		startTime: time.Now().UTC(),
	}

	s.RegisterHandler(fasthttp.MethodPost, PathEvents, s.handleRecord)
	s.RegisterHandler(fasthttp.MethodGet, PathEvents, s.handleEventQuery)
	s.RegisterHandler(fasthttp.MethodGet, PathUpload, s.handleGetUpload)
	s.RegisterHandler(fasthttp.MethodPut, PathUpload, s.handleSetUpload)
	s.RegisterHandler(fasthttp.MethodGet, PathDefinitions, s.handleDefinitions)
	s.RegisterHandler(fasthttp.MethodGet, PathStatus, s.handleStatus)
	s.RegisterHandler(fasthttp.MethodPost, PathTestingReset, s.handleReset)

	s.server = &fasthttp.Server{
		Handler:               s.Handler(),
		Name:                  "eventrecd",
		ReadTimeout:           config.RequestTimeout,
		WriteTimeout:          config.RequestTimeout,
		IdleTimeout:           60 * time.Second,
		NoDefaultServerHeader: true,
		NoDefaultDate:         true,
	}

	return s
}

// RegisterHandler registers a handler for a method and path.
// A path also serves every path below it ("/events" serves "/events/3/error").
func (s *Server) RegisterHandler(method, path string, handler fasthttp.RequestHandler) {
	if s.routes[method] == nil {
		s.routes[method] = make(map[string]fasthttp.RequestHandler)
	}

	if _, exists := s.routes[method][path]; exists {
		s.logger.Warn("Overwriting existing handler registration",
			zap.String("method", method),
			zap.String("path", path))
	}

	s.routes[method][path] = handler
}

// Serve accepts requests on listener until Shutdown.
// After Shutdown it closes listener and returns nil without serving.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = listener.Close()
		return nil
	}
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("HTTP API server started", zap.String("address", listener.Addr().String()))
	return s.server.Serve(listener)
}

// Shutdown gracefully stops the server. Safe to call before or during Serve.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	listener := s.listener
	s.mu.Unlock()

	s.logger.Info("Shutting down HTTP API server")
	err := s.server.ShutdownWithContext(ctx)

	// Serve may have passed the stopped check before fasthttp tracked its listener
	if listener != nil {
		_ = listener.Close()
	}
	return err
}

// Handler returns the FastHTTP request handler
func (s *Server) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if !s.authenticate(ctx) {
			return
		}

		method := string(ctx.Method())
		path := string(ctx.Path())

		if handler, ok := s.routes[method][path]; ok {
			handler(ctx)
			return
		}

		if handler := longestPrefixHandler(s.routes[method], path); handler != nil {
			handler(ctx)
			return
		}

		// path served for another method: 405 instead of 404
		for m, methodRoutes := range s.routes {
			if m != method && longestPrefixHandler(methodRoutes, path) != nil {
				httputil.JSONError(ctx, "method not allowed", fasthttp.StatusMethodNotAllowed)
				return
			}
		}

		httputil.JSONError(ctx, "not found", fasthttp.StatusNotFound)
	}
}

func longestPrefixHandler(routes map[string]fasthttp.RequestHandler, path string) fasthttp.RequestHandler {
	var best string
	var handler fasthttp.RequestHandler
	for registered, h := range routes {
		if isPrefixMatch(path, registered) && len(registered) > len(best) {
			best, handler = registered, h
		}
	}
	return handler
}

// isPrefixMatch checks if requestPath equals registeredPath or lies below it
func isPrefixMatch(requestPath, registeredPath string) bool {
	if len(requestPath) < len(registeredPath) {
		return false
	}
	return requestPath[:len(registeredPath)] == registeredPath &&
		(len(requestPath) == len(registeredPath) || requestPath[len(registeredPath)] == '/')
}

// authenticate validates the X-Internal-Auth header
func (s *Server) authenticate(ctx *fasthttp.RequestCtx) bool {
	authHeader := string(ctx.Request.Header.Peek(AuthHeader))

	if authHeader == "" {
		s.logger.Warn("Missing X-Internal-Auth header",
			zap.String("remote_addr", ctx.RemoteAddr().String()),
			zap.String("path", string(ctx.Path())))
		httputil.JSONError(ctx, "unauthorized", fasthttp.StatusUnauthorized)
		return false
	}

	if authHeader != s.config.AuthKey {
		s.logger.Warn("Invalid X-Internal-Auth header",
			zap.String("remote_addr", ctx.RemoteAddr().String()),
			zap.String("path", string(ctx.Path())))
		httputil.JSONError(ctx, "unauthorized", fasthttp.StatusUnauthorized)
		return false
	}

	return true
}

// eventPath splits "/events/{ref}[/{action}]"
func eventPath(path string) (ref, action string, ok bool) {
	rest, found := strings.CutPrefix(path, PathEvents+"/")
	if !found || rest == "" {
		return "", "", false
	}
	ref, action, _ = strings.Cut(rest, "/")
	if ref == "" || strings.Contains(action, "/") {
		return "", "", false
	}
	return ref, action, true
}

// resolve finds a descriptor by numeric id or by "category.name"
func (s *Server) resolve(ref string) (*registry.Descriptor, bool) {
	if id, err := strconv.ParseUint(ref, 10, 32); err == nil {
		return s.reg.Lookup(types.EventID(id))
	}
	return s.reg.LookupName(ref)
}

func (s *Server) uptime() time.Duration {
	return time.Since(s.startTime).Truncate(time.Second)
}
