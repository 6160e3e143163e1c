package server

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/telemetry/internal/common/httputil"
	"github.com/edgecomet/telemetry/internal/registry"
	"github.com/edgecomet/telemetry/pkg/types"
)

// RecordRequest is the body of POST /events/{id}
type RecordRequest struct {
	Extra types.Extras `json:"extra,omitempty"`
}

// ErrorStatus is returned by GET /events/{id}/error
type ErrorStatus struct {
	Metric  string             `json:"metric"`
	Error   bool               `json:"error"`
	Type    registry.ErrorType `json:"type,omitempty"`
	Message string             `json:"message,omitempty"`
	Count   int                `json:"count"`
}

// ValueResponse is returned by GET /events/{id}/value
type ValueResponse struct {
	Metric string                `json:"metric"`
	Ping   string                `json:"ping"`
	Events []types.RecordedEvent `json:"events"`
}

// UploadRequest is the body of PUT /upload
type UploadRequest struct {
	Enabled *bool `json:"enabled"`
}

// UploadStatus is returned by GET and PUT /upload
type UploadStatus struct {
	Enabled bool `json:"enabled"`
}

// StatusResponse is returned by GET /status
type StatusResponse struct {
	RecorderID    string         `json:"recorder_id"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	UploadEnabled bool           `json:"upload_enabled"`
	Events        int            `json:"events"`
	Buffered      map[string]int `json:"buffered"`
}

// handleRecord records one event. Unknown ids never reach the registry,
// where they would be fatal.
func (s *Server) handleRecord(ctx *fasthttp.RequestCtx) {
	ref, action, ok := eventPath(string(ctx.Path()))
	if !ok || action != "" {
		httputil.JSONError(ctx, "not found", fasthttp.StatusNotFound)
		return
	}

	d, ok := s.resolve(ref)
	if !ok {
		s.logger.Warn("Rejected recording for unknown event", zap.String("event", ref))
		httputil.JSONError(ctx, "unknown event "+ref, fasthttp.StatusNotFound)
		return
	}

	var req RecordRequest
	if err := httputil.DecodeJSON(ctx, &req, true); err != nil {
		httputil.JSONError(ctx, err.Error(), fasthttp.StatusBadRequest)
		return
	}

	s.reg.Record(d.ID(), req.Extra)
	httputil.NoContent(ctx)
}

func (s *Server) handleEventQuery(ctx *fasthttp.RequestCtx) {
	ref, action, ok := eventPath(string(ctx.Path()))
	if !ok {
		httputil.JSONError(ctx, "not found", fasthttp.StatusNotFound)
		return
	}

	d, found := s.resolve(ref)

	switch action {
	case "error":
		if !found {
			// never-recordable ids have no error by definition
			httputil.JSONData(ctx, ErrorStatus{Metric: ref}, fasthttp.StatusOK)
			return
		}
		s.handleTestGetError(ctx, d)
	case "value":
		if !found {
			httputil.JSONError(ctx, "unknown event "+ref, fasthttp.StatusNotFound)
			return
		}
		s.handleTestGetValue(ctx, d)
	case "":
		if !found {
			httputil.JSONError(ctx, "unknown event "+ref, fasthttp.StatusNotFound)
			return
		}
		httputil.JSONData(ctx, d.Definition(), fasthttp.StatusOK)
	default:
		httputil.JSONError(ctx, "not found", fasthttp.StatusNotFound)
	}
}

func (s *Server) handleTestGetError(ctx *fasthttp.RequestCtx, d *registry.Descriptor) {
	status := ErrorStatus{
		Metric: d.FullName(),
		Count:  s.reg.TestGetNumRecordedErrors(d.ID(), registry.ErrorTypeInvalidExtraKey),
	}
	if info, present := s.reg.TestGetError(d.ID()); present {
		status.Error = true
		status.Type = info.Type
		status.Message = info.Message
	}
	httputil.JSONData(ctx, status, fasthttp.StatusOK)
}

func (s *Server) handleTestGetValue(ctx *fasthttp.RequestCtx, d *registry.Descriptor) {
	ping := string(ctx.QueryArgs().Peek("ping"))
	if ping == "" {
		ping = d.Pings()[0]
	}

	evs := s.reg.TestGetValue(d.ID(), ping)
	if evs == nil {
		evs = []types.RecordedEvent{}
	}
	httputil.JSONData(ctx, ValueResponse{Metric: d.FullName(), Ping: ping, Events: evs}, fasthttp.StatusOK)
}

func (s *Server) handleGetUpload(ctx *fasthttp.RequestCtx) {
	httputil.JSONData(ctx, UploadStatus{Enabled: s.reg.UploadEnabled()}, fasthttp.StatusOK)
}

func (s *Server) handleSetUpload(ctx *fasthttp.RequestCtx) {
	var req UploadRequest
	if err := httputil.DecodeJSON(ctx, &req, false); err != nil {
		httputil.JSONError(ctx, err.Error(), fasthttp.StatusBadRequest)
		return
	}
	if req.Enabled == nil {
		httputil.JSONError(ctx, "enabled is required", fasthttp.StatusBadRequest)
		return
	}

	s.reg.SetUploadEnabled(*req.Enabled)
	httputil.JSONData(ctx, UploadStatus{Enabled: s.reg.UploadEnabled()}, fasthttp.StatusOK)
}

func (s *Server) handleDefinitions(ctx *fasthttp.RequestCtx) {
	httputil.JSONData(ctx, s.reg.Definitions(), fasthttp.StatusOK)
}

func (s *Server) handleStatus(ctx *fasthttp.RequestCtx) {
	store := s.reg.Store()
	buffered := make(map[string]int)
	for _, ping := range store.Pings() {
		buffered[ping] = store.Len(ping)
	}

	httputil.JSONData(ctx, StatusResponse{
		RecorderID:    s.config.RecorderID,
		UptimeSeconds: int64(s.uptime().Seconds()),
		UploadEnabled: s.reg.UploadEnabled(),
		Events:        s.reg.Len(),
		Buffered:      buffered,
	}, fasthttp.StatusOK)
}

func (s *Server) handleReset(ctx *fasthttp.RequestCtx) {
	s.reg.ResetForTesting()
	s.logger.Info("Registry state reset through API")
	httputil.NoContent(ctx)
}
