package metricsserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/telemetry/internal/common/configtypes"
)

type mockMetricsHandler struct {
	called bool
}

func (m *mockMetricsHandler) ServeHTTP(ctx *fasthttp.RequestCtx) {
	m.called = true
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBodyString("# HELP test_metric A test metric\n# TYPE test_metric counter\ntest_metric 42\n")
}

func TestStartMetricsServer_Disabled(t *testing.T) {
	handler := &mockMetricsHandler{}

	server, err := StartMetricsServer(configtypes.MetricsConfig{Enabled: false}, handler, zap.NewNop())

	require.NoError(t, err)
	assert.Nil(t, server)
	assert.False(t, handler.called)
}

func TestStartMetricsServer_ServesAndShutsDown(t *testing.T) {
	handler := &mockMetricsHandler{}

	server, err := StartMetricsServer(configtypes.MetricsConfig{
		Enabled: true,
		Listen:  "127.0.0.1:0",
	}, handler, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, server)

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI("http://" + server.Addr() + DefaultPath)
	// Avoid keep-alive to prevent shutdown/read data race in fasthttp internals
	req.Header.SetConnectionClose()

	client := &fasthttp.Client{}
	require.NoError(t, client.DoTimeout(req, resp, 5*time.Second))
	assert.Equal(t, fasthttp.StatusOK, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), "test_metric 42")
	assert.True(t, handler.called)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.ShutdownWithContext(ctx))
}

func TestStartMetricsServer_BindError(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	server, err := StartMetricsServer(configtypes.MetricsConfig{
		Enabled: true,
		Listen:  occupied.Addr().String(),
	}, &mockMetricsHandler{}, zap.NewNop())

	require.Error(t, err)
	assert.Nil(t, server)
	assert.Contains(t, err.Error(), "failed to listen for metrics")
}

func TestMetricsHandler_Paths(t *testing.T) {
	mockHandler := &mockMetricsHandler{}
	handler := createMetricsHandler("/custom/metrics", mockHandler)

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI("/custom/metrics")
	handler(ctx)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.True(t, mockHandler.called)

	for _, path := range []string{"/", "/metrics", "/custom/metrics/detailed"} {
		t.Run(path, func(t *testing.T) {
			mockHandler.called = false
			ctx := &fasthttp.RequestCtx{}
			ctx.Request.SetRequestURI(path)

			handler(ctx)

			assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
			assert.Equal(t, "Not Found", string(ctx.Response.Body()))
			assert.False(t, mockHandler.called)
		})
	}
}

func TestStartMetricsServer_ImmediateShutdownClosesListener(t *testing.T) {
	for i := 0; i < 20; i++ {
		server, err := StartMetricsServer(configtypes.MetricsConfig{
			Enabled: true,
			Listen:  "127.0.0.1:0",
		}, &mockMetricsHandler{}, zap.NewNop())
		require.NoError(t, err)
		addr := server.Addr()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		assert.NoError(t, server.ShutdownWithContext(ctx))
		cancel()

		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			conn.Close()
		}
		assert.Error(t, err, "listener %s still accepting after shutdown", addr)
	}
}
