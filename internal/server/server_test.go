package server_test

import (
	"context"
	"encoding/json"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"go.uber.org/zap"

	"github.com/edgecomet/telemetry/internal/generated"
	"github.com/edgecomet/telemetry/internal/registry"
	"github.com/edgecomet/telemetry/internal/server"
	"github.com/edgecomet/telemetry/pkg/types"
)

const authKey = "test-key"

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testClient struct {
	client *fasthttp.Client
}

func (c *testClient) do(method, path, body string, auth bool) (int, apiResponse) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI("http://recorder" + path)
	req.Header.SetMethod(method)
	if auth {
		req.Header.Set(server.AuthHeader, authKey)
	}
	if body != "" {
		req.Header.SetContentType("application/json")
		req.SetBodyString(body)
	}

	Expect(c.client.DoTimeout(req, resp, 5*time.Second)).To(Succeed())

	var parsed apiResponse
	if len(resp.Body()) > 0 {
		Expect(json.Unmarshal(resp.Body(), &parsed)).To(Succeed())
	}
	return resp.StatusCode(), parsed
}

var _ = Describe("HTTP API", func() {
	var (
		reg    *registry.Registry
		srv    *server.Server
		ln     *fasthttputil.InmemoryListener
		client *testClient
	)

	BeforeEach(func() {
		var err error
		reg, err = registry.New(generated.Definitions, registry.WithFingerprint(generated.Fingerprint))
		Expect(err).NotTo(HaveOccurred())
		reg.ResetForTesting()

		srv = server.New(server.Config{
			RecorderID:     "test-recorder",
			AuthKey:        authKey,
			RequestTimeout: 5 * time.Second,
		}, reg, zap.NewNop())

		ln = fasthttputil.NewInmemoryListener()
		go func() {
			defer GinkgoRecover()
			_ = srv.Serve(ln)
		}()

		client = &testClient{client: &fasthttp.Client{
			Dial: func(string) (net.Conn, error) { return ln.Dial() },
		}}
	})

	AfterEach(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		Expect(srv.Shutdown(ctx)).To(Succeed())
	})

	Context("authentication", func() {
		It("rejects requests without the auth header", func() {
			status, body := client.do(fasthttp.MethodGet, server.PathStatus, "", false)
			Expect(status).To(Equal(fasthttp.StatusUnauthorized))
			Expect(body.Success).To(BeFalse())
			Expect(body.Message).To(Equal("unauthorized"))
		})

		It("accepts requests with the auth header", func() {
			status, body := client.do(fasthttp.MethodGet, server.PathStatus, "", true)
			Expect(status).To(Equal(fasthttp.StatusOK))

			var st server.StatusResponse
			Expect(json.Unmarshal(body.Data, &st)).To(Succeed())
			Expect(st.RecorderID).To(Equal("test-recorder"))
			Expect(st.Events).To(Equal(len(generated.Definitions)))
			Expect(st.UploadEnabled).To(BeTrue())
		})
	})

	Context("recording", func() {
		It("records an event with declared extras", func() {
			status, _ := client.do(fasthttp.MethodPost, "/events/6", `{"extra":{"reason":"user"}}`, true)
			Expect(status).To(Equal(fasthttp.StatusNoContent))

			evs := reg.TestGetValue(generated.SessionEnd, "")
			Expect(evs).To(HaveLen(1))
			Expect(evs[0].Extra).To(Equal(types.Extras{"reason": "user"}))
		})

		It("accepts a body-less recording and a metric name", func() {
			status, _ := client.do(fasthttp.MethodPost, "/events/session.start", "", true)
			Expect(status).To(Equal(fasthttp.StatusNoContent))
			Expect(reg.TestGetValue(generated.SessionStart, "vpnsession")).To(HaveLen(1))
		})

		It("swallows an undeclared extra key and exposes it as a test error", func() {
			status, _ := client.do(fasthttp.MethodPost, "/events/6", `{"extra":{"bogus":"x"}}`, true)
			Expect(status).To(Equal(fasthttp.StatusNoContent))
			Expect(reg.TestGetValue(generated.SessionEnd, "")).To(BeEmpty())

			status, body := client.do(fasthttp.MethodGet, "/events/6/error", "", true)
			Expect(status).To(Equal(fasthttp.StatusOK))

			var es server.ErrorStatus
			Expect(json.Unmarshal(body.Data, &es)).To(Succeed())
			Expect(es.Error).To(BeTrue())
			Expect(es.Type).To(Equal(registry.ErrorTypeInvalidExtraKey))
			Expect(es.Metric).To(Equal("session.end"))
			Expect(es.Count).To(Equal(1))
		})

		It("rejects unknown ids before they reach the registry", func() {
			status, body := client.do(fasthttp.MethodPost, "/events/999", "", true)
			Expect(status).To(Equal(fasthttp.StatusNotFound))
			Expect(body.Message).To(ContainSubstring("unknown event 999"))

			status, _ = client.do(fasthttp.MethodPost, "/events/0", "", true)
			Expect(status).To(Equal(fasthttp.StatusNotFound))
		})

		It("rejects malformed bodies", func() {
			status, _ := client.do(fasthttp.MethodPost, "/events/6", `{"extra":{"reason":1}}`, true)
			Expect(status).To(Equal(fasthttp.StatusBadRequest))

			status, _ = client.do(fasthttp.MethodPost, "/events/6", `{"extras":{}}`, true)
			Expect(status).To(Equal(fasthttp.StatusBadRequest))

			for _, body := range []string{`{"extra":{}}}`, `{"extra":{}}]`, `{"extra":{}} {}`} {
				status, _ = client.do(fasthttp.MethodPost, "/events/6", body, true)
				Expect(status).To(Equal(fasthttp.StatusBadRequest), body)
			}
			Expect(reg.TestGetValue(generated.SessionEnd, "")).To(BeEmpty())
		})
	})

	Context("test queries", func() {
		It("reports no error for never-recorded and unknown ids", func() {
			for _, path := range []string{"/events/1/error", "/events/999/error"} {
				status, body := client.do(fasthttp.MethodGet, path, "", true)
				Expect(status).To(Equal(fasthttp.StatusOK))

				var es server.ErrorStatus
				Expect(json.Unmarshal(body.Data, &es)).To(Succeed())
				Expect(es.Error).To(BeFalse())
			}
		})

		It("returns stored values per ping", func() {
			client.do(fasthttp.MethodPost, "/events/3", `{"extra":{"state":"stable"}}`, true)

			status, body := client.do(fasthttp.MethodGet, "/events/3/value?ping=vpnsession", "", true)
			Expect(status).To(Equal(fasthttp.StatusOK))

			var vr server.ValueResponse
			Expect(json.Unmarshal(body.Data, &vr)).To(Succeed())
			Expect(vr.Metric).To(Equal("connection.health_changed"))
			Expect(vr.Ping).To(Equal("vpnsession"))
			Expect(vr.Events).To(HaveLen(1))

			_, body = client.do(fasthttp.MethodGet, "/events/3/value", "", true)
			Expect(json.Unmarshal(body.Data, &vr)).To(Succeed())
			Expect(vr.Ping).To(Equal("events"))
			Expect(vr.Events).To(HaveLen(1))
		})

		It("describes a single event", func() {
			status, body := client.do(fasthttp.MethodGet, "/events/location.lookup_failed", "", true)
			Expect(status).To(Equal(fasthttp.StatusOK))

			var def registry.Definition
			Expect(json.Unmarshal(body.Data, &def)).To(Succeed())
			Expect(def.ID).To(Equal(generated.LocationLookupFailed))
			Expect(def.ExtraKeys).To(ConsistOf("reason", "status"))
		})

		It("lists all definitions", func() {
			status, body := client.do(fasthttp.MethodGet, server.PathDefinitions, "", true)
			Expect(status).To(Equal(fasthttp.StatusOK))

			var defs []registry.Definition
			Expect(json.Unmarshal(body.Data, &defs)).To(Succeed())
			Expect(defs).To(Equal(generated.Definitions))
		})

		It("resets recorded state", func() {
			client.do(fasthttp.MethodPost, "/events/6", `{"extra":{"bogus":"x"}}`, true)
			client.do(fasthttp.MethodPost, "/events/7", "", true)

			status, _ := client.do(fasthttp.MethodPost, server.PathTestingReset, "", true)
			Expect(status).To(Equal(fasthttp.StatusNoContent))

			_, present := reg.TestGetError(generated.SessionEnd)
			Expect(present).To(BeFalse())
			Expect(reg.TestGetValue(generated.SessionStart, "")).To(BeEmpty())
		})
	})

	Context("upload switch", func() {
		It("disables and re-enables recording", func() {
			status, body := client.do(fasthttp.MethodPut, server.PathUpload, `{"enabled":false}`, true)
			Expect(status).To(Equal(fasthttp.StatusOK))

			var us server.UploadStatus
			Expect(json.Unmarshal(body.Data, &us)).To(Succeed())
			Expect(us.Enabled).To(BeFalse())
			Expect(reg.UploadEnabled()).To(BeFalse())

			client.do(fasthttp.MethodPost, "/events/7", "", true)
			Expect(reg.TestGetValue(generated.SessionStart, "")).To(BeEmpty())

			client.do(fasthttp.MethodPut, server.PathUpload, `{"enabled":true}`, true)
			_, body = client.do(fasthttp.MethodGet, server.PathUpload, "", true)
			Expect(json.Unmarshal(body.Data, &us)).To(Succeed())
			Expect(us.Enabled).To(BeTrue())
		})

		It("requires the enabled field", func() {
			status, body := client.do(fasthttp.MethodPut, server.PathUpload, `{}`, true)
			Expect(status).To(Equal(fasthttp.StatusBadRequest))
			Expect(body.Message).To(Equal("enabled is required"))
		})
	})

	Context("routing", func() {
		It("answers 405 for a known path with the wrong method", func() {
			status, _ := client.do(fasthttp.MethodDelete, server.PathUpload, "", true)
			Expect(status).To(Equal(fasthttp.StatusMethodNotAllowed))

			status, _ = client.do(fasthttp.MethodDelete, "/events/1", "", true)
			Expect(status).To(Equal(fasthttp.StatusMethodNotAllowed))
		})

		It("answers 404 for unknown paths", func() {
			status, _ := client.do(fasthttp.MethodGet, "/nope", "", true)
			Expect(status).To(Equal(fasthttp.StatusNotFound))

			status, _ = client.do(fasthttp.MethodGet, "/events/1/nope", "", true)
			Expect(status).To(Equal(fasthttp.StatusNotFound))

			status, _ = client.do(fasthttp.MethodPost, "/events", "", true)
			Expect(status).To(Equal(fasthttp.StatusNotFound))
		})
	})
})

var _ = Describe("Server lifecycle", func() {
	It("returns from Serve without serving after an early Shutdown", func() {
		reg, err := registry.New(generated.Definitions)
		Expect(err).NotTo(HaveOccurred())
		srv := server.New(server.Config{AuthKey: authKey, RequestTimeout: time.Second}, reg, zap.NewNop())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		Expect(srv.Shutdown(ctx)).To(Succeed())

		ln := fasthttputil.NewInmemoryListener()
		Expect(srv.Serve(ln)).To(Succeed())

		_, err = ln.Dial()
		Expect(err).To(HaveOccurred(), "listener is closed")
	})
})
