package relay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/xilidan/transcript-relay/config/relay"
	"github.com/xilidan/transcript-relay/pkg/apperr"
)

var validBody = `{"transcript":"` + strings.Repeat("a", 60) + `","videoTitle":"T","apiKey":"k"}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(upstreamURL string) *config.Config {
	return &config.Config{
		Port:        3000,
		Environment: "production",
		BodyLimit:   10 << 20,
		CORS:        config.CORSConfig{AllowedOriginPrefix: "chrome-extension://"},
		RateLimit:   config.RateLimitConfig{Max: 20, Window: 5 * time.Minute},
		Abacus:      config.UpstreamConfig{URL: upstreamURL, Model: "route-llm", Timeout: 5 * time.Second},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	s, err := New(cfg, discardLogger())
	require.NoError(t, err)
	return s
}

func stubUpstream(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func do(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "203.0.113.10:40000"
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig("")
	cfg.RateLimit.Max = 0

	s, err := New(cfg, discardLogger())

	assert.Nil(t, s)
	assert.ErrorContains(t, err, "RATE_LIMIT_MAX must be positive")
	assert.ErrorContains(t, err, "ABACUS_URL is required")
}

func TestRelay_ProcessTranscript(t *testing.T) {
	upstream, calls := stubUpstream(t, http.StatusOK, `{"content":"# Steps\n1. Do X"}`)
	h := newTestServer(t, testConfig(upstream.URL)).Handler()

	rec := do(h, http.MethodPost, "/api/process-transcript", validBody, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"markdown":"# Steps\n1. Do X"}`, rec.Body.String())
	assert.Equal(t, int32(1), calls.Load())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "19", rec.Header().Get("RateLimit-Remaining"))
}

func TestRelay_UpstreamStatusPassthrough(t *testing.T) {
	upstream, _ := stubUpstream(t, http.StatusTooManyRequests, `{"message":"rate limited upstream"}`)
	h := newTestServer(t, testConfig(upstream.URL)).Handler()

	rec := do(h, http.MethodPost, "/api/process-transcript", validBody, nil)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"rate limited upstream"}`, rec.Body.String())
}

func TestRelay_TranscriptTooShort(t *testing.T) {
	upstream, calls := stubUpstream(t, http.StatusOK, `{"content":"x"}`)
	h := newTestServer(t, testConfig(upstream.URL)).Handler()

	rec := do(h, http.MethodPost, "/api/process-transcript", `{"transcript":"short","videoTitle":"T","apiKey":"k"}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Transcript is too short or invalid"}`, rec.Body.String())
	assert.Zero(t, calls.Load())
}

func TestRelay_RateLimit(t *testing.T) {
	upstream, calls := stubUpstream(t, http.StatusOK, `{"result":"done"}`)
	h := newTestServer(t, testConfig(upstream.URL)).Handler()

	for i := 1; i <= 20; i++ {
		rec := do(h, http.MethodPost, "/api/process-transcript", validBody, nil)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		assert.Equal(t, strconv.Itoa(20-i), rec.Header().Get("RateLimit-Remaining"))
	}

	rec := do(h, http.MethodPost, "/api/process-transcript", validBody, nil)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"`+apperr.MsgRateLimited+`"}`, rec.Body.String())
	assert.Equal(t, "20", rec.Header().Get("RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("RateLimit-Reset"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, int32(20), calls.Load())

	health := do(h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, health.Code, "health is outside the rate limit")
	assert.Empty(t, health.Header().Get("RateLimit-Limit"))
}

func TestRelay_TrustProxy(t *testing.T) {
	upstream, _ := stubUpstream(t, http.StatusOK, `{"content":"ok"}`)
	cfg := testConfig(upstream.URL)
	cfg.TrustProxy = true
	cfg.RateLimit.Max = 1
	h := newTestServer(t, cfg).Handler()

	first := do(h, http.MethodPost, "/api/process-transcript", validBody, map[string]string{"X-Forwarded-For": "198.51.100.1"})
	second := do(h, http.MethodPost, "/api/process-transcript", validBody, map[string]string{"X-Forwarded-For": "198.51.100.2"})
	again := do(h, http.MethodPost, "/api/process-transcript", validBody, map[string]string{"X-Forwarded-For": "198.51.100.1"})

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, http.StatusTooManyRequests, again.Code)
}

func TestRelay_OriginPolicy(t *testing.T) {
	upstream, calls := stubUpstream(t, http.StatusOK, `{"content":"ok"}`)

	prod := newTestServer(t, testConfig(upstream.URL)).Handler()

	rec := do(prod, http.MethodPost, "/api/process-transcript", validBody, map[string]string{"Origin": "https://example.com"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"`+apperr.MsgOriginRejected+`"}`, rec.Body.String())
	assert.Zero(t, calls.Load())

	rec = do(prod, http.MethodPost, "/api/process-transcript", validBody, map[string]string{"Origin": "chrome-extension://abc"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "chrome-extension://abc", rec.Header().Get("Access-Control-Allow-Origin"))

	devCfg := testConfig(upstream.URL)
	devCfg.Environment = config.EnvDevelopment
	dev := newTestServer(t, devCfg).Handler()

	rec = do(dev, http.MethodPost, "/api/process-transcript", validBody, map[string]string{"Origin": "https://example.com"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRelay_Health(t *testing.T) {
	h := newTestServer(t, testConfig("http://127.0.0.1:1")).Handler()

	rec := do(h, http.MethodGet, "/health", "", map[string]string{"X-Request-ID": "req-123"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	var body struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	_, err := time.Parse(time.RFC3339Nano, body.Timestamp)
	assert.NoError(t, err)
}

func TestRelay_UnknownRoutes(t *testing.T) {
	h := newTestServer(t, testConfig("http://127.0.0.1:1")).Handler()

	rec := do(h, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Not found"}`, rec.Body.String())

	rec = do(h, http.MethodGet, "/api/process-transcript", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Method not allowed"}`, rec.Body.String())
}

func TestRelay_UpstreamUnreachable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	h := newTestServer(t, testConfig(url)).Handler()
	rec := do(h, http.MethodPost, "/api/process-transcript", validBody, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"`+apperr.MsgUpstreamUnreachable+`"}`, rec.Body.String())
}

func TestRecoverer(t *testing.T) {
	h := recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil map write in handler")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Internal server error"}`, rec.Body.String())
}

func TestServer_Serve(t *testing.T) {
	s := newTestServer(t, testConfig("http://127.0.0.1:1"))

	httpLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	grpcLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, httpLis, grpcLis) }()

	resp, err := http.Get("http://" + httpLis.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestWriteTimeout(t *testing.T) {
	assert.Equal(t, time.Duration(0), writeTimeout(0))
	assert.Equal(t, 150*time.Second, writeTimeout(2*time.Minute))
}
