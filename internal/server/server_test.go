package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/wesleyorama2/loadsim/internal/config"
	"github.com/wesleyorama2/loadsim/internal/loader"
	"github.com/wesleyorama2/loadsim/internal/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func isLetters(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return len(s) > 0
}

func newTestServer(t *testing.T, cfg Config, loads *loader.Cached) (*Server, *metrics.Prometheus) {
	t.Helper()
	prom := metrics.NewPrometheus()
	if loads == nil {
		loads = loader.NewCached(loader.WithTempDir(t.TempDir()), loader.WithRecorder(prom))
	}
	return New(cfg, loads, prom, nil), prom
}

func do(s *Server, method, path, contentType, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestLoad_Post(t *testing.T) {
	s, _ := newTestServer(t, Config{}, nil)

	w := do(s, http.MethodPost, "/load", "application/json", `{"mean_response_size": 0.05}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.True(t, isLetters(w.Body.String()), "payload must be letters only")
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

func TestLoad_GetUsesDefaults(t *testing.T) {
	s, _ := newTestServer(t, Config{}, nil)

	w := do(s, http.MethodGet, "/load", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, isLetters(w.Body.String()))
}

func TestLoad_FirstConfigWins(t *testing.T) {
	loads := loader.NewCached(loader.WithTempDir(t.TempDir()))
	s, _ := newTestServer(t, Config{}, loads)

	w := do(s, http.MethodPost, "/load", "application/json", `{"mean_response_size": 0.01}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(s, http.MethodPost, "/load", "application/json", `{"mean_response_size": 5, "cpu_stress": {"run": true}}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, loads.Config())
	assert.Equal(t, 0.01, loads.Config().MeanResponseSize)
	assert.False(t, loads.Config().CPUStress.Run)
}

func TestLoad_YAMLBody(t *testing.T) {
	loads := loader.NewCached(loader.WithTempDir(t.TempDir()))
	s, _ := newTestServer(t, Config{}, loads)

	w := do(s, http.MethodPost, "/load", "application/yaml", "mean_bandwidth: 0.02\n")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 0.02, loads.Config().MeanResponseSize)
}

func TestLoad_InvalidConfig(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "malformed json", body: `{"cpu_stress":`},
		{name: "not an object", body: `[1, 2]`},
		{name: "wrong type", body: `{"cpu_stress": {"run": "yes"}}`, field: "cpu_stress.run"},
		{name: "bad value", body: `{"mean_response_size": -1}`, field: "mean_response_size"},
		{name: "oversized block", body: `{"disk_stress": {"run": true, "disk_write_block_count": 1, "disk_write_block_size": 1125899906842624}}`, field: "disk_stress.disk_write_block_size"},
		{name: "integer overflow", body: `{"memory_stress": {"memory_size": 1e20}}`, field: "memory_stress.memory_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, Config{}, nil)

			w := do(s, http.MethodPost, "/load", "application/json", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

			doc := w.Body.String()
			assert.NotEmpty(t, gjson.Get(doc, "error").String())
			assert.Equal(t, w.Header().Get(HeaderRequestID), gjson.Get(doc, "request_id").String())
			if tt.field != "" {
				var fields []string
				for _, f := range gjson.Get(doc, "fields").Array() {
					fields = append(fields, f.String())
				}
				assert.Contains(t, fields, tt.field)
			}
		})
	}
}

func TestLoad_UnitFailure(t *testing.T) {
	// Points the disk unit at a directory that does not exist
	cfg := config.Defaults()
	cfg.DiskStress.Run = true
	cfg.DiskStress.DiskWriteBlockCount = 1
	missing := t.TempDir() + "/missing"

	prom := metrics.NewPrometheus()
	loads := loader.NewCachedWith(cfg, loader.WithTempDir(missing), loader.WithRecorder(prom))
	s := New(Config{}, loads, prom, nil)

	w := do(s, http.MethodGet, "/load", "", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, gjson.Get(w.Body.String(), "error").String(), "disk unit failed")

	_, err := os.Stat(missing)
	assert.True(t, os.IsNotExist(err))

	m := do(s, http.MethodGet, "/metrics", "", "")
	assert.Contains(t, m.Body.String(), `loadsim_loads_total{result="failure"} 1`)
}

func TestLoad_PinnedConfigIgnoresBody(t *testing.T) {
	cfg := config.Defaults()
	cfg.MeanResponseSize = 0.01
	loads := loader.NewCachedWith(cfg, loader.WithTempDir(t.TempDir()))
	s, _ := newTestServer(t, Config{}, loads)

	w := do(s, http.MethodPost, "/load", "application/json", `{"mean_response_size": -5}`)
	require.Equal(t, http.StatusOK, w.Code, "schema-valid bodies are ignored when pinned")
	assert.Same(t, cfg, loads.Config())
}

func TestLoad_CachedConfigSkipsBody(t *testing.T) {
	loads := loader.NewCached(loader.WithTempDir(t.TempDir()))
	s, _ := newTestServer(t, Config{}, loads)

	w := do(s, http.MethodPost, "/load", "application/json", `{"mean_response_size": 0.01}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(s, http.MethodPost, "/load", "application/json", `{"cpu_stress":`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, isLetters(w.Body.String()))
	assert.Equal(t, 0.01, loads.Config().MeanResponseSize)
}

func TestRequestID_Forwarded(t *testing.T) {
	s, _ := newTestServer(t, Config{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, Config{}, nil)

	w := do(s, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", gjson.Get(w.Body.String(), "status").String())
	assert.False(t, gjson.Get(w.Body.String(), "configured").Bool())

	do(s, http.MethodGet, "/load", "", "")

	w = do(s, http.MethodGet, "/healthz", "", "")
	assert.True(t, gjson.Get(w.Body.String(), "configured").Bool())
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, Config{MaxRPS: 0.001, Burst: 1}, nil)

	w := do(s, http.MethodGet, "/load", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(s, http.MethodGet, "/load", "", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", gjson.Get(w.Body.String(), "error").String())
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// health is never limited
	w = do(s, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, Config{}, nil)

	do(s, http.MethodGet, "/load", "", "")
	w := do(s, http.MethodGet, "/metrics", "", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `loadsim_loads_total{result="success"} 1`)
	assert.Contains(t, body, `loadsim_unit_duration_seconds_count{unit="bandwidth"} 1`)
	assert.Contains(t, body, `http_requests_total{method="GET",path="/load",status="200"} 1`)
}

func TestAccessLog(t *testing.T) {
	log, hook := test.NewNullLogger()
	loads := loader.NewCached(loader.WithTempDir(t.TempDir()))
	s := New(Config{}, loads, nil, log)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "request completed", entry.Message)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "/healthz", entry.Data["path"])
	assert.Equal(t, http.StatusOK, entry.Data["status"])
	assert.Equal(t, w.Header().Get(HeaderRequestID), entry.Data["request_id"])
}

func TestServe_GracefulShutdown(t *testing.T) {
	s, _ := newTestServer(t, Config{}, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
