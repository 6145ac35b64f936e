package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/reloved/flutter-openwrap-sdk/internal/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func echoRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.POST("/echo/:name", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.String(http.StatusOK, string(body))
	})
	return r
}

func TestSizeLimiterRejectsLargeBody(t *testing.T) {
	sl := NewSizeLimiter(&SizeLimitConfig{Enabled: true, MaxBodySize: 8, MaxURLLength: 100})
	r := echoRouter(sl.Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo/a", strings.NewReader("small")))
	if w.Code != http.StatusOK {
		t.Errorf("small body: expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo/a", strings.NewReader("this body is too large")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("large body: expected 413, got %d", w.Code)
	}
}

func TestSizeLimiterRejectsLongURL(t *testing.T) {
	sl := NewSizeLimiter(&SizeLimitConfig{Enabled: true, MaxBodySize: 1024, MaxURLLength: 20})
	r := echoRouter(sl.Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo/"+strings.Repeat("a", 50), nil))
	if w.Code != http.StatusRequestURITooLong {
		t.Errorf("expected 414, got %d", w.Code)
	}
}

func TestSizeLimiterDisabled(t *testing.T) {
	sl := NewSizeLimiter(&SizeLimitConfig{Enabled: true, MaxBodySize: 2, MaxURLLength: 100})
	sl.SetEnabled(false)
	r := echoRouter(sl.Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo/a", strings.NewReader("hello")))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if cfg := sl.GetConfig(); cfg.Enabled {
		t.Error("expected config to report disabled")
	}
}

func TestLoggingSetsRequestID(t *testing.T) {
	var seen string
	r := gin.New()
	r.Use(Logging())
	r.GET("/id", func(c *gin.Context) {
		seen = RequestID(c)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))
	if seen == "" || w.Header().Get(RequestIDHeader) != seen {
		t.Errorf("expected generated request id in header, got %q / %q", seen, w.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(RequestIDHeader, "abc123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if seen != "abc123" {
		t.Errorf("expected caller request id to be kept, got %q", seen)
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	r := echoRouter(Metrics(m))

	for _, name := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo/"+name, strings.NewReader("x")))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "/echo/:name", "200")); got != 2 {
		t.Errorf("expected 2 requests for route template, got %v", got)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unknown", "404")); got != 1 {
		t.Errorf("expected 1 unknown request, got %v", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	r := echoRouter(Metrics(nil))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo/a", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}
