package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGinMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(reg)
	if err != nil {
		t.Fatalf("new http metrics: %v", err)
	}

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/credits", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/credits", nil))
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues("/credits", http.MethodGet, "200"))
	if got != 3 {
		t.Fatalf("expected 3 requests recorded, got %v", got)
	}
}

func TestNewHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewHTTPMetrics(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewHTTPMetrics(reg); err != nil {
		t.Fatalf("second registration should reuse collectors: %v", err)
	}
}
