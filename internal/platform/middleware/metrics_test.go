package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/clinicore/clinicore/internal/platform/metrics"
)

func TestMetrics_RecordsRouteTemplate(t *testing.T) {
	col := metrics.NewCollector()
	e := echo.New()
	e.Use(Metrics(col))
	e.GET("/records/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "missing")
	})

	for _, id := range []string{"a", "b"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/records/"+id, nil))
	}

	if got := testutil.ToFloat64(col.RequestsTotal.WithLabelValues(http.MethodGet, "/records/:id", "404")); got != 2 {
		t.Errorf("expected 2 requests on the route template, got %v", got)
	}
	if got := testutil.ToFloat64(col.InFlight); got != 0 {
		t.Errorf("expected no in-flight requests, got %v", got)
	}
}
