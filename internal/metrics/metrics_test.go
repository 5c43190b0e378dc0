package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var pb dto.Metric
	if err := m.Write(&pb); err != nil {
		t.Fatal(err)
	}
	if c := pb.GetCounter(); c != nil {
		return c.GetValue()
	}
	return pb.GetGauge().GetValue()
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/projects/{ref}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := value(t, httpRequestsTotal.WithLabelValues("GET", "/api/projects/{ref}", "418"))
	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/projects/"+id, nil))
		if rec.Code != http.StatusTeapot {
			t.Fatalf("status = %d", rec.Code)
		}
	}
	after := value(t, httpRequestsTotal.WithLabelValues("GET", "/api/projects/{ref}", "418"))
	if after-before != 2 {
		t.Errorf("counter delta = %v, want 2", after-before)
	}
}

func TestRecorders(t *testing.T) {
	SetSSESubscribers(3)
	if got := value(t, sseSubscribers); got != 3 {
		t.Errorf("subscribers = %v", got)
	}

	before := value(t, sseDroppedTotal)
	RecordDroppedSubscribers(0)
	RecordDroppedSubscribers(2)
	if got := value(t, sseDroppedTotal) - before; got != 2 {
		t.Errorf("dropped delta = %v", got)
	}

	before = value(t, parsesTotal.WithLabelValues("json", "error"))
	RecordParse("json", false)
	if got := value(t, parsesTotal.WithLabelValues("json", "error")) - before; got != 1 {
		t.Errorf("parse error delta = %v", got)
	}
}

func TestHandler_Exposition(t *testing.T) {
	SetWatchersActive(1)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "fileviewer_watchers_active 1") {
		t.Errorf("exposition missing watchers gauge")
	}
}
