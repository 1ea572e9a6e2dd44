package metrics_test

import (
	"io"
	"ml-backend/internal/metrics"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservePredictions(t *testing.T) {
	m := metrics.New()

	m.ObservePredictions(3)
	m.ObservePredictions(0)

	expected := `
# HELP ml_backend_predictions_total Total number of predictions returned, one per task.
# TYPE ml_backend_predictions_total counter
ml_backend_predictions_total 3
# HELP ml_backend_predict_requests_total Total number of predict calls served.
# TYPE ml_backend_predict_requests_total counter
ml_backend_predict_requests_total 2
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"ml_backend_predictions_total", "ml_backend_predict_requests_total"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.ObservePredictions(1)
		m.ObserveEvent("ANNOTATION_CREATED", metrics.EventReceived)
	})

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := metrics.New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Handle("/metrics", m.Handler())

	for _, id := range []string{"1", "2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	m.ObserveEvent("ANNOTATION_CREATED", metrics.EventCompleted)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `ml_backend_http_requests_total{code="204",method="GET",route="/items/{id}"} 2`)
	assert.Contains(t, string(body), `ml_backend_fit_events_total{action="ANNOTATION_CREATED",outcome="completed"} 1`)
}
