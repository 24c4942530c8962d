package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveDelivery(t *testing.T) {
	c := New()
	c.ObserveDelivery("kv", nil)
	c.ObserveDelivery("kv", nil)
	c.ObserveDelivery("notion", errors.New("rate limited"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.submissions.WithLabelValues("kv", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.submissions.WithLabelValues("notion", "error")))
}

func TestObserveUpload(t *testing.T) {
	c := New()
	c.ObserveUpload(1024, nil)
	c.ObserveUpload(10, errors.New("denied"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.uploads.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.uploads.WithLabelValues("error")))
	assert.Equal(t, 1034.0, testutil.ToFloat64(c.uploadBytes))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveDelivery("kv", nil)
		c.ObserveUpload(1, nil)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := New()
	router := chi.NewRouter()
	router.Use(c.Middleware)
	router.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	router.Handle("/metrics", c.Handler())

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/42", nil))
	c.ObserveDelivery("kv", nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `intake_submissions_total{result="success",sink="kv"} 1`)
	assert.Contains(t, body, `intake_http_requests_total{method="GET",route="/items/{id}",status="418"} 1`)
}
