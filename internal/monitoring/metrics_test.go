package monitoring

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/allergen-risk/internal/model"
)

func TestMetrics_ObserveAssessment(t *testing.T) {
	m := NewMetrics()
	m.ObserveAssessment("openfoodfacts", "very high", model.RiskResult{FinalScore: 100})
	m.ObserveAssessment("openfoodfacts", "very high", model.RiskResult{FinalScore: 95})
	m.ObserveLookupError("not_found")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.assessments.WithLabelValues("openfoodfacts", "very high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lookupErrs.WithLabelValues("not_found")))
}

func TestMetrics_MiddlewareAndHandler(t *testing.T) {
	m := NewMetrics()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/products/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/123", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/products/{id}", "404")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `allergen_http_requests_total{method="GET",route="/products/{id}",status="404"} 2`)
	assert.Contains(t, string(body), "go_goroutines")
}
