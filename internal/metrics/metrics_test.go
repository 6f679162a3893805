package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCountersAreExposed(t *testing.T) {
	m := New()
	m.ObserveMutation("payable", "create", "ok")
	m.ObserveMutation("payable", "create", "ok")
	m.ObserveStorageError("write")
	m.ObserveExport("csv")
	m.ObserveReport("monthly")
	m.ObserveCacheLookup(true)
	m.ObserveCacheLookup(false)
	m.ObserveJob("backup", errors.New("boom"))
	m.ObservePublish(nil)

	out := scrape(t, m)
	assert.Contains(t, out, `financeiro_store_mutations_total{kind="payable",op="create",outcome="ok"} 2`)
	assert.Contains(t, out, `financeiro_store_storage_errors_total{op="write"} 1`)
	assert.Contains(t, out, `financeiro_exports_total{format="csv"} 1`)
	assert.Contains(t, out, `financeiro_reports_total{type="monthly"} 1`)
	assert.Contains(t, out, `financeiro_cache_lookups_total{result="hit"} 1`)
	assert.Contains(t, out, `financeiro_cache_lookups_total{result="miss"} 1`)
	assert.Contains(t, out, `financeiro_worker_jobs_total{job="backup",outcome="error"} 1`)
	assert.Contains(t, out, `financeiro_amqp_changes_published_total{outcome="ok"} 1`)
	assert.Contains(t, out, "go_goroutines")
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ObserveExport("json")
	assert.NotContains(t, scrape(t, b), `financeiro_exports_total{format="json"}`)
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, path := range []string{"/api/items/1", "/api/items/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Contains(t, scrape(t, m), `financeiro_http_requests_total{method="GET",route="/api/items/{id}",status="204"} 2`)
}
