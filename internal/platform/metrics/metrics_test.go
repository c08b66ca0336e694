package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMountServesDefaultRegistry(t *testing.T) {
	c := promauto.NewCounter(prometheus.CounterOpts{Name: "poshub_metrics_test_total", Help: "test"})
	c.Add(3)

	mux := chi.NewRouter()
	Mount(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, Path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "poshub_metrics_test_total 3")
}
