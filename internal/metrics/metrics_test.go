package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	rec, err := New(reg)
	require.NoError(t, err)

	rec.ObserveItem("movie", "acknowledged")
	rec.ObserveItem("movie", "acknowledged")
	rec.ObserveItem("movie", "dropped")
	rec.ObserveDiscovered("actor", 3)
	rec.ObserveDiscovered("actor", 0)
	rec.ObserveTransition("movie", "BROKEN")
	rec.ObserveArtifact("movie", "duplicate")
	rec.ObserveStoreError("actor")
	rec.ObserveRateLimited()

	require.Equal(t, 2.0, testutil.ToFloat64(rec.items.WithLabelValues("movie", "acknowledged")))
	require.Equal(t, 1.0, testutil.ToFloat64(rec.items.WithLabelValues("movie", "dropped")))
	require.Equal(t, 3.0, testutil.ToFloat64(rec.discovered.WithLabelValues("actor")))
	require.Equal(t, 1.0, testutil.ToFloat64(rec.transitions.WithLabelValues("movie", "BROKEN")))
	require.Equal(t, 1.0, testutil.ToFloat64(rec.artifacts.WithLabelValues("movie", "duplicate")))
	require.Equal(t, 1.0, testutil.ToFloat64(rec.storeErrors.WithLabelValues("actor")))
	require.Equal(t, 1.0, testutil.ToFloat64(rec.rateLimited))
}

func TestNewRejectsDoubleRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	require.ErrorContains(t, err, "register frontier collector")
}

func TestNilRecorderIsNoop(t *testing.T) {
	t.Parallel()

	var rec *Recorder
	rec.ObserveItem("seed", "acknowledged")
	rec.ObserveDiscovered("movie", 1)
	rec.ObserveTransition("movie", "NORMAL")
	rec.ObserveArtifact("movie", "stored")
	rec.ObserveStoreError("seed")
	rec.ObserveRateLimited()

	h := rec.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTeapot, rr.Code)
}

func TestMiddlewareAndHandler(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	rec, err := New(reg)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(rec.Middleware)
	r.Get("/test", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/notfound", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", rec.Handler())

	ts := httptest.NewServer(r)
	defer ts.Close()

	for _, path := range []string{"/test", "/notfound"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
	}

	require.Equal(t, 1.0, testutil.ToFloat64(rec.httpRequests.WithLabelValues("GET", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(rec.httpRequests.WithLabelValues("GET", "404")))
	require.Positive(t, testutil.CollectAndCount(rec.httpDuration))

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck // test cleanup
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "http_requests_total")
}
