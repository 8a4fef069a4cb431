package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudhir1041/nursery-orders/pkg/logger"
)

func accessLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		out = append(out, line)
	}
	return out
}

func TestLoggingRecordsRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf, Format: "json"})

	r := chi.NewRouter()
	r.Use(Logging(logg))
	r.Get("/orders/{source}/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/shopify/42", nil))

	lines := accessLines(t, &buf)
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "/orders/{source}/{id}", line["route"])
	assert.Equal(t, "/orders/shopify/42", line["path"])
	assert.EqualValues(t, http.StatusNotFound, line["status"])
	assert.EqualValues(t, len("missing"), line["bytes"])
}

func TestLoggingLevels(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf, Format: "json", Level: zerolog.InfoLevel})

	r := chi.NewRouter()
	r.Use(Logging(logg))
	r.Get("/health/live", func(http.ResponseWriter, *http.Request) {})
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	lines := accessLines(t, &buf)
	require.Len(t, lines, 1, "health checks log at debug")
	assert.Equal(t, "warn", lines[0]["level"])
	assert.EqualValues(t, http.StatusBadGateway, lines[0]["status"])
}

type recordedObservation struct {
	method, route string
	status        int
}

type observerFunc func(method, route string, status int, d time.Duration)

func (f observerFunc) Observe(method, route string, status int, d time.Duration) {
	f(method, route, status, d)
}

func TestMetricsDefaultsStatusToOK(t *testing.T) {
	var got []recordedObservation
	r := chi.NewRouter()
	r.Use(Metrics(observerFunc(func(method, route string, status int, _ time.Duration) {
		got = append(got, recordedObservation{method, route, status})
	})))
	r.Post("/webhooks/{source}", func(http.ResponseWriter, *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/webhooks/shopify", nil))

	require.Len(t, got, 1)
	assert.Equal(t, recordedObservation{http.MethodPost, "/webhooks/{source}", http.StatusOK}, got[0])
}
