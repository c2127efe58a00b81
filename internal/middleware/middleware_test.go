package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-student-records/internal/model"
)

func TestRecovery(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/courses", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
}

func TestLogging_SetsRequestID(t *testing.T) {
	handler := Logging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"NOT_FOUND","message":"course not found"}}`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/courses/9", nil))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
}

func TestLogging_RecordsRouteAndAccount(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })

	r := chi.NewRouter()
	r.Use(Logging)
	r.Get("/api/v1/courses/{id}", func(w http.ResponseWriter, r *http.Request) {
		annotateAccount(r.Context(), "sam")
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/courses/7", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "/api/v1/courses/{id}", line["route"])
	assert.Equal(t, "sam", line["account"])
	assert.Equal(t, "/api/v1/courses/7", line["path"])
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
}

func TestTimeout(t *testing.T) {
	handler := Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	counter := requestTimeouts.WithLabelValues(http.MethodPatch)
	before := counterValue(t, counter)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/v1/courses/7", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "REQUEST_TIMEOUT"))

	var body model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, "request timed out", body.Error.Message)

	require.Eventually(t, func() bool {
		return counterValue(t, counter) == before+1
	}, time.Second, 5*time.Millisecond)
}

func TestTimeout_FastHandlerIsNotCounted(t *testing.T) {
	handler := Timeout(time.Second)(okHandler())

	counter := requestTimeouts.WithLabelValues(http.MethodHead)
	before := counterValue(t, counter)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/api/v1/courses", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, before, counterValue(t, counter))
}

func TestCORS_Preflight(t *testing.T) {
	handler := CORS([]string{"https://school.example"})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/courses", nil)
	req.Header.Set("Origin", "https://school.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://school.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_NormalizesConfiguredOrigins(t *testing.T) {
	handler := CORS([]string{" https://School.example/ ", "https://school.example"})(okHandler())

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/courses", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, "https://school.example", preflight("https://school.example").Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, preflight("https://other.example").Header().Get("Access-Control-Allow-Origin"))
}

func TestNormalizeOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, normalizeOrigins(nil))
	assert.Equal(t, []string{"*"}, normalizeOrigins([]string{"https://a.example", "*"}))
	assert.Equal(t, []string{"https://a.example", "https://b.example"},
		normalizeOrigins([]string{"https://A.example/", "", "https://b.example", "https://a.example"}))
}

func TestMetrics_CountsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/courses/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/courses/{id}", "202")
	before := counterValue(t, counter)

	for _, path := range []string{"/courses/1", "/courses/2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	assert.Equal(t, before+2, counterValue(t, counter))
}

func TestMetrics_WithoutRouter(t *testing.T) {
	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "unknown", "200")
	before := counterValue(t, counter)

	rec := httptest.NewRecorder()
	Metrics(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, before+1, counterValue(t, counter))
}
