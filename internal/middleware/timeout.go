package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"go-student-records/internal/model"
	"go-student-records/pkg/apierror"
)

var requestTimeouts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_request_timeouts_total",
		Help: "Requests whose handler ran past the request deadline",
	},
	[]string{"method"},
)

// Timeout bounds the handler run time. Handlers see the deadline through the
// request context, so slow store calls are cancelled together with the response.
// A handler that overruns is counted and logged once it returns.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	body, _ := json.Marshal(model.APIResponse{
		Success: false,
		Error:   &model.APIError{Code: apierror.CodeTimeout, Message: "request timed out"},
	})

	return func(next http.Handler) http.Handler {
		observed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			next.ServeHTTP(w, r)

			if errors.Is(r.Context().Err(), context.DeadlineExceeded) {
				requestTimeouts.WithLabelValues(r.Method).Inc()
				slog.Warn("request exceeded deadline",
					"method", r.Method,
					"path", r.URL.Path,
					"timeout", timeout,
					"elapsed_ms", time.Since(started).Milliseconds(),
				)
			}
		})
		return http.TimeoutHandler(observed, timeout, string(body))
	}
}
