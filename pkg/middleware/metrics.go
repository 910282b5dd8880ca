package middleware

import (
	"net/http"
	"strconv"
	"time"

	"orderdesk/internal/metrics"

	"github.com/go-chi/chi/v5"
)

// Metrics собирает метрики для HTTP запросов
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			start := time.Now()
			ww := newWrapResponseWriter(w)

			defer func() {
				path := routePattern(r)
				status := strconv.Itoa(ww.Status())

				m.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
				m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// unmatchedRoute - метка для запросов вне известных маршрутов.
const unmatchedRoute = "unmatched"

// routePattern - шаблон маршрута chi, чтобы /api/orders/{id} и случайные 404 не плодили метки.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unmatchedRoute
}

// wrapResponseWriter для отслеживания статус кода
type wrapResponseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func newWrapResponseWriter(w http.ResponseWriter) *wrapResponseWriter {
	return &wrapResponseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *wrapResponseWriter) Status() int {
	return rw.status
}

func (rw *wrapResponseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
	rw.wroteHeader = true
}

func (rw *wrapResponseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
