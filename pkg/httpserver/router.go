package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Wa4h1h/go-bootserver/pkg/metrics"
)

// newRouter builds the chi router serving the artifact directory.
// The metrics handler is mounted at /metrics when provided.
func newRouter(root string, l *zap.SugaredLogger, m *metrics.Metrics,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(l, m))
	r.Use(middleware.Recoverer)

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Handle("/*", http.FileServer(http.Dir(root)))

	return r
}

// requestLogger logs each request with its status and duration.
func requestLogger(l *zap.SugaredLogger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			m.RecordHTTPRequest(strconv.Itoa(ww.Status()))

			l.Infow("request completed",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
			)
		})
	}
}
