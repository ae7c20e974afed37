package server

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cdpfgl/cdpfgl-go/internal/logger"
	"github.com/cdpfgl/cdpfgl-go/pkg/metrics"
)

// newRouter builds the chi router for a Dispatcher. Routes mirror the
// endpoint table: block storage/retrieval, filemeta storage, the
// dedup-confirmation and listing queries.
func newRouter(disp *Dispatcher, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(metricsMiddleware(m))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	s := &Server{dispatcher: disp}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/blocks", s.handleStoreBlock)
		r.Get("/blocks/{hash}", s.handleRetrieveBlock)
		r.Post("/filemeta", s.handleStoreFileMeta)
		r.Post("/hashes/needed", s.handleNeededHashes)
		r.Get("/files", s.handleListFiles)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, map[string]string{"status": "ok"})
	})

	return r
}

// requestLogger logs each request's method/path/status/duration and attaches
// a request-scoped LogContext so downstream handlers log with the same
// operation name and client IP.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		clientIP := r.RemoteAddr
		if host, _, err := net.SplitHostPort(clientIP); err == nil {
			clientIP = host
		}
		lc := logger.NewLogContext(clientIP).WithOperation(routeOperation(r))
		ctx := logger.WithContext(r.Context(), lc)
		r = r.WithContext(ctx)

		logger.DebugCtx(ctx, "request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.InfoCtx(ctx, "request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}

// routeOperation derives a coarse operation name from the method and path
// for the request's log context, before chi has matched a route pattern.
func routeOperation(r *http.Request) string {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/blocks":
		return "store_block"
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/v1/blocks/"):
		return "retrieve_block"
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/filemeta":
		return "store_filemeta"
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/hashes/needed":
		return "needed_hashes"
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/files":
		return "list_files"
	default:
		return "unknown"
	}
}

// metricsMiddleware records in-flight count and per-route duration/outcome.
// A nil m degrades to pure overhead of the gauge/histogram no-ops.
func metricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.RequestStarted()
			defer m.RequestEnded()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			outcome := "ok"
			if ww.Status() >= 400 {
				outcome = "error"
			}
			m.RecordRequest(r.URL.Path, outcome, time.Since(start))
		})
	}
}

func chiURLParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
