package api

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type contextKey string

const ctxKeyRequestID contextKey = "request_id"

// Defaults for CORS headers when the config lists none.
const (
	defaultCORSMethods = "GET, POST, PATCH, OPTIONS"
	defaultCORSHeaders = "Content-Type, X-Request-ID"
)

// maxRequestBodySize caps request bodies at 1 MB. Command bodies are tiny.
const maxRequestBodySize = 1 << 20

// quietPaths are polled by dashboards and probes; they log at debug.
var quietPaths = map[string]bool{
	"/api/v1/health": true,
	"/api/v1/ws":     true,
}

// requestIDFrom returns the request id set by requestIDMiddleware.
func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// requestIDMiddleware propagates X-Request-ID, minting one when absent.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, id)))
	})
}

// loggingMiddleware logs one line per request. The route pattern groups
// requests for the same entity operation regardless of id.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := ""
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestIDFrom(r.Context()),
		}
		switch {
		case sw.status >= http.StatusInternalServerError:
			s.logger.Error("http request", args...)
		case quietPaths[r.URL.Path]:
			s.logger.Debug("http request", args...)
		default:
			s.logger.Info("http request", args...)
		}
	})
}

// recoveryMiddleware turns a handler panic into a 500.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered in HTTP handler",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", requestIDFrom(r.Context()),
				)
				writeInternalError(w, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware sets CORS headers for allowed origins and answers preflight.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	methods := defaultCORSMethods
	if len(s.cfg.CORS.AllowedMethods) > 0 {
		methods = strings.Join(s.cfg.CORS.AllowedMethods, ", ")
	}
	headers := defaultCORSHeaders
	if len(s.cfg.CORS.AllowedHeaders) > 0 {
		headers = strings.Join(s.cfg.CORS.AllowedHeaders, ", ")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.isAllowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", methods)
			w.Header().Set("Access-Control-Allow-Headers", headers)
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bodySizeLimitMiddleware wraps request bodies in http.MaxBytesReader.
func (s *Server) bodySizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// isAllowedOrigin reports whether origin may call the API. An empty list
// allows every origin.
func (s *Server) isAllowedOrigin(origin string) bool {
	if len(s.cfg.CORS.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.CORS.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// statusWriter records the status code written by a handler.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack lets the websocket upgrade take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("api: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
