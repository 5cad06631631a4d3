package main

import (
	"net/http"
	"runtime"
	"time"

	"github.com/klsinformatica/orcamento/internal/logging"
)

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogger tags each request with a correlation id and logs its outcome.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, _ := logging.WithCorrelationID(r.Context())
		r = r.WithContext(ctx)

		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		entry := logging.ForContext(ctx).WithFields(logging.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status_code": rec.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		switch {
		case rec.statusCode >= 500:
			entry.Error("request failed")
		case rec.statusCode >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request completed")
		}
	})
}

// recoverPanics turns a handler panic into a 500 and logs the stack.
func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				stack := make([]byte, 4096)
				stack = stack[:runtime.Stack(stack, false)]

				logging.ForContext(r.Context()).WithFields(logging.Fields{
					"panic_error": err,
					"path":        r.URL.Path,
					"stack_trace": string(stack),
				}).Error("unhandled panic")

				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

const maxBodyBytes = 16 << 10

// limitBody caps request bodies so oversized input fails to decode.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

// serialize runs one request at a time against the quote store.
func (s *server) serialize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}
