package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
)

// responseWriter wraps http.ResponseWriter to capture status code and bytes
// written for access logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// recoveryMiddleware catches panics in a handler and returns 500 instead of
// crashing the process.
func recoveryMiddleware(logger *common.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error().
						Str("panic", fmt.Sprintf("%v", rec)).
						Str("path", r.URL.Path).
						Msg("panic recovered in HTTP handler")
					WriteError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// correlationIDMiddleware extracts or generates a correlation ID and injects
// it into the request context so downstream audit records and job
// dispatches carry it through.
func correlationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corrID := r.Header.Get("X-Correlation-ID")
		if corrID == "" {
			corrID = common.NewCorrelationID()
		}
		w.Header().Set("X-Correlation-ID", corrID)
		ctx := common.WithCorrelationID(r.Context(), corrID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs every HTTP request once it completes.
func loggingMiddleware(logger *common.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			event := logger.Trace()
			if rw.statusCode >= 500 {
				event = logger.Error()
			} else if rw.statusCode >= 400 {
				event = logger.Info()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rw.statusCode).
				Int("bytes", rw.bytesWritten).
				Dur("duration", time.Since(start)).
				Str("correlation_id", common.CorrelationIDFromContext(r.Context())).
				Msg("http request")
		})
	}
}

// applyMiddleware wraps h with the standard middleware chain, innermost
// first: correlation-id, then access logging, then recovery (outermost).
func applyMiddleware(h http.Handler, logger *common.Logger) http.Handler {
	h = correlationIDMiddleware(h)
	h = loggingMiddleware(logger)(h)
	h = recoveryMiddleware(logger)(h)
	return h
}
