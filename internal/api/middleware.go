package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader echoes the request id back to the client
const RequestIDHeader = "X-Request-ID"

type ctxKey struct{}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// requestLogger returns log tagged with the request id from ctx, if any
func requestLogger(ctx context.Context, log logrus.FieldLogger) logrus.FieldLogger {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return log.WithField("request_id", id)
	}
	return log
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set(RequestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), ctxKey{}, requestID)))

		entry := s.log.WithFields(logrus.Fields{
			"request_id":  requestID,
			"http_method": r.Method,
			"uri":         r.URL.RequestURI(),
			"status_code": rec.status,
			"latency_ms":  time.Since(start).Milliseconds(),
			"client_ip":   r.RemoteAddr,
			"user_agent":  r.UserAgent(),
		})

		switch {
		case rec.status >= 500:
			entry.Error("Request completed with server error")
		case rec.status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	})
}
