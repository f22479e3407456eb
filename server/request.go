package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey int

const (
	idKey contextKey = iota
	loggerKey
)

// RequestMiddleware tags each request with a unique ID and a logger
// carrying it.
func RequestMiddleware(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.NewString()
			entry := log.WithFields(logrus.Fields{
				"request_id": requestID,
				"method":     r.Method,
				"path":       r.URL.Path,
			})

			ctx := context.WithValue(r.Context(), idKey, requestID)
			ctx = context.WithValue(ctx, loggerKey, entry)
			w.Header().Set("X-Request-Id", requestID)
			entry.Debug("request")

			next.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}

// RequestID returns the request ID. Panic indicates coding error.
func RequestID(r *http.Request) string {
	id, ok := r.Context().Value(idKey).(string)
	if !ok {
		panic("retrieve request ID from context")
	}
	return id
}

// Logger returns the per-request logger. Panic indicates coding error.
func Logger(r *http.Request) *logrus.Entry {
	log, ok := r.Context().Value(loggerKey).(*logrus.Entry)
	if !ok {
		panic("retrieve logger from context")
	}
	return log
}
