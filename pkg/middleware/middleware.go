// Package middleware wraps handlers with the headers and logging every
// response of the service gets.
package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spencer-p/tidelink/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

type ctxKey struct{}

// StatusRecorder captures the status code written by the next handler.
type StatusRecorder struct {
	http.ResponseWriter
	Status int
}

func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
}

func (rec *StatusRecorder) WriteHeader(code int) {
	rec.Status = code
	rec.ResponseWriter.WriteHeader(code)
}

// Headers sets the headers the page has always been served with: any origin
// may GET it, and nothing may cache it, since the page differs per host.
func Headers(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET")
		h.Set("Cache-Control", "no-store, no-cache, must-revalidate")
		next.ServeHTTP(w, r)
	})
}

// RequestID returns the id AccessLog assigned to the request, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// AccessLog attaches a request id and a request-scoped logger to the context
// and logs one line per request once next returns.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)

		ctx := context.WithValue(r.Context(), ctxKey{}, id)
		ctx = logger.WithFields(ctx, zap.String("request_id", id))

		start := time.Now()
		rec := NewStatusRecorder(w)
		next.ServeHTTP(rec, r.WithContext(ctx))

		logger.Info(ctx, "access",
			zap.String("method", r.Method),
			zap.String("url", r.URL.String()),
			zap.String("host", r.Host),
			zap.Int("status", rec.Status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", ClientIP(r)),
			zap.String("user_agent", r.UserAgent()),
		)
	})
}

// ClientIP prefers proxy headers over the connection's address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
