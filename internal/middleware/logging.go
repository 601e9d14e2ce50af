// Package middleware contains HTTP middleware functions.
//
// WHAT IS MIDDLEWARE?
// Middleware wraps an http.Handler to add cross-cutting behaviour (logging,
// rate limiting, ...) without modifying the handler itself:
//
//	func MyMiddleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // before
//	        next.ServeHTTP(w, r)
//	        // after
//	    })
//	}
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stardylog/backend/internal/auth"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
// Go's http.ResponseWriter doesn't expose the status code after WriteHeader is
// called, so we track it ourselves.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// StatusRecorder counts responses by status. metrics.Collector implements it.
type StatusRecorder interface {
	RecordHTTPStatus(statusCode int)
}

// annotations collects extra log attributes from middleware further down the
// chain.
//
// WHY A MUTABLE HOLDER?
// Inner middleware (auth, for one) derives new contexts with r.WithContext;
// the Logger that wrapped them never sees those contexts. A pointer stored in
// the context before the call is shared by every derived context, so inner
// code can write to it and the Logger reads it after next.ServeHTTP returns.
type annotations struct {
	mu    sync.Mutex
	attrs []slog.Attr
}

type annotationsKey struct{}

// Annotate adds attrs to the request's "request completed" log line.
// It is a no-op when the request is not wrapped by Logger.
func Annotate(ctx context.Context, attrs ...slog.Attr) {
	a, ok := ctx.Value(annotationsKey{}).(*annotations)
	if !ok {
		return
	}
	a.mu.Lock()
	a.attrs = append(a.attrs, attrs...)
	a.mu.Unlock()
}

// AnnotateSubject tags the request log with the authenticated subject.
// Mount it after auth.Admission.
func AnnotateSubject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := auth.IdentityFromContext(r.Context()); id.Authenticated {
			Annotate(r.Context(), slog.String("subject", id.SubjectID))
		}
		next.ServeHTTP(w, r)
	})
}

// Logger returns middleware that writes one structured log line per request.
//
// The level follows the status: 5xx → Error, 4xx → Warn, everything else →
// Info. statuses may be nil.
func Logger(logger *slog.Logger, statuses StatusRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK, // if WriteHeader is never called
			}
			notes := &annotations{}
			ctx := context.WithValue(r.Context(), annotationsKey{}, notes)

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			if statuses != nil {
				statuses.RecordHTTPStatus(wrapped.statusCode)
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", wrapped.written),
			}
			if reqID := chimw.GetReqID(r.Context()); reqID != "" {
				attrs = append(attrs, slog.String("request_id", reqID))
			}
			notes.mu.Lock()
			attrs = append(attrs, notes.attrs...)
			notes.mu.Unlock()

			logger.LogAttrs(r.Context(), levelFor(wrapped.statusCode), "request completed", attrs...)
		})
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
