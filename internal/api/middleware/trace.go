package middleware

import (
	"net/http"

	"github.com/phrazzld/task-api/internal/api/shared"
	"github.com/phrazzld/task-api/internal/platform/logger"
)

// TraceMiddleware assigns a trace ID to every request and attaches a
// request-scoped logger annotated with it. Handlers and stores retrieve
// the logger with logger.FromContext, so every log line of one request
// carries the same trace_id.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())
		traceID := shared.GetTraceID(ctx)

		reqLogger := logger.FromContext(ctx).With("trace_id", traceID)
		ctx = logger.WithLogger(ctx, reqLogger)

		w.Header().Set("X-Trace-ID", traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
