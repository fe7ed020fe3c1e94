package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/doc-converter/internal/observability"
)

// RequestLogger logs one line per request and propagates chi's request id
// into the context so downstream loggers pick it up. Matched requests are
// logged by route pattern so download handles stay out of the logs.
func RequestLogger(logger *observability.Logger) func(http.Handler) http.Handler {
	log := logger.WithOperation("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()
			if id := chimiddleware.GetReqID(ctx); id != "" {
				ctx = observability.ContextWithRequestID(ctx, id)
				r = r.WithContext(ctx)
			}

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			var evt *observability.LogEvent
			switch {
			case status >= 500:
				evt = log.WithContext(ctx).Error()
			case status == http.StatusNotFound:
				evt = log.WithContext(ctx).Debug()
			default:
				evt = log.WithContext(ctx).Info()
			}
			evt.Str("method", r.Method).
				Str("route", routeOf(r)).
				Str("remote", r.RemoteAddr).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("Request handled")
		})
	}
}

func routeOf(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
