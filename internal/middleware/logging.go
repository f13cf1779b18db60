package middleware

import (
	"net/http"
	"time"

	"github.com/AnshRaj112/lovedoctor-backend/pkg/clientip"
	"github.com/AnshRaj112/lovedoctor-backend/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestLogger attaches a request scoped logger to the context and logs
// every completed request. Must run after chi's RequestID.
func RequestLogger(base *zap.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			l := base.With(
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_ip", clientip.FromRequest(r, trustProxy)),
			)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), l)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			}
			switch {
			case status >= 500:
				l.Error("request failed", fields...)
			case r.URL.Path == "/health" || r.URL.Path == "/metrics":
				l.Debug("request", fields...)
			default:
				l.Info("request", fields...)
			}
		})
	}
}
