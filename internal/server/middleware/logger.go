package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// NewRequestLogger logs each request when it arrives and when its handler
// returns. For WebSocket upgrades the second line marks the end of the session.
func NewRequestLogger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var ip string
			if reqMeta, ok := ReqMetadataFrom(r.Context()); ok {
				ip = reqMeta.IP
			}
			reqLogger := logger.With(
				slog.String("method", r.Method),
				slog.String("uri", r.RequestURI),
				slog.String("ip", ip),
			)

			start := time.Now()
			reqLogger.Info("Incoming HTTP request")
			next.ServeHTTP(w, r)
			reqLogger.Debug("HTTP request finished", slog.Duration("duration", time.Since(start)))
		})
	}
}
