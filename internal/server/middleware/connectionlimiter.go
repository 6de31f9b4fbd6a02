package middleware

import (
	"log/slog"
	"net/http"

	"github.com/a-essam23/go-signal/pkg/config"
)

const (
	LimitModeReject = "reject"
	LimitModeCycle  = "cycle"
)

// IPConnectionCounter reports how many live connections an address holds.
type IPConnectionCounter func(ip string) int

// IPConnectionCycler closes the oldest connection of an address.
type IPConnectionCycler func(ip string)

// NewConnectionLimiter caps concurrent connections per client IP. Once the cap
// is reached, "reject" answers 429 and "cycle" evicts the oldest connection
// before letting the new one through.
func NewConnectionLimiter(
	logger *slog.Logger,
	counter IPConnectionCounter,
	cycler IPConnectionCycler,
	config config.ConnectionLimitConfig,
) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.MaxPerIP <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				logger.Error("Connection limiter could not find request metadata in context. Check middleware order.")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			count := counter(reqMeta.IP)
			if count < config.MaxPerIP {
				next.ServeHTTP(w, r)
				return
			}

			logger.Warn("IP connection limit reached", slog.String("ip", reqMeta.IP), slog.Int("count", count))
			switch config.Mode {
			case LimitModeReject:
				http.Error(w, "Too Many Active Connections", http.StatusTooManyRequests)
			case LimitModeCycle:
				cycler(reqMeta.IP)
				next.ServeHTTP(w, r)
			default:
				logger.Error("Invalid connection limit mode configured", slog.String("mode", config.Mode))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		})
	}
}
