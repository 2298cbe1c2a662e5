package guard

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/xilidan/transcript-relay/pkg/apperr"
	"github.com/xilidan/transcript-relay/pkg/json"
	"github.com/xilidan/transcript-relay/pkg/logger"
	"github.com/xilidan/transcript-relay/pkg/ratelimit"
)

// RateLimit applies a per-client-IP limiter and reports its state in the
// RateLimit-* headers. X-RateLimit-* headers are never sent.
type RateLimit struct {
	limiter ratelimit.Limiter
	policy  string
	now     func() time.Time
}

func NewRateLimit(limiter ratelimit.Limiter, limit int, window time.Duration) *RateLimit {
	return &RateLimit{
		limiter: limiter,
		policy:  strconv.Itoa(limit) + ";w=" + strconv.Itoa(int(window/time.Second)),
		now:     time.Now,
	}
}

func (m *RateLimit) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		res := m.limiter.Allow(ip)

		reset := strconv.Itoa(secondsUntil(m.now(), res.ResetAt))
		h := w.Header()
		h.Set("RateLimit-Policy", m.policy)
		h.Set("RateLimit-Limit", strconv.Itoa(res.Limit))
		h.Set("RateLimit-Remaining", strconv.Itoa(res.Remaining))
		h.Set("RateLimit-Reset", reset)

		if !res.Allowed {
			e := apperr.NewRateLimited()
			logger.Warn(r.Context(), "rate limit exceeded",
				slog.String("client_ip", ip),
				slog.Int("limit", res.Limit))
			h.Set("Retry-After", reset)
			json.WriteError(w, e.Status, e.Message)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the host part of RemoteAddr. With TRUST_PROXY the chi
// RealIP middleware has already rewritten RemoteAddr from the proxy headers.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func secondsUntil(now, t time.Time) int {
	d := t.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
