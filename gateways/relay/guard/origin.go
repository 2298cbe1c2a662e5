// Package guard admits or rejects requests before they reach a handler.
package guard

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/cors"

	"github.com/xilidan/transcript-relay/pkg/apperr"
	"github.com/xilidan/transcript-relay/pkg/json"
	"github.com/xilidan/transcript-relay/pkg/logger"
)

// OriginPolicy admits requests without an Origin header, requests from the
// trusted extension scheme, and, in development, every origin.
type OriginPolicy struct {
	prefix      string
	development bool
}

func NewOriginPolicy(prefix string, development bool) *OriginPolicy {
	return &OriginPolicy{
		prefix:      prefix,
		development: development,
	}
}

func (p *OriginPolicy) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	if p.prefix != "" && strings.HasPrefix(origin, p.prefix) {
		return true
	}
	return p.development
}

// Reject answers 403 for origins the policy does not admit.
func (p *OriginPolicy) Reject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if !p.Allowed(origin) {
			e := apperr.NewOriginRejected(origin)
			logger.Warn(r.Context(), "origin rejected",
				slog.String("origin", origin),
				slog.String("path", r.URL.Path))
			json.WriteError(w, e.Status, e.Message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CORS emits the cross-origin response headers for admitted origins.
func (p *OriginPolicy) CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return p.Allowed(origin)
		},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"RateLimit-Policy", "RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", "Retry-After", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
