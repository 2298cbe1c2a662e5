package relay

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/xilidan/transcript-relay/gateways/relay/handler"
	"github.com/xilidan/transcript-relay/pkg/apperr"
	"github.com/xilidan/transcript-relay/pkg/gen"
	"github.com/xilidan/transcript-relay/pkg/logger"
)

const (
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 128
)

// requestContext tags every request with an id and a logger carrying it.
func requestContext(log *slog.Logger, ids gen.IDGenerator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" || len(id) > maxRequestIDLength {
				id = ids.Next()
			}
			w.Header().Set(requestIDHeader, id)

			l := log.With(slog.String("request_id", id))
			next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), l)))
		})
	}
}

// accessLog routes chi's request log lines into slog.
func accessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(log.Handler(), slog.LevelInfo),
		NoColor: true,
	})
}

// recoverer turns a handler panic into the generic 500 envelope.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}
			err := fmt.Errorf("panic: %v", rvr)
			logger.ErrorErr(r.Context(), "panic recovered", err,
				slog.String("stack", string(debug.Stack())))
			handler.WriteError(w, r, apperr.NewInternal(err))
		}()
		next.ServeHTTP(w, r)
	})
}
