package handler

import (
	"log/slog"
	"net/http"

	"github.com/xilidan/transcript-relay/pkg/apperr"
	"github.com/xilidan/transcript-relay/pkg/json"
	"github.com/xilidan/transcript-relay/pkg/logger"
)

// WriteError writes the error envelope for err. Only the public message is
// sent; the cause is logged.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.From(err)
	ctx := r.Context()

	attrs := []any{
		slog.String("kind", string(e.Kind)),
		slog.Int("status", e.Status),
		slog.String("path", r.URL.Path),
	}
	if e.Cause != nil {
		attrs = append(attrs, slog.String("error", e.Cause.Error()))
	}

	switch {
	case e.Kind == apperr.KindInternal:
		logger.Error(ctx, "internal error", attrs...)
	case e.Status >= http.StatusInternalServerError, e.Kind == apperr.KindUpstreamError:
		logger.Error(ctx, "request failed", append(attrs, slog.String("message", e.Message))...)
	default:
		logger.Warn(ctx, "request rejected", append(attrs, slog.String("message", e.Message))...)
	}

	json.WriteError(w, e.Status, e.Message)
}

func (h *handler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, apperr.NewNotFound(r.URL.Path))
}

func (h *handler) MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, apperr.NewMethodNotAllowed(r.Method))
}
