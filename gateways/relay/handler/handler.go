package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/xilidan/transcript-relay/gateways/relay/clients/abacus"
)

// Evaluator is the upstream the transcript pipeline talks to.
type Evaluator interface {
	Evaluate(ctx context.Context, apiKey string, prompt abacus.Prompt) (string, error)
}

type Handler interface {
	HealthHandler(w http.ResponseWriter, r *http.Request)
	ProcessTranscriptHandler(w http.ResponseWriter, r *http.Request)
	NotFoundHandler(w http.ResponseWriter, r *http.Request)
	MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request)
}

type handler struct {
	upstream  Evaluator
	bodyLimit int64
	now       func() time.Time
}

func NewHandler(upstream Evaluator, bodyLimit int64, log *slog.Logger) Handler {
	log.Debug("creating handler", slog.Int64("body_limit", bodyLimit))
	return &handler{
		upstream:  upstream,
		bodyLimit: bodyLimit,
		now:       time.Now,
	}
}
