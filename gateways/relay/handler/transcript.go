package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/xilidan/transcript-relay/gateways/relay/clients/abacus"
	"github.com/xilidan/transcript-relay/pkg/apperr"
	"github.com/xilidan/transcript-relay/pkg/json"
	"github.com/xilidan/transcript-relay/pkg/logger"
	"github.com/xilidan/transcript-relay/pkg/sanitize"
)

const titlePreviewLength = 50

func (h *handler) ProcessTranscriptHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := decodeRequest(w, r, h.bodyLimit)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		WriteError(w, r, err)
		return
	}

	transcript := sanitize.Value(req.Transcript, sanitize.MaxTranscript)
	title := sanitize.Value(req.VideoTitle, sanitize.MaxTitle)

	if n := sanitize.Len(transcript); n < sanitize.MinTranscript {
		WriteError(w, r, apperr.NewTranscriptTooShort(n))
		return
	}

	logger.Info(ctx, "processing request",
		slog.String("title", sanitize.Text(title, titlePreviewLength)),
		slog.Int("transcript_length", sanitize.Len(transcript)))

	// The upstream call outlives a disconnected client; only the client
	// timeout bounds it.
	markdown, err := h.upstream.Evaluate(context.WithoutCancel(ctx), req.Key(), abacus.NewPrompt(title, transcript))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	logger.Debug(ctx, "upstream responded", slog.Int("raw_length", sanitize.Len(markdown)))

	markdown = sanitize.Text(markdown, sanitize.MaxOutput)

	logger.Info(ctx, "successfully processed", slog.Int("output_length", sanitize.Len(markdown)))

	json.WriteSuccess(w, markdown)
}
