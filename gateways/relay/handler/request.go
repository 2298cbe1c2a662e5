package handler

import (
	stdjson "encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/xilidan/transcript-relay/pkg/apperr"
	"github.com/xilidan/transcript-relay/pkg/json"
)

// ProcessTranscriptRequest keeps the decoded values untyped: a field of the
// wrong type is not a decoding error, it sanitizes to empty text instead.
type ProcessTranscriptRequest struct {
	Transcript any
	VideoTitle any
	APIKey     any
}

// Body keys are matched exactly, unlike struct decoding which ignores case.
const (
	keyTranscript = "transcript"
	keyVideoTitle = "videoTitle"
	keyAPIKey     = "apiKey"
)

// Validate fails with MissingField naming the first of transcript, videoTitle
// and apiKey that is absent, null, false, zero or an empty string. The API
// key must also be a string.
func (req *ProcessTranscriptRequest) Validate() error {
	switch {
	case !present(req.Transcript):
		return apperr.NewMissingField(keyTranscript)
	case !present(req.VideoTitle):
		return apperr.NewMissingField(keyVideoTitle)
	case !present(req.APIKey):
		return apperr.NewMissingField(keyAPIKey)
	}
	if _, ok := req.APIKey.(string); !ok {
		return apperr.NewMissingField(keyAPIKey)
	}
	return nil
}

// Key returns the API key. Call only after Validate succeeded.
func (req *ProcessTranscriptRequest) Key() string {
	s, _ := req.APIKey.(string)
	return s
}

func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case float64:
		return x != 0
	default:
		return true
	}
}

// decodeRequest reads at most limit bytes. An empty body decodes as an empty
// object so that validation reports the missing fields.
func decodeRequest(w http.ResponseWriter, r *http.Request, limit int64) (*ProcessTranscriptRequest, error) {
	if r.Body != nil && r.Body != http.NoBody {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	var fields map[string]stdjson.RawMessage
	err := json.ParseJSON(r, &fields)

	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
	case errors.Is(err, json.ErrMissingBody), errors.Is(err, io.EOF):
		return &ProcessTranscriptRequest{}, nil
	case errors.As(err, &tooLarge):
		return nil, apperr.NewPayloadTooLarge(tooLarge.Limit)
	default:
		return nil, apperr.NewInvalidBody(err)
	}

	req := &ProcessTranscriptRequest{}
	for key, dst := range map[string]*any{
		keyTranscript: &req.Transcript,
		keyVideoTitle: &req.VideoTitle,
		keyAPIKey:     &req.APIKey,
	} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if err := stdjson.Unmarshal(raw, dst); err != nil {
			return nil, apperr.NewInvalidBody(fmt.Errorf("field %s: %w", key, err))
		}
	}
	return req, nil
}
