package abacus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	config "github.com/xilidan/transcript-relay/config/relay"
	"github.com/xilidan/transcript-relay/pkg/apperr"
)

const (
	Temperature = 0.7
	MaxTokens   = 4096

	// errorBodyLimit caps how much of a failed upstream response is read.
	errorBodyLimit = 1 << 20
)

type Client struct {
	url        string
	model      string
	httpClient *http.Client
	log        *slog.Logger
}

type EvaluateRequest struct {
	LLMName       string  `json:"llm_name"`
	SystemMessage string  `json:"system_message"`
	Prompt        string  `json:"prompt"`
	Temperature   float64 `json:"temperature"`
	MaxTokens     int     `json:"max_tokens"`
}

// EvaluateResponse is the success body. The generated text is read from
// "content" and then from "result"; the first one holding a non-empty string
// wins. Either field may hold a non-string value, which counts as absent.
// Keys are matched exactly.
type EvaluateResponse struct {
	Content json.RawMessage
	Result  json.RawMessage
}

func (r *EvaluateResponse) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	r.Content, r.Result = fields["content"], fields["result"]
	return nil
}

func (r *EvaluateResponse) Text() string {
	for _, raw := range []json.RawMessage{r.Content, r.Result} {
		if s := stringField(raw); s != "" {
			return s
		}
	}
	return ""
}

type errorResponse struct {
	Message json.RawMessage
	Error   json.RawMessage
}

func (r *errorResponse) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	r.Message, r.Error = fields["message"], fields["error"]
	return nil
}

// objectFields splits a JSON object into its members without the
// case-insensitive key matching of struct decoding.
func objectFields(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func (r *errorResponse) text() string {
	if s := stringField(r.Message); s != "" {
		return s
	}
	return stringField(r.Error)
}

func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func New(cfg *config.UpstreamConfig, log *slog.Logger) *Client {
	log.Debug("creating abacus client",
		slog.String("url", cfg.URL),
		slog.String("model", cfg.Model),
		slog.Duration("timeout", cfg.Timeout))
	return &Client{
		url:        cfg.URL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

// Evaluate sends one prompt upstream and returns the generated text unsanitized.
// apiKey is forwarded as-is and never logged.
//
// Failures are *apperr.Error values: UpstreamUnreachable when no response
// arrived, UpstreamError carrying the upstream status otherwise.
func (c *Client) Evaluate(ctx context.Context, apiKey string, prompt Prompt) (string, error) {
	body := EvaluateRequest{
		LLMName:       c.model,
		SystemMessage: prompt.System(),
		Prompt:        prompt.User(),
		Temperature:   Temperature,
		MaxTokens:     MaxTokens,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", apperr.NewInternal(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonData))
	if err != nil {
		return "", apperr.NewInternal(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apiKey", apiKey)

	c.log.Debug("sending request to abacus",
		slog.String("model", c.model),
		slog.Int("prompt_length", len(body.Prompt)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("abacus request failed", slog.String("error", err.Error()))
		return "", apperr.NewUpstreamUnreachable(fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	c.log.Debug("response received", slog.Int("status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", c.upstreamError(resp)
	}

	var result EvaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.log.Error("failed to decode response", slog.String("error", err.Error()))
		return "", apperr.NewInternal(fmt.Errorf("failed to decode response: %w", err))
	}

	text := result.Text()
	c.log.Debug("response decoded", slog.Int("text_length", len(text)))
	return text, nil
}

func (c *Client) upstreamError(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	if err != nil {
		c.log.Warn("failed to read error body", slog.String("error", err.Error()))
	}

	var parsed errorResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		c.log.Warn("error body is not JSON", slog.Int("status_code", resp.StatusCode))
	}

	message := parsed.text()
	c.log.Error("abacus returned error",
		slog.Int("status_code", resp.StatusCode),
		slog.String("message", message))

	return apperr.NewUpstreamError(resp.StatusCode, message)
}
