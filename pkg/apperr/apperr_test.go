package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	err := NewRateLimited()
	assert.Equal(t, "RATE_LIMITED: "+MsgRateLimited, err.Error())

	wrapped := NewInternal(errors.New("boom"))
	assert.Equal(t, "INTERNAL: Internal server error: boom", wrapped.Error())
}

func TestNewMissingField(t *testing.T) {
	err := NewMissingField("apiKey")

	assert.Equal(t, KindMissingField, err.Kind)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, "apiKey", err.Field)
	assert.Contains(t, err.Message, "apiKey")
}

func TestNewUpstreamError(t *testing.T) {
	err := NewUpstreamError(http.StatusTooManyRequests, "rate limited upstream")
	assert.Equal(t, http.StatusTooManyRequests, err.Status)
	assert.Equal(t, "rate limited upstream", err.Message)

	fallback := NewUpstreamError(http.StatusBadGateway, "")
	assert.Equal(t, MsgUpstreamFallback, fallback.Message)
}

func TestFrom(t *testing.T) {
	assert.Nil(t, From(nil))

	typed := NewTranscriptTooShort(5)
	assert.Same(t, typed, From(fmt.Errorf("validate: %w", typed)))

	cause := errors.New("database on fire")
	internal := From(cause)
	assert.Equal(t, KindInternal, internal.Kind)
	assert.Equal(t, http.StatusInternalServerError, internal.Status)
	assert.Equal(t, MsgInternal, internal.Message)
	assert.ErrorIs(t, internal, cause)
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NewOriginRejected("https://evil.example"))

	assert.True(t, Is(err, KindOriginRejected))
	assert.False(t, Is(err, KindRateLimited))
	assert.False(t, Is(errors.New("plain"), KindInternal))
}
