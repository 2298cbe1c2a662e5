// Package apperr defines the error kinds a relay request can end with and
// the HTTP status each one maps to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind names a terminal request failure.
type Kind string

const (
	KindOriginRejected      Kind = "ORIGIN_REJECTED"      // 403
	KindRateLimited         Kind = "RATE_LIMITED"         // 429
	KindPayloadTooLarge     Kind = "PAYLOAD_TOO_LARGE"    // 413
	KindInvalidBody         Kind = "INVALID_BODY"         // 400
	KindMissingField        Kind = "MISSING_FIELD"        // 400
	KindTranscriptTooShort  Kind = "TRANSCRIPT_TOO_SHORT" // 400
	KindNotFound            Kind = "NOT_FOUND"            // 404
	KindMethodNotAllowed    Kind = "METHOD_NOT_ALLOWED"   // 405
	KindUpstreamUnreachable Kind = "UPSTREAM_UNREACHABLE" // 500
	KindUpstreamError       Kind = "UPSTREAM_ERROR"       // upstream's status
	KindInternal            Kind = "INTERNAL"             // 500
)

// Messages returned to clients.
const (
	MsgOriginRejected      = "Not allowed by CORS"
	MsgRateLimited         = "Too many requests from this IP, please try again later."
	MsgPayloadTooLarge     = "Request body too large"
	MsgInvalidBody         = "Request body must be a JSON object"
	MsgTranscriptTooShort  = "Transcript is too short or invalid"
	MsgUpstreamUnreachable = "Failed to reach Abacus AI"
	MsgUpstreamFallback    = "Failed to process with Abacus AI"
	MsgInternal            = "Internal server error"
)

// Error is a request failure with the status and message the client sees.
// Cause is kept for operators and never serialized.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Field   string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func NewOriginRejected(origin string) *Error {
	return &Error{
		Kind:    KindOriginRejected,
		Status:  http.StatusForbidden,
		Message: MsgOriginRejected,
		Cause:   fmt.Errorf("origin %q not allowed", origin),
	}
}

func NewRateLimited() *Error {
	return &Error{
		Kind:    KindRateLimited,
		Status:  http.StatusTooManyRequests,
		Message: MsgRateLimited,
	}
}

func NewPayloadTooLarge(limit int64) *Error {
	return &Error{
		Kind:    KindPayloadTooLarge,
		Status:  http.StatusRequestEntityTooLarge,
		Message: MsgPayloadTooLarge,
		Cause:   fmt.Errorf("body exceeds %d bytes", limit),
	}
}

func NewInvalidBody(err error) *Error {
	return &Error{
		Kind:    KindInvalidBody,
		Status:  http.StatusBadRequest,
		Message: MsgInvalidBody,
		Cause:   err,
	}
}

// NewMissingField names the first absent required field.
func NewMissingField(field string) *Error {
	return &Error{
		Kind:    KindMissingField,
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf("Missing required field: %s (transcript, videoTitle, and apiKey are required)", field),
		Field:   field,
	}
}

func NewTranscriptTooShort(length int) *Error {
	return &Error{
		Kind:    KindTranscriptTooShort,
		Status:  http.StatusBadRequest,
		Message: MsgTranscriptTooShort,
		Cause:   fmt.Errorf("sanitized transcript has %d characters", length),
	}
}

func NewNotFound(path string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Status:  http.StatusNotFound,
		Message: "Not found",
		Cause:   fmt.Errorf("no route for %s", path),
	}
}

func NewMethodNotAllowed(method string) *Error {
	return &Error{
		Kind:    KindMethodNotAllowed,
		Status:  http.StatusMethodNotAllowed,
		Message: "Method not allowed",
		Cause:   fmt.Errorf("method %s not allowed", method),
	}
}

func NewUpstreamUnreachable(err error) *Error {
	return &Error{
		Kind:    KindUpstreamUnreachable,
		Status:  http.StatusInternalServerError,
		Message: MsgUpstreamUnreachable,
		Cause:   err,
	}
}

// NewUpstreamError passes the upstream status through. An empty message
// falls back to a generic one.
func NewUpstreamError(status int, message string) *Error {
	if message == "" {
		message = MsgUpstreamFallback
	}
	return &Error{
		Kind:    KindUpstreamError,
		Status:  status,
		Message: message,
	}
}

func NewInternal(err error) *Error {
	return &Error{
		Kind:    KindInternal,
		Status:  http.StatusInternalServerError,
		Message: MsgInternal,
		Cause:   err,
	}
}

// From returns err as an *Error, converting anything unrecognised into an
// internal error so that no detail reaches the client.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewInternal(err)
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
