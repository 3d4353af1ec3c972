package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ValidationError carries the first field-level problem reported by the
// backend for a structurally invalid request.
type ValidationError struct {
	Status int
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Detail)
}

// AuthError is a plain-string rejection from the backend, such as
// invalid credentials. Detail may be empty when the backend returned
// no usable message.
type AuthError struct {
	Status int
	Detail string
}

func (e *AuthError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("request rejected with status %d", e.Status)
	}
	return e.Detail
}

// NetworkError means no usable response was received at all.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network error: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// Message normalizes any error from the gateway into a single
// human-readable string. Structured validation detail is collapsed to
// its first offending field; plain backend detail passes through
// verbatim; anything else falls back to the caller-supplied default.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return fmt.Sprintf("Error in %s: %s", ve.Field, ve.Detail)
	}

	var ae *AuthError
	if errors.As(err, &ae) {
		if ae.Detail != "" {
			return ae.Detail
		}
		return fallback
	}

	return fallback
}

// errorEnvelope matches the backend's error body: detail is either a
// plain string or an array of field-level validation entries.
type errorEnvelope struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

type validationItem struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// decodeAPIError converts a non-2xx response body into the error
// taxonomy exactly once, at the response boundary. Callers never see
// raw backend error shapes.
func decodeAPIError(status int, body []byte) error {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || len(env.Detail) == 0 {
		return &AuthError{Status: status, Detail: env.Message}
	}

	var items []validationItem
	if err := json.Unmarshal(env.Detail, &items); err == nil && len(items) > 0 {
		first := items[0]
		field := "field"
		if n := len(first.Loc); n > 0 {
			field = fmt.Sprintf("%v", first.Loc[n-1])
		}
		msg := first.Msg
		if msg == "" {
			msg = "is invalid"
		}
		return &ValidationError{Status: status, Field: field, Detail: msg}
	}

	var detail string
	if err := json.Unmarshal(env.Detail, &detail); err == nil {
		return &AuthError{Status: status, Detail: detail}
	}

	return &AuthError{Status: status, Detail: env.Message}
}
