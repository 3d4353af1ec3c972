package gateway

import (
	"errors"
	"testing"
)

func TestDecodeAPIError_ValidationArray(t *testing.T) {
	body := []byte(`{"detail":[{"loc":["body","email"],"msg":"field required","type":"value_error.missing"}]}`)

	err := decodeAPIError(422, body)

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if ve.Field != "email" {
		t.Errorf("Field = %q, want %q", ve.Field, "email")
	}
	if ve.Detail != "field required" {
		t.Errorf("Detail = %q, want %q", ve.Detail, "field required")
	}
}

func TestDecodeAPIError_StringDetail(t *testing.T) {
	body := []byte(`{"detail":"Invalid email or password"}`)

	err := decodeAPIError(401, body)

	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *AuthError, got %T", err)
	}
	if ae.Detail != "Invalid email or password" {
		t.Errorf("Detail = %q", ae.Detail)
	}
	if ae.Status != 401 {
		t.Errorf("Status = %d, want 401", ae.Status)
	}
}

func TestDecodeAPIError_UnrecognizedBody(t *testing.T) {
	err := decodeAPIError(500, []byte(`<html>boom</html>`))

	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *AuthError, got %T", err)
	}
	if ae.Detail != "" {
		t.Errorf("Detail = %q, want empty", ae.Detail)
	}
}

func TestMessage_ValidationFirstField(t *testing.T) {
	err := decodeAPIError(422, []byte(`{"detail":[{"loc":["body","password"],"msg":"too short"},{"loc":["body","email"],"msg":"also bad"}]}`))

	got := Message(err, "fallback")
	want := "Error in password: too short"
	if got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}
}

func TestMessage_AuthDetailVerbatim(t *testing.T) {
	err := &AuthError{Status: 401, Detail: "Invalid email or password"}

	if got := Message(err, "fallback"); got != "Invalid email or password" {
		t.Errorf("Message() = %q", got)
	}
}

func TestMessage_NetworkFallsBack(t *testing.T) {
	err := &NetworkError{Err: errors.New("connection refused")}

	if got := Message(err, "Login failed"); got != "Login failed" {
		t.Errorf("Message() = %q, want fallback", got)
	}
}

func TestMessage_EmptyAuthDetailFallsBack(t *testing.T) {
	err := &AuthError{Status: 503}

	if got := Message(err, "Service unavailable"); got != "Service unavailable" {
		t.Errorf("Message() = %q, want fallback", got)
	}
}
