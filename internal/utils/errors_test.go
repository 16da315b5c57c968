package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRequestErrorMatching(t *testing.T) {
	err := NewRequestError("predict", "boom", 500, nil)
	if err.Error() != "boom" {
		t.Fatalf("expected message verbatim, got %q", err.Error())
	}
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed match")
	}
	if errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("status failure must not match ErrMalformedResponse")
	}

	malformed := fmt.Errorf("submit: %w", NewMalformedResponse("predict", 200, errors.New("unexpected EOF")))
	if !errors.Is(malformed, ErrMalformedResponse) || !errors.Is(malformed, ErrRequestFailed) {
		t.Fatalf("malformed response must match both kinds")
	}
	if got := ErrorMessage(malformed); got != "malformed response from scoring service: unexpected EOF" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestRequestErrorUnwrapsCause(t *testing.T) {
	err := NewRequestError("history", "request timed out", 0, context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected cause to be reachable")
	}
}

func TestValidationErrorLists(t *testing.T) {
	err := &ValidationError{Fields: []string{"age_years", "hdl_mg_dL"}}
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation match")
	}
	if err.Error() != "missing or invalid required fields: age_years, hdl_mg_dL" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestParseServerTime(t *testing.T) {
	cases := map[string]time.Time{
		"2024-03-05 10:11:12.123456": time.Date(2024, 3, 5, 10, 11, 12, 123456000, time.UTC),
		"2024-03-05 10:11:12":        time.Date(2024, 3, 5, 10, 11, 12, 0, time.UTC),
		"2024-03-05T10:11:12Z":       time.Date(2024, 3, 5, 10, 11, 12, 0, time.UTC),
	}
	for in, want := range cases {
		got, err := ParseServerTime(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if !got.Equal(want) {
			t.Fatalf("parse %q: got %v want %v", in, got, want)
		}
	}
	if _, err := ParseServerTime("yesterday"); err == nil {
		t.Fatalf("expected error for unparseable value")
	}
	if got := FormatServerTime("yesterday"); got != "yesterday" {
		t.Fatalf("expected raw passthrough, got %q", got)
	}
}
