package utils

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation matches every ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrRequestFailed matches every RequestError.
	ErrRequestFailed = errors.New("request failed")
	// ErrMalformedResponse matches RequestErrors raised for undecodable success bodies.
	ErrMalformedResponse = errors.New("malformed response")
)

// ValidationError reports required fields that are missing or not finite numbers.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "required numeric fields are incomplete"
	}
	return fmt.Sprintf("missing or invalid required fields: %s", strings.Join(e.Fields, ", "))
}

// Is lets errors.Is match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// RequestError wraps a failed call to the scoring service. Message is the
// human-facing text; Err is the underlying transport or decode cause, if any.
type RequestError struct {
	Op         string
	Message    string
	StatusCode int
	Malformed  bool
	Err        error
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrRequestFailed and, for malformed bodies, ErrMalformedResponse.
func (e *RequestError) Is(target error) bool {
	switch target {
	case ErrRequestFailed:
		return true
	case ErrMalformedResponse:
		return e.Malformed
	}
	return false
}

// NewRequestError constructs a RequestError for a transport or status failure.
func NewRequestError(op, msg string, status int, err error) error {
	return &RequestError{Op: op, Message: msg, StatusCode: status, Err: err}
}

// NewMalformedResponse constructs a RequestError for a body that could not be interpreted.
func NewMalformedResponse(op string, status int, err error) error {
	msg := "malformed response from scoring service"
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &RequestError{Op: op, Message: msg, StatusCode: status, Malformed: true, Err: err}
}

// ErrorMessage returns the human-facing text of err.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Message
	}
	return err.Error()
}
