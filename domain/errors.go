package domain

import (
	"errors"
	"fmt"
)

// ModelErrorKind classifies gateway failures
type ModelErrorKind string

const (
	KindUnavailable     ModelErrorKind = "unavailable"
	KindRateLimited     ModelErrorKind = "rate_limited"
	KindUpstream        ModelErrorKind = "upstream"
	KindMalformedOutput ModelErrorKind = "malformed_output"
)

// ModelError is returned by the model gateway. Message is safe to show to users.
type ModelError struct {
	Kind       ModelErrorKind
	Message    string
	RetryAfter string
	Err        error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ModelError) Unwrap() error { return e.Err }

// Is matches on Kind so wrapped errors compare equal to the sentinels below
func (e *ModelError) Is(target error) bool {
	t, ok := target.(*ModelError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnavailable = &ModelError{
		Kind:       KindUnavailable,
		Message:    "AI temporarily unavailable (free tier quota reached)",
		RetryAfter: "tomorrow",
	}
	ErrRateLimited = &ModelError{
		Kind:       KindRateLimited,
		Message:    "Rate limit reached. Please wait a minute and try again.",
		RetryAfter: "60 seconds",
	}
	ErrUpstream = &ModelError{
		Kind:    KindUpstream,
		Message: "AI service unavailable. Please try again shortly.",
	}
	ErrMalformedOutput = &ModelError{
		Kind:    KindMalformedOutput,
		Message: "AI returned an unreadable response. Please try again.",
	}
)

// ErrInvalidImage is returned when the uploaded image cannot be decoded
var ErrInvalidImage = errors.New("invalid image")

// Wrap attaches a cause to a copy of the sentinel
func (e *ModelError) Wrap(err error) *ModelError {
	cp := *e
	cp.Err = err
	return &cp
}

// AsModelError extracts a ModelError from err
func AsModelError(err error) (*ModelError, bool) {
	var me *ModelError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}

// ErrRecordNotFound is returned by the analysis log for an unknown request ID
var ErrRecordNotFound = errors.New("analysis record not found")
