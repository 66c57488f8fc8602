package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors decoded from API responses. Use errors.Is on any error
// returned by Client.
var (
	ErrValidation        = errors.New("validation failed")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrAlreadyMember     = errors.New("already a member")
	ErrUsernameTaken     = errors.New("username taken")
	ErrEmailTaken        = errors.New("email taken")
	ErrEmailNotConfirmed = errors.New("email not confirmed")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnavailable       = errors.New("service unavailable")
	ErrServer            = errors.New("server error")
)

// The server returns one fixed message per condition; these pick the
// specific sentinel when a status code covers several.
var messageKinds = map[string]error{
	"you are already a member of this group":      ErrAlreadyMember,
	"username is already taken":                   ErrUsernameTaken,
	"email is already registered":                 ErrEmailTaken,
	"please confirm your email before signing in": ErrEmailNotConfirmed,
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
	kind    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rally api: %d %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

func newAPIError(status int, msg string) *APIError {
	return &APIError{Status: status, Message: msg, kind: kindOf(status, msg)}
}

func kindOf(status int, msg string) error {
	if kind, ok := messageKinds[msg]; ok {
		return kind
	}
	switch status {
	case http.StatusBadRequest:
		return ErrValidation
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusServiceUnavailable:
		return ErrUnavailable
	}
	return ErrServer
}
