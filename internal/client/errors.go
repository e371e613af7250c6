package client

import (
	"errors"
	"fmt"
)

// ErrRateLimited is wrapped by the APIError returned when the local rate
// limiter denies a request.
var ErrRateLimited = errors.New("rate limited")

type ErrorKind string

const (
	KindServer     ErrorKind = "server"
	KindNetwork    ErrorKind = "network"
	KindLocal      ErrorKind = "local"
	KindValidation ErrorKind = "validation"
)

const (
	msgServerFallback = "An error occurred"
	msgNetwork        = "Network error. Please check your connection."
	msgUnexpected     = "An unexpected error occurred"
	msgRateLimited    = "Too many requests. Please wait a moment."
)

// APIError is the uniform shape of every failed call. Status is 0 for
// anything that did not come back from the server.
type APIError struct {
	Status  int
	Kind    ErrorKind
	Message string
	// Data holds the raw server payload in dev mode only.
	Data any
	err  error
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.err
}

func serverError(status int, payload map[string]any, raw []byte, dev bool) *APIError {
	msg := msgServerFallback
	if payload != nil {
		if s, ok := payload["detail"].(string); ok && s != "" {
			msg = s
		} else if s, ok := payload["message"].(string); ok && s != "" {
			msg = s
		}
	}

	e := &APIError{Status: status, Kind: KindServer, Message: msg}
	if dev {
		if payload != nil {
			e.Data = payload
		} else if len(raw) > 0 {
			e.Data = string(raw)
		}
	}
	return e
}

func networkError(err error) *APIError {
	return &APIError{Kind: KindNetwork, Message: msgNetwork, err: err}
}

func localError(err error) *APIError {
	msg := msgUnexpected
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	if errors.Is(err, ErrRateLimited) {
		msg = msgRateLimited
	}
	return &APIError{Kind: KindLocal, Message: msg, err: err}
}

// ValidationError wraps a local validation failure in the uniform shape.
func ValidationError(err error) *APIError {
	msg := msgUnexpected
	if err != nil {
		msg = err.Error()
	}
	return &APIError{Kind: KindValidation, Message: msg, err: err}
}

// Normalize converts any error into an *APIError. Errors that already are
// one are returned as is.
func Normalize(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return localError(err)
}
