package services

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies failures so the HTTP layer can map them to a status code.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindUpstream
	KindTimeout
	KindPersistence
	KindChatProvider
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream_failure"
	case KindTimeout:
		return "timeout"
	case KindPersistence:
		return "persistence_failure"
	case KindChatProvider:
		return "chat_provider_failure"
	default:
		return "internal"
	}
}

var (
	ErrInvalidToken        = errors.New("verification token rejected")
	ErrVerifierUnavailable = errors.New("verification service unavailable")
	ErrChatUserNotFound    = errors.New("chat user not found")
	ErrChatNotReady        = errors.New("chat provider not ready")
)

// Error is the service level error. Msg is safe to show to clients; Err
// carries the underlying cause for logs only.
type Error struct {
	Kind   Kind
	Op     string
	Msg    string
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

func invalidInput(op, msg string) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Msg: msg}
}

func validationFailed(op string, fields map[string]string) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Msg: "Validation failed", Fields: fields}
}

func persistenceFailure(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

// upstreamFailure separates timeouts from explicit failures of an external call.
func upstreamFailure(kind Kind, op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
