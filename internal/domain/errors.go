package domain

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindInvalidArgument
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindNotFound:
		return "NotFound"
	default:
		return "Internal"
	}
}

// Error carries one of the closed error kinds. Cause is only set for Internal
// errors raised from storage or the gateway.
type Error struct {
	Kind    ErrorKind
	Message string
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

func InvalidArgument(message string) error {
	return &Error{Kind: KindInvalidArgument, Message: message}
}

func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Internal(message string, cause error) error {
	return &Error{Kind: KindInternal, Message: message, Cause: cause}
}

// KindOf classifies err. Anything that is not a *Error is Internal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message of err.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

var (
	ErrDuplicateIdempotencyKey = errors.New("transaction with this idempotency key already exists")
	ErrDuplicateRefund         = errors.New("charge already has a succeeded refund")
)
