package shared

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout          = errors.New("request timed out")
	ErrConnectionClosed = errors.New("connection closed")
	ErrSessionClosed    = errors.New("session is closed")
	ErrNoSession        = errors.New("no active session")
	ErrNotFound         = errors.New("not found")
)

// Kind buckets an error for status/log presentation. Backend-facing
// failures never escape their call site; the kind decides how the
// failure is rendered locally.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransport
	KindProtocol
	KindTimeout
	KindValidation
	KindPermission
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindTimeout:
		return "timeout"
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	default:
		return "unknown"
	}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// WithKind tags err with a presentation kind without hiding the chain.
func WithKind(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

func Validationf(format string, args ...any) error {
	return WithKind(KindValidation, fmt.Errorf(format, args...))
}

func Permissionf(format string, args ...any) error {
	return WithKind(KindPermission, fmt.Errorf(format, args...))
}

// KindOf classifies err. Sentinels carry an implied kind so call sites
// only tag errors the sentinels cannot cover.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	switch {
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrConnectionClosed):
		return KindTransport
	}
	return KindUnknown
}

// Detail returns a human-readable message for user-visible surfaces,
// falling back to a generic string when err carries nothing useful.
func Detail(err error) string {
	if err == nil || err.Error() == "" {
		return "something went wrong"
	}
	return err.Error()
}
