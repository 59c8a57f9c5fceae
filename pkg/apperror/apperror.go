package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies an error so callers can decide how to react without string matching.
type Kind string

const (
	KindValidation              Kind = "validation"
	KindConflict                Kind = "conflict"
	KindNotFound                Kind = "not_found"
	KindExpired                 Kind = "expired"
	KindAuthentication          Kind = "authentication"
	KindForbidden               Kind = "forbidden"
	KindVerificationUnavailable Kind = "verification_unavailable"
	KindInvalidPhoneNumber      Kind = "invalid_phone_number"
	KindIntegrity               Kind = "integrity"
	KindInternal                Kind = "internal"
)

// Error is a kind-tagged error returned by the identity core.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg != "" {
		return e.Msg + ": " + e.Err.Error()
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Validation(msg string) *Error     { return New(KindValidation, msg) }
func Conflict(msg string) *Error       { return New(KindConflict, msg) }
func NotFound(msg string) *Error       { return New(KindNotFound, msg) }
func Expired(msg string) *Error        { return New(KindExpired, msg) }
func Authentication(msg string) *Error { return New(KindAuthentication, msg) }
func Forbidden(msg string) *Error      { return New(KindForbidden, msg) }
func InvalidPhoneNumber(msg string) *Error {
	return New(KindInvalidPhoneNumber, msg)
}
func VerificationUnavailable(err error) *Error {
	return Wrap(KindVerificationUnavailable, "verification unavailable", err)
}
func Integrity(msg string, err error) *Error { return Wrap(KindIntegrity, msg, err) }
func Internal(msg string, err error) *Error  { return Wrap(KindInternal, msg, err) }

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// HTTPStatus maps a kind to the status code the HTTP adapters answer with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindExpired:
		return http.StatusGone
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindVerificationUnavailable:
		return http.StatusServiceUnavailable
	case KindInvalidPhoneNumber:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
