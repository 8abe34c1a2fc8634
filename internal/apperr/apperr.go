package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so handlers can surface it without inspecting messages.
type Kind string

const (
	KindPermissionDenied  Kind = "PERMISSION_DENIED"
	KindDeviceUnavailable Kind = "DEVICE_UNAVAILABLE"
	KindSourceNotReady    Kind = "SOURCE_NOT_READY"
	KindMissingPhoto      Kind = "MISSING_PHOTO"
	KindUploadFailed      Kind = "UPLOAD_FAILED"
	KindRecordWriteFailed Kind = "RECORD_WRITE_FAILED"
	KindQueryFailed       Kind = "QUERY_FAILED"
	KindRoleUpdateFailed  Kind = "ROLE_UPDATE_FAILED"

	KindInvalidArgument Kind = "INVALID_ARGUMENT"
	KindUnauthenticated Kind = "UNAUTHENTICATED"
	KindForbidden       Kind = "FORBIDDEN"
	KindNotFound        Kind = "NOT_FOUND"
	KindConflict        Kind = "CONFLICT"
	KindRateLimited     Kind = "RATE_LIMITED"
	KindInternal        Kind = "INTERNAL"
)

// Error is the single error type crossing package boundaries.
// Message is what the user sees; Err is kept for errors.Is/As and logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind with a fixed message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. The backing message is kept verbatim as the user-facing message.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

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

// HTTPStatus maps an error to a response code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidArgument, KindMissingPhoto, KindSourceNotReady:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden, KindPermissionDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindDeviceUnavailable:
		return http.StatusServiceUnavailable
	case KindUploadFailed, KindRecordWriteFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
