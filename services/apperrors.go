package services

import "errors"

// Failure kinds the API layer maps onto HTTP statuses. Validation failures
// abort before any write; they are the only errors a caller sees.
const (
	KindNotFound   = "not_found"
	KindForbidden  = "forbidden"
	KindBadRequest = "bad_request"
	KindConflict   = "conflict"
	KindInternal   = "internal"
)

// AppError is a typed operation failure carrying a business code, following
// the code numbering used across the API (404xx not found, 403xx forbidden,
// 400xx bad request, 409xx conflict, 500xx internal).
type AppError struct {
	Kind    string
	Code    int
	Message string
}

func (e *AppError) Error() string { return e.Message }

// NewNotFound reports a missing plan or record.
func NewNotFound(code int, msg string) *AppError {
	return &AppError{Kind: KindNotFound, Code: code, Message: msg}
}

// NewForbidden reports an ownership mismatch.
func NewForbidden(code int, msg string) *AppError {
	return &AppError{Kind: KindForbidden, Code: code, Message: msg}
}

// NewBadRequest reports invalid input.
func NewBadRequest(code int, msg string) *AppError {
	return &AppError{Kind: KindBadRequest, Code: code, Message: msg}
}

// NewConflict reports a uniqueness violation on (plan, record_date).
func NewConflict(code int, msg string) *AppError {
	return &AppError{Kind: KindConflict, Code: code, Message: msg}
}

// NewInternal wraps unexpected storage failures.
func NewInternal(code int, msg string) *AppError {
	return &AppError{Kind: KindInternal, Code: code, Message: msg}
}

// AsAppError unwraps err into an AppError when possible.
func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind string) bool {
	ae, ok := AsAppError(err)
	return ok && ae.Kind == kind
}
