package models

import "errors"

// Error codes reported to callers. Every failed write maps to exactly one.
const (
	CodeInvalidStatus      = "INVALID_STATUS"
	CodeInvalidPriority    = "INVALID_PRIORITY"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeForbidden          = "FORBIDDEN"
	CodeAssigneeNotAllowed = "ASSIGNEE_NOT_ALLOWED"
	CodeNotTrackable       = "NOT_TRACKABLE"
	CodeNoRunningTimer     = "NO_RUNNING_TIMER"
	CodeNotFound           = "NOT_FOUND"
	CodeRetry              = "RETRY"
	CodeInternal           = "INTERNAL"
)

// Sentinel errors wrapped by Error.
var (
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidPriority    = errors.New("invalid priority")
	ErrForbidden          = errors.New("forbidden")
	ErrAssigneeNotAllowed = errors.New("assignee is not the project owner or a member")
	ErrNotTrackable       = errors.New("timer is only allowed when ticket is in progress")
	ErrNoRunningTimer     = errors.New("no running timer found")
	ErrNotFound           = errors.New("not found")
	ErrRetry              = errors.New("operation conflicted with a concurrent request, retry")
)

// ErrorKind groups codes by how callers should react.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindAuthorization ErrorKind = "authorization"
	KindBusiness      ErrorKind = "business"
	KindSoft          ErrorKind = "soft"
	KindNotFound      ErrorKind = "not_found"
	KindRetryable     ErrorKind = "retryable"
	KindInternal      ErrorKind = "internal"
)

// Error is a typed failure carrying a code and, for validation
// failures, the offending field.
type Error struct {
	Code  string
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Kind returns the category of the error's code.
func (e *Error) Kind() ErrorKind {
	return KindOf(e.Code)
}

// NewError creates an Error with the given code, field and cause.
func NewError(code, field string, err error) *Error {
	return &Error{Code: code, Field: field, Err: err}
}

// KindOf maps a code to its category.
func KindOf(code string) ErrorKind {
	switch code {
	case CodeInvalidStatus, CodeInvalidPriority, CodeInvalidInput:
		return KindValidation
	case CodeForbidden:
		return KindAuthorization
	case CodeAssigneeNotAllowed, CodeNotTrackable:
		return KindBusiness
	case CodeNoRunningTimer:
		return KindSoft
	case CodeNotFound:
		return KindNotFound
	case CodeRetry:
		return KindRetryable
	}
	return KindInternal
}

// CodeOf extracts the code of a typed error, or CodeInternal.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Invalid is shorthand for an INVALID_INPUT error on field.
func Invalid(field, msg string) *Error {
	return NewError(CodeInvalidInput, field, errors.New(msg))
}
