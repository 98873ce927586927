package httpx

import (
	"fmt"
	"net/http"
)

// AppError carries an HTTP status and the user-facing comment for the
// error envelope. The internal error is kept for logging only.
type AppError struct {
	HTTPStatus int
	Comment    string
	Err        error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("status=%d, comment=%s, err=%v", e.HTTPStatus, e.Comment, e.Err)
	}
	return fmt.Sprintf("status=%d, comment=%s", e.HTTPStatus, e.Comment)
}

// NewAppError creates a new AppError.
func NewAppError(httpStatus int, comment string, err error) *AppError {
	return &AppError{HTTPStatus: httpStatus, Comment: comment, Err: err}
}

// ErrBadRequest creates a 400 validation/ownership error.
func ErrBadRequest(comment string) *AppError {
	if comment == "" {
		comment = "Received incomplete data"
	}
	return NewAppError(http.StatusBadRequest, comment, nil)
}

// ErrAccessDenied creates the 400 access-denied error used for wrong-cluster
// and busy-chat rejections.
func ErrAccessDenied() *AppError {
	return NewAppError(http.StatusBadRequest, "Access denied", nil)
}

// ErrNotFound creates a 404 error, used for missing files.
func ErrNotFound(comment string) *AppError {
	if comment == "" {
		comment = "Not found"
	}
	return NewAppError(http.StatusNotFound, comment, nil)
}

// ErrInternal creates a 500 error for unexpected I/O failures.
func ErrInternal(comment string, err error) *AppError {
	if comment == "" {
		comment = "Internal error"
	}
	return NewAppError(http.StatusInternalServerError, comment, err)
}
