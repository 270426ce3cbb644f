package service

import (
	"fmt"
	"net/http"
)

// BadInputError is a client mistake; the caller must resend a corrected
// payload.
type BadInputError struct {
	Reason string
}

func (e *BadInputError) Error() string   { return e.Reason }
func (e *BadInputError) HTTPStatus() int { return http.StatusBadRequest }

var ErrEmptyContent = &BadInputError{Reason: "content is empty"}

// PersistError means the intermediate snapshot could not be written. The
// in-memory append is kept.
type PersistError struct {
	Filename string
	Err      error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("save document %s failed: %v", e.Filename, e.Err)
}
func (e *PersistError) Unwrap() error   { return e.Err }
func (e *PersistError) HTTPStatus() int { return http.StatusInternalServerError }

// SerializationError means the finished artifact could not be produced. The
// session is not reset so the final chunk can be retried.
type SerializationError struct {
	Filename string
	Err      error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("render document %s failed: %v", e.Filename, e.Err)
}
func (e *SerializationError) Unwrap() error   { return e.Err }
func (e *SerializationError) HTTPStatus() int { return http.StatusInternalServerError }

// SessionBusyError means the session lock was not obtained in time.
type SessionBusyError struct {
	Err error
}

func (e *SessionBusyError) Error() string   { return e.Err.Error() }
func (e *SessionBusyError) Unwrap() error   { return e.Err }
func (e *SessionBusyError) HTTPStatus() int { return http.StatusServiceUnavailable }

// NotFoundError means the session has nothing to act on.
type NotFoundError struct {
	Reason string
}

func (e *NotFoundError) Error() string   { return e.Reason }
func (e *NotFoundError) HTTPStatus() int { return http.StatusNotFound }
