package services

import "errors"

type ErrorCode string

const (
	ErrorInvalid      ErrorCode = "invalid"
	ErrorForbidden    ErrorCode = "forbidden"
	ErrorNotFound     ErrorCode = "not_found"
	ErrorConflict     ErrorCode = "conflict"
	ErrorUnauthorized ErrorCode = "unauthorized"
	ErrorStorage      ErrorCode = "storage"
	ErrorTransport    ErrorCode = "transport"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
	cause   error
}

func (e *ServiceError) Error() string { return e.Message }

func (e *ServiceError) Unwrap() error { return e.cause }

func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

// NewStorageError wraps a persistence failure so handlers map it to a 500
// while callers can still unwrap the underlying driver error.
func NewStorageError(msg string, cause error) error {
	return &ServiceError{Code: ErrorStorage, Message: msg, cause: cause}
}

// NewTransportError wraps a queue publish failure. The store write that
// preceded it is not rolled back; see AnswerService.Create.
func NewTransportError(msg string, cause error) error {
	return &ServiceError{Code: ErrorTransport, Message: msg, cause: cause}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
