package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	CodeConfiguration = "CONFIGURATION"
	CodeConnectivity  = "CONNECTIVITY"
	CodeNotFound      = "NOT_FOUND"
	CodeStorageWrite  = "STORAGE_WRITE"
	CodeStorageRead   = "STORAGE_READ"
)

// AppError is the error type surfaced by every layer of the service
type AppError struct {
	Code    string
	Message string
	// Field names the offending setting for configuration errors
	Field string
	Err   error
}

func (e *AppError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Field)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so the sentinels below
// work with errors.Is regardless of message or cause.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is
var (
	ErrConfiguration = &AppError{Code: CodeConfiguration, Message: "invalid configuration"}
	ErrConnectivity  = &AppError{Code: CodeConnectivity, Message: "storage backend unreachable"}
	ErrNotFound      = &AppError{Code: CodeNotFound, Message: "object not found"}
	ErrStorageWrite  = &AppError{Code: CodeStorageWrite, Message: "storage write failed"}
	ErrStorageRead   = &AppError{Code: CodeStorageRead, Message: "storage read failed"}
)

// Configuration reports a missing or malformed setting
func Configuration(field, message string) error {
	return &AppError{Code: CodeConfiguration, Message: message, Field: field}
}

// Connectivity wraps a failure to reach the storage backend
func Connectivity(err error, message string) error {
	return wrap(err, CodeConnectivity, message)
}

// NotFound reports an absent object key
func NotFound(key string) error {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("object %q not found", key)}
}

// StorageWrite wraps a rejected put/create/policy call
func StorageWrite(err error, message string) error {
	return wrap(err, CodeStorageWrite, message)
}

// StorageRead wraps a rejected get/list/stat call
func StorageRead(err error, message string) error {
	return wrap(err, CodeStorageRead, message)
}

func wrap(err error, code, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// FieldOf returns the setting named by a configuration error, or "".
func FieldOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// HTTPStatus maps an error to the status code handlers respond with
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConnectivity:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
