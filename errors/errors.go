package errors

import (
	stderrors "errors"
	"fmt"
	"os"
)

// Standard error codes
const (
	ErrInvalidRequest      = 400
	ErrUnauthorized        = 401
	ErrForbidden           = 403
	ErrNotFound            = 404
	ErrConflict            = 409
	ErrInternalServerError = 500
	ErrServiceUnavailable  = 503

	// Chain and game error codes (1000+)
	ErrUserRejected      = 1001
	ErrContractRevert    = 1002
	ErrRPC               = 1003
	ErrWrongNetwork      = 1004
	ErrUnconfirmed       = 1005
	ErrNoLogs            = 1006
	ErrResultNotFound    = 1007
	ErrDecode            = 1008
	ErrExplorer          = 1009
	ErrSpinInProgress    = 1010
	ErrKafkaError        = 1011
	ErrRedisError        = 1012
	ErrConfigError       = 1013
	ErrSignerUnavailable = 1014
)

// AppError represents a custom application error
type AppError struct {
	Code         int    `json:"code"`
	Message      string `json:"message"`
	DebugMessage string `json:"debug_message,omitempty"`
	Err          error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.DebugMessage != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.DebugMessage)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s [%v]", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another AppError by code so sentinels work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// New creates a new AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewWithDebug creates a new AppError with a debug message
func NewWithDebug(code int, message string, debugMessage string) *AppError {
	return &AppError{
		Code:         code,
		Message:      message,
		DebugMessage: debugMessage,
	}
}

// Wrap wraps an existing error into an AppError
func Wrap(err error, code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WrapWithDebug wraps an existing error into an AppError with a debug message
func WrapWithDebug(err error, code int, message string, debugMessage string) *AppError {
	return &AppError{
		Code:         code,
		Message:      message,
		DebugMessage: debugMessage,
		Err:          err,
	}
}

// Response returns a map suitable for JSON response
func (e *AppError) Response() map[string]interface{} {
	response := map[string]interface{}{
		"code":    e.Code,
		"message": e.Message,
	}

	// Include debug message in development environment
	env := os.Getenv("APP_ENV")
	if (env == "dev" || env == "development") && e.DebugMessage != "" {
		response["debug_message"] = e.DebugMessage
	}

	return response
}

// IsAppError checks if an error is or wraps an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError returns the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := stderrors.As(err, &appErr)
	return appErr, ok
}

// GetCode extracts error code from an error
func GetCode(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrInternalServerError
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code int) bool {
	return err != nil && GetCode(err) == code
}

// HTTPStatusFromCode maps error codes to HTTP status codes
func HTTPStatusFromCode(code int) int {
	switch code {
	case ErrInvalidRequest:
		return 400
	case ErrUnauthorized:
		return 401
	case ErrForbidden:
		return 403
	case ErrNotFound:
		return 404
	case ErrConflict:
		return 409
	case ErrInternalServerError:
		return 500
	case ErrServiceUnavailable:
		return 503
	case ErrUserRejected, ErrContractRevert, ErrWrongNetwork:
		return 400
	case ErrSpinInProgress:
		return 409
	case ErrNoLogs, ErrResultNotFound, ErrDecode:
		return 422
	case ErrUnconfirmed:
		return 202
	case ErrRPC, ErrExplorer:
		return 502
	case ErrSignerUnavailable:
		return 503
	default:
		return 500
	}
}
