package utils

import (
	"errors"
	"fmt"

	"github.com/dl-alexandre/docloader/internal/types"
)

// Exit codes
const (
	ExitSuccess = 0
	// Credential errors (10-19)
	ExitCredentialsUnavailable = 10
	ExitPermissionDenied       = 11
	// Input errors (20-29)
	ExitInvalidArgument        = 20
	ExitInvalidFolderReference = 21
	// Discovery errors (30-39)
	ExitNoFilesFound = 30
	ExitFileNotFound = 31
	// Network errors (40-49)
	ExitNetworkError = 40
	ExitRateLimited  = 41
	ExitCancelled    = 42
	// Per-file errors only surface when a single file is targeted (50-59)
	ExitFetchFailed       = 50
	ExitDecodeFailed      = 51
	ExitUnsupportedFormat = 52
	// State errors
	ExitStateError = 60
	// Unknown
	ExitUnknown = 99
)

// Error codes (tool-owned, stable)
const (
	ErrCodeCredentialsUnavailable = "CREDENTIALS_UNAVAILABLE"
	ErrCodePermissionDenied       = "PERMISSION_DENIED"
	ErrCodeInvalidArgument        = "INVALID_ARGUMENT"
	ErrCodeInvalidFolderReference = "INVALID_FOLDER_REFERENCE"
	ErrCodeNoFilesFound           = "NO_FILES_FOUND"
	ErrCodeListingFailed          = "LISTING_FAILED"
	ErrCodeFileNotFound           = "FILE_NOT_FOUND"
	ErrCodeNetworkError           = "NETWORK_ERROR"
	ErrCodeRateLimited            = "RATE_LIMITED"
	ErrCodeCancelled              = "CANCELLED"
	ErrCodeFetchFailed            = "FETCH_FAILED"
	ErrCodeDecodeFailed           = "DECODE_FAILED"
	ErrCodeUnsupportedFormat      = "UNSUPPORTED_FORMAT"
	ErrCodeStateError             = "STATE_ERROR"
	ErrCodeUnknown                = "UNKNOWN"
)

// CLIErrorBuilder helps construct CLIError instances
type CLIErrorBuilder struct {
	err types.CLIError
}

// NewCLIError creates a new error builder
func NewCLIError(code, message string) *CLIErrorBuilder {
	return &CLIErrorBuilder{
		err: types.CLIError{
			Code:    code,
			Message: message,
		},
	}
}

func (b *CLIErrorBuilder) WithHTTPStatus(status int) *CLIErrorBuilder {
	b.err.HTTPStatus = status
	return b
}

func (b *CLIErrorBuilder) WithRetryable(retryable bool) *CLIErrorBuilder {
	b.err.Retryable = retryable
	return b
}

func (b *CLIErrorBuilder) WithContext(key string, value interface{}) *CLIErrorBuilder {
	if b.err.Context == nil {
		b.err.Context = make(map[string]interface{})
	}
	b.err.Context[key] = value
	return b
}

func (b *CLIErrorBuilder) Build() types.CLIError {
	return b.err
}

var exitCodes = map[string]int{
	ErrCodeCredentialsUnavailable: ExitCredentialsUnavailable,
	ErrCodePermissionDenied:       ExitPermissionDenied,
	ErrCodeInvalidArgument:        ExitInvalidArgument,
	ErrCodeInvalidFolderReference: ExitInvalidFolderReference,
	ErrCodeNoFilesFound:           ExitNoFilesFound,
	ErrCodeListingFailed:          ExitNoFilesFound,
	ErrCodeFileNotFound:           ExitFileNotFound,
	ErrCodeNetworkError:           ExitNetworkError,
	ErrCodeRateLimited:            ExitRateLimited,
	ErrCodeCancelled:              ExitCancelled,
	ErrCodeFetchFailed:            ExitFetchFailed,
	ErrCodeDecodeFailed:           ExitDecodeFailed,
	ErrCodeUnsupportedFormat:      ExitUnsupportedFormat,
	ErrCodeStateError:             ExitStateError,
}

// GetExitCode returns the exit code for an error code
func GetExitCode(errorCode string) int {
	if code, ok := exitCodes[errorCode]; ok {
		return code
	}
	return ExitUnknown
}

// AppError is a custom error type that carries CLI error info
type AppError struct {
	CLIError types.CLIError
	cause    error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.CLIError.Code, e.CLIError.Message)
}

// Unwrap exposes the underlying cause, if any
func (e *AppError) Unwrap() error {
	return e.cause
}

// NewAppError creates an AppError from a CLIError
func NewAppError(cliErr types.CLIError) *AppError {
	return &AppError{CLIError: cliErr}
}

// WrapAppError creates an AppError that keeps err reachable through errors.Is/As
func WrapAppError(cliErr types.CLIError, err error) *AppError {
	return &AppError{CLIError: cliErr, cause: err}
}

// ErrorCode extracts the stable code from err, or ErrCodeUnknown
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.CLIError.Code
	}
	return ErrCodeUnknown
}

// AsCLIError converts any error into a CLIError
func AsCLIError(err error) types.CLIError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.CLIError
	}
	return NewCLIError(ErrCodeUnknown, err.Error()).Build()
}
