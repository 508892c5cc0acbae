package pipeline

import (
	"errors"

	"github.com/dl-alexandre/docloader/internal/types"
	"github.com/dl-alexandre/docloader/internal/utils"
)

// ErrorKind classifies the failures that abort a run
type ErrorKind string

const (
	KindInput      ErrorKind = "input"
	KindDiscovery  ErrorKind = "discovery"
	KindCredential ErrorKind = "credential"
	KindState      ErrorKind = "state"
)

// IngestError is a fatal pipeline failure. Per-file problems never produce one.
type IngestError struct {
	Kind ErrorKind
	Err  error
}

func (e *IngestError) Error() string {
	return e.Err.Error()
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// ErrorResult converts a fatal error into the {status, message} shape
func ErrorResult(err error) types.ErrorResult {
	var cliErr *utils.AppError
	if errors.As(err, &cliErr) {
		return types.NewErrorResult(cliErr.CLIError.Message)
	}
	return types.NewErrorResult(err.Error())
}

func kindFor(err error, fallback ErrorKind) ErrorKind {
	if utils.ErrorCode(err) == utils.ErrCodeCredentialsUnavailable {
		return KindCredential
	}
	return fallback
}
