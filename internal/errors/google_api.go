package errors

import (
	"context"
	stderrors "errors"

	"github.com/dl-alexandre/docloader/internal/logging"
	"github.com/dl-alexandre/docloader/internal/types"
	"github.com/dl-alexandre/docloader/internal/utils"
	"google.golang.org/api/googleapi"
)

// ClassifyGoogleAPIError maps Drive and Cloud Storage failures onto stable CLI error codes
func ClassifyGoogleAPIError(service string, err error, reqCtx *types.RequestContext, logger logging.Logger) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeCancelled, err.Error()).
			WithContext("traceId", reqCtx.TraceID).
			WithContext("service", service).
			Build(), err)
	}

	var apiErr *googleapi.Error
	if !stderrors.As(err, &apiErr) {
		logger.Debug("Non-API error",
			logging.F("error", err.Error()),
			logging.F("traceId", reqCtx.TraceID),
		)
		return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeNetworkError, err.Error()).
			WithRetryable(true).
			WithContext("traceId", reqCtx.TraceID).
			WithContext("service", service).
			Build(), err)
	}

	var code string
	var retryable bool

	switch apiErr.Code {
	case 400:
		code = utils.ErrCodeInvalidArgument
	case 401:
		code = utils.ErrCodeCredentialsUnavailable
	case 403:
		code = utils.ErrCodePermissionDenied
		for _, e := range apiErr.Errors {
			switch e.Reason {
			case "userRateLimitExceeded", "rateLimitExceeded":
				code = utils.ErrCodeRateLimited
				retryable = true
			case "dailyLimitExceeded":
				code = utils.ErrCodeRateLimited
			}
		}
	case 404:
		code = utils.ErrCodeFileNotFound
	case 429:
		code = utils.ErrCodeRateLimited
		retryable = true
	case 500, 502, 503, 504:
		code = utils.ErrCodeNetworkError
		retryable = true
	default:
		code = utils.ErrCodeUnknown
		retryable = apiErr.Code >= 500
	}

	logger.Debug("API error classified",
		logging.F("httpStatus", apiErr.Code),
		logging.F("errorCode", code),
		logging.F("retryable", retryable),
		logging.F("message", apiErr.Message),
		logging.F("traceId", reqCtx.TraceID),
		logging.F("service", service),
	)

	builder := utils.NewCLIError(code, apiErr.Message).
		WithHTTPStatus(apiErr.Code).
		WithRetryable(retryable).
		WithContext("traceId", reqCtx.TraceID).
		WithContext("requestType", string(reqCtx.RequestType)).
		WithContext("service", service)

	if len(apiErr.Errors) > 0 {
		builder.WithContext("reason", apiErr.Errors[0].Reason)
	}
	if len(reqCtx.InvolvedFileIDs) > 0 {
		builder.WithContext("fileIds", reqCtx.InvolvedFileIDs)
	}

	switch code {
	case utils.ErrCodeCredentialsUnavailable:
		builder.WithContext("suggestedAction", "check the configured credentials or run 'docloader auth status'")
	case utils.ErrCodePermissionDenied, utils.ErrCodeFileNotFound:
		if service == "drive" {
			builder.WithContext("suggestedAction", "share the folder with the service account email shown by 'docloader auth status'")
		} else {
			builder.WithContext("suggestedAction", "grant the service account read access to the bucket")
		}
	case utils.ErrCodeRateLimited:
		builder.WithContext("suggestedAction", "wait before retrying")
	}

	return utils.WrapAppError(builder.Build(), err)
}
