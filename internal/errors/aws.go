package errors

import (
	"context"
	stderrors "errors"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/dl-alexandre/docloader/internal/logging"
	"github.com/dl-alexandre/docloader/internal/types"
	"github.com/dl-alexandre/docloader/internal/utils"
)

// ClassifyAWSError maps S3 failures onto stable CLI error codes
func ClassifyAWSError(err error, reqCtx *types.RequestContext, logger logging.Logger) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeCancelled, err.Error()).Build(), err)
	}

	var apiErr smithy.APIError
	if !stderrors.As(err, &apiErr) {
		return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeNetworkError, err.Error()).
			WithRetryable(true).
			WithContext("traceId", reqCtx.TraceID).
			WithContext("service", "s3").
			Build(), err)
	}

	code := utils.ErrCodeUnknown
	switch apiErr.ErrorCode() {
	case "NoSuchBucket", "NoSuchKey", "NotFound":
		code = utils.ErrCodeFileNotFound
	case "AccessDenied", "AllAccessDisabled":
		code = utils.ErrCodePermissionDenied
	case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
		code = utils.ErrCodeCredentialsUnavailable
	case "SlowDown", "Throttling", "RequestLimitExceeded":
		code = utils.ErrCodeRateLimited
	case "InvalidBucketName":
		code = utils.ErrCodeInvalidFolderReference
	}

	builder := utils.NewCLIError(code, apiErr.ErrorMessage()).
		WithRetryable(apiErr.ErrorFault() == smithy.FaultServer || code == utils.ErrCodeRateLimited).
		WithContext("traceId", reqCtx.TraceID).
		WithContext("service", "s3").
		WithContext("awsCode", apiErr.ErrorCode())

	var respErr *smithyhttp.ResponseError
	if stderrors.As(err, &respErr) {
		builder.WithHTTPStatus(respErr.HTTPStatusCode())
	}

	logger.Debug("AWS error classified",
		logging.F("awsCode", apiErr.ErrorCode()),
		logging.F("errorCode", code),
		logging.F("traceId", reqCtx.TraceID),
	)

	return utils.WrapAppError(builder.Build(), err)
}
