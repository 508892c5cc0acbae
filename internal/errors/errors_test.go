package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/dl-alexandre/docloader/internal/logging"
	"github.com/dl-alexandre/docloader/internal/types"
	"github.com/dl-alexandre/docloader/internal/utils"
	"google.golang.org/api/googleapi"
)

func reqCtx() *types.RequestContext {
	return &types.RequestContext{Backend: "drive", RequestType: types.RequestTypeList, TraceID: "trace"}
}

func TestClassifyGoogleAPIError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  string
		retryable bool
	}{
		{"not found", &googleapi.Error{Code: 404, Message: "File not found"}, utils.ErrCodeFileNotFound, false},
		{"unauthorized", &googleapi.Error{Code: 401}, utils.ErrCodeCredentialsUnavailable, false},
		{"rate limit reason", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}}, utils.ErrCodeRateLimited, true},
		{"forbidden", &googleapi.Error{Code: 403}, utils.ErrCodePermissionDenied, false},
		{"server", &googleapi.Error{Code: 502}, utils.ErrCodeNetworkError, true},
		{"wrapped", fmt.Errorf("list: %w", &googleapi.Error{Code: 429}), utils.ErrCodeRateLimited, true},
		{"transport", stderrors.New("dial tcp: refused"), utils.ErrCodeNetworkError, true},
		{"canceled", context.Canceled, utils.ErrCodeCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ClassifyGoogleAPIError("drive", tt.err, reqCtx(), logging.NewNoOpLogger())
			var appErr *utils.AppError
			if !stderrors.As(err, &appErr) {
				t.Fatalf("expected AppError, got %T", err)
			}
			if appErr.CLIError.Code != tt.wantCode {
				t.Errorf("code mismatch: got %s, want %s", appErr.CLIError.Code, tt.wantCode)
			}
			if appErr.CLIError.Retryable != tt.retryable {
				t.Errorf("retryable mismatch: got %v, want %v", appErr.CLIError.Retryable, tt.retryable)
			}
			if !stderrors.Is(err, tt.err) {
				t.Errorf("original error should stay reachable")
			}
		})
	}
}

func TestClassifyAWSError(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"NoSuchBucket", utils.ErrCodeFileNotFound},
		{"AccessDenied", utils.ErrCodePermissionDenied},
		{"SlowDown", utils.ErrCodeRateLimited},
		{"Teapot", utils.ErrCodeUnknown},
	}

	for _, tt := range tests {
		err := ClassifyAWSError(&smithy.GenericAPIError{Code: tt.code, Message: "x"}, reqCtx(), logging.NewNoOpLogger())
		if got := utils.ErrorCode(err); got != tt.want {
			t.Errorf("ClassifyAWSError(%s) mismatch: got %s, want %s", tt.code, got, tt.want)
		}
	}

	if got := utils.ErrorCode(ClassifyAWSError(stderrors.New("eof"), reqCtx(), logging.NewNoOpLogger())); got != utils.ErrCodeNetworkError {
		t.Errorf("non-API error mismatch: got %s", got)
	}
}
