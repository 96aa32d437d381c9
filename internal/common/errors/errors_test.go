package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardError_ErrorAndUnwrap(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewQueryExecutionFailedError("select tasks", cause)

	assert.Contains(t, err.Error(), "QUERY_EXECUTION_FAILED")
	assert.Contains(t, err.Error(), "select tasks")
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, err.Retryable)
}

func TestAsStandard_WrappedChain(t *testing.T) {
	base := NewValidationError("taskId", "taskId is required")
	wrapped := fmt.Errorf("create task: %w", base)

	got, ok := AsStandard(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrCodeValidationFailed, got.Code)
	assert.Equal(t, "taskId", got.Metadata["field"])
	assert.True(t, HasCode(wrapped, ErrCodeValidationFailed))
	assert.False(t, HasCode(stderrors.New("plain"), ErrCodeValidationFailed))
}

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantCode    string
		wantRetries int
	}{
		{
			name:        "retryable query failure",
			err:         NewQueryExecutionFailedError("update milestone", stderrors.New("timeout")),
			wantCode:    "QUERY_EXECUTION_FAILED",
			wantRetries: 3,
		},
		{
			name:        "validation is never retried",
			err:         NewValidationError("status", "bad status"),
			wantCode:    "VALIDATION_FAILED",
			wantRetries: 0,
		},
		{
			name:        "not found maps to resource code",
			err:         NewNotFoundError("milestone", "m-1"),
			wantCode:    "RESOURCE_NOT_FOUND",
			wantRetries: 0,
		},
		{
			name:        "unknown code falls back to itself",
			err:         &StandardError{Code: "SOMETHING_ELSE", Message: "x"},
			wantCode:    "SOMETHING_ELSE",
			wantRetries: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)

			vars := bpmn.ToErrorVariables()
			assert.Equal(t, tt.wantCode, vars["errorCode"])
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
		})
	}
}

func TestNormalize(t *testing.T) {
	std := NewTemplateNotFoundError("task_created")
	assert.Same(t, std, Normalize(fmt.Errorf("wrap: %w", std)))

	plain := Normalize(stderrors.New("kaboom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "kaboom", plain.Details)
	assert.False(t, plain.Retryable)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryExecutionFailed))
	assert.Equal(t, "PERMISSION", GetErrorCategory(ErrCodePermissionDenied))
	assert.Equal(t, "TEMPLATE", GetErrorCategory(ErrCodeTemplateNotFound))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeNotificationSendFailed))
	assert.Equal(t, "PROGRESS", GetErrorCategory(ErrCodeProgressRecalcFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeValidationFailed))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeFeatureUnavailable))
	assert.True(t, IsRetryableErrorCode(ErrCodeDatabaseInsertFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodePermissionDenied))
}
