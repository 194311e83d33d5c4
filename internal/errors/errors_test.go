package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCarrelError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("disk exploded")

	// When: wrapping with CarrelError
	cerr := New(ErrCodeStoreOpen, "cannot open workspace db", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, cerr)
	assert.Equal(t, originalErr, errors.Unwrap(cerr))
	assert.True(t, errors.Is(cerr, originalErr))
}

func TestCarrelError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "storage error",
			code:     ErrCodeStoreOpen,
			message:  "cannot open library.sqlite",
			expected: "[ERR_201_STORE_OPEN] cannot open library.sqlite",
		},
		{
			name:     "provider error",
			code:     ErrCodeProviderTimeout,
			message:  "embedding request timed out",
			expected: "[ERR_301_PROVIDER_TIMEOUT] embedding request timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestCarrelError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeDimensionMismatch, "got 384, want 768", nil)
	err2 := New(ErrCodeDimensionMismatch, "got 1024, want 768", nil)

	assert.True(t, errors.Is(err1, err2))
}

func TestCarrelError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	err1 := New(ErrCodeDimensionMismatch, "dimension mismatch", nil)
	err2 := New(ErrCodeQueryEmpty, "empty query", nil)

	assert.False(t, errors.Is(err1, err2))
}

func TestCarrelError_CategoryDerivedFromCode(t *testing.T) {
	assert.Equal(t, CategoryConfig, New(ErrCodeWorkspaceLocked, "", nil).Category)
	assert.Equal(t, CategoryStorage, New(ErrCodeStoreCorrupt, "", nil).Category)
	assert.Equal(t, CategoryProvider, New(ErrCodeRerankFailed, "", nil).Category)
	assert.Equal(t, CategoryValidation, New(ErrCodeChunkTooShort, "", nil).Category)
	assert.Equal(t, CategoryInternal, New(ErrCodeCalibrationAnomaly, "", nil).Category)
}

func TestCarrelError_RetryableAndFatal(t *testing.T) {
	// Given: a provider timeout and a corrupt store
	timeout := New(ErrCodeProviderTimeout, "timed out", nil)
	corrupt := New(ErrCodeStoreCorrupt, "malformed database", nil)

	// Then: the timeout is retryable, the corruption is fatal
	assert.True(t, IsRetryable(timeout))
	assert.False(t, IsRetryable(corrupt))
	assert.True(t, IsFatal(corrupt))
	assert.False(t, IsFatal(timeout))
}

func TestCarrelError_WithDetail_ChainsContext(t *testing.T) {
	err := New(ErrCodeEmbeddingFailed, "embed failed", nil).
		WithDetail("model", "nomic-embed-text").
		WithDetail("workspace", "thesis").
		WithSuggestion("check that the embedding server is running")

	assert.Equal(t, "nomic-embed-text", err.Details["model"])
	assert.Equal(t, "thesis", err.Details["workspace"])
	assert.Contains(t, err.Suggestion, "embedding server")
}

func TestWrap_NilErrorReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestRetryWithResult_SucceedsAfterRetryableFailure(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2.0}

	calls := 0
	result, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, New(ErrCodeProviderTimeout, "timed out", nil)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
}

func TestRetryWithResult_NonRetryableAbortsImmediately(t *testing.T) {
	cfg := DefaultRetryConfig()

	calls := 0
	_, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, New(ErrCodeInvalidInput, "bad input", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithResult_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RetryWithResult(ctx, DefaultRetryConfig(), func() (int, error) {
		return 0, New(ErrCodeProviderTimeout, "timed out", nil)
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatForLog_IncludesStructuredFields(t *testing.T) {
	cause := errors.New("connection refused")
	err := New(ErrCodeProviderUnavailable, "server down", cause).WithDetail("endpoint", "http://localhost:11434")

	fields := FormatForLog(err)

	assert.Equal(t, ErrCodeProviderUnavailable, fields["error_code"])
	assert.Equal(t, "connection refused", fields["cause"])
	assert.Equal(t, "http://localhost:11434", fields["detail_endpoint"])
	assert.Equal(t, true, fields["retryable"])
}
