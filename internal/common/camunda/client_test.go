package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "docqa-workers/internal/common/errors"
)

var fastRetry = &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestExecuteWithRetry_RetriesTransientErrors(t *testing.T) {
	attempts := 0
	err := ExecuteWithRetry(context.Background(), fastRetry, "complete", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("rpc error: code = Unavailable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestExecuteWithRetry_StopsOnPermanentError(t *testing.T) {
	attempts := 0
	err := ExecuteWithRetry(context.Background(), fastRetry, "complete", func(ctx context.Context) error {
		attempts++
		return errors.New("job not found")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorCode("RESOURCE_NOT_FOUND"), stdErr.Code)
}

func TestExecuteWithRetry_ExhaustsTimeouts(t *testing.T) {
	err := ExecuteWithRetry(context.Background(), fastRetry, "complete", func(ctx context.Context) error {
		return errors.New("context deadline exceeded")
	})

	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorCode("TIMEOUT_ERROR"), stdErr.Code)
	assert.Contains(t, stdErr.Details, "after 2 attempts")
}

func TestIsRetryableZeebeError(t *testing.T) {
	assert.True(t, isRetryableZeebeError(errors.New("connection refused")))
	assert.True(t, isRetryableZeebeError(errors.New("DEADLINE EXCEEDED")))
	assert.False(t, isRetryableZeebeError(errors.New("invalid argument")))
}

func TestExecuteWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	slow := &RetryConfig{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}

	err := ExecuteWithRetry(ctx, slow, "complete", func(ctx context.Context) error {
		cancel()
		return errors.New("unavailable")
	})

	assert.ErrorIs(t, err, context.Canceled)
}
