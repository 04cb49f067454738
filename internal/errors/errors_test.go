package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuseError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	original := errors.New("disk gone")

	// When: wrapping it
	err := New(ErrCodeFileNotFound, "chunks.db not found", original)

	// Then: the chain reaches the original
	require.NotNil(t, err)
	assert.Equal(t, original, errors.Unwrap(err))
	assert.True(t, errors.Is(err, original))
}

func TestFuseError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *FuseError
		expected string
	}{
		{"invalid parameter", InvalidParameter("chunk_size must be > 0, got %d", 0), "[ERR_401_INVALID_PARAMETER] chunk_size must be > 0, got 0"},
		{"not ready", IndexNotReady("term"), "[ERR_506_INDEX_NOT_READY] term index has not been built"},
		{"count mismatch", CountMismatch(3, 2), "[ERR_407_COUNT_MISMATCH] 3 chunk ids but 2 vectors"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestFuseError_Is_MatchesSentinelByCode(t *testing.T) {
	wrapped := fmt.Errorf("build: %w", DimensionMismatch(4, 3))

	assert.True(t, errors.Is(wrapped, ErrDimensionMismatch))
	assert.False(t, errors.Is(wrapped, ErrCountMismatch))
	assert.True(t, errors.Is(IndexNotReady("vector"), ErrIndexNotReady))
}

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{ErrCodeCorruptStore, CategoryIO, SeverityFatal, false},
		{ErrCodeNetworkUnavailable, CategoryNetwork, SeverityWarning, true},
		{ErrCodeInvalidParameter, CategoryValidation, SeverityError, false},
		{ErrCodeRegenerationFailed, CategoryInternal, SeverityWarning, false},
		{"bad", CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestGetCode_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(ErrCodeStoreLocked, "locked", nil))

	assert.Equal(t, ErrCodeStoreLocked, GetCode(err))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, "", GetCode(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestFormatForCLI(t *testing.T) {
	out := FormatForCLI(DimensionMismatch(768, 384))

	assert.True(t, strings.HasPrefix(out, "Error: vector dimension mismatch"))
	assert.Contains(t, out, "  expected: 768\n  got: 384\n")
	assert.Contains(t, out, "Code: ERR_402_DIMENSION_MISMATCH")

	plain := FormatForCLI(errors.New("boom"))
	assert.Contains(t, plain, "Code: ERR_501_INTERNAL")
	assert.Equal(t, "", FormatForCLI(nil))

	hinted := FormatForCLI(IndexNotReady("term"))
	assert.Contains(t, hinted, "Hint: run `docfuse ingest` first")
}

func TestRetryWithResult_SucceedsAfterFailures(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	calls := 0

	got, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAndWrapsLastError(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, Multiplier: 1}
	last := errors.New("still down")
	calls := 0

	err := Retry(context.Background(), cfg, func() error {
		calls++
		return last
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, last)
	assert.Equal(t, 3, calls)
}

func TestRetry_ShouldRetryStopsEarly(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, InitialDelay: time.Millisecond, Multiplier: 1,
		ShouldRetry: func(err error) bool { return IsRetryable(err) }}
	calls := 0

	err := Retry(context.Background(), cfg, func() error {
		calls++
		return InvalidParameter("bad")
	})

	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.Equal(t, 1, calls)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, DefaultRetryConfig(), func() error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
}

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker("embed", WithMaxFailures(2), WithResetTimeout(time.Minute),
		withClock(func() time.Time { return now }))
	failing := func() error { return errors.New("refused") }

	// Given: two failures
	_ = cb.Execute(failing)
	assert.Equal(t, StateClosed, cb.State())
	_ = cb.Execute(failing)

	// Then: the circuit is open and calls are short-circuited
	assert.Equal(t, StateOpen, cb.State())
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	// When: the reset timeout passes, a probe is allowed
	now = now.Add(2 * time.Minute)
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "embed", cb.Name())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker("embed", WithMaxFailures(1), WithResetTimeout(time.Second),
		withClock(func() time.Time { return now }))

	_ = cb.Execute(func() error { return errors.New("x") })
	now = now.Add(2 * time.Second)
	require.Equal(t, StateHalfOpen, cb.State())

	_ = cb.Execute(func() error { return errors.New("still x") })
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
