// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the retrying LLM client wrapper

package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyClient fails a fixed number of times before succeeding.
type flakyClient struct {
	failures int
	err      error
	calls    int
}

func (f *flakyClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	return "recovered", nil
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialInterval:   time.Millisecond,
		RequestsPerSecond: 1000,
	}
}

func TestRetrying_RecoversFromTransientErrors(t *testing.T) {
	inner := &flakyClient{failures: 2, err: &StatusError{Code: http.StatusServiceUnavailable}}
	var retries int
	client := NewRetrying(inner, fastRetryConfig(), func(error) { retries++ })

	answer, err := client.Generate(context.Background(), "p", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", answer)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, 2, retries)
}

func TestRetrying_GivesUpAfterMaxRetries(t *testing.T) {
	inner := &flakyClient{failures: 100, err: &StatusError{Code: http.StatusInternalServerError}}
	client := NewRetrying(inner, fastRetryConfig(), nil)

	_, err := client.Generate(context.Background(), "p", GenerationParams{})
	require.Error(t, err)
	// Initial attempt plus MaxRetries.
	assert.Equal(t, 4, inner.calls)
}

func TestRetrying_NoRetryOnClientError(t *testing.T) {
	inner := &flakyClient{failures: 100, err: &StatusError{Code: http.StatusBadRequest}}
	client := NewRetrying(inner, fastRetryConfig(), nil)

	_, err := client.Generate(context.Background(), "p", GenerationParams{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRetrying_NoRetryOnModelNotFound(t *testing.T) {
	inner := &flakyClient{failures: 100, err: errors.New("model 'x' not found. Please run: 'ollama pull x'")}
	client := NewRetrying(inner, fastRetryConfig(), nil)

	_, err := client.Generate(context.Background(), "p", GenerationParams{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRetrying_NoRetryOnContextCancel(t *testing.T) {
	inner := &flakyClient{failures: 100, err: context.Canceled}
	client := NewRetrying(inner, fastRetryConfig(), nil)

	_, err := client.Generate(context.Background(), "p", GenerationParams{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport error", errors.New("connection refused"), true},
		{"server error", &StatusError{Code: 503}, true},
		{"client error", &StatusError{Code: 422}, false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"missing model", errors.New("model 'y' not found"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(tt.err))
		})
	}
}
