// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// RetryConfig controls the retrying wrapper around an LLMClient.
type RetryConfig struct {
	// MaxRetries is the number of retry attempts after the first call.
	// Default: 3 (matching the pipeline's MAX_RETRIES).
	MaxRetries uint64

	// InitialInterval is the first backoff delay. Default: 500ms.
	InitialInterval time.Duration

	// RequestsPerSecond throttles calls to the inference server.
	// A local single-GPU server serializes work anyway; keeping the
	// limiter low avoids queue pileup. Default: 2.
	RequestsPerSecond float64
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.InitialInterval == 0 {
		c.InitialInterval = 500 * time.Millisecond
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 2
	}
	return c
}

type retryingClient struct {
	inner   LLMClient
	limiter *rate.Limiter
	cfg     RetryConfig

	// onRetry is invoked for each retry attempt; observability hooks in here.
	onRetry func(err error)
}

// NewRetrying wraps an LLMClient with exponential-backoff retries and a
// rate limiter. Transport failures and 5xx responses are retried; 4xx
// responses and context cancellation are not.
func NewRetrying(inner LLMClient, cfg RetryConfig, onRetry func(err error)) LLMClient {
	cfg = cfg.withDefaults()
	return &retryingClient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		cfg:     cfg,
		onRetry: onRetry,
	}
}

func (r *retryingClient) Generate(ctx context.Context, prompt string,
	params GenerationParams) (string, error) {

	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var out string
	op := func() error {
		answer, err := r.inner.Generate(ctx, prompt, params)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = answer
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = r.cfg.InitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, r.cfg.MaxRetries), ctx)

	notify := func(err error, wait time.Duration) {
		slog.Warn("Retrying LLM call", "error", err, "wait", wait)
		if r.onRetry != nil {
			r.onRetry(err)
		}
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return "", err
	}
	return out, nil
}

// retryable classifies an inference error. Client-side problems (bad
// request, missing model) will not fix themselves on retry.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return !statusErr.Permanent()
	}
	if strings.Contains(err.Error(), "not found") {
		return false
	}
	return true
}
