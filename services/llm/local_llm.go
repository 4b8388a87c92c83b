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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// LocalLlamaCppClient talks to a raw llama.cpp server's /completion
// endpoint. Prefer the OpenAI-compatible client when the server exposes
// /v1/chat/completions; this exists for minimal builds.
type LocalLlamaCppClient struct {
	httpClient *http.Client
	baseURL    string
}

type localCompletionPayload struct {
	Prompt      string   `json:"prompt"`
	NPredict    int      `json:"n_predict"`
	Temperature *float32 `json:"temperature,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type localCompletionResponse struct {
	Content string `json:"content"`
}

func NewLocalLlamaCppClient() (*LocalLlamaCppClient, error) {
	baseURL := os.Getenv("LLM_SERVICE_URL_BASE")
	if baseURL == "" {
		return nil, fmt.Errorf("LLM_SERVICE_URL_BASE environment variable not set")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &LocalLlamaCppClient{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    baseURL,
	}, nil
}

// Generate implements the LLMClient interface
func (l *LocalLlamaCppClient) Generate(ctx context.Context, prompt string,
	params GenerationParams) (string, error) {

	completionURL := l.baseURL + "/completion"
	payload := localCompletionPayload{Prompt: prompt}
	if params.MaxTokens != nil {
		payload.NPredict = *params.MaxTokens
	} else {
		payload.NPredict = 2048
	}
	if params.Temperature != nil {
		payload.Temperature = params.Temperature
	} else {
		payload.Temperature = floatPtr(0.7)
	}
	if params.TopK != nil {
		payload.TopK = params.TopK
	} else {
		payload.TopK = intPtr(40)
	}
	if params.TopP != nil {
		payload.TopP = params.TopP
	} else {
		payload.TopP = floatPtr(0.9)
	}
	if len(params.Stop) > 0 {
		payload.Stop = params.Stop
	}

	reqBodyBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal the payload: %w", err)
	}
	slog.Debug("Calling llama.cpp completion", "url", completionURL)

	req, err := http.NewRequestWithContext(ctx, "POST", completionURL, bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request to llama.cpp: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		slog.Error("llama.cpp API call failed", "error", err)
		return "", fmt.Errorf("llama.cpp API call failed: %w", err)
	}
	defer resp.Body.Close()

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body from llama.cpp: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		slog.Error("llama.cpp returned an error", "status_code", resp.StatusCode, "response", string(respBodyBytes))
		return "", &StatusError{Code: resp.StatusCode, Body: string(respBodyBytes)}
	}

	var completion localCompletionResponse
	if err := json.Unmarshal(respBodyBytes, &completion); err != nil {
		return "", fmt.Errorf("failed to parse llama.cpp response: %w", err)
	}
	return completion.Content, nil
}
