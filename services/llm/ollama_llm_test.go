// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mock Server Helpers
// =============================================================================

// newMockOllamaServer creates a test server standing in for Ollama.
func newMockOllamaServer(handler http.HandlerFunc) *httptest.Server {
	return httptest.NewServer(handler)
}

// =============================================================================
// Generate Tests
// =============================================================================

func TestOllamaGenerate_Success(t *testing.T) {
	var gotReq ollamaGenerateRequest
	server := newMockOllamaServer(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(ollamaGenerateResponse{
			Model:    "test-model",
			Response: "Random Forest | handles mixed types | SVM, Gradient Boosting",
			Done:     true,
		})
	})
	defer server.Close()

	client := NewOllamaClientWith(server.URL, "test-model")
	answer, err := client.Generate(context.Background(), "pick an algorithm", GenerationParams{})
	require.NoError(t, err)
	assert.Contains(t, answer, "Random Forest")

	// Non-streaming request with the configured model.
	assert.Equal(t, "test-model", gotReq.Model)
	assert.False(t, gotReq.Stream)
	assert.Equal(t, "pick an algorithm", gotReq.Prompt)
}

func TestOllamaGenerate_ParamsOverrideDefaults(t *testing.T) {
	var gotReq ollamaGenerateRequest
	server := newMockOllamaServer(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "ok", Done: true})
	})
	defer server.Close()

	client := NewOllamaClientWith(server.URL, "test-model")
	temp := float32(0.1)
	maxTokens := 512
	_, err := client.Generate(context.Background(), "p", GenerationParams{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		Stop:        []string{"```"},
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.1, gotReq.Options["temperature"], 0.001)
	assert.EqualValues(t, 512, gotReq.Options["num_predict"])
	require.Len(t, gotReq.Options["stop"], 1)
}

func TestOllamaGenerate_ModelNotFound(t *testing.T) {
	server := newMockOllamaServer(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'missing' not found"}`))
	})
	defer server.Close()

	client := NewOllamaClientWith(server.URL, "missing")
	_, err := client.Generate(context.Background(), "p", GenerationParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama pull missing")
}

func TestOllamaGenerate_ServerErrorIsStatusError(t *testing.T) {
	server := newMockOllamaServer(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("overloaded"))
	})
	defer server.Close()

	client := NewOllamaClientWith(server.URL, "test-model")
	_, err := client.Generate(context.Background(), "p", GenerationParams{})
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.False(t, statusErr.Permanent())
}

func TestOllamaGenerate_ContextCancelled(t *testing.T) {
	server := newMockOllamaServer(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	defer server.Close()

	client := NewOllamaClientWith(server.URL, "test-model")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Generate(ctx, "p", GenerationParams{})
	require.Error(t, err)
}

// =============================================================================
// ListModels Tests
// =============================================================================

func TestOllamaListModels(t *testing.T) {
	server := newMockOllamaServer(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		w.Write([]byte(`{"models":[
			{"name":"llama3.2:latest","size":2019393189,"modified_at":"2025-01-01T00:00:00Z"},
			{"name":"qwen2.5-coder:7b","size":4683087332,"modified_at":"2025-02-01T00:00:00Z"}
		]}`))
	})
	defer server.Close()

	client := NewOllamaClientWith(server.URL, "llama3.2")
	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "llama3.2:latest", models[0].Name)
	assert.EqualValues(t, 2019393189, models[0].SizeBytes)
}

func TestOllamaListModels_ServerError(t *testing.T) {
	server := newMockOllamaServer(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer server.Close()

	client := NewOllamaClientWith(server.URL, "llama3.2")
	_, err := client.ListModels(context.Background())
	require.Error(t, err)
}
