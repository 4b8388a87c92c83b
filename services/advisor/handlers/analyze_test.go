// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianAdvisor/services/advisor/datatypes"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/sessions"
	"github.com/AleutianAI/AleutianAdvisor/services/llm"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// MockLLMClient implements llm.LLMClient for handler testing, returning
// scripted replies in order.
type MockLLMClient struct {
	Replies []string
	Err     error
	calls   int
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	i := m.calls
	m.calls++
	if i < len(m.Replies) {
		return m.Replies[i], nil
	}
	return "ok", nil
}

const testCSV = "tenure,monthly_charges,contract,churn\n12,29.85,month-to-month,yes\n34,56.95,one-year,no\n2,53.85,month-to-month,yes\n"

var happyReplies = []string{
	"Small, clean binary classification dataset.",
	"Random Forest | Robust on small mixed-type data. | Gradient Boosting, Logistic Regression",
	"```python\nfrom sklearn.ensemble import RandomForestClassifier\n```",
}

func newTestDeps(t *testing.T, client llm.LLMClient) AnalyzeDeps {
	t.Helper()
	return AnalyzeDeps{
		Client:    client,
		Store:     sessions.NewStore(sessions.Config{}),
		Hub:       NewHub(),
		UploadDir: t.TempDir(),
	}
}

func analyzeRouter(deps AnalyzeDeps) *gin.Engine {
	router := gin.New()
	router.POST("/v1/analyze", HandleAnalyze(deps))
	return router
}

// performMultipart executes a multipart upload against the test router.
func performMultipart(router *gin.Engine, path string, fields map[string]string,
	filename string, content []byte) *httptest.ResponseRecorder {

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if filename != "" {
		fw, _ := mw.CreateFormFile("file", filename)
		_, _ = fw.Write(content)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// HandleAnalyze Tests
// =============================================================================

func TestHandleAnalyze_Success(t *testing.T) {
	deps := newTestDeps(t, &MockLLMClient{Replies: happyReplies})
	router := analyzeRouter(deps)

	w := performMultipart(router, "/v1/analyze",
		map[string]string{"problem_description": "predict churn"},
		"churn.csv", []byte(testCSV))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp datatypes.AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "Random Forest", resp.Algorithm)
	assert.Equal(t, "Robust on small mixed-type data.", resp.Reason)
	assert.Equal(t, []string{"Gradient Boosting", "Logistic Regression"}, resp.Alternatives)
	assert.Equal(t, "2-class Classification", resp.ProblemType)
	assert.Contains(t, resp.Code, "RandomForestClassifier")
	assert.NotContains(t, resp.Code, "```")
	assert.Contains(t, resp.DataSummary, "Problem Type: 2-class Classification")
	require.NotNil(t, resp.Profile)
	assert.Equal(t, "churn", resp.Profile.TargetColumn)

	require.Len(t, resp.Agents, 3)
	for _, step := range resp.Agents {
		assert.Equal(t, datatypes.StepCompleted, step.Status)
	}

	// Session is stored completed with the result.
	s, err := deps.Store.Get(resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.SessionCompleted, s.Status)
	require.NotNil(t, s.Result)
	assert.Equal(t, "Random Forest", s.Result.Algorithm)

	// The upload was staged under the session ID.
	matches, _ := filepath.Glob(filepath.Join(deps.UploadDir, resp.SessionID+"_*"))
	assert.Len(t, matches, 1)
}

func TestHandleAnalyze_MissingFile(t *testing.T) {
	router := analyzeRouter(newTestDeps(t, &MockLLMClient{}))

	w := performMultipart(router, "/v1/analyze", nil, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "file")
}

func TestHandleAnalyze_RejectsExcel(t *testing.T) {
	router := analyzeRouter(newTestDeps(t, &MockLLMClient{}))

	w := performMultipart(router, "/v1/analyze", nil, "data.xlsx", []byte("not really excel"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "CSV")
}

func TestHandleAnalyze_RejectsUnknownExtension(t *testing.T) {
	router := analyzeRouter(newTestDeps(t, &MockLLMClient{}))

	w := performMultipart(router, "/v1/analyze", nil, "data.parquet", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAnalyze_EmptyDataset(t *testing.T) {
	deps := newTestDeps(t, &MockLLMClient{})
	router := analyzeRouter(deps)

	w := performMultipart(router, "/v1/analyze", nil, "empty.csv", []byte("a,b\n"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "empty")

	// The rejected upload is not left on disk.
	entries, err := os.ReadDir(deps.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandleAnalyze_BadSessionID(t *testing.T) {
	router := analyzeRouter(newTestDeps(t, &MockLLMClient{}))

	w := performMultipart(router, "/v1/analyze",
		map[string]string{"session_id": "not-a-uuid"},
		"churn.csv", []byte(testCSV))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAnalyze_PipelineFailure(t *testing.T) {
	deps := newTestDeps(t, &MockLLMClient{Err: &llm.StatusError{Code: 500, Body: "overloaded"}})
	router := analyzeRouter(deps)

	w := performMultipart(router, "/v1/analyze", nil, "churn.csv", []byte(testCSV))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp datatypes.AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, "data analyst stage")

	require.Len(t, resp.Agents, 3)
	assert.Equal(t, datatypes.StepFailed, resp.Agents[0].Status)
	assert.Equal(t, datatypes.StepSkipped, resp.Agents[1].Status)

	s, err := deps.Store.Get(resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.SessionFailed, s.Status)
	assert.NotEmpty(t, s.Error)
}

func TestHandleAnalyze_PublishesProgress(t *testing.T) {
	deps := newTestDeps(t, &MockLLMClient{Replies: happyReplies})
	router := analyzeRouter(deps)

	sessionID := "550e8400-e29b-41d4-a716-446655440000"
	events, cancelSub := deps.Hub.Subscribe(sessionID)
	defer cancelSub()

	w := performMultipart(router, "/v1/analyze",
		map[string]string{"session_id": sessionID},
		"churn.csv", []byte(testCSV))
	require.Equal(t, http.StatusOK, w.Code)

	var types []string
	for len(events) > 0 {
		types = append(types, (<-events).Type)
	}
	require.Len(t, types, 7) // 3 x started/completed + terminal event
	assert.Equal(t, datatypes.EventStageStarted, types[0])
	assert.Equal(t, datatypes.EventPipelineCompleted, types[6])
}

func TestHandleAnalyze_ModelOverride(t *testing.T) {
	var requestedModel string
	deps := newTestDeps(t, &MockLLMClient{Replies: happyReplies})
	deps.ClientFor = func(model string) llm.LLMClient {
		requestedModel = model
		return &MockLLMClient{Replies: happyReplies}
	}
	router := analyzeRouter(deps)

	w := performMultipart(router, "/v1/analyze",
		map[string]string{"model": "mistral:7b"},
		"churn.csv", []byte(testCSV))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mistral:7b", requestedModel)
}
