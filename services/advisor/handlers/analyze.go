// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers provides HTTP handlers for the advisor service.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianAdvisor/pkg/validation"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/agents"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/dataset"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/datatypes"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/observability"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/sessions"
	"github.com/AleutianAI/AleutianAdvisor/services/llm"
)

var advisorTracer = otel.Tracer("aleutian.advisor.handlers")

// AnalyzeDeps bundles the analyze handler's dependencies.
type AnalyzeDeps struct {
	// Client is the default inference client.
	Client llm.LLMClient

	// ClientFor, when set, returns a client for a request-level model
	// override. Nil means overrides are ignored.
	ClientFor func(model string) llm.LLMClient

	// Store tracks session lifecycle and owns uploaded file cleanup.
	Store *sessions.Store

	// Hub receives progress events for WebSocket subscribers. May be nil.
	Hub *Hub

	// Metrics may be nil (tests); all recording is guarded.
	Metrics *observability.AdvisorMetrics

	// UploadDir is where uploaded datasets are staged.
	UploadDir string

	// Timeout bounds one pipeline run. Zero means the pipeline default.
	Timeout time.Duration

	// MaxRows caps how many rows are profiled. Zero means the dataset
	// package default.
	MaxRows int
}

// HandleAnalyze accepts a dataset upload, profiles it, runs the
// three-agent pipeline synchronously, and returns the recommendation.
//
// The request is multipart/form-data with a "file" part (CSV or JSON)
// plus the optional fields of datatypes.AnalyzeRequest. Progress is
// mirrored to the WebSocket hub for clients following along live.
func HandleAnalyze(deps AnalyzeDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := advisorTracer.Start(c.Request.Context(), "HandleAnalyze")
		defer span.End()

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, datatypes.MaxUploadBytes)

		var req datatypes.AnalyzeRequest
		if err := c.ShouldBind(&req); err != nil {
			span.RecordError(err)
			recordError(deps.Metrics, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request form"})
			return
		}
		if err := req.Validate(); err != nil {
			recordError(deps.Metrics, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.EnsureDefaults()
		span.SetAttributes(attribute.String("advisor.session_id", req.SessionID))

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			recordError(deps.Metrics, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": "a dataset file is required in the 'file' field"})
			return
		}
		defer file.Close()

		if err := validation.ValidateUploadFilename(header.Filename); err != nil {
			recordError(deps.Metrics, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		path, err := saveUpload(deps.UploadDir, req.SessionID, header.Filename, file)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to save upload", "sessionId", req.SessionID, "error", err)
			recordError(deps.Metrics, observability.ErrorCodeInternal)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store uploaded file"})
			return
		}
		recordUpload(deps.Metrics, header.Size)

		frame, err := parseUpload(path, header.Filename, deps.MaxRows)
		if err != nil {
			_ = os.Remove(path)
			recordError(deps.Metrics, observability.ErrorCodeParse)
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read file: %v", err)})
			return
		}

		summary, err := dataset.Summarize(frame, req.ProblemDescription)
		if err != nil {
			_ = os.Remove(path)
			recordError(deps.Metrics, observability.ErrorCodeParse)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		span.SetAttributes(
			attribute.String("advisor.problem_type", summary.ProblemType),
			attribute.Int("advisor.rows", summary.TotalRows),
		)

		deps.Store.Create(req.SessionID, header.Filename, path, req.Model)

		client := deps.Client
		if req.Model != "" && deps.ClientFor != nil {
			client = deps.ClientFor(req.Model)
		}

		pipeline := agents.NewPipeline(client, agents.Config{
			Timeout:    deps.Timeout,
			OnProgress: progressFunc(deps, req.SessionID),
		})

		if deps.Metrics != nil {
			deps.Metrics.ActivePipelines.Inc()
			defer deps.Metrics.ActivePipelines.Dec()
		}

		result, runErr := pipeline.Run(ctx, summary, req.ProblemDescription)
		recordStages(deps.Metrics, result)

		if runErr != nil {
			span.RecordError(runErr)
			span.SetStatus(codes.Error, "pipeline failed")
			slog.Error("Pipeline run failed", "sessionId", req.SessionID, "error", runErr)

			resp := buildResponse(req.SessionID, summary, result)
			resp.Status = "error"
			resp.Error = runErr.Error()
			if err := deps.Store.Fail(req.SessionID, runErr.Error(), resp); err != nil {
				slog.Warn("Failed to mark session failed", "sessionId", req.SessionID, "error", err)
			}
			publish(deps.Hub, datatypes.ProgressEvent{
				Type:      datatypes.EventError,
				SessionID: req.SessionID,
				Message:   runErr.Error(),
				Timestamp: time.Now().UnixMilli(),
				Result:    resp,
			})
			recordPipeline(deps.Metrics, false, result.Elapsed)
			recordError(deps.Metrics, errorCodeFor(runErr))
			c.JSON(http.StatusInternalServerError, resp)
			return
		}

		resp := buildResponse(req.SessionID, summary, result)
		resp.Status = "success"
		if err := deps.Store.Complete(req.SessionID, resp); err != nil {
			slog.Warn("Failed to mark session completed", "sessionId", req.SessionID, "error", err)
		}
		publish(deps.Hub, datatypes.ProgressEvent{
			Type:      datatypes.EventPipelineCompleted,
			SessionID: req.SessionID,
			Timestamp: time.Now().UnixMilli(),
			Result:    resp,
		})
		recordPipeline(deps.Metrics, true, result.Elapsed)
		c.JSON(http.StatusOK, resp)
	}
}

// saveUpload stages the uploaded file under a session-prefixed name so
// concurrent uploads of same-named files cannot collide.
func saveUpload(dir, sessionID, filename string, src io.Reader) (string, error) {
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	path := filepath.Join(dir, sessionID+"_"+validation.SafeUploadName(filename))

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}
	return path, nil
}

func parseUpload(path, filename string, maxRows int) (*dataset.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stored upload: %w", err)
	}
	defer f.Close()
	return dataset.Parse(filename, f, maxRows)
}

// progressFunc mirrors pipeline stage events into the session store and
// the WebSocket hub.
func progressFunc(deps AnalyzeDeps, sessionID string) agents.ProgressFunc {
	return func(eventType, stage, message string) {
		if eventType == datatypes.EventStageStarted {
			if err := deps.Store.SetRunning(sessionID, stage); err != nil {
				slog.Warn("Failed to update session stage", "sessionId", sessionID, "error", err)
			}
		}
		publish(deps.Hub, datatypes.NewProgressEvent(eventType, sessionID, stage, message))
	}
}

// buildResponse assembles the wire response from a pipeline result,
// complete or partial.
func buildResponse(sessionID string, summary *dataset.Summary, result *agents.Result) *datatypes.AnalyzeResponse {
	resp := datatypes.NewAnalyzeResponse(sessionID)
	resp.Algorithm = result.Algorithm
	resp.Reason = result.Reason
	resp.Alternatives = result.Alternatives
	resp.ProblemType = summary.ProblemType
	resp.DataSummary = summary.DisplayText(result.Insights, result.Alternatives, result.Messages)
	resp.Profile = summary
	resp.Code = result.Code
	resp.ProcessingTimeMs = result.Elapsed.Milliseconds()
	for _, st := range result.Stages {
		resp.Agents = append(resp.Agents, datatypes.AgentStep{
			Name:       st.Name,
			Status:     st.Status,
			Message:    st.Message,
			DurationMs: st.Duration.Milliseconds(),
		})
	}
	return resp
}

func errorCodeFor(err error) observability.ErrorCode {
	if errors.Is(err, context.DeadlineExceeded) {
		return observability.ErrorCodeTimeout
	}
	return observability.ErrorCodeLLM
}

func publish(hub *Hub, event datatypes.ProgressEvent) {
	if hub != nil {
		hub.Publish(event)
	}
}

func recordError(m *observability.AdvisorMetrics, code observability.ErrorCode) {
	if m != nil {
		m.RecordError(code)
	}
}

func recordUpload(m *observability.AdvisorMetrics, size int64) {
	if m != nil {
		m.RecordUpload(size)
	}
}

func recordPipeline(m *observability.AdvisorMetrics, success bool, elapsed time.Duration) {
	if m != nil {
		m.RecordPipeline(success, elapsed)
	}
}

func recordStages(m *observability.AdvisorMetrics, result *agents.Result) {
	if m == nil || result == nil {
		return
	}
	for _, st := range result.Stages {
		if st.Status == agents.StageSkipped {
			continue
		}
		m.RecordStage(st.Name, st.Status, st.Duration)
	}
}
