// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianAdvisor/services/advisor/dataset"
	"github.com/AleutianAI/AleutianAdvisor/services/llm"
)

// pipelineTracer is the OpenTelemetry tracer for pipeline operations.
var pipelineTracer = otel.Tracer("aleutian.advisor.agents")

// DefaultTimeout bounds a full pipeline run. Three sequential calls to a
// local model on CPU can legitimately take minutes.
const DefaultTimeout = 300 * time.Second

// ProgressFunc receives stage lifecycle notifications during a run.
// eventType is "stage_started" or "stage_completed". Implementations
// must not block; the pipeline calls them inline.
type ProgressFunc func(eventType, stage, message string)

// Config holds the pipeline's tunables.
type Config struct {
	// Timeout bounds the whole run. Zero means DefaultTimeout.
	Timeout time.Duration

	// OnProgress, when set, is called at each stage boundary.
	OnProgress ProgressFunc
}

// Pipeline runs the three advisory stages in order against one LLM
// client. A Pipeline is stateless between runs and safe for concurrent
// use as long as the underlying client is.
type Pipeline struct {
	client   llm.LLMClient
	timeout  time.Duration
	progress ProgressFunc
}

// stage pairs a display name with its implementation.
type stage struct {
	name string
	run  func(context.Context, llm.LLMClient, *State) error
}

// NewPipeline creates a pipeline over the given client.
func NewPipeline(client llm.LLMClient, cfg Config) *Pipeline {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Pipeline{
		client:   client,
		timeout:  timeout,
		progress: cfg.OnProgress,
	}
}

// Run executes analyst -> selector -> generator sequentially and returns
// the consolidated result.
//
// On a stage failure the error is returned together with a partial
// Result: completed stages keep their outputs, the failing stage is
// marked failed, and the rest are marked skipped. Callers decide whether
// partial output is worth showing.
func (p *Pipeline) Run(ctx context.Context, summary *dataset.Summary, problemDescription string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ctx, span := pipelineTracer.Start(ctx, "agents.Pipeline.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("advisor.problem_type", summary.ProblemType),
		attribute.Int("advisor.rows", summary.TotalRows),
		attribute.Int("advisor.cols", summary.Cols),
	)

	if problemDescription == "" {
		problemDescription = fmt.Sprintf(
			"Analyze this dataset with %d rows and %d columns", summary.TotalRows, summary.Cols)
	}

	state := &State{
		Summary:            summary,
		ProblemDescription: problemDescription,
	}
	result := &Result{Summary: summary}
	started := time.Now()

	stages := []stage{
		{StageAnalyst, runAnalyst},
		{StageSelector, runSelector},
		{StageGenerator, runGenerator},
	}

	for i, st := range stages {
		if err := p.runStage(ctx, st, state, result); err != nil {
			for _, rest := range stages[i+1:] {
				result.Stages = append(result.Stages, StageResult{Name: rest.name, Status: StageSkipped})
			}
			p.collect(state, result, started)
			span.RecordError(err)
			span.SetStatus(codes.Error, "pipeline stage failed")
			return result, err
		}
	}

	state.Messages = append(state.Messages, "[System]: Multi-agent collaboration completed successfully.")
	p.collect(state, result, started)
	slog.Info("Pipeline completed",
		"algorithm", result.Algorithm,
		"problemType", summary.ProblemType,
		"elapsed", result.Elapsed)
	return result, nil
}

func (p *Pipeline) runStage(ctx context.Context, st stage, state *State, result *Result) error {
	ctx, span := pipelineTracer.Start(ctx, "agents.stage."+st.name)
	defer span.End()

	p.notify("stage_started", st.name, "")
	stageStart := time.Now()

	err := st.run(ctx, p.client, state)
	elapsed := time.Since(stageStart)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Pipeline stage failed", "stage", st.name, "error", err, "elapsed", elapsed)
		result.Stages = append(result.Stages, StageResult{
			Name:     st.name,
			Status:   StageFailed,
			Message:  err.Error(),
			Duration: elapsed,
		})
		return err
	}

	message := ""
	if len(state.Messages) > 0 {
		message = state.Messages[len(state.Messages)-1]
	}
	result.Stages = append(result.Stages, StageResult{
		Name:     st.name,
		Status:   StageCompleted,
		Message:  message,
		Duration: elapsed,
	})
	p.notify("stage_completed", st.name, message)
	slog.Debug("Pipeline stage completed", "stage", st.name, "elapsed", elapsed)
	return nil
}

func (p *Pipeline) notify(eventType, stage, message string) {
	if p.progress != nil {
		p.progress(eventType, stage, message)
	}
}

// collect copies the state's outputs into the result.
func (p *Pipeline) collect(state *State, result *Result, started time.Time) {
	result.Insights = state.Insights
	result.Algorithm = state.Algorithm
	result.Reason = state.Reason
	result.Alternatives = state.Alternatives
	result.Code = state.Code
	result.Messages = state.Messages
	result.Elapsed = time.Since(started)
}
