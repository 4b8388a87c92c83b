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
	"strings"

	"github.com/AleutianAI/AleutianAdvisor/services/llm"
)

// codeGenHistory limits how much collaboration log the code prompt
// carries. Only the selector's decision matters here; earlier chatter
// just burns context.
const codeGenHistory = 2

// runGenerator asks the model for a complete sklearn training script for
// the selected algorithm, then strips markdown fencing from the reply.
func runGenerator(ctx context.Context, client llm.LLMClient, state *State) error {
	s := state.Summary

	prompt := fmt.Sprintf(`You are a Code Generator Agent. Generate production-ready Python ML code.

Algorithm Selected: %s
Reasoning: %s
Problem Type: %s
Features: %d
Target Column: %s

Previous Agent Decisions:
%s

Generate complete sklearn pipeline code including:
1. Imports
2. Data preprocessing
3. Train/test split
4. Model training with %s
5. Evaluation metrics

Use variable name 'df' for dataframe, target column is '%s'.
Make code production-ready and well-commented.
Return ONLY valid Python code, no explanations outside comments.`,
		state.Algorithm, state.Reason, s.ProblemType, s.Cols, s.TargetColumn,
		strings.Join(state.lastMessages(codeGenHistory), "\n"),
		state.Algorithm, s.TargetColumn)

	params := llm.GenerationParams{MaxTokens: intPtr(4096)}
	reply, err := client.Generate(ctx, prompt, params)
	if err != nil {
		return fmt.Errorf("code generator stage: %w", err)
	}

	state.Code = ExtractPythonCode(reply)
	state.CodeExplanation = fmt.Sprintf(
		"Generated %s pipeline based on %s problem with %d samples.",
		state.Algorithm, s.ProblemType, s.TotalRows)
	state.Messages = append(state.Messages, fmt.Sprintf(
		"[Code Generator]: Generated %s implementation with preprocessing pipeline.", state.Algorithm))
	return nil
}

// ExtractPythonCode strips markdown fencing from a model reply. The last
// ```python block wins; models that revise their answer mid-reply put
// the corrected version last. Replies with a bare ``` fence yield the
// first fenced block, and unfenced replies pass through trimmed.
func ExtractPythonCode(reply string) string {
	const pythonFence = "```python"
	const fence = "```"

	if i := strings.LastIndex(reply, pythonFence); i >= 0 {
		body := reply[i+len(pythonFence):]
		if j := strings.Index(body, fence); j >= 0 {
			body = body[:j]
		}
		return strings.TrimSpace(body)
	}
	if i := strings.Index(reply, fence); i >= 0 {
		body := reply[i+len(fence):]
		if j := strings.Index(body, fence); j >= 0 {
			body = body[:j]
		}
		// Drop a bare language tag on the opening fence line.
		if nl := strings.IndexByte(body, '\n'); nl >= 0 && isLanguageTag(body[:nl]) {
			body = body[nl+1:]
		}
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(reply)
}

// isLanguageTag reports whether a fence-opening line is a bare language
// name like "py" or "Python" rather than code.
func isLanguageTag(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || len(line) > 12 {
		return false
	}
	for _, r := range line {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

func intPtr(v int) *int { return &v }
