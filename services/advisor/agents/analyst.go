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

	"github.com/AleutianAI/AleutianAdvisor/pkg/validation"
	"github.com/AleutianAI/AleutianAdvisor/services/llm"
)

// analystColumnPreview caps how many column names appear in the prompt.
const analystColumnPreview = 5

// runAnalyst asks the model for a short read on the dataset: problem
// type, characteristics that matter for algorithm selection, and data
// quality concerns. The structured profile is computed locally; the LLM
// only adds interpretation.
func runAnalyst(ctx context.Context, client llm.LLMClient, state *State) error {
	s := state.Summary

	// Column names come from the uploaded file; sanitize before they
	// are interpolated into the prompt template.
	preview := make([]string, 0, analystColumnPreview)
	for i, cs := range s.Columns {
		if i >= analystColumnPreview {
			break
		}
		preview = append(preview, validation.SanitizeColumnName(cs.Name))
	}

	numeric := validation.SanitizeColumnNames(s.NumericColumnNames())
	if len(numeric) > analystColumnPreview {
		numeric = numeric[:analystColumnPreview]
	}
	numericNote := "none"
	if len(numeric) > 0 {
		numericNote = strings.Join(numeric, ", ")
	}

	prompt := fmt.Sprintf(`You are a Data Analyst Agent. Analyze this dataset:

Dataset: %d rows, %d columns
- Numeric columns: %d (%s)
- Categorical columns: %d
- Missing data: %.1f%%
- Target column: %s (%s, %d unique values)

Sample columns: %s

Dataset profile (JSON):
%s

Problem Description: %s

Provide a concise analysis of:
1. What type of ML problem this is (classification/regression)
2. Key data characteristics that matter for algorithm selection
3. Any data quality concerns

Keep response under 150 words.`,
		s.TotalRows, s.Cols, s.NumericCols, numericNote, s.CategoricalCols,
		s.MissingPercent, validation.SanitizeColumnName(s.TargetColumn),
		s.TargetType, s.TargetUnique,
		strings.Join(preview, ", "),
		s.PromptText(),
		state.ProblemDescription)

	insights, err := client.Generate(ctx, prompt, llm.GenerationParams{})
	if err != nil {
		return fmt.Errorf("data analyst stage: %w", err)
	}

	state.Insights = strings.TrimSpace(insights)
	state.Messages = append(state.Messages, fmt.Sprintf(
		"[Data Analyst]: Analyzed dataset. Found %s problem with %d samples and %d features.",
		s.ProblemType, s.TotalRows, s.Cols))
	return nil
}
