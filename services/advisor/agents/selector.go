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

// Selection defaults when the model's reply cannot be parsed. These are
// safe general-purpose picks rather than errors: a vague reply still
// produces a usable recommendation.
const defaultAlgorithm = "Random Forest"

var defaultAlternatives = []string{"Logistic Regression", "Gradient Boosting"}

// runSelector asks the model to pick an algorithm given the analyst's
// findings, then parses the pipe-delimited reply leniently and maps the
// name onto the supported scikit-learn set.
func runSelector(ctx context.Context, client llm.LLMClient, state *State) error {
	s := state.Summary

	prompt := fmt.Sprintf(`You are an Algorithm Selector Agent. Based on the Data Analyst's findings, select the best ML algorithm.

Data Analyst's Report:
%s

Key Statistics:
- Problem Type: %s
- Samples: %d
- Features: %d
- Missing Data: %.1f%%
- Target Classes: %d

Previous Agent Messages:
%s

Recommend:
1. PRIMARY algorithm (specific sklearn model)
2. WHY this algorithm fits the data characteristics
3. TWO alternative algorithms

Format: Algorithm Name | Reason (1 sentence) | Alternative1, Alternative2

Keep response under 100 words.`,
		state.Insights,
		s.ProblemType, s.TotalRows, s.Cols, s.MissingPercent, s.TargetUnique,
		strings.Join(state.Messages, "\n"))

	reply, err := client.Generate(ctx, prompt, llm.GenerationParams{})
	if err != nil {
		return fmt.Errorf("algorithm selector stage: %w", err)
	}

	algorithm, reason, alternatives := parseSelection(reply)
	state.Algorithm = CanonicalAlgorithm(algorithm, s.ProblemType)
	state.Reason = reason
	state.Alternatives = alternatives
	state.Messages = append(state.Messages, fmt.Sprintf(
		"[Algorithm Selector]: Recommended %s based on data characteristics.", state.Algorithm))
	return nil
}

// parseSelection extracts "Algorithm | Reason | Alt1, Alt2" from a model
// reply. Unparseable replies fall back to defaults with the whole reply
// kept as the reason, so nothing the model said is lost.
func parseSelection(reply string) (algorithm, reason string, alternatives []string) {
	reply = strings.TrimSpace(reply)
	algorithm = defaultAlgorithm
	reason = reply
	alternatives = append([]string(nil), defaultAlternatives...)

	if !strings.Contains(reply, "|") {
		return algorithm, reason, alternatives
	}
	parts := strings.Split(reply, "|")
	if len(parts) < 3 {
		return algorithm, reason, alternatives
	}

	if a := strings.TrimSpace(parts[0]); a != "" {
		algorithm = a
	}
	if r := strings.TrimSpace(parts[1]); r != "" {
		reason = r
	}
	var alts []string
	for _, alt := range strings.Split(parts[2], ",") {
		if alt = strings.TrimSpace(alt); alt != "" {
			alts = append(alts, alt)
		}
		if len(alts) == 2 {
			break
		}
	}
	if len(alts) > 0 {
		alternatives = alts
	}
	return algorithm, reason, alternatives
}

// CanonicalAlgorithm maps a free-form algorithm name onto the supported
// scikit-learn set. Unknown names degrade to a problem-type default
// rather than passing arbitrary model output downstream.
func CanonicalAlgorithm(name, problemType string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "random forest"):
		return "Random Forest"
	case strings.Contains(lower, "logistic"):
		return "Logistic Regression"
	case strings.Contains(lower, "gradient boost"), strings.Contains(lower, "xgboost"):
		return "Gradient Boosting"
	case strings.Contains(lower, "svm"), strings.Contains(lower, "support vector"):
		return "Support Vector Machine"
	case strings.Contains(lower, "decision tree"):
		return "Decision Tree"
	case strings.Contains(lower, "neural"), strings.Contains(lower, "mlp"):
		return "Neural Network"
	case strings.Contains(lower, "naive bayes"):
		return "Naive Bayes"
	case strings.Contains(lower, "linear regression"):
		return "Linear Regression"
	}
	if strings.Contains(problemType, "Classification") {
		return "Random Forest"
	}
	return "Linear Regression"
}
