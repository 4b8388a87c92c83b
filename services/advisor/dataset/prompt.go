// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataset

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/AleutianAI/AleutianAdvisor/pkg/validation"
)

// PromptBudget caps the rendered summary so small local models keep
// context room for the instructions and prior agent messages.
const PromptBudget = 1800

// promptColumnCap limits how many columns appear in the prompt payload.
const promptColumnCap = 12

// promptNumericCap limits how many numeric stat blocks are included.
const promptNumericCap = 5

// promptPayload is the compact JSON shape sent to the model. Kept
// separate from Summary so the wire response can grow without bloating
// prompts.
type promptPayload struct {
	Rows      int                      `json:"rows"`
	Cols      int                      `json:"cols"`
	Columns   []string                 `json:"columns"`
	DTypes    map[string]string        `json:"dtypes"`
	Missing   map[string]int           `json:"missing,omitempty"`
	Sample    map[string]string        `json:"sample,omitempty"`
	Numeric   map[string]*NumericStats `json:"numeric_stats,omitempty"`
	Target    string                   `json:"target"`
	Problem   string                   `json:"problem_type"`
}

// PromptText renders the summary as compact JSON capped at PromptBudget
// characters. Oversized payloads are cut at a separator boundary rather
// than mid-token so the model still sees valid-looking structure.
func (s *Summary) PromptText() string {
	p := promptPayload{
		Rows:    s.TotalRows,
		Cols:    s.Cols,
		DTypes:  map[string]string{},
		Missing: map[string]int{},
		Sample:  map[string]string{},
		Numeric: map[string]*NumericStats{},
		Target:  validation.SanitizeColumnName(s.TargetColumn),
		Problem: s.ProblemType,
	}

	// Column names are attacker-controlled file content; sanitize every
	// name before it lands in the payload.
	numericIncluded := 0
	for i, cs := range s.Columns {
		if i >= promptColumnCap {
			p.Columns = append(p.Columns, "...")
			break
		}
		name := validation.SanitizeColumnName(cs.Name)
		p.Columns = append(p.Columns, name)
		p.DTypes[name] = cs.DType
		if cs.Missing > 0 {
			p.Missing[name] = cs.Missing
		}
		if v, ok := s.SampleRow[cs.Name]; ok {
			p.Sample[name] = v
		}
		if cs.Stats != nil && numericIncluded < promptNumericCap {
			p.Numeric[name] = cs.Stats
			numericIncluded++
		}
	}

	b, err := json.Marshal(p)
	if err != nil {
		// Marshal of plain maps cannot realistically fail; degrade to the
		// bare shape rather than an empty prompt.
		return fmt.Sprintf(`{"rows":%d,"cols":%d,"target":%q}`, s.TotalRows, s.Cols,
			validation.SanitizeColumnName(s.TargetColumn))
	}
	text := string(b)
	if len(text) <= PromptBudget {
		return text
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(PromptBudget),
		textsplitter.WithChunkOverlap(0),
		textsplitter.WithSeparators([]string{"},", ",", ":", ""}),
	)
	chunks, err := splitter.SplitText(text)
	if err != nil || len(chunks) == 0 {
		slog.Warn("Summary text splitting failed, hard-truncating", "error", err)
		return text[:PromptBudget] + "..."
	}
	head := chunks[0]
	if len(head) > PromptBudget {
		head = head[:PromptBudget]
	}
	return strings.TrimRight(head, ",") + "..."
}

// DisplayText renders the human-readable dataset block shown in the UI's
// analysis panel, mirroring the agent log format.
func (s *Summary) DisplayText(insights string, alternatives []string, messages []string) string {
	var b strings.Builder
	b.WriteString("Multi-Agent Analysis Results\n\n")
	b.WriteString("Dataset Characteristics:\n")
	fmt.Fprintf(&b, "- Rows: %d\n", s.TotalRows)
	fmt.Fprintf(&b, "- Columns: %d\n", s.Cols)
	fmt.Fprintf(&b, "  - Numeric: %d\n", s.NumericCols)
	fmt.Fprintf(&b, "  - Categorical: %d\n", s.CategoricalCols)
	fmt.Fprintf(&b, "- Target: %s\n", s.TargetColumn)
	fmt.Fprintf(&b, "- Completeness: %.1f%%\n", s.Completeness())
	fmt.Fprintf(&b, "- Problem Type: %s\n", s.ProblemType)

	if insights != "" {
		b.WriteString("\nAgent Insights:\n")
		b.WriteString(insights)
		b.WriteString("\n")
	}
	if len(alternatives) > 0 {
		b.WriteString("\nAlternative Algorithms:\n")
		b.WriteString(strings.Join(alternatives, ", "))
		b.WriteString("\n")
	}
	if len(messages) > 0 {
		b.WriteString("\nAgent Collaboration Log:\n")
		for _, m := range messages {
			fmt.Fprintf(&b, "- %s\n", m)
		}
	}
	return b.String()
}
