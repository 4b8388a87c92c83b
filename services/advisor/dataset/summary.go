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
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// targetKeywords drive target-column detection, checked in order against
// lowercased column names (exact match first, then substring).
var targetKeywords = []string{
	"target", "label", "class", "churn", "fraud", "default",
	"outcome", "result", "y", "price", "sales",
}

// classificationUniqueCutoff: a numeric target with more distinct values
// than this is treated as continuous.
const classificationUniqueCutoff = 20

// NumericStats holds the standard moments for a numeric column.
type NumericStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// ColumnSummary profiles a single column.
type ColumnSummary struct {
	Name    string        `json:"name"`
	DType   string        `json:"dtype"`
	Unique  int           `json:"unique"`
	Missing int           `json:"missing"`
	Stats   *NumericStats `json:"stats,omitempty"`
}

// Summary is the dataset profile inserted into agent prompts and echoed
// back to the caller.
type Summary struct {
	Rows           int             `json:"rows"`
	TotalRows      int             `json:"total_rows"`
	Cols           int             `json:"cols"`
	NumericCols    int             `json:"numeric_cols"`
	CategoricalCols int            `json:"categorical_cols"`
	MissingCells   int             `json:"missing_cells"`
	MissingPercent float64         `json:"missing_percent"`
	Columns        []ColumnSummary `json:"columns"`
	SampleRow      map[string]string `json:"sample_row,omitempty"`

	TargetColumn string `json:"target_column"`
	TargetType   string `json:"target_type"`   // "continuous" or "categorical"
	TargetUnique int    `json:"target_unique"`
	ProblemType  string `json:"problem_type"` // "Regression" or "N-class Classification"
}

// sampleValueMaxLen caps cell values echoed in the sample row.
const sampleValueMaxLen = 40

// Summarize profiles a parsed frame. The problem description currently
// only disambiguates target detection when it names a column outright.
func Summarize(f *Frame, problemDescription string) (*Summary, error) {
	if f == nil || len(f.Rows) == 0 {
		return nil, fmt.Errorf("file is empty")
	}
	if len(f.Columns) == 0 {
		return nil, fmt.Errorf("no columns found")
	}

	s := &Summary{
		Rows:      len(f.Rows),
		TotalRows: f.TotalRows,
		Cols:      len(f.Columns),
	}

	types := make(map[string]ColumnType, len(f.Columns))
	for _, col := range f.Columns {
		values := f.Column(col)
		colType := InferType(values)
		types[col] = colType

		cs := ColumnSummary{Name: col, DType: colType.String()}
		uniq := map[string]bool{}
		var nums []float64
		for _, v := range values {
			if IsMissing(v) {
				cs.Missing++
				continue
			}
			uniq[strings.TrimSpace(v)] = true
			if colType == TypeNumeric {
				if fv, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
					nums = append(nums, fv)
				}
			}
		}
		cs.Unique = len(uniq)
		if len(nums) > 0 {
			cs.Stats = computeStats(nums)
		}
		s.MissingCells += cs.Missing
		switch colType {
		case TypeNumeric:
			s.NumericCols++
		default:
			s.CategoricalCols++
		}
		s.Columns = append(s.Columns, cs)
	}

	totalCells := s.Rows * s.Cols
	if totalCells > 0 {
		s.MissingPercent = round2(float64(s.MissingCells) / float64(totalCells) * 100)
	}

	s.SampleRow = sampleRow(f)
	s.TargetColumn = detectTarget(f.Columns, problemDescription)
	s.analyzeTarget(types[s.TargetColumn])
	return s, nil
}

// detectTarget picks the likely target column by keyword heuristics,
// preferring a column named verbatim in the problem description, then
// keyword matches, then the last column.
func detectTarget(columns []string, problemDescription string) string {
	desc := strings.ToLower(problemDescription)
	if desc != "" {
		for _, col := range columns {
			if strings.Contains(desc, strings.ToLower(col)) {
				return col
			}
		}
	}
	lower := make([]string, len(columns))
	for i, c := range columns {
		lower[i] = strings.ToLower(c)
	}
	for _, kw := range targetKeywords {
		for i, lc := range lower {
			if lc == kw {
				return columns[i]
			}
		}
	}
	for _, kw := range targetKeywords {
		for i, lc := range lower {
			if strings.Contains(lc, kw) {
				return columns[i]
			}
		}
	}
	return columns[len(columns)-1]
}

func (s *Summary) analyzeTarget(colType ColumnType) {
	for _, cs := range s.Columns {
		if cs.Name != s.TargetColumn {
			continue
		}
		s.TargetUnique = cs.Unique
		if colType == TypeNumeric && cs.Unique > classificationUniqueCutoff {
			s.TargetType = "continuous"
			s.ProblemType = "Regression"
		} else {
			s.TargetType = "categorical"
			s.ProblemType = fmt.Sprintf("%d-class Classification", cs.Unique)
		}
		return
	}
}

func sampleRow(f *Frame) map[string]string {
	if len(f.Rows) == 0 {
		return nil
	}
	row := f.Rows[0]
	out := make(map[string]string, len(f.Columns))
	for i, col := range f.Columns {
		v := row[i]
		if len(v) > sampleValueMaxLen {
			v = v[:sampleValueMaxLen] + "..."
		}
		out[col] = v
	}
	return out
}

func computeStats(nums []float64) *NumericStats {
	var sum float64
	min, max := nums[0], nums[0]
	for _, v := range nums {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean := sum / float64(len(nums))
	var variance float64
	for _, v := range nums {
		variance += (v - mean) * (v - mean)
	}
	if len(nums) > 1 {
		variance /= float64(len(nums) - 1)
	} else {
		variance = 0
	}
	return &NumericStats{
		Mean: round3(mean),
		Std:  round3(math.Sqrt(variance)),
		Min:  round3(min),
		Max:  round3(max),
	}
}

// Completeness returns the percentage of cells with data, for display.
func (s *Summary) Completeness() float64 {
	return round2(100 - s.MissingPercent)
}

// NumericColumnNames returns numeric column names in frame order.
func (s *Summary) NumericColumnNames() []string {
	var out []string
	for _, cs := range s.Columns {
		if cs.DType == "numeric" {
			out = append(out, cs.Name)
		}
	}
	return out
}

// TopUniqueCategorical returns up to n categorical columns sorted by
// cardinality, highest first. Used to flag encoding cost in prompts.
func (s *Summary) TopUniqueCategorical(n int) []ColumnSummary {
	var cats []ColumnSummary
	for _, cs := range s.Columns {
		if cs.DType != "numeric" {
			cats = append(cats, cs)
		}
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Unique > cats[j].Unique })
	if len(cats) > n {
		cats = cats[:n]
	}
	return cats
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
