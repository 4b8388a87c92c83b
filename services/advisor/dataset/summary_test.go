// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for dataset profiling and prompt rendering

package dataset

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func churnFrame(t *testing.T) *Frame {
	t.Helper()
	frame, err := ParseCSV(strings.NewReader(churnCSV), 0)
	require.NoError(t, err)
	return frame
}

func TestSummarize_Counts(t *testing.T) {
	s, err := Summarize(churnFrame(t), "")
	require.NoError(t, err)

	assert.Equal(t, 4, s.Rows)
	assert.Equal(t, 4, s.TotalRows)
	assert.Equal(t, 5, s.Cols)
	assert.Equal(t, 3, s.NumericCols) // customer_id, tenure, monthly_charges
	assert.Equal(t, 2, s.CategoricalCols)
	assert.Equal(t, 0, s.MissingCells)
	assert.Equal(t, 100.0, s.Completeness())
}

func TestSummarize_TargetDetection(t *testing.T) {
	s, err := Summarize(churnFrame(t), "")
	require.NoError(t, err)

	assert.Equal(t, "churn", s.TargetColumn)
	assert.Equal(t, "categorical", s.TargetType)
	assert.Equal(t, 2, s.TargetUnique)
	assert.Equal(t, "2-class Classification", s.ProblemType)
}

func TestSummarize_TargetFromProblemDescription(t *testing.T) {
	s, err := Summarize(churnFrame(t), "predict monthly_charges from usage")
	require.NoError(t, err)
	assert.Equal(t, "monthly_charges", s.TargetColumn)
}

func TestSummarize_RegressionTarget(t *testing.T) {
	var b strings.Builder
	b.WriteString("sqft,price\n")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "%d,%d\n", 800+i*10, 100000+i*1717)
	}
	frame, err := ParseCSV(strings.NewReader(b.String()), 0)
	require.NoError(t, err)

	s, err := Summarize(frame, "")
	require.NoError(t, err)
	assert.Equal(t, "price", s.TargetColumn)
	assert.Equal(t, "continuous", s.TargetType)
	assert.Equal(t, "Regression", s.ProblemType)
}

func TestSummarize_FallbackToLastColumn(t *testing.T) {
	frame, err := ParseCSV(strings.NewReader("alpha,beta,gamma\n1,2,3\n"), 0)
	require.NoError(t, err)

	s, err := Summarize(frame, "")
	require.NoError(t, err)
	assert.Equal(t, "gamma", s.TargetColumn)
}

func TestSummarize_MissingCells(t *testing.T) {
	in := "a,b\n1,\n,x\n3,y\n"
	frame, err := ParseCSV(strings.NewReader(in), 0)
	require.NoError(t, err)

	s, err := Summarize(frame, "")
	require.NoError(t, err)
	assert.Equal(t, 2, s.MissingCells)
	assert.InDelta(t, 33.33, s.MissingPercent, 0.01)
}

func TestSummarize_NumericStats(t *testing.T) {
	frame, err := ParseCSV(strings.NewReader("v,y\n2,a\n4,b\n6,a\n"), 0)
	require.NoError(t, err)

	s, err := Summarize(frame, "")
	require.NoError(t, err)

	var v *ColumnSummary
	for i := range s.Columns {
		if s.Columns[i].Name == "v" {
			v = &s.Columns[i]
		}
	}
	require.NotNil(t, v)
	require.NotNil(t, v.Stats)
	assert.Equal(t, 4.0, v.Stats.Mean)
	assert.Equal(t, 2.0, v.Stats.Std)
	assert.Equal(t, 2.0, v.Stats.Min)
	assert.Equal(t, 6.0, v.Stats.Max)
}

func TestSummarize_EmptyFrame(t *testing.T) {
	_, err := Summarize(&Frame{Columns: []string{"a"}}, "")
	require.Error(t, err)
}

func TestSummarize_SampleRowTruncation(t *testing.T) {
	long := strings.Repeat("x", 100)
	frame, err := ParseCSV(strings.NewReader("note,y\n"+long+",1\n"), 0)
	require.NoError(t, err)

	s, err := Summarize(frame, "")
	require.NoError(t, err)
	assert.Len(t, s.SampleRow["note"], sampleValueMaxLen+3)
	assert.True(t, strings.HasSuffix(s.SampleRow["note"], "..."))
}

// =============================================================================
// PromptText Tests
// =============================================================================

func TestPromptText_ValidJSON(t *testing.T) {
	s, err := Summarize(churnFrame(t), "")
	require.NoError(t, err)

	text := s.PromptText()
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &payload))
	assert.EqualValues(t, 4, payload["rows"])
	assert.Equal(t, "churn", payload["target"])
}

func TestPromptText_CapsColumns(t *testing.T) {
	header := make([]string, 30)
	cells := make([]string, 30)
	for i := range header {
		header[i] = fmt.Sprintf("col_%d", i)
		cells[i] = "1"
	}
	in := strings.Join(header, ",") + "\n" + strings.Join(cells, ",") + "\n"
	frame, err := ParseCSV(strings.NewReader(in), 0)
	require.NoError(t, err)

	s, err := Summarize(frame, "")
	require.NoError(t, err)

	text := s.PromptText()
	assert.Contains(t, text, `"..."`)
	assert.NotContains(t, text, "col_25")
}

func TestPromptText_RespectsBudget(t *testing.T) {
	header := make([]string, 12)
	cells := make([]string, 12)
	for i := range header {
		header[i] = fmt.Sprintf("an_extremely_long_column_name_%02d_%s", i, strings.Repeat("z", 40))
		cells[i] = strings.Repeat("v", 39)
	}
	in := strings.Join(header, ",") + "\n" + strings.Join(cells, ",") + "\n"
	frame, err := ParseCSV(strings.NewReader(in), 0)
	require.NoError(t, err)

	s, err := Summarize(frame, "")
	require.NoError(t, err)

	text := s.PromptText()
	assert.LessOrEqual(t, len(text), PromptBudget+3)
	assert.True(t, strings.HasSuffix(text, "..."))
}

func TestDisplayText(t *testing.T) {
	s, err := Summarize(churnFrame(t), "")
	require.NoError(t, err)

	out := s.DisplayText("looks clean", []string{"SVM", "Gradient Boosting"},
		[]string{"[Data Analyst]: profiled dataset"})

	assert.Contains(t, out, "Rows: 4")
	assert.Contains(t, out, "Problem Type: 2-class Classification")
	assert.Contains(t, out, "looks clean")
	assert.Contains(t, out, "SVM, Gradient Boosting")
	assert.Contains(t, out, "[Data Analyst]")
}

func TestTopUniqueCategorical(t *testing.T) {
	s, err := Summarize(churnFrame(t), "")
	require.NoError(t, err)

	top := s.TopUniqueCategorical(1)
	require.Len(t, top, 1)
	assert.Equal(t, "contract", top[0].Name) // 3 unique beats churn's 2
}
