// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for tabular parsing

package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const churnCSV = `customer_id,tenure,monthly_charges,contract,churn
1,12,29.85,month-to-month,yes
2,34,56.95,one-year,no
3,2,53.85,month-to-month,yes
4,45,42.30,two-year,no
`

func TestParseCSV_Basic(t *testing.T) {
	frame, err := ParseCSV(strings.NewReader(churnCSV), 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"customer_id", "tenure", "monthly_charges", "contract", "churn"}, frame.Columns)
	assert.Equal(t, 4, frame.TotalRows)
	require.Len(t, frame.Rows, 4)
	assert.Equal(t, "29.85", frame.Rows[0][2])
}

func TestParseCSV_RowCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("a,b\n")
	for i := 0; i < 50; i++ {
		b.WriteString("1,2\n")
	}

	frame, err := ParseCSV(strings.NewReader(b.String()), 10)
	require.NoError(t, err)

	// Head is profiled, full count is preserved.
	assert.Len(t, frame.Rows, 10)
	assert.Equal(t, 50, frame.TotalRows)
}

func TestParseCSV_RaggedRows(t *testing.T) {
	in := "a,b,c\n1,2,3\n4,5\n6,7,8,9\n"
	frame, err := ParseCSV(strings.NewReader(in), 0)
	require.NoError(t, err)

	require.Len(t, frame.Rows, 3)
	assert.Equal(t, []string{"4", "5", ""}, frame.Rows[1])
	assert.Equal(t, []string{"6", "7", "8"}, frame.Rows[2])
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestParseCSV_HeaderOnly(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("a,b,c\n"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestParseCSV_BlankHeaderCell(t *testing.T) {
	frame, err := ParseCSV(strings.NewReader("a,,c\n1,2,3\n"), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "column_1", "c"}, frame.Columns)
}

func TestParseJSON_Records(t *testing.T) {
	in := `[
		{"age": 34, "income": 51000.5, "churn": "no"},
		{"age": 29, "income": null, "churn": "yes"},
		{"age": 41, "income": 72000, "churn": "no", "region": "west"}
	]`
	frame, err := ParseJSON(strings.NewReader(in), 0)
	require.NoError(t, err)

	// Union of keys; later-only keys append after the first record's set.
	assert.Equal(t, []string{"age", "churn", "income", "region"}, frame.Columns)
	assert.Equal(t, 3, frame.TotalRows)
	assert.Equal(t, "", frame.Rows[1][2]) // null -> missing
	assert.Equal(t, "west", frame.Rows[2][3])
	assert.Equal(t, "", frame.Rows[0][3]) // absent key -> missing
}

func TestParseJSON_NotAnArray(t *testing.T) {
	_, err := ParseJSON(strings.NewReader(`{"rows": []}`), 0)
	require.Error(t, err)
}

func TestParseJSON_EmptyArray(t *testing.T) {
	_, err := ParseJSON(strings.NewReader(`[]`), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestParse_DispatchesOnExtension(t *testing.T) {
	frame, err := Parse("data.csv", strings.NewReader("a\n1\n"), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, frame.TotalRows)

	_, err = Parse("data.parquet", strings.NewReader(""), 0)
	require.Error(t, err)
}

func TestInferType(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   ColumnType
	}{
		{"integers", []string{"1", "2", "30"}, TypeNumeric},
		{"floats", []string{"1.5", "2.25", "-3"}, TypeNumeric},
		{"numeric with missing", []string{"1.5", "", "NaN", "2"}, TypeNumeric},
		{"strings", []string{"red", "green"}, TypeCategorical},
		{"mixed", []string{"1", "two"}, TypeCategorical},
		{"booleans", []string{"true", "false", "true"}, TypeBoolean},
		{"yes no", []string{"yes", "no"}, TypeBoolean},
		{"binary digits stay numeric", []string{"0", "1", "0"}, TypeNumeric},
		{"all missing", []string{"", "NA", "null"}, TypeCategorical},
		{"empty", nil, TypeCategorical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferType(tt.values))
		})
	}
}

func TestIsMissing(t *testing.T) {
	assert.True(t, IsMissing(""))
	assert.True(t, IsMissing("  "))
	assert.True(t, IsMissing("NaN"))
	assert.True(t, IsMissing("NULL"))
	assert.True(t, IsMissing("n/a"))
	assert.False(t, IsMissing("0"))
	assert.False(t, IsMissing("-"))
	assert.False(t, IsMissing("none ish"))
}

func TestFrameColumn(t *testing.T) {
	frame, err := ParseCSV(strings.NewReader(churnCSV), 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"yes", "no", "yes", "no"}, frame.Column("churn"))
	assert.Nil(t, frame.Column("missing_column"))
}
