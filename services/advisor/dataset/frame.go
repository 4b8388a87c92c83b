// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dataset parses uploaded tabular files and computes the summary
// statistics that feed the agent pipeline. Values are kept as strings;
// column types are inferred from the parseable share of non-missing cells.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultMaxRows caps how many rows are profiled. Larger files are
// accepted but only the head is analyzed; TotalRows keeps the real count.
const DefaultMaxRows = 10000

// ColumnType is the inferred type of a column.
type ColumnType int

const (
	TypeCategorical ColumnType = iota
	TypeNumeric
	TypeBoolean
)

func (t ColumnType) String() string {
	switch t {
	case TypeNumeric:
		return "numeric"
	case TypeBoolean:
		return "boolean"
	default:
		return "categorical"
	}
}

// Frame is a column-ordered view of an uploaded tabular file.
// Rows holds at most the row cap; TotalRows is the count actually seen.
type Frame struct {
	Columns   []string
	Rows      [][]string
	TotalRows int
}

// missingTokens are cell values treated as missing, matching the usual
// pandas NA sentinels our users' CSV exports contain.
var missingTokens = map[string]bool{
	"":      true,
	"na":    true,
	"n/a":   true,
	"nan":   true,
	"null":  true,
	"none":  true,
	"-":     false, // a lone dash is data more often than it is NA
	"#n/a":  true,
	"#null": true,
}

// IsMissing reports whether a cell value counts as missing.
func IsMissing(v string) bool {
	return missingTokens[strings.ToLower(strings.TrimSpace(v))]
}

// Parse dispatches on the (already validated) filename extension.
func Parse(filename string, r io.Reader, maxRows int) (*Frame, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ParseCSV(r, maxRows)
	case ".json":
		return ParseJSON(r, maxRows)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(filename))
	}
}

// ParseCSV reads a header row plus up to maxRows data rows. Ragged rows
// are tolerated: short rows are padded with empty cells, long rows are
// truncated to the header width.
func ParseCSV(r io.Reader, maxRows int) (*Frame, error) {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) == 0 || (len(header) == 1 && strings.TrimSpace(header[0]) == "") {
		return nil, fmt.Errorf("no columns found")
	}
	columns := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i)
		}
		columns[i] = h
	}

	frame := &Frame{Columns: columns}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", frame.TotalRows+2, err)
		}
		frame.TotalRows++
		if len(frame.Rows) >= maxRows {
			continue
		}
		row := make([]string, len(columns))
		for i := range columns {
			if i < len(record) {
				row[i] = record[i]
			}
		}
		frame.Rows = append(frame.Rows, row)
	}

	if frame.TotalRows == 0 {
		return nil, fmt.Errorf("file is empty")
	}
	return frame, nil
}

// ParseJSON reads an array of flat record objects. Column order follows
// first appearance, so files exported row-by-row keep their shape.
func ParseJSON(r io.Reader, maxRows int) (*Frame, error) {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	var records []map[string]json.RawMessage
	dec := json.NewDecoder(r)
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to parse JSON records: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("file is empty")
	}

	var columns []string
	seen := map[string]bool{}
	for _, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("no columns found")
	}

	frame := &Frame{Columns: columns}
	for _, rec := range records {
		frame.TotalRows++
		if len(frame.Rows) >= maxRows {
			continue
		}
		row := make([]string, len(columns))
		for i, col := range columns {
			raw, ok := rec[col]
			if !ok {
				continue
			}
			row[i] = rawToCell(raw)
		}
		frame.Rows = append(frame.Rows, row)
	}
	return frame, nil
}

// rawToCell flattens a JSON value into the string cell representation the
// profiler works on. Nested values are kept as their JSON text.
func rawToCell(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return ""
	}
	return text
}

// Column returns the values of the named column, or nil if absent.
func (f *Frame) Column(name string) []string {
	idx := -1
	for i, c := range f.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	values := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		values[i] = row[idx]
	}
	return values
}

// InferType classifies a column from its non-missing values. A column is
// numeric or boolean only when every non-missing cell parses as such; an
// all-missing column degrades to categorical.
func InferType(values []string) ColumnType {
	numeric, boolean, present := true, true, 0
	for _, v := range values {
		if IsMissing(v) {
			continue
		}
		present++
		trimmed := strings.TrimSpace(v)
		if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
			numeric = false
		}
		switch strings.ToLower(trimmed) {
		case "true", "false", "0", "1", "yes", "no":
		default:
			boolean = false
		}
		if !numeric && !boolean {
			return TypeCategorical
		}
	}
	if present == 0 {
		return TypeCategorical
	}
	if boolean && !allNumericDigits(values) {
		return TypeBoolean
	}
	if numeric {
		return TypeNumeric
	}
	if boolean {
		return TypeBoolean
	}
	return TypeCategorical
}

// allNumericDigits reports whether every non-missing value is "0" or "1";
// such columns read better as numeric than boolean when mixed with other
// digits, so a pure 0/1 column stays numeric.
func allNumericDigits(values []string) bool {
	for _, v := range values {
		if IsMissing(v) {
			continue
		}
		t := strings.TrimSpace(v)
		if t != "0" && t != "1" {
			return false
		}
	}
	return true
}
