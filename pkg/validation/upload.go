// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that are used in
// file paths or prompt templates. Using these validators prevents path
// traversal via crafted upload filenames and prompt injection via hostile
// column names.
package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// allowedExtensions lists the dataset formats the advisor can parse.
// XLSX is deliberately absent: users are told to export to CSV instead.
var allowedExtensions = map[string]bool{
	".csv":  true,
	".json": true,
}

// columnNamePattern matches characters we keep when a column name is
// interpolated into a prompt. Everything else is replaced with "_".
var columnNamePattern = regexp.MustCompile(`[^A-Za-z0-9_. \-]`)

// ValidateUploadFilename checks a client-supplied filename before it is used
// to build a path under the uploads directory.
//
// Valid filenames:
//   - non-empty after stripping any directory components
//   - no path separators, ".." segments, or NUL bytes
//   - extension in the allowed set (.csv, .json)
//
// Returns an error naming the problem, suitable for a 400 response.
//
// Example:
//
//	if err := validation.ValidateUploadFilename(header.Filename); err != nil {
//	    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
//	    return
//	}
func ValidateUploadFilename(name string) error {
	if name == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("filename contains invalid characters")
	}
	base := filepath.Base(filepath.Clean(name))
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return fmt.Errorf("invalid filename: %q", name)
	}
	ext := strings.ToLower(filepath.Ext(base))
	if ext == ".xlsx" || ext == ".xls" {
		return fmt.Errorf("excel files are not supported, export %q to CSV and retry", base)
	}
	if !allowedExtensions[ext] {
		return fmt.Errorf("unsupported file type %q (allowed: .csv, .json)", ext)
	}
	return nil
}

// SafeUploadName strips directory components from a client filename.
// Call ValidateUploadFilename first; this is the normalization half.
func SafeUploadName(name string) string {
	return filepath.Base(filepath.Clean(name))
}

// SanitizeColumnName normalizes a column name before it is interpolated
// into a prompt template. Control characters and prompt-significant
// punctuation are replaced with underscores, and the result is capped
// at 64 characters.
//
// Use this when you need both validation and normalization:
//
//	safe := validation.SanitizeColumnName(col)
//	prompt := fmt.Sprintf("Target column: %s", safe)
func SanitizeColumnName(name string) string {
	name = strings.TrimSpace(name)
	name = columnNamePattern.ReplaceAllString(name, "_")
	if len(name) > 64 {
		name = name[:64]
	}
	if name == "" {
		name = "column"
	}
	return name
}

// SanitizeColumnNames normalizes a slice of column names, preserving order.
func SanitizeColumnNames(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = SanitizeColumnName(n)
	}
	return out
}
