// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// logRequest writes the access log line for one handled request.
// Client errors log at warn, server errors at error, the rest at debug
// so steady-state traffic stays out of the info log.
func logRequest(c *gin.Context, latency time.Duration) {
	status := c.Writer.Status()
	attrs := []any{
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", status,
		"latency", latency,
		"clientIP", c.ClientIP(),
	}
	if len(c.Errors) > 0 {
		attrs = append(attrs, "errors", c.Errors.String())
	}

	switch {
	case status >= 500:
		slog.Error("HTTP request", attrs...)
	case status >= 400:
		slog.Warn("HTTP request", attrs...)
	default:
		slog.Debug("HTTP request", attrs...)
	}
}
