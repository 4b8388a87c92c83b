// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianAdvisor/services/advisor/datatypes"
	"github.com/AleutianAI/AleutianAdvisor/services/llm"
)

// HandleListModels proxies the inference backend's model listing so the
// UI can offer a model picker. Backends without a listing API yield 501.
func HandleListModels(lister llm.ModelLister, defaultModel string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if lister == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "the configured backend does not support model listing"})
			return
		}

		models, err := lister.ListModels(c.Request.Context())
		if err != nil {
			slog.Error("Failed to list models", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to reach the inference backend"})
			return
		}

		resp := datatypes.ModelsResponse{
			Models:  make([]datatypes.ModelEntry, 0, len(models)),
			Count:   len(models),
			Default: defaultModel,
		}
		for _, m := range models {
			resp.Models = append(resp.Models, datatypes.ModelEntry{
				Name:       m.Name,
				SizeBytes:  m.SizeBytes,
				ModifiedAt: m.ModifiedAt,
			})
		}
		c.JSON(http.StatusOK, resp)
	}
}
