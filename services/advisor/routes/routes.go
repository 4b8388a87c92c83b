// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianAdvisor/services/advisor/handlers"
	"github.com/AleutianAI/AleutianAdvisor/services/llm"
)

// Config carries the route-level settings SetupRoutes needs beyond the
// handler dependencies themselves.
type Config struct {
	// UIDir is the directory served under /ui. Empty disables the UI.
	UIDir string

	// DefaultModel is reported by the models endpoint.
	DefaultModel string
}

// SetupRoutes wires all advisor endpoints onto the router.
func SetupRoutes(router *gin.Engine, deps handlers.AnalyzeDeps, lister llm.ModelLister, cfg Config) {
	router.GET("/health", handlers.HandleHealth())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.UIDir != "" {
		router.StaticFS("/ui", http.Dir(cfg.UIDir))
		router.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, "/ui/index.html")
		})
	}

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/analyze", handlers.HandleAnalyze(deps))
		v1.GET("/analyze/ws", handlers.HandleProgressWS(deps.Hub))
		v1.GET("/models", handlers.HandleListModels(lister, cfg.DefaultModel))

		sessions := v1.Group("/sessions")
		{
			sessions.GET("", handlers.HandleListSessions(deps.Store))
			sessions.GET("/:id", handlers.HandleGetSession(deps.Store))
			sessions.DELETE("/:id", handlers.HandleDeleteSession(deps.Store))
		}
	}
}
