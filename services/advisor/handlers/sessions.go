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
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianAdvisor/services/advisor/datatypes"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/sessions"
)

// HandleListSessions returns all live sessions, newest first.
func HandleListSessions(store *sessions.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		list := store.List()
		resp := datatypes.SessionListResponse{
			Sessions: make([]datatypes.SessionInfo, 0, len(list)),
			Count:    len(list),
		}
		for _, s := range list {
			resp.Sessions = append(resp.Sessions, s.Info())
		}
		c.JSON(http.StatusOK, resp)
	}
}

// HandleGetSession returns one session's status and, once the pipeline
// has finished, its stored result.
func HandleGetSession(store *sessions.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		s, err := store.Get(id)
		if err != nil {
			if errors.Is(err, sessions.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"session_id": s.ID,
			"status":     s.Status,
			"stage":      s.Stage,
			"result":     s.Result,
		})
	}
}

// HandleDeleteSession removes a session and its uploaded file.
func HandleDeleteSession(store *sessions.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := store.Delete(id); err != nil {
			if errors.Is(err, sessions.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Session cleaned up"})
	}
}
