package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"reflow/internal/export"
)

func (s *Server) handleGetDocument(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	sess, err := s.registry.Get(id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if sess.Document == nil {
		respondMessage(c, http.StatusNotFound, "session has no recognized document")
		return
	}
	c.JSON(http.StatusOK, sess.Document)
}

func (s *Server) handleExportDocument(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var payload struct {
		Format string `json:"format" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid payload")
		return
	}

	sess, err := s.registry.Get(id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if sess.Document == nil {
		respondMessage(c, http.StatusBadRequest, "session has no recognized document")
		return
	}

	result, err := s.exports.Export(sess.Document, export.Request{
		Format:       export.Format(payload.Format),
		FilenameHint: export.FilenameHint(sess.Name),
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.MediaType, result.Content)
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		respondMessage(c, http.StatusServiceUnavailable, "run history is not enabled")
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondMessage(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	ctx := c.Request.Context()
	if sessionParam := c.Query("session"); sessionParam != "" {
		runs, err := s.history.BySession(ctx, sessionParam, limit)
		if err != nil {
			respondDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, runs)
		return
	}

	runs, err := s.history.Recent(ctx, limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, runs)
}
