package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"reflow/internal/archive"
	"reflow/internal/export"
	"reflow/internal/pipeline"
	"reflow/internal/registry"
	"reflow/internal/tasks"
)

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/health", s.handleHealth)

		api.GET("/sessions", s.handleListSessions)
		api.POST("/sessions", s.handleCreateSession)
		api.POST("/sessions/import", s.handleImportArchive)

		api.GET("/sessions/:id", s.handleGetSession)
		api.PATCH("/sessions/:id", s.handleUpdateSession)
		api.DELETE("/sessions/:id", s.handleDeleteSession)

		api.POST("/sessions/:id/pages", s.handleAddPages)
		api.POST("/sessions/:id/pages/reorder", s.handleReorderPages)
		api.DELETE("/sessions/:id/pages/:pageId", s.handleRemovePage)

		api.GET("/sessions/:id/archive", s.handleExportArchive)
		api.GET("/sessions/:id/document", s.handleGetDocument)
		api.POST("/sessions/:id/export", s.handleExportDocument)

		api.POST("/sessions/:id/recognize", s.handleRecognize)
		api.POST("/sessions/:id/cancel", s.handleCancelTask)
		api.GET("/sessions/:id/events", s.handleEvents)

		api.GET("/history", s.handleHistory)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "sessions": len(s.registry.List())})
}

// sessionID parses the :id path parameter, responding 400 itself on garbage.
func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

// respondDomainError maps the service sentinel errors onto HTTP statuses.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, registry.ErrSessionNotFound),
		errors.Is(err, registry.ErrPageNotFound):
		respondMessage(c, http.StatusNotFound, err.Error())
	case errors.Is(err, tasks.ErrSessionBusy):
		respondMessage(c, http.StatusConflict, err.Error())
	case errors.Is(err, archive.ErrInvalidArchive),
		errors.Is(err, export.ErrUnsupportedFormat),
		errors.Is(err, pipeline.ErrNoPages):
		respondMessage(c, http.StatusBadRequest, err.Error())
	default:
		respondMessage(c, http.StatusInternalServerError, err.Error())
	}
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
