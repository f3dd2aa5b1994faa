package api

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"reflow/internal/logging"
	"reflow/internal/session"
)

func (s *Server) handleAddPages(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "expected multipart upload")
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	if len(files) == 0 {
		respondMessage(c, http.StatusBadRequest, "no page files in upload")
		return
	}

	var (
		sess  *session.Session
		added []session.Page
	)
	for _, header := range files {
		data, err := readUpload(header)
		if err != nil {
			s.logger.Warn("page upload unreadable",
				logging.String("filename", header.Filename),
				logging.Error(err))
			respondMessage(c, http.StatusBadRequest, "unable to read uploaded file")
			return
		}

		snapshot, page, err := s.registry.AddPage(id, data, header.Filename, session.SourceFile, header.Header.Get("Content-Type"))
		if err != nil {
			respondDomainError(c, err)
			return
		}
		sess = snapshot
		added = append(added, page)
	}

	c.JSON(http.StatusCreated, gin.H{"session": sess, "pages": added})
}

func (s *Server) handleReorderPages(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var payload struct {
		Order []uuid.UUID `json:"order" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid payload")
		return
	}

	sess, err := s.registry.ReorderPages(id, payload.Order)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) handleRemovePage(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	pageID, err := uuid.Parse(c.Param("pageId"))
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid page id")
		return
	}

	sess, err := s.registry.RemovePage(id, pageID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}
